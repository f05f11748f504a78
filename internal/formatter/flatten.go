package formatter

import (
	"strings"
	"unicode"
)

// camelToSnake converts a lowerCamelCase key into snake_case. Acronyms are
// kept together, e.g. loRaSNR becomes lo_ra_snr and HTTPServer becomes
// http_server.
func camelToSnake(s string) string {
	r := []rune(s)
	var b strings.Builder

	for i, c := range r {
		if unicode.IsUpper(c) && i > 0 {
			nextLower := i+1 < len(r) && unicode.IsLower(r[i+1])
			prev := r[i-1]

			if (nextLower && prev != '_') || unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(c))
	}

	return b.String()
}

// flatten flattens the nested maps into a single map. Keys are converted to
// snake_case and nested keys are joined by a dot. Slices are kept as-is.
func flatten(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	flattenInto(out, "", in)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, in map[string]interface{}) {
	for k, v := range in {
		key := prefix + camelToSnake(k)

		if m, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key+".", m)
			continue
		}

		out[key] = v
	}
}

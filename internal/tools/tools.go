// +build tools

// Package tools pins the versions of the tools used by go:generate
// (stringer for the lorawan MType and Major names) and the linter.
package tools

import (
	_ "golang.org/x/lint/golint"
	_ "golang.org/x/tools/cmd/stringer"
)

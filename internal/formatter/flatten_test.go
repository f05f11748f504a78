package formatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCamelToSnake(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"mType", "m_type"},
		{"macPayload", "mac_payload"},
		{"fOptsLen", "f_opts_len"},
		{"loRaSNR", "lo_ra_snr"},
		{"HTTPServer", "http_server"},
		{"rx1DROffsetAck", "rx1_dr_offset_ack"},
		{"channelFrequencyOK", "channel_frequency_ok"},
		{"lora_snr", "lora_snr"},
		{"a_Bc", "a_bc"},
		{"", ""},
	}

	for _, tst := range tests {
		t.Run(tst.in, func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(tst.expected, camelToSnake(tst.in))
		})
	}
}

func TestFlatten(t *testing.T) {
	assert := require.New(t)

	out := flatten(map[string]interface{}{
		"devEUI": "0102030405060708",
		"phyPayload": map[string]interface{}{
			"mhdr": map[string]interface{}{
				"mType": "UnconfirmedDataUp",
				"major": "LoRaWANR1",
			},
			"mic": "01020304",
		},
		"empty":  map[string]interface{}{},
		"values": []interface{}{1, 2},
	})

	assert.Equal(map[string]interface{}{
		"dev_eui":                "0102030405060708",
		"phy_payload.mhdr.m_type": "UnconfirmedDataUp",
		"phy_payload.mhdr.major":  "LoRaWANR1",
		"phy_payload.mic":         "01020304",
		"values":                  []interface{}{1, 2},
	}, out)
}

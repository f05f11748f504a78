// Package decoder implements the PHYPayload decode entry-point. The frame
// structure is always parsed. Decoding of the FOpts MAC-commands and the
// FRMPayload are optional passes which never fail the decode.
package decoder

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// Pass defines a secondary decoding pass.
type Pass string

// Secondary decoding passes.
const (
	PassMACCommands Pass = "f_opts"
	PassFRMPayload  Pass = "frm_payload"
)

// Options holds the decode options.
type Options struct {
	// DecodeMACCommands decodes the FOpts into MAC-commands.
	DecodeMACCommands bool

	// DecodeFRMPayload decrypts the FRMPayload using the KeyStore.
	DecodeFRMPayload bool

	// PlaintextFRMPayload indicates that the FRMPayload is already
	// decrypted (e.g. frame-logs published by the network-server). When
	// set, the KeyStore is not used.
	PlaintextFRMPayload bool

	KeyStore lorawan.KeyStore
}

// Diagnostic holds the failure of a secondary pass. The field the pass
// operates on has been left in its raw form.
type Diagnostic struct {
	Pass Pass
	Err  error
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	return string(d.Pass) + ": " + d.Err.Error()
}

// MarshalText implements encoding.TextMarshaler.
func (d Diagnostic) MarshalText() ([]byte, error) {
	return []byte(d.Error()), nil
}

// Result holds the decoded PHYPayload and the secondary pass diagnostics.
type Result struct {
	PHYPayload  *lorawan.PHYPayload `json:"phyPayload"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
}

// Degraded returns true when one of the requested passes failed.
func (r Result) Degraded() bool {
	return len(r.Diagnostics) != 0
}

// OptionsFromConfig returns the decode options set in the configuration.
func OptionsFromConfig(c config.Config, ks lorawan.KeyStore) Options {
	return Options{
		DecodeMACCommands:   c.Decoder.DecodeMACCommands,
		DecodeFRMPayload:    c.Decoder.DecodeFRMPayload,
		PlaintextFRMPayload: c.Decoder.PlaintextFRMPayload,
		KeyStore:            ks,
	}
}

// Decode decodes the given PHYPayload bytes. An error is only returned
// when the bytes are not a structurally valid PHYPayload.
func Decode(b []byte, opts Options) (Result, error) {
	return DecodeWithContext(context.Background(), b, opts)
}

// DecodeWithContext decodes the given PHYPayload bytes. The context is only
// used for logging.
func DecodeWithContext(ctx context.Context, b []byte, opts Options) (Result, error) {
	var res Result

	phy, err := lorawan.Parse(b)
	if err != nil {
		decodeCounter("phy_payload", "error").Inc()
		return res, errors.Wrap(err, "decode phypayload error")
	}
	decodeCounter("phy_payload", "ok").Inc()
	res.PHYPayload = phy

	if opts.DecodeMACCommands {
		res.run(ctx, PassMACCommands, phy.DecodeFOptsToMACCommands)
	}

	if opts.DecodeFRMPayload {
		res.run(ctx, PassFRMPayload, func() error {
			if opts.PlaintextFRMPayload {
				return phy.DecodeFRMPayload()
			}
			return phy.DecryptFRMPayload(opts.KeyStore)
		})
	}

	return res, nil
}

func (r *Result) run(ctx context.Context, pass Pass, f func() error) {
	err := f()
	if err == nil {
		decodeCounter(string(pass), "ok").Inc()
		return
	}

	// join-requests, rejoin-requests, ... do not carry these fields
	if errors.Is(err, lorawan.ErrNotDataFrame) {
		decodeCounter(string(pass), "skipped").Inc()
		return
	}

	decodeCounter(string(pass), "error").Inc()
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Pass: pass, Err: err})

	log.WithError(err).WithFields(log.Fields{
		"pass":   pass,
		"m_type": r.PHYPayload.MHDR.MType,
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Warning("decoder: decode error, field left undecoded")
}

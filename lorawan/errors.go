package lorawan

import (
	"errors"
	"fmt"
)

// Structural errors. These are returned (wrapped in a *ParseError) by Parse
// and abort the decoding of the whole PHYPayload.
var (
	ErrTruncatedInput      = errors.New("truncated input")
	ErrMalformedFrame      = errors.New("malformed frame")
	ErrUnsupportedVersion  = errors.New("unsupported major version")
	ErrMalformedJoinAccept = errors.New("malformed join-accept")
)

// Secondary-pass errors. These are returned by the optional FOpts and
// FRMPayload decoding passes, which leave the PHYPayload untouched on error.
var (
	ErrUnknownMACCommand   = errors.New("unknown mac-command")
	ErrTruncatedMACCommand = errors.New("truncated mac-command")
	ErrMissingFPort        = errors.New("missing fport")
	ErrKeyUnavailable      = errors.New("key unavailable")
	ErrNotDataFrame        = errors.New("not a data frame")
)

// ParseError describes a structural decoding failure. Step names the part
// of the frame that was being decoded, Err holds one of the structural
// sentinel errors.
type ParseError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("lorawan: %s: %s", e.Step, e.Err)
}

// Unwrap returns the sentinel error so that errors.Is can be used.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(step string, err error) error {
	return &ParseError{Step: step, Err: err}
}

// MACCommandError describes a failure decoding a MAC-command sequence.
type MACCommandError struct {
	Offset int
	CID    CID
	Err    error
}

// Error implements the error interface.
func (e *MACCommandError) Error() string {
	return fmt.Sprintf("lorawan: %s (cid: 0x%02x, offset: %d)", e.Err, byte(e.CID), e.Offset)
}

// Unwrap returns the sentinel error so that errors.Is can be used.
func (e *MACCommandError) Unwrap() error {
	return e.Err
}

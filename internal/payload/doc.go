// Package payload maps provider webhook bodies onto typed events.
//
// Each provider gets one struct with explicit optional fields so the router
// can switch on a Kind instead of walking nested maps. Fallback rules (signer
// email before sender email, zero timestamp as unknown) live here and nowhere
// else.
package payload

import "errors"

var (
	ErrInvalidJSON        = errors.New("invalid json payload")
	ErrMissingEnvelopeID  = errors.New("missing envelope id")
	ErrMissingRecipient   = errors.New("missing recipient email")
	ErrUnsupportedPayload = errors.New("unsupported payload shape")
)

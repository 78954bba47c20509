package reveal

import (
	"errors"
)

var (
	// ErrNotReady means a handle is still the zero sentinel: the dealer has
	// not finished writing encrypted deck slots for the round.
	ErrNotReady = errors.New("cards not ready")

	// ErrAccessDenied means the signing credential lacks a grant for the
	// requested handle; surfaced by the decryption service.
	ErrAccessDenied = errors.New("access denied")

	// ErrDecryptExhausted means every configured decrypt attempt failed.
	ErrDecryptExhausted = errors.New("decrypt attempts exhausted")

	// ErrMalformedLedgerState means the game account blob is shorter than
	// the schema's expected offsets.
	ErrMalformedLedgerState = errors.New("malformed ledger state")
)

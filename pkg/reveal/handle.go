package reveal

import (
	"fmt"
	"math/big"
)

// HandleSize is the width of an on-ledger card handle in bytes.
const HandleSize = 16

// CardHandle is an opaque 128-bit reference to an encrypted card value held
// by the ledger. It is stored little-endian in the account blob and must be
// resolved through the reveal protocol before use; the all-zero value is the
// "not yet dealt" sentinel, never a valid encrypted value.
type CardHandle [HandleSize]byte

// HandleFromBytes reads a little-endian handle from b.
func HandleFromBytes(b []byte) (CardHandle, error) {
	var h CardHandle
	if len(b) < HandleSize {
		return h, fmt.Errorf("%w: handle needs %d bytes, got %d", ErrMalformedLedgerState, HandleSize, len(b))
	}
	copy(h[:], b[:HandleSize])
	return h, nil
}

// IsZero reports whether the handle is the not-yet-dealt sentinel.
func (h CardHandle) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

// String returns the canonical decimal representation the decryption service
// expects: the 16 little-endian bytes interpreted as an unsigned integer.
func (h CardHandle) String() string {
	be := make([]byte, HandleSize)
	for i, b := range h {
		be[HandleSize-1-i] = b
	}
	return new(big.Int).SetBytes(be).String()
}

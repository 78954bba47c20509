package reveal

import (
	"encoding/binary"
	"fmt"
)

// The game account blob is an externally defined binary record read at
// fixed byte offsets. All offsets live here and nowhere else; a ledger
// format change is a schema version bump, not an offset edit at call sites.
const (
	// SchemaVersion is the account layout version this package reads.
	SchemaVersion = 1

	// MaxSeats is the seat capacity encoded in the account layout.
	MaxSeats = 9

	// CommunitySlots is the number of community card handles.
	CommunitySlots = 5

	offVersion        = 0                                   // 1 byte
	offStage          = 1                                   // 1 byte, stage ordinal
	offFoldedMask     = 2                                   // uint16 LE, per-seat fold bits
	offAllInMask      = 4                                   // uint16 LE, per-seat all-in bits
	offPot            = 6                                   // uint64 LE
	offSeatBets       = 14                                  // MaxSeats x uint64 LE
	offCardsProcessed = offSeatBets + MaxSeats*8            // 1 byte flag
	offCommunity      = offCardsProcessed + 1               // CommunitySlots x 16-byte handles
	offHoleHandles    = offCommunity + CommunitySlots*16    // 2*MaxSeats x 16-byte handles
	offShuffle        = offHoleHandles + 2*MaxSeats*16      // MaxSeats x 1 byte, pair index -> seat
	accountSize       = offShuffle + MaxSeats               // total blob length
)

// GameAccount is the decoded read-only view of the ledger's game account.
type GameAccount struct {
	Version        uint8
	StageOrdinal   uint8
	FoldedMask     uint16
	AllInMask      uint16
	Pot            uint64
	SeatBets       [MaxSeats]uint64
	CardsProcessed bool

	CommunityHandles [CommunitySlots]CardHandle
	HoleHandles      [2 * MaxSeats]CardHandle

	// ShuffleOffsets maps deck pair index -> seat. The mapping is a
	// bijection over the round's active seats; resolving a seat's hole
	// cards searches for the pair index assigned to it.
	ShuffleOffsets [MaxSeats]uint8
}

// ParseGameAccount decodes the account blob, validating length and schema
// version before any field read.
func ParseGameAccount(data []byte) (*GameAccount, error) {
	if len(data) < accountSize {
		return nil, fmt.Errorf("%w: account blob is %d bytes, schema v%d needs %d",
			ErrMalformedLedgerState, len(data), SchemaVersion, accountSize)
	}
	if data[offVersion] != SchemaVersion {
		return nil, fmt.Errorf("%w: account schema version %d, expected %d",
			ErrMalformedLedgerState, data[offVersion], SchemaVersion)
	}

	acct := &GameAccount{
		Version:        data[offVersion],
		StageOrdinal:   data[offStage],
		FoldedMask:     binary.LittleEndian.Uint16(data[offFoldedMask:]),
		AllInMask:      binary.LittleEndian.Uint16(data[offAllInMask:]),
		Pot:            binary.LittleEndian.Uint64(data[offPot:]),
		CardsProcessed: data[offCardsProcessed] != 0,
	}

	for i := 0; i < MaxSeats; i++ {
		acct.SeatBets[i] = binary.LittleEndian.Uint64(data[offSeatBets+i*8:])
		acct.ShuffleOffsets[i] = data[offShuffle+i]
	}

	for i := 0; i < CommunitySlots; i++ {
		h, err := HandleFromBytes(data[offCommunity+i*HandleSize:])
		if err != nil {
			return nil, err
		}
		acct.CommunityHandles[i] = h
	}

	for i := 0; i < 2*MaxSeats; i++ {
		h, err := HandleFromBytes(data[offHoleHandles+i*HandleSize:])
		if err != nil {
			return nil, err
		}
		acct.HoleHandles[i] = h
	}

	return acct, nil
}

// PairIndexForSeat performs the inverse shuffle lookup: the deck pair index
// whose mapped seat equals seat. This direction is the seat-assignment
// invariant; the array is published pair-index-major.
func (a *GameAccount) PairIndexForSeat(seat int) (int, error) {
	for pairIdx, mapped := range a.ShuffleOffsets {
		if int(mapped) == seat {
			return pairIdx, nil
		}
	}
	return 0, fmt.Errorf("%w: no deck pair assigned to seat %d", ErrMalformedLedgerState, seat)
}

package poker

import (
	"time"
)

// Player represents one seat's state for the lifetime of a hand.
type Player struct {
	// Identity
	ID   string
	Name string

	// Seat position at the table, fixed for the hand
	SeatIndex int

	// Chips remaining behind (non-negative)
	Chips int64

	// Hole cards; empty until revealed to this seat's owner
	HoleCards []Card

	// Bet is the contribution in the current betting round, TotalBet the
	// contribution across the whole hand.
	Bet      int64
	TotalBet int64

	HasFolded bool
	IsAllIn   bool

	// HasActed tracks whether the player has acted since the last raise.
	HasActed bool

	LastAction time.Time

	// Populated during showdown
	HandValue *HandValue
}

// NewPlayer creates a player seated at seatIndex with the given chips.
func NewPlayer(id, name string, seatIndex int, chips int64) *Player {
	return &Player{
		ID:         id,
		Name:       name,
		SeatIndex:  seatIndex,
		Chips:      chips,
		HoleCards:  make([]Card, 0, 2),
		LastAction: time.Now(),
	}
}

// ResetForNewHand clears all hand-local state, preserving identity, seat and
// chip count.
func (p *Player) ResetForNewHand() {
	p.HoleCards = make([]Card, 0, 2)
	p.Bet = 0
	p.TotalBet = 0
	p.HasFolded = false
	p.IsAllIn = false
	p.HasActed = false
	p.HandValue = nil
	p.LastAction = time.Now()
}

// CanAct reports whether the player can still take betting actions.
func (p *Player) CanAct() bool {
	return !p.HasFolded && !p.IsAllIn
}

// GetHandString returns a printable form of the player's hole cards.
func (p *Player) GetHandString() string {
	if len(p.HoleCards) == 0 {
		return "No cards"
	}
	str := ""
	for i, card := range p.HoleCards {
		if i > 0 {
			str += " "
		}
		str += card.String()
	}
	return str
}

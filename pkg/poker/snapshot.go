package poker

import (
	"time"
)

// PlayerView is a player's publicly visible state. Hole cards are never
// included; showdown disclosures are delivered separately.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SeatIndex int    `json:"seatIndex"`
	Chips     int64  `json:"chips"`
	Bet       int64  `json:"bet"`
	TotalBet  int64  `json:"totalBet"`
	HasFolded bool   `json:"hasFolded"`
	IsAllIn   bool   `json:"isAllIn"`
}

// SidePotView is one pot slice with the seats eligible to win it.
type SidePotView struct {
	Amount        int64 `json:"amount"`
	EligibleSeats []int `json:"eligibleSeats"`
}

// RoundSnapshot is a point-in-time copy of round state, safe to hand to the
// broadcast layer while the round keeps mutating.
type RoundSnapshot struct {
	GameRef         string        `json:"gameRef"`
	Stage           string        `json:"stage"`
	Pot             int64         `json:"pot"`
	SidePots        []SidePotView `json:"sidePots"`
	CommunityCards  []Card        `json:"communityCards"`
	CurrentBet      int64         `json:"currentBet"`
	MinRaise        int64         `json:"minRaise"`
	LastRaiseAmount int64         `json:"lastRaiseAmount"`
	DealerIndex     int           `json:"dealerIndex"`
	SmallBlindIndex int           `json:"smallBlindIndex"`
	BigBlindIndex   int           `json:"bigBlindIndex"`
	ActingSeat      int           `json:"actingSeat"`
	TurnDeadline    time.Time     `json:"turnDeadline"`
	Revealing       bool          `json:"revealing"`
	Players         []PlayerView  `json:"players"`
	Winners         []Winner      `json:"winners,omitempty"`
	Disclosures     []Disclosure  `json:"disclosures,omitempty"`
}

// Snapshot returns a read-only copy of the current round state.
func (r *Round) Snapshot() RoundSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]PlayerView, len(r.players))
	for i, p := range r.players {
		players[i] = PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			SeatIndex: p.SeatIndex,
			Chips:     p.Chips,
			Bet:       p.Bet,
			TotalBet:  p.TotalBet,
			HasFolded: p.HasFolded,
			IsAllIn:   p.IsAllIn,
		}
	}

	pots := r.potManager.Pots
	var mainPot int64
	if len(pots) > 0 {
		mainPot = pots[0].Amount
	}
	sidePots := make([]SidePotView, 0, len(pots))
	for i, pot := range pots {
		if i == 0 {
			continue // main pot reported via Pot
		}
		view := SidePotView{Amount: pot.Amount}
		for seat, elig := range pot.Eligibility {
			if elig {
				view.EligibleSeats = append(view.EligibleSeats, seat)
			}
		}
		sidePots = append(sidePots, view)
	}

	community := make([]Card, len(r.communityCards))
	copy(community, r.communityCards)

	return RoundSnapshot{
		GameRef:         r.gameRef,
		Stage:           r.stage.String(),
		Pot:             mainPot,
		SidePots:        sidePots,
		CommunityCards:  community,
		CurrentBet:      r.currentBet,
		MinRaise:        r.minRaise,
		LastRaiseAmount: r.lastRaiseAmount,
		DealerIndex:     r.dealer,
		SmallBlindIndex: r.smallBlind,
		BigBlindIndex:   r.bigBlind,
		ActingSeat:      r.actingSeat,
		TurnDeadline:    r.turnDeadline,
		Revealing:       r.revealing,
		Players:         players,
		Winners:         append([]Winner{}, r.lastWinners...),
		Disclosures:     append([]Disclosure{}, r.lastDisclosures...),
	}
}

// Stage returns the current stage.
func (r *Round) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// ActingSeat returns the seat whose turn it is.
func (r *Round) ActingSeat() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actingSeat
}

// TurnDeadline returns the acting seat's deadline; zero while the clock is
// suspended.
func (r *Round) TurnDeadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnDeadline
}

// Pot returns the main pot, excluding side pots.
func (r *Round) Pot() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.potManager.Pots) == 0 {
		return 0
	}
	return r.potManager.Pots[0].Amount
}

// CurrentBet returns the bet level of the open betting round.
func (r *Round) CurrentBet() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentBet
}

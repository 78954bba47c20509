package poker

import (
	"sort"

	"github.com/decred/slog"
)

// Pot represents one pot slice. Eligibility is seat-aligned with the hand's
// player slice; a side pot's eligible set excludes seats that contributed
// less than its boundary amount.
type Pot struct {
	Amount      int64
	Eligibility []bool
}

// NewPot creates an empty pot for nPlayers seats.
func NewPot(nPlayers int) *Pot {
	return &Pot{
		Eligibility: make([]bool, nPlayers),
	}
}

// IsEligible checks if a seat is eligible to win this pot.
func (p *Pot) IsEligible(seat int) bool {
	return seat >= 0 && seat < len(p.Eligibility) && p.Eligibility[seat]
}

// PotManager builds and settles the main pot and side pots for one hand.
type PotManager struct {
	log  slog.Logger
	Pots []*Pot
}

// NewPotManager creates a pot manager for nPlayers seats.
func NewPotManager(nPlayers int, log slog.Logger) *PotManager {
	if log == nil {
		log = slog.Disabled
	}
	return &PotManager{
		log:  log,
		Pots: []*Pot{NewPot(nPlayers)},
	}
}

// TotalPot returns the total amount across all pots.
func (pm *PotManager) TotalPot() int64 {
	var total int64
	for _, pot := range pm.Pots {
		total += pot.Amount
	}
	return total
}

// ReturnUncalledBet returns the uncalled portion of the highest current-round
// bet to the player who made it. Call before building pots: an uncalled
// overbet must never seed a side pot only its own bettor can win.
func (pm *PotManager) ReturnUncalledBet(players []*Player) {
	var hi, second int64
	hiSeat := -1

	for seat, p := range players {
		if p == nil {
			continue
		}
		if p.Bet > hi {
			second = hi
			hi = p.Bet
			hiSeat = seat
		} else if p.Bet > second {
			second = p.Bet
		}
	}

	if hiSeat >= 0 && hi > second {
		uncalled := hi - second
		players[hiSeat].Chips += uncalled
		players[hiSeat].Bet -= uncalled
		players[hiSeat].TotalBet -= uncalled
		pm.log.Debugf("returned uncalled bet %d to seat %d", uncalled, hiSeat)
	}
}

// BuildPotsFromTotals rebuilds main and side pots from every player's
// TotalBet and fold status. Each distinct all-in contribution level becomes a
// pot boundary; eligibility at a level requires a non-folded contribution of
// at least that level.
func (pm *PotManager) BuildPotsFromTotals(players []*Player) {
	n := len(players)

	seen := map[int64]bool{}
	for _, p := range players {
		if p != nil && p.TotalBet > 0 {
			seen[p.TotalBet] = true
		}
	}
	if len(seen) == 0 {
		pm.Pots = []*Pot{NewPot(n)}
		return
	}

	levels := make([]int64, 0, len(seen))
	for b := range seen {
		levels = append(levels, b)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]*Pot, 0, len(levels))
	prev := int64(0)

	for _, lvl := range levels {
		pot := NewPot(n)
		for seat, p := range players {
			if p == nil {
				continue
			}
			if !p.HasFolded && p.TotalBet >= lvl {
				pot.Eligibility[seat] = true
			}
			// Each contributor pays min(TotalBet, lvl) - prev into this slice.
			if p.TotalBet > prev {
				c := p.TotalBet
				if c > lvl {
					c = lvl
				}
				pot.Amount += c - prev
			}
		}
		pots = append(pots, pot)
		prev = lvl
	}

	// Collapse slices with identical eligibility into one pot so callers see
	// one side pot per all-in boundary rather than per bet level.
	merged := make([]*Pot, 0, len(pots))
	for _, pot := range pots {
		if len(merged) > 0 && sameEligibility(merged[len(merged)-1], pot) {
			merged[len(merged)-1].Amount += pot.Amount
			continue
		}
		merged = append(merged, pot)
	}

	pm.Pots = merged
}

func sameEligibility(a, b *Pot) bool {
	if len(a.Eligibility) != len(b.Eligibility) {
		return false
	}
	for i := range a.Eligibility {
		if a.Eligibility[i] != b.Eligibility[i] {
			return false
		}
	}
	return true
}

// Distribute splits every pot among its eligible seats' best tied hands and
// credits winnings to player chip counts. Any odd remainder chips go to the
// winning seat closest to the dealer's left. Returns the per-seat payout
// totals keyed by seat index.
func (pm *PotManager) Distribute(players []*Player, dealer int) map[int]int64 {
	payouts := make(map[int]int64)
	n := len(players)

	for pi, pot := range pm.Pots {
		if pot.Amount == 0 {
			continue
		}

		var alive []int
		for seat, elig := range pot.Eligibility {
			if elig && players[seat] != nil && !players[seat].HasFolded {
				alive = append(alive, seat)
			}
		}

		if len(alive) == 0 {
			pm.log.Errorf("pot %d has no eligible alive seats; amount=%d", pi, pot.Amount)
			continue
		}

		// Uncontested slice: a single alive seat takes it without evaluation.
		if len(alive) == 1 {
			seat := alive[0]
			players[seat].Chips += pot.Amount
			payouts[seat] += pot.Amount
			continue
		}

		var winners []int
		var best *HandValue
		for _, seat := range alive {
			hv := players[seat].HandValue
			if hv == nil {
				pm.log.Errorf("pot %d: seat %d eligible at showdown without a hand value", pi, seat)
				continue
			}
			switch {
			case best == nil || CompareHands(*hv, *best) > 0:
				best = hv
				winners = []int{seat}
			case CompareHands(*hv, *best) == 0:
				winners = append(winners, seat)
			}
		}

		if len(winners) == 0 {
			pm.log.Errorf("pot %d produced no winners", pi)
			continue
		}

		// Order winners by distance from the dealer's left so the remainder
		// lands deterministically.
		sort.Slice(winners, func(i, j int) bool {
			return seatDistance(dealer, winners[i], n) < seatDistance(dealer, winners[j], n)
		})

		share := pot.Amount / int64(len(winners))
		rem := pot.Amount % int64(len(winners))
		for i, seat := range winners {
			add := share
			if i == 0 {
				add += rem
			}
			players[seat].Chips += add
			payouts[seat] += add
		}
	}

	return payouts
}

// seatDistance returns how many seats left of the dealer button seat sits.
func seatDistance(dealer, seat, n int) int {
	return ((seat - dealer - 1) % n + n) % n
}

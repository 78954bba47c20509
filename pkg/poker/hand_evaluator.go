package poker

import (
	"fmt"
	"sort"
)

// HandRank represents the rank category of a poker hand, 1 (high card)
// through 10 (royal flush).
type HandRank int

const (
	HighCard HandRank = iota + 1
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the human-readable name of the hand rank.
func (r HandRank) String() string {
	switch r {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandValue represents a complete evaluation of a hand: rank category,
// tie-break kickers in comparison order, and the five cards used.
type HandValue struct {
	Rank            HandRank
	Kickers         []int // category-defining ranks first, then side cards descending
	BestHand        []Card
	HandDescription string
}

// EvaluateHand returns the best five-card hand value from 5 to 7 candidate
// cards, enumerating every five-card combination and keeping the maximum.
// Fewer than five cards is a caller contract violation.
func EvaluateHand(holeCards []Card, communityCards []Card) (HandValue, error) {
	allCards := append([]Card{}, holeCards...)
	allCards = append(allCards, communityCards...)

	if len(allCards) < 5 {
		return HandValue{}, fmt.Errorf("evaluator requires at least 5 cards, got %d", len(allCards))
	}
	if len(allCards) > 7 {
		return HandValue{}, fmt.Errorf("evaluator accepts at most 7 cards, got %d", len(allCards))
	}

	var best HandValue
	for _, combo := range generateCombinations(allCards, 5) {
		hv := evaluateFive(combo)
		if best.Rank == 0 || CompareHands(hv, best) > 0 {
			best = hv
		}
	}
	return best, nil
}

// evaluateFive ranks exactly five cards.
func evaluateFive(cards []Card) HandValue {
	five := make([]Card, 5)
	copy(five, cards)
	sortCardsByValue(five)

	ranks := make([]int, 5)
	for i, c := range five {
		ranks[i] = valueToInt(c.value)
	}

	flush := true
	for i := 1; i < 5; i++ {
		if five[i].suit != five[0].suit {
			flush = false
			break
		}
	}

	straight := true
	for i := 1; i < 5; i++ {
		if ranks[i-1]-ranks[i] != 1 {
			straight = false
			break
		}
	}
	// The wheel (A,5,4,3,2) breaks strict consecutiveness and is ranked
	// five-high.
	wheel := !straight &&
		ranks[0] == 14 && ranks[1] == 5 && ranks[2] == 4 && ranks[3] == 3 && ranks[4] == 2

	// Histogram of rank -> count, classified by count shape.
	counts := make(map[int]int, 5)
	for _, r := range ranks {
		counts[r]++
	}
	type group struct {
		rank  int
		count int
	}
	groups := make([]group, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, group{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	hv := HandValue{BestHand: five}

	switch {
	case flush && straight && ranks[0] == 14:
		hv.Rank = RoyalFlush
		hv.Kickers = ranks
	case flush && (straight || wheel):
		hv.Rank = StraightFlush
		hv.Kickers = straightKickers(ranks, wheel)
	case groups[0].count == 4:
		hv.Rank = FourOfAKind
		hv.Kickers = []int{groups[0].rank, groups[1].rank}
	case groups[0].count == 3 && groups[1].count == 2:
		hv.Rank = FullHouse
		hv.Kickers = []int{groups[0].rank, groups[1].rank}
	case flush:
		hv.Rank = Flush
		hv.Kickers = ranks
	case straight || wheel:
		hv.Rank = Straight
		hv.Kickers = straightKickers(ranks, wheel)
	case groups[0].count == 3:
		hv.Rank = ThreeOfAKind
		hv.Kickers = []int{groups[0].rank, groups[1].rank, groups[2].rank}
	case groups[0].count == 2 && groups[1].count == 2:
		hv.Rank = TwoPair
		hv.Kickers = []int{groups[0].rank, groups[1].rank, groups[2].rank}
	case groups[0].count == 2:
		hv.Rank = Pair
		hv.Kickers = []int{groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank}
	default:
		hv.Rank = HighCard
		hv.Kickers = ranks
	}

	hv.HandDescription = hv.Rank.String()
	return hv
}

// straightKickers returns the tie-break sequence for a straight. A wheel
// reports [5,4,3,2,1] regardless of the Ace's face value so it never
// outranks a six-high straight.
func straightKickers(ranks []int, wheel bool) []int {
	if wheel {
		return []int{5, 4, 3, 2, 1}
	}
	out := make([]int, len(ranks))
	copy(out, ranks)
	return out
}

// CompareHands compares two hand values and returns:
// -1 if handA < handB
// 0 if handA == handB (tie, split pot)
// 1 if handA > handB
func CompareHands(handA, handB HandValue) int {
	if handA.Rank != handB.Rank {
		if handA.Rank > handB.Rank {
			return 1
		}
		return -1
	}
	n := len(handA.Kickers)
	if len(handB.Kickers) < n {
		n = len(handB.Kickers)
	}
	for i := 0; i < n; i++ {
		if handA.Kickers[i] != handB.Kickers[i] {
			if handA.Kickers[i] > handB.Kickers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// ShowdownEntry is one contender's id and hole cards for FindWinners.
type ShowdownEntry struct {
	ID    string
	Cards []Card
}

// ShowdownWinner is one winning entry with its hand label.
type ShowdownWinner struct {
	ID    string
	Label string
}

// FindWinners evaluates every entry against the community cards and returns
// all entries tying the best result.
func FindWinners(entries []ShowdownEntry, community []Card) ([]ShowdownWinner, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	values := make([]HandValue, len(entries))
	for i, e := range entries {
		hv, err := EvaluateHand(e.Cards, community)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", e.ID, err)
		}
		values[i] = hv
	}

	best := values[0]
	for _, hv := range values[1:] {
		if CompareHands(hv, best) > 0 {
			best = hv
		}
	}

	winners := make([]ShowdownWinner, 0, 1)
	for i, hv := range values {
		if CompareHands(hv, best) == 0 {
			winners = append(winners, ShowdownWinner{ID: entries[i].ID, Label: hv.HandDescription})
		}
	}
	return winners, nil
}

// generateCombinations generates all k-combinations from a slice of cards.
func generateCombinations(cards []Card, k int) [][]Card {
	var combinations [][]Card

	if k > len(cards) || k <= 0 {
		return combinations
	}

	if k == len(cards) {
		return [][]Card{cards}
	}

	var generate func(start int, current []Card)
	generate = func(start int, current []Card) {
		if len(current) == k {
			combination := make([]Card, k)
			copy(combination, current)
			combinations = append(combinations, combination)
			return
		}

		for i := start; i <= len(cards)-(k-len(current)); i++ {
			generate(i+1, append(current, cards[i]))
		}
	}

	generate(0, []Card{})
	return combinations
}

// sortCardsByValue sorts cards by value, highest first.
func sortCardsByValue(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return valueToInt(cards[i].value) > valueToInt(cards[j].value)
	})
}

package poker

import (
	"encoding/json"
	"fmt"
)

// Suit represents a card suit
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Value represents a card value
type Value string

const (
	Ace   Value = "A"
	Two   Value = "2"
	Three Value = "3"
	Four  Value = "4"
	Five  Value = "5"
	Six   Value = "6"
	Seven Value = "7"
	Eight Value = "8"
	Nine  Value = "9"
	Ten   Value = "10"
	Jack  Value = "J"
	Queen Value = "Q"
	King  Value = "K"
)

// Card represents a playing card. Immutable value type; two cards are equal
// iff suit and value match.
type Card struct {
	suit  Suit
	value Value
}

// NewCard creates a card from a suit and value.
func NewCard(suit Suit, value Value) Card {
	return Card{suit: suit, value: value}
}

// GetSuit returns the card's suit as a string.
func (c Card) GetSuit() string {
	return string(c.suit)
}

// GetValue returns the card's value as a string.
func (c Card) GetValue() string {
	return string(c.value)
}

// String returns a human-readable representation like "A♠".
func (c Card) String() string {
	return string(c.value) + string(c.suit)
}

// CardJSON represents a card for JSON serialization
type CardJSON struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON implements json.Marshaler for Card.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(CardJSON{
		Suit:  string(c.suit),
		Value: string(c.value),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Card.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cardJSON CardJSON
	if err := json.Unmarshal(data, &cardJSON); err != nil {
		return err
	}

	switch cardJSON.Suit {
	case "♠", "s", "S", "spades", "Spades":
		c.suit = Spades
	case "♥", "h", "H", "hearts", "Hearts":
		c.suit = Hearts
	case "♦", "d", "D", "diamonds", "Diamonds":
		c.suit = Diamonds
	case "♣", "c", "C", "clubs", "Clubs":
		c.suit = Clubs
	default:
		return fmt.Errorf("invalid suit: %q", cardJSON.Suit)
	}

	switch cardJSON.Value {
	case "A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K":
		c.value = Value(cardJSON.Value)
	case "T", "t":
		c.value = Ten
	default:
		return fmt.Errorf("invalid value: %q", cardJSON.Value)
	}

	return nil
}

// deckSuits fixes the suit ordering used by the 52-card index encoding.
var deckSuits = [4]Suit{Spades, Hearts, Diamonds, Clubs}

// deckValues fixes the value ordering used by the 52-card index encoding,
// lowest first (Two == 0, Ace == 12).
var deckValues = [13]Value{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// CardFromIndex maps a 52-card index to its Card. The index layout is
// value-major within suit: value = index mod 13, suit = (index / 13) mod 4.
func CardFromIndex(index int) Card {
	if index < 0 {
		index = -index
	}
	index %= 52
	return Card{
		suit:  deckSuits[(index/13)%4],
		value: deckValues[index%13],
	}
}

// Index returns the card's position in the 52-card index encoding, the
// inverse of CardFromIndex.
func (c Card) Index() int {
	suitIdx := 0
	for i, s := range deckSuits {
		if s == c.suit {
			suitIdx = i
			break
		}
	}
	valueIdx := 0
	for i, v := range deckValues {
		if v == c.value {
			valueIdx = i
			break
		}
	}
	return suitIdx*13 + valueIdx
}

// valueToInt converts a card Value to its rank number, Ace high (2..14).
func valueToInt(value Value) int {
	switch value {
	case Ace:
		return 14
	case King:
		return 13
	case Queen:
		return 12
	case Jack:
		return 11
	case Ten:
		return 10
	case Nine:
		return 9
	case Eight:
		return 8
	case Seven:
		return 7
	case Six:
		return 6
	case Five:
		return 5
	case Four:
		return 4
	case Three:
		return 3
	case Two:
		return 2
	default:
		return 0
	}
}

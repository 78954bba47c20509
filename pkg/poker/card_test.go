package poker

import (
	"encoding/json"
	"testing"
)

func TestCardFromIndexRoundTrip(t *testing.T) {
	seen := make(map[string]bool, 52)
	for i := 0; i < 52; i++ {
		c := CardFromIndex(i)
		if got := c.Index(); got != i {
			t.Errorf("index %d round-trips to %d", i, got)
		}
		s := c.String()
		if seen[s] {
			t.Errorf("duplicate card %s at index %d", s, i)
		}
		seen[s] = true
	}
	if len(seen) != 52 {
		t.Errorf("got %d distinct cards, want 52", len(seen))
	}
}

func TestCardFromIndexLayout(t *testing.T) {
	// Value cycles every 13 indices, suit every 13 within 52.
	tests := []struct {
		index int
		value Value
		suit  Suit
	}{
		{0, Two, Spades},
		{12, Ace, Spades},
		{13, Two, Hearts},
		{25, Ace, Hearts},
		{26, Two, Diamonds},
		{39, Two, Clubs},
		{51, Ace, Clubs},
	}
	for _, tt := range tests {
		c := CardFromIndex(tt.index)
		if c.GetValue() != string(tt.value) || c.GetSuit() != string(tt.suit) {
			t.Errorf("index %d = %s%s, want %s%s", tt.index, c.GetValue(), c.GetSuit(), tt.value, tt.suit)
		}
	}
}

func TestCardJSON(t *testing.T) {
	c := NewCard(Hearts, Ace)
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}

	var back Card
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.GetSuit() != string(Hearts) || back.GetValue() != string(Ace) {
		t.Errorf("round-trip = %s, want %s", back, c)
	}
}

func TestValueToInt(t *testing.T) {
	if valueToInt(Ace) != 14 {
		t.Errorf("Ace = %d, want 14", valueToInt(Ace))
	}
	if valueToInt(Two) != 2 {
		t.Errorf("Two = %d, want 2", valueToInt(Two))
	}
	if valueToInt(King) >= valueToInt(Ace) {
		t.Error("King should rank below Ace")
	}
}

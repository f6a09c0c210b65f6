package poker_test

import (
	"testing"

	"planning-poker/internal/poker"
)

func TestCardLabel(t *testing.T) {
	if label, ok := poker.CardLabel(1, 9); !ok || label != "Coffee" {
		t.Fatalf("expected Coffee, got %q %v", label, ok)
	}
	if label, ok := poker.CardLabel(2, 1); !ok || label != "1/2" {
		t.Fatalf("expected 1/2, got %q %v", label, ok)
	}
	if _, ok := poker.CardLabel(1, 10); ok {
		t.Fatal("expected index past the deck to be rejected")
	}
	if _, ok := poker.CardLabel(1, poker.Skipped); ok {
		t.Fatal("expected skipped sentinel to be rejected as a card")
	}
	if _, ok := poker.CardLabel(4, 0); ok {
		t.Fatal("expected unknown deck to be rejected")
	}
}

func TestDecksReturnsCopy(t *testing.T) {
	decks := poker.Decks()
	if len(decks) != 3 {
		t.Fatalf("expected 3 decks, got %d", len(decks))
	}
	decks[0].Cards[0] = "changed"
	if poker.ResolveDeck(1)[0] != "1" {
		t.Fatal("expected catalog to be unaffected by caller mutation")
	}
	if poker.ValidDeck(0) || !poker.ValidDeck(3) {
		t.Fatal("unexpected deck validity")
	}
}

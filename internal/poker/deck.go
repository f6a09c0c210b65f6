package poker

// Deck is one entry of the card catalog.
type Deck struct {
	ID    int      `json:"id"`
	Cards []string `json:"cards"`
}

var decks = []Deck{
	{ID: 1, Cards: []string{"1", "2", "3", "5", "8", "13", "21", "100", "?", "Coffee"}},
	{ID: 2, Cards: []string{"0", "1/2", "1", "2", "3", "5", "8", "13", "20", "40", "60", "100", "?", "oo"}},
	{ID: 3, Cards: []string{"0", "1", "2", "3", "5", "8", "13", "21", "44", "?", "oo"}},
}

// Decks returns a copy of the catalog.
func Decks() []Deck {
	out := make([]Deck, len(decks))
	for i, deck := range decks {
		out[i] = Deck{ID: deck.ID, Cards: append([]string(nil), deck.Cards...)}
	}
	return out
}

// ResolveDeck returns the card labels of a deck, or nil for an unknown id.
func ResolveDeck(id int) []string {
	for _, deck := range decks {
		if deck.ID == id {
			return deck.Cards
		}
	}
	return nil
}

// ValidDeck reports whether id names a catalog deck.
func ValidDeck(id int) bool {
	return len(ResolveDeck(id)) > 0
}

// CardLabel resolves a card index against a deck.
func CardLabel(deckID, card int) (string, bool) {
	cards := ResolveDeck(deckID)
	if card < 0 || card >= len(cards) {
		return "", false
	}
	return cards[card], true
}

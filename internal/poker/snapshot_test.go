package poker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStoryDisplayNameTrimsLongLinks(t *testing.T) {
	link := "https://example.com/" + strings.Repeat("a", 100)
	got := storyDisplayName("see " + link)
	text := link[:storyLinkLimit] + "..."
	want := `see <a href="` + link + `" rel="noopener">` + text + `</a>`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStoryDisplayNameTrimsMultibyteLinks(t *testing.T) {
	link := "https://example.com/caf" + strings.Repeat("é", 90)
	got := storyDisplayName(link)
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	text := string([]rune(link)[:storyLinkLimit]) + "..."
	if !strings.HasSuffix(got, `">`+text+`</a>`) {
		t.Fatalf("expected link text %q, got %q", text, got)
	}
}

func TestStoryDisplayNameWithoutLinks(t *testing.T) {
	if got := storyDisplayName(`Tom & "Jerry"`); got != "Tom &amp; &#34;Jerry&#34;" {
		t.Fatalf("unexpected display name %q", got)
	}
}

func TestRevealedCardHiddenWhileOpen(t *testing.T) {
	estimate := Estimate{Card: 2}
	if card := revealedCard(1, Round{}, estimate); card != nil {
		t.Fatalf("expected hidden card, got %q", *card)
	}
	if card := revealedCard(1, Round{Completed: true}, estimate); card == nil || *card != "3" {
		t.Fatalf("expected revealed 3, got %v", card)
	}
}

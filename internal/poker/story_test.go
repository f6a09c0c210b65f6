package poker_test

import (
	"testing"

	"planning-poker/internal/poker"
)

func TestNewRoundReopensVoting(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 1, ada, bob)
	story, first := f.story(t, game.ID, "Checkout")
	f.vote(t, ada, game.ID, story, first, 1)

	second, err := f.svc.NewRound(f.ctx, owner, game.ID, story.ID)
	if err != nil {
		t.Fatalf("new round: %v", err)
	}
	third, err := f.svc.NewRound(f.ctx, owner, game.ID, story.ID)
	if err != nil {
		t.Fatalf("new round: %v", err)
	}

	rounds, err := f.store.ListRounds(f.ctx, story.ID)
	if err != nil {
		t.Fatalf("list rounds: %v", err)
	}
	if len(rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(rounds))
	}
	open := 0
	for _, round := range rounds {
		if !round.Completed {
			open++
			if round.ID != third.ID {
				t.Fatalf("expected only the newest round open, got round %d", round.ID)
			}
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open round, got %d", open)
	}
	if second.ID == third.ID {
		t.Fatal("expected distinct rounds")
	}
	got, _ := f.store.GetStory(f.ctx, game.ID, story.ID)
	if got.Estimate != nil {
		t.Fatalf("expected estimate reset, got %d", *got.Estimate)
	}

	msg := f.snapshot(t, game.ID)
	if len(msg.CurrentStory.Rounds) != 3 {
		t.Fatalf("expected snapshot to list 3 rounds, got %d", len(msg.CurrentStory.Rounds))
	}
	if card := msg.CurrentStory.Rounds[0].Estimates[0].Card; card == nil || *card != "2" {
		t.Fatalf("expected first round vote revealed as 2, got %v", card)
	}
	f.vote(t, ada, game.ID, story, third, 3)
}

func TestCompleteStory(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 2, ada)
	story, round := f.story(t, game.ID, "Checkout")

	expectErr(t, f.svc.CompleteStory(f.ctx, owner, game.ID, story.ID, 14), poker.ErrInvalid)
	expectErr(t, f.svc.CompleteStory(f.ctx, ada, game.ID, story.ID, 1), poker.ErrForbidden)

	if err := f.svc.CompleteStory(f.ctx, owner, game.ID, story.ID, 1); err != nil {
		t.Fatalf("complete story: %v", err)
	}
	if !f.round(t, story.ID, round.ID).Completed {
		t.Fatal("expected open round completed with the story")
	}
	msg := f.snapshot(t, game.ID)
	if msg.CurrentStory != nil {
		t.Fatal("expected no current story")
	}
	if msg.Stories[0].Estimate == nil || *msg.Stories[0].Estimate != "1/2" {
		t.Fatalf("expected estimate 1/2, got %v", msg.Stories[0].Estimate)
	}
	if len(msg.Stories[0].Rounds) != 0 {
		t.Fatalf("expected rounds omitted for finished story, got %d", len(msg.Stories[0].Rounds))
	}
	expectErr(t, f.svc.CompleteStory(f.ctx, owner, game.ID, story.ID, 2), poker.ErrConflict)
	_, err := f.svc.NewRound(f.ctx, owner, game.ID, story.ID)
	expectErr(t, err, poker.ErrConflict)
}

func TestSkipStory(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 3, ada)
	story, _ := f.story(t, game.ID, "Checkout")

	if _, err := f.svc.StartStory(f.ctx, owner, game.ID, "Another"); err == nil {
		t.Fatal("expected second current story to be rejected")
	}
	if err := f.svc.SkipStory(f.ctx, owner, game.ID, story.ID); err != nil {
		t.Fatalf("skip story: %v", err)
	}
	got, _ := f.store.GetStory(f.ctx, game.ID, story.ID)
	if got.Estimate == nil || *got.Estimate != poker.Skipped {
		t.Fatalf("expected skipped sentinel, got %v", got.Estimate)
	}
	expectErr(t, f.svc.SkipStory(f.ctx, owner, game.ID, story.ID), poker.ErrConflict)
	expectErr(t, f.svc.SkipStory(f.ctx, owner, game.ID, story.ID+100), poker.ErrNotFound)

	msg := f.snapshot(t, game.ID)
	if msg.Stories[0].Estimate == nil || *msg.Stories[0].Estimate != poker.SkippedLabel {
		t.Fatalf("expected skipped label, got %v", msg.Stories[0].Estimate)
	}
}

func TestStartStoryValidation(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 1, ada)

	_, err := f.svc.StartStory(f.ctx, owner, game.ID, "   ")
	expectErr(t, err, poker.ErrInvalid)
	_, err = f.svc.StartStory(f.ctx, ada, game.ID, "Checkout")
	expectErr(t, err, poker.ErrForbidden)
	_, err = f.svc.StartStory(f.ctx, owner, game.ID+100, "Checkout")
	expectErr(t, err, poker.ErrNotFound)
}

func TestStoryNameDisplay(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 1)
	f.story(t, game.ID, "Fix <b> see https://example.com/a?b=1&c=2 now")

	msg := f.snapshot(t, game.ID)
	want := `Fix &lt;b&gt; see <a href="https://example.com/a?b=1&amp;c=2" rel="noopener">https://example.com/a?b=1&amp;c=2</a> now`
	if msg.CurrentStory.Name != want {
		t.Fatalf("expected %q, got %q", want, msg.CurrentStory.Name)
	}
}

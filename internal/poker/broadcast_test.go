package poker_test

import (
	"errors"
	"testing"
	"time"

	"planning-poker/internal/poker"
)

func TestUnforcedUpdatesAreThrottled(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 1, ada, bob, carol)
	story, round := f.story(t, game.ID, "Checkout")
	start := map[string]int{}
	for _, user := range []string{"ada", "bob", "carol"} {
		start[user] = f.pushes.count(game.ID, user)
	}
	delta := func(user string) int {
		return f.pushes.count(game.ID, user) - start[user]
	}

	f.clock.Advance(2 * time.Second)
	f.vote(t, ada, game.ID, story, round, 0)
	if delta("ada") != 1 || delta("bob") != 1 || delta("carol") != 1 {
		t.Fatalf("expected everyone due after the quiet interval, got %d %d %d", delta("ada"), delta("bob"), delta("carol"))
	}

	f.clock.Advance(500 * time.Millisecond)
	f.vote(t, bob, game.ID, story, round, 1)
	if delta("ada") != 1 || delta("carol") != 1 {
		t.Fatalf("expected second update suppressed, got %d %d", delta("ada"), delta("carol"))
	}
	if delta("bob") != 2 {
		t.Fatalf("expected acting participant always updated, got %d", delta("bob"))
	}

	// exactly one quiet interval since bob's last push: still suppressed
	f.clock.Advance(time.Second)
	if _, err := f.svc.Join(f.ctx, dan, game.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if delta("ada") != 2 || delta("carol") != 2 {
		t.Fatalf("expected update after the interval, got %d %d", delta("ada"), delta("carol"))
	}
	if delta("bob") != 2 {
		t.Fatalf("expected bob still inside the interval, got %d", delta("bob"))
	}
	if f.pushes.count(game.ID, dan.ID) != 1 {
		t.Fatalf("expected new participant updated, got %d", f.pushes.count(game.ID, dan.ID))
	}
}

func TestRoundCompletionForcesEveryone(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 1, ada, bob)
	story, round := f.story(t, game.ID, "Checkout")

	f.vote(t, ada, game.ID, story, round, 0)
	before := f.pushes.count(game.ID, ada.ID)
	f.vote(t, bob, game.ID, story, round, 1)
	if f.pushes.count(game.ID, ada.ID) != before+1 {
		t.Fatal("expected completion to bypass the quiet interval")
	}
	msg := f.pushes.lastSnapshot(t, game.ID, ada.ID)
	if !msg.CurrentStory.Rounds[0].Completed {
		t.Fatal("expected pushed snapshot to show the completed round")
	}
	if card := msg.CurrentStory.Rounds[0].Estimates[1].Card; card == nil || *card != "2" {
		t.Fatalf("expected bob's card revealed, got %v", card)
	}
}

func TestDeliverRecordsOutcomes(t *testing.T) {
	f := newFixture(t)
	game := f.game(t, 1, ada, bob)
	participants, err := f.store.ListParticipants(f.ctx, game.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	recorder := &countingRecorder{}
	pushes := newPushRecorder()
	coordinator := poker.NewCoordinator(f.store, pushes, recorder, time.Second, f.clock.Now)

	if n := coordinator.Deliver(f.ctx, game.ID, participants, []byte(`{}`), false, ""); n != 0 {
		t.Fatalf("expected no delivery inside the interval, got %d", n)
	}
	if recorder.suppressed != 2 {
		t.Fatalf("expected 2 suppressed, got %d", recorder.suppressed)
	}

	pushes.err = errors.New("connection reset")
	if n := coordinator.Deliver(f.ctx, game.ID, participants, []byte(`{}`), true, ""); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if recorder.failed != 2 || recorder.delivered != 0 {
		t.Fatalf("expected 2 failures, got %d failed %d delivered", recorder.failed, recorder.delivered)
	}
}

func TestDueWithoutPriorUpdate(t *testing.T) {
	coordinator := poker.NewCoordinator(nil, nil, nil, time.Second, nil)
	if !coordinator.Due(poker.Participant{}, time.Now()) {
		t.Fatal("expected participant without updates to be due")
	}
	last := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if coordinator.Due(poker.Participant{LastUpdate: last}, last.Add(time.Second)) {
		t.Fatal("expected update at exactly the interval to be suppressed")
	}
	if !coordinator.Due(poker.Participant{LastUpdate: last}, last.Add(time.Second+time.Millisecond)) {
		t.Fatal("expected update past the interval to be due")
	}
}

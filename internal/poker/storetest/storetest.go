// Package storetest holds the behaviour every poker.Store must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"planning-poker/internal/poker"
)

// Run exercises a store returned fresh by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) poker.Store) {
	t.Run("GameRoundTrip", func(t *testing.T) { testGameRoundTrip(t, newStore(t)) })
	t.Run("MissingRecords", func(t *testing.T) { testMissingRecords(t, newStore(t)) })
	t.Run("OrderedChildren", func(t *testing.T) { testOrderedChildren(t, newStore(t)) })
	t.Run("CompleteRoundOnce", func(t *testing.T) { testCompleteRoundOnce(t, newStore(t)) })
	t.Run("EstimateWriteOnce", func(t *testing.T) { testEstimateWriteOnce(t, newStore(t)) })
	t.Run("EstimateRejectsCompletedRound", func(t *testing.T) { testEstimateRejectsCompletedRound(t, newStore(t)) })
	t.Run("UpdateKeepsLastUpdate", func(t *testing.T) { testUpdateKeepsLastUpdate(t, newStore(t)) })
	t.Run("ParticipantGetOrCreate", func(t *testing.T) { testParticipantGetOrCreate(t, newStore(t)) })
	t.Run("ConcurrentEstimates", func(t *testing.T) { testConcurrentEstimates(t, newStore(t)) })
	t.Run("DeleteGameCascades", func(t *testing.T) { testDeleteGameCascades(t, newStore(t)) })
	t.Run("ListGamesByOwner", func(t *testing.T) { testListGamesByOwner(t, newStore(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(offset int) time.Time {
	return base.Add(time.Duration(offset) * time.Millisecond)
}

func mustGame(t *testing.T, store poker.Store, owner string, created time.Time) *poker.Game {
	t.Helper()
	game := &poker.Game{Name: "Sprint 12", DeckID: 1, Owner: owner, CreatedAt: created}
	if err := store.CreateGame(context.Background(), game); err != nil {
		t.Fatalf("create game: %v", err)
	}
	if game.ID == 0 {
		t.Fatal("expected game id to be assigned")
	}
	return game
}

func mustStory(t *testing.T, store poker.Store, gameID int64, name string, created time.Time) *poker.Story {
	t.Helper()
	story := &poker.Story{GameID: gameID, Name: name, CreatedAt: created}
	if err := store.CreateStory(context.Background(), story); err != nil {
		t.Fatalf("create story: %v", err)
	}
	return story
}

func mustRound(t *testing.T, store poker.Store, storyID int64, created time.Time) *poker.Round {
	t.Helper()
	round := &poker.Round{StoryID: storyID, CreatedAt: created}
	if err := store.CreateRound(context.Background(), round); err != nil {
		t.Fatalf("create round: %v", err)
	}
	return round
}

func mustJoin(t *testing.T, store poker.Store, gameID int64, user string, created time.Time) *poker.Participant {
	t.Helper()
	participant, _, err := store.GetOrCreateParticipant(context.Background(), &poker.Participant{
		GameID:    gameID,
		User:      user,
		Name:      user,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	return participant
}

func testGameRoundTrip(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	story := mustStory(t, store, game.ID, "Login page", at(1))

	game.Completed = true
	game.CurrentStoryID = &story.ID
	if err := store.UpdateGame(ctx, game); err != nil {
		t.Fatalf("update game: %v", err)
	}
	got, err := store.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Name != "Sprint 12" || got.DeckID != 1 || got.Owner != "owner" || !got.Completed {
		t.Fatalf("unexpected game %#v", got)
	}
	if got.CurrentStoryID == nil || *got.CurrentStoryID != story.ID {
		t.Fatalf("expected current story %d, got %v", story.ID, got.CurrentStoryID)
	}

	got.CurrentStoryID = nil
	if err := store.UpdateGame(ctx, got); err != nil {
		t.Fatalf("clear current story: %v", err)
	}
	got, _ = store.GetGame(ctx, game.ID)
	if got.CurrentStoryID != nil {
		t.Fatalf("expected cleared current story, got %d", *got.CurrentStoryID)
	}

	skipped := poker.Skipped
	story.Estimate = &skipped
	if err := store.UpdateStory(ctx, story); err != nil {
		t.Fatalf("update story: %v", err)
	}
	gotStory, err := store.GetStory(ctx, game.ID, story.ID)
	if err != nil {
		t.Fatalf("get story: %v", err)
	}
	if gotStory.Estimate == nil || *gotStory.Estimate != poker.Skipped {
		t.Fatalf("expected skipped estimate, got %v", gotStory.Estimate)
	}
	gotStory.Estimate = nil
	if err := store.UpdateStory(ctx, gotStory); err != nil {
		t.Fatalf("reset story: %v", err)
	}
	gotStory, _ = store.GetStory(ctx, game.ID, story.ID)
	if gotStory.Estimate != nil {
		t.Fatalf("expected nil estimate, got %d", *gotStory.Estimate)
	}

	if err := store.RecordEvent(ctx, poker.Event{
		GameID:    game.ID,
		User:      "owner",
		Type:      "game_created",
		Payload:   map[string]any{"name": game.Name},
		CreatedAt: at(2),
	}); err != nil {
		t.Fatalf("record event: %v", err)
	}
	events, err := store.ListEvents(ctx, game.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != "game_created" || events[0].Payload["name"] != "Sprint 12" {
		t.Fatalf("unexpected events %#v", events)
	}
}

func testMissingRecords(t *testing.T, store poker.Store) {
	ctx := context.Background()
	if _, err := store.GetGame(ctx, 9999); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected not found game, got %v", err)
	}
	game := mustGame(t, store, "owner", at(0))
	other := mustGame(t, store, "owner", at(1))
	story := mustStory(t, store, game.ID, "A", at(2))
	round := mustRound(t, store, story.ID, at(3))

	if _, err := store.GetStory(ctx, other.ID, story.ID); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected story scoped to its game, got %v", err)
	}
	if _, err := store.GetRound(ctx, story.ID+1000, round.ID); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected round scoped to its story, got %v", err)
	}
	if _, err := store.GetParticipant(ctx, game.ID, "ghost"); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected not found participant, got %v", err)
	}
	if _, err := store.GetEstimate(ctx, round.ID, "ghost"); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected not found estimate, got %v", err)
	}
	if err := store.DeleteParticipant(ctx, game.ID, "ghost"); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected not found delete, got %v", err)
	}
	if _, err := store.CompleteRound(ctx, round.ID+1000); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected not found round completion, got %v", err)
	}
}

func testOrderedChildren(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	first := mustStory(t, store, game.ID, "first", at(1))
	second := mustStory(t, store, game.ID, "second", at(2))
	mustJoin(t, store, game.ID, "zed", at(3))
	mustJoin(t, store, game.ID, "amy", at(4))
	r1 := mustRound(t, store, first.ID, at(5))
	r2 := mustRound(t, store, first.ID, at(6))

	stories, err := store.ListStories(ctx, game.ID)
	if err != nil {
		t.Fatalf("list stories: %v", err)
	}
	if len(stories) != 2 || stories[0].ID != first.ID || stories[1].ID != second.ID {
		t.Fatalf("expected stories in creation order, got %#v", stories)
	}
	participants, err := store.ListParticipants(ctx, game.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 2 || participants[0].User != "zed" || participants[1].User != "amy" {
		t.Fatalf("expected participants in join order, got %#v", participants)
	}
	rounds, err := store.ListRounds(ctx, first.ID)
	if err != nil {
		t.Fatalf("list rounds: %v", err)
	}
	if len(rounds) != 2 || rounds[0].ID != r1.ID || rounds[1].ID != r2.ID {
		t.Fatalf("expected rounds in creation order, got %#v", rounds)
	}
	if rounds, _ := store.ListRounds(ctx, second.ID); len(rounds) != 0 {
		t.Fatalf("expected no rounds for second story, got %d", len(rounds))
	}

	for i, user := range []string{"zed", "amy"} {
		if _, _, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
			RoundID: r1.ID, User: user, Name: user, Card: i, CreatedAt: at(10 + i),
		}); err != nil {
			t.Fatalf("create estimate: %v", err)
		}
	}
	estimates, err := store.ListEstimates(ctx, r1.ID)
	if err != nil {
		t.Fatalf("list estimates: %v", err)
	}
	if len(estimates) != 2 || estimates[0].User != "zed" || estimates[1].User != "amy" {
		t.Fatalf("expected estimates in vote order, got %#v", estimates)
	}
}

func testCompleteRoundOnce(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	story := mustStory(t, store, game.ID, "A", at(1))
	round := mustRound(t, store, story.ID, at(2))

	changed, err := store.CompleteRound(ctx, round.ID)
	if err != nil || !changed {
		t.Fatalf("expected first completion to change the round, got %v %v", changed, err)
	}
	changed, err = store.CompleteRound(ctx, round.ID)
	if err != nil || changed {
		t.Fatalf("expected second completion to be a no-op, got %v %v", changed, err)
	}
	got, err := store.GetRound(ctx, story.ID, round.ID)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if !got.Completed {
		t.Fatal("expected round completed")
	}
}

func testEstimateWriteOnce(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	story := mustStory(t, store, game.ID, "A", at(1))
	round := mustRound(t, store, story.ID, at(2))

	first, created, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
		RoundID: round.ID, User: "ada", Name: "Ada", Card: 3, CreatedAt: at(3),
	})
	if err != nil || !created {
		t.Fatalf("expected estimate created, got %v %v", created, err)
	}
	second, created, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
		RoundID: round.ID, User: "ada", Name: "Ada", Card: 5, CreatedAt: at(4),
	})
	if err != nil {
		t.Fatalf("second estimate: %v", err)
	}
	if created {
		t.Fatal("expected existing estimate to be returned")
	}
	if second.Card != first.Card || second.Card != 3 {
		t.Fatalf("expected original card 3, got %d", second.Card)
	}
	got, err := store.GetEstimate(ctx, round.ID, "ada")
	if err != nil || got.Card != 3 {
		t.Fatalf("expected stored card 3, got %#v %v", got, err)
	}
}

func testEstimateRejectsCompletedRound(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	story := mustStory(t, store, game.ID, "A", at(1))
	round := mustRound(t, store, story.ID, at(2))

	if _, _, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
		RoundID: round.ID, User: "ada", Name: "Ada", Card: 3, CreatedAt: at(3),
	}); err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if _, err := store.CompleteRound(ctx, round.ID); err != nil {
		t.Fatalf("complete round: %v", err)
	}

	_, created, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
		RoundID: round.ID, User: "bob", Name: "Bob", Card: 1, CreatedAt: at(4),
	})
	if !errors.Is(err, poker.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if created {
		t.Fatal("expected no estimate created")
	}
	if _, err := store.GetEstimate(ctx, round.ID, "bob"); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected no stored estimate for bob, got %v", err)
	}

	existing, created, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
		RoundID: round.ID, User: "ada", Name: "Ada", Card: 5, CreatedAt: at(5),
	})
	if err != nil || created {
		t.Fatalf("expected existing estimate returned, got %v %v", created, err)
	}
	if existing.Card != 3 {
		t.Fatalf("expected card 3, got %d", existing.Card)
	}
	if list, _ := store.ListEstimates(ctx, round.ID); len(list) != 1 {
		t.Fatalf("expected one estimate, got %d", len(list))
	}
}

func testUpdateKeepsLastUpdate(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	mustJoin(t, store, game.ID, "ada", at(1))

	stale, err := store.GetParticipant(ctx, game.ID, "ada")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	touched := at(900)
	if err := store.TouchParticipant(ctx, game.ID, "ada", touched); err != nil {
		t.Fatalf("touch participant: %v", err)
	}
	stale.Observer = true
	if err := store.UpdateParticipant(ctx, stale); err != nil {
		t.Fatalf("update participant: %v", err)
	}

	got, err := store.GetParticipant(ctx, game.ID, "ada")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if !got.Observer {
		t.Fatal("expected observer flag written")
	}
	if !got.LastUpdate.Equal(touched) {
		t.Fatalf("expected last update %v, got %v", touched, got.LastUpdate)
	}
}

func testParticipantGetOrCreate(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	first, created, err := store.GetOrCreateParticipant(ctx, &poker.Participant{
		GameID: game.ID, User: "ada", Name: "Ada", Photo: "a.png", CreatedAt: at(1),
	})
	if err != nil || !created {
		t.Fatalf("expected participant created, got %v %v", created, err)
	}
	again, created, err := store.GetOrCreateParticipant(ctx, &poker.Participant{
		GameID: game.ID, User: "ada", Name: "Other", CreatedAt: at(2),
	})
	if err != nil || created {
		t.Fatalf("expected existing participant, got %v %v", created, err)
	}
	if again.Name != first.Name || again.Photo != "a.png" {
		t.Fatalf("expected original profile, got %#v", again)
	}

	again.Observer = true
	if err := store.UpdateParticipant(ctx, again); err != nil {
		t.Fatalf("update participant: %v", err)
	}
	touched := at(500)
	if err := store.TouchParticipant(ctx, game.ID, "ada", touched); err != nil {
		t.Fatalf("touch participant: %v", err)
	}
	got, err := store.GetParticipant(ctx, game.ID, "ada")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if !got.Observer {
		t.Fatal("expected observer flag to survive touch")
	}
	if !got.LastUpdate.Equal(touched) {
		t.Fatalf("expected last update %v, got %v", touched, got.LastUpdate)
	}

	if err := store.DeleteParticipant(ctx, game.ID, "ada"); err != nil {
		t.Fatalf("delete participant: %v", err)
	}
	if list, _ := store.ListParticipants(ctx, game.ID); len(list) != 0 {
		t.Fatalf("expected no participants, got %d", len(list))
	}
}

func testConcurrentEstimates(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	story := mustStory(t, store, game.ID, "A", at(1))
	round := mustRound(t, store, story.ID, at(2))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	cards := make(map[int]struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(card int) {
			defer wg.Done()
			estimate, created, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
				RoundID: round.ID, User: "ada", Name: "Ada", Card: card, CreatedAt: at(3 + card),
			})
			if err != nil {
				t.Errorf("estimate: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if created {
				createdCount++
			}
			cards[estimate.Card] = struct{}{}
		}(i)
	}
	wg.Wait()
	if createdCount != 1 {
		t.Fatalf("expected exactly one created estimate, got %d", createdCount)
	}
	if len(cards) != 1 {
		t.Fatalf("expected every caller to see the same card, got %v", cards)
	}
	if list, _ := store.ListEstimates(ctx, round.ID); len(list) != 1 {
		t.Fatalf("expected one stored estimate, got %d", len(list))
	}
}

func testDeleteGameCascades(t *testing.T, store poker.Store) {
	ctx := context.Background()
	game := mustGame(t, store, "owner", at(0))
	kept := mustGame(t, store, "owner", at(1))
	story := mustStory(t, store, game.ID, "A", at(2))
	round := mustRound(t, store, story.ID, at(3))
	mustJoin(t, store, game.ID, "ada", at(4))
	mustJoin(t, store, kept.ID, "ada", at(5))
	if _, _, err := store.GetOrCreateEstimate(ctx, &poker.Estimate{
		RoundID: round.ID, User: "ada", Name: "Ada", Card: 1, CreatedAt: at(6),
	}); err != nil {
		t.Fatalf("estimate: %v", err)
	}

	if err := store.RecordEvent(ctx, poker.Event{GameID: game.ID, Type: "game_created", CreatedAt: at(7)}); err != nil {
		t.Fatalf("record event: %v", err)
	}

	if err := store.DeleteGame(ctx, game.ID); err != nil {
		t.Fatalf("delete game: %v", err)
	}
	if events, _ := store.ListEvents(ctx, game.ID); len(events) != 0 {
		t.Fatalf("expected events gone, got %d", len(events))
	}
	if _, err := store.GetGame(ctx, game.ID); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected game gone, got %v", err)
	}
	if _, err := store.GetStory(ctx, game.ID, story.ID); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected story gone, got %v", err)
	}
	if _, err := store.GetRound(ctx, story.ID, round.ID); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected round gone, got %v", err)
	}
	if _, err := store.GetEstimate(ctx, round.ID, "ada"); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected estimate gone, got %v", err)
	}
	if _, err := store.GetParticipant(ctx, game.ID, "ada"); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected participant gone, got %v", err)
	}
	if _, err := store.GetParticipant(ctx, kept.ID, "ada"); err != nil {
		t.Fatalf("expected other game untouched, got %v", err)
	}
	if err := store.DeleteGame(ctx, game.ID); !errors.Is(err, poker.ErrNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
}

func testListGamesByOwner(t *testing.T, store poker.Store) {
	ctx := context.Background()
	older := mustGame(t, store, "owner", at(0))
	newer := mustGame(t, store, "owner", at(10))
	mustGame(t, store, "someone-else", at(5))

	games, err := store.ListGamesByOwner(ctx, "owner")
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}
	if games[0].ID != newer.ID || games[1].ID != older.ID {
		t.Fatalf("expected newest first, got %d then %d", games[0].ID, games[1].ID)
	}
}

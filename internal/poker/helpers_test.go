package poker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"planning-poker/internal/memstore"
	"planning-poker/internal/poker"
)

var (
	owner = poker.Identity{ID: "owner", Name: "Olive"}
	ada   = poker.Identity{ID: "ada", Name: "Ada", Photo: "ada.png"}
	bob   = poker.Identity{ID: "bob", Nickname: "bobby"}
	carol = poker.Identity{ID: "carol"}
	dan   = poker.Identity{ID: "dan", Name: "Dan"}
)

type pushRecorder struct {
	mu     sync.Mutex
	counts map[string]int
	last   map[string][]byte
	err    error
}

func newPushRecorder() *pushRecorder {
	return &pushRecorder{counts: map[string]int{}, last: map[string][]byte{}}
}

func (r *pushRecorder) Push(_ context.Context, key string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.counts[key]++
	r.last[key] = payload
	return nil
}

func (r *pushRecorder) count(gameID int64, user string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[poker.ChannelKey(gameID, user)]
}

func (r *pushRecorder) lastSnapshot(t *testing.T, gameID int64, user string) poker.GameMessage {
	t.Helper()
	r.mu.Lock()
	payload := r.last[poker.ChannelKey(gameID, user)]
	r.mu.Unlock()
	if payload == nil {
		t.Fatalf("expected a push for %s, got none", user)
	}
	var msg poker.GameMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	return msg
}

type countingRecorder struct {
	mu         sync.Mutex
	delivered  int
	suppressed int
	failed     int
	estimates  int
	completed  map[string]int
}

func (r *countingRecorder) BroadcastDelivered() {
	r.mu.Lock()
	r.delivered++
	r.mu.Unlock()
}

func (r *countingRecorder) BroadcastSuppressed() {
	r.mu.Lock()
	r.suppressed++
	r.mu.Unlock()
}

func (r *countingRecorder) BroadcastFailed() {
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
}

func (r *countingRecorder) EstimateCast() {
	r.mu.Lock()
	r.estimates++
	r.mu.Unlock()
}

func (r *countingRecorder) RoundCompleted(reason string) {
	r.mu.Lock()
	if r.completed == nil {
		r.completed = map[string]int{}
	}
	r.completed[reason]++
	r.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	pushes   *pushRecorder
	recorder *countingRecorder
	clock    *fakeClock
	svc      *poker.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memstore.New(),
		pushes:   newPushRecorder(),
		recorder: &countingRecorder{},
		clock:    &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = poker.NewService(f.store, f.pushes, poker.Options{
		Now:      f.clock.Now,
		Recorder: f.recorder,
	})
	return f
}

// game creates a game owned by owner and joins the given players.
func (f *fixture) game(t *testing.T, deckID int, players ...poker.Identity) *poker.Game {
	t.Helper()
	game, err := f.svc.CreateGame(f.ctx, owner, "Sprint 12", deckID)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	for _, player := range players {
		if _, err := f.svc.Join(f.ctx, player, game.ID); err != nil {
			t.Fatalf("join %s: %v", player.ID, err)
		}
	}
	return game
}

// story starts a story and returns it with its first round.
func (f *fixture) story(t *testing.T, gameID int64, name string) (*poker.Story, *poker.Round) {
	t.Helper()
	story, err := f.svc.StartStory(f.ctx, owner, gameID, name)
	if err != nil {
		t.Fatalf("start story: %v", err)
	}
	rounds, err := f.store.ListRounds(f.ctx, story.ID)
	if err != nil || len(rounds) != 1 {
		t.Fatalf("expected one round, got %d (%v)", len(rounds), err)
	}
	return story, &rounds[0]
}

func (f *fixture) vote(t *testing.T, who poker.Identity, gameID int64, story *poker.Story, round *poker.Round, card int) *poker.Estimate {
	t.Helper()
	estimate, err := f.svc.CastEstimate(f.ctx, who, gameID, story.ID, round.ID, card)
	if err != nil {
		t.Fatalf("cast estimate for %s: %v", who.ID, err)
	}
	return estimate
}

func (f *fixture) round(t *testing.T, storyID, roundID int64) poker.Round {
	t.Helper()
	round, err := f.store.GetRound(f.ctx, storyID, roundID)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	return *round
}

func (f *fixture) snapshot(t *testing.T, gameID int64) *poker.GameMessage {
	t.Helper()
	msg, err := f.svc.Snapshot(f.ctx, gameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return msg
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

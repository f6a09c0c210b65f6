// Package poker implements the planning poker game: games own participants
// and stories, stories own rounds, rounds own write-once estimates. Every
// state change ends with a snapshot broadcast to the game's participants.
package poker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

type Options struct {
	// QuietInterval defaults to DefaultQuietInterval.
	QuietInterval time.Duration
	Now           func() time.Time
	Recorder      Recorder
}

type Service struct {
	store       Store
	coordinator *Coordinator
	recorder    Recorder
	now         func() time.Time
}

func NewService(store Store, notifier Notifier, opts Options) *Service {
	if opts.QuietInterval <= 0 {
		opts.QuietInterval = DefaultQuietInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		store:       store,
		coordinator: NewCoordinator(store, notifier, opts.Recorder, opts.QuietInterval, opts.Now),
		recorder:    opts.Recorder,
		now:         opts.Now,
	}
}

// Snapshot returns the full serializable state of a game.
func (s *Service) Snapshot(ctx context.Context, gameID int64) (*GameMessage, error) {
	return buildSnapshot(ctx, s.store, gameID)
}

func (s *Service) loadGame(ctx context.Context, caller Identity, gameID int64, ownerOnly bool) (*Game, error) {
	if caller.ID == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrForbidden)
	}
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if ownerOnly && game.Owner != caller.ID {
		return nil, fmt.Errorf("%w: only the game owner can do this", ErrForbidden)
	}
	return game, nil
}

func (s *Service) loadStory(ctx context.Context, caller Identity, gameID, storyID int64, ownerOnly bool) (*Game, *Story, error) {
	game, err := s.loadGame(ctx, caller, gameID, ownerOnly)
	if err != nil {
		return nil, nil, err
	}
	story, err := s.store.GetStory(ctx, game.ID, storyID)
	if err != nil {
		return nil, nil, err
	}
	return game, story, nil
}

func (s *Service) loadRound(ctx context.Context, caller Identity, gameID, storyID, roundID int64, ownerOnly bool) (*Game, *Story, *Round, error) {
	game, story, err := s.loadStory(ctx, caller, gameID, storyID, ownerOnly)
	if err != nil {
		return nil, nil, nil, err
	}
	round, err := s.store.GetRound(ctx, story.ID, roundID)
	if err != nil {
		return nil, nil, nil, err
	}
	return game, story, round, nil
}

// requireCurrent guards every story and round transition.
func requireCurrent(game *Game, story *Story) error {
	if game.Completed {
		return fmt.Errorf("%w: game is completed", ErrConflict)
	}
	if !game.IsCurrent(story.ID) {
		return fmt.Errorf("%w: story is not current", ErrConflict)
	}
	return nil
}

// completeRounds closes every open round of a story.
func (s *Service) completeRounds(ctx context.Context, storyID int64, reason string) error {
	rounds, err := s.store.ListRounds(ctx, storyID)
	if err != nil {
		return fmt.Errorf("list rounds: %w", err)
	}
	for _, round := range rounds {
		if round.Completed {
			continue
		}
		changed, err := s.store.CompleteRound(ctx, round.ID)
		if err != nil {
			return fmt.Errorf("complete round: %w", err)
		}
		if changed {
			s.recorder.RoundCompleted(reason)
		}
	}
	return nil
}

// broadcast pushes the current snapshot. Failures are logged and never
// undo the mutation that triggered them.
func (s *Service) broadcast(ctx context.Context, gameID int64, force bool, actor string) {
	msg, err := s.Snapshot(ctx, gameID)
	if err != nil {
		slog.Warn("build snapshot failed", "game_id", gameID, "error", err)
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("encode snapshot failed", "game_id", gameID, "error", err)
		return
	}
	participants, err := s.store.ListParticipants(ctx, gameID)
	if err != nil {
		slog.Warn("list participants failed", "game_id", gameID, "error", err)
		return
	}
	s.coordinator.Deliver(ctx, gameID, participants, payload, force, actor)
}

func (s *Service) record(ctx context.Context, gameID int64, user, eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	event := Event{
		GameID:    gameID,
		User:      user,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: s.now(),
	}
	if err := s.store.RecordEvent(ctx, event); err != nil {
		slog.Warn("record event failed", "game_id", gameID, "type", eventType, "error", err)
	}
}

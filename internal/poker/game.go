package poker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

func (s *Service) CreateGame(ctx context.Context, owner Identity, name string, deckID int) (*Game, error) {
	if owner.ID == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrForbidden)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !ValidDeck(deckID) {
		return nil, fmt.Errorf("%w: unknown deck %d", ErrInvalid, deckID)
	}
	game := &Game{
		Name:      name,
		DeckID:    deckID,
		Owner:     owner.ID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	slog.Info("game created", "game_id", game.ID, "user_id", owner.ID, "deck", deckID)
	s.record(ctx, game.ID, owner.ID, "game_created", map[string]any{"name": game.Name, "deck": deckID})
	return game, nil
}

func (s *Service) ListGames(ctx context.Context, owner Identity) ([]Game, error) {
	if owner.ID == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrForbidden)
	}
	return s.store.ListGamesByOwner(ctx, owner.ID)
}

func (s *Service) DeleteGame(ctx context.Context, caller Identity, gameID int64) error {
	game, err := s.loadGame(ctx, caller, gameID, true)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGame(ctx, game.ID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	slog.Info("game deleted", "game_id", game.ID, "user_id", caller.ID)
	return nil
}

// SetCompleted closes or reopens a game. Closing completes every round and
// marks every unestimated story as skipped. Both directions clear the
// current story.
func (s *Service) SetCompleted(ctx context.Context, caller Identity, gameID int64, completed bool) error {
	game, err := s.loadGame(ctx, caller, gameID, true)
	if err != nil {
		return err
	}
	if completed {
		stories, err := s.store.ListStories(ctx, game.ID)
		if err != nil {
			return fmt.Errorf("list stories: %w", err)
		}
		for i := range stories {
			story := &stories[i]
			if err := s.completeRounds(ctx, story.ID, "game"); err != nil {
				return err
			}
			if story.Estimate == nil {
				story.Estimate = intPtr(Skipped)
				if err := s.store.UpdateStory(ctx, story); err != nil {
					return fmt.Errorf("update story: %w", err)
				}
			}
		}
	}
	game.Completed = completed
	game.CurrentStoryID = nil
	if err := s.store.UpdateGame(ctx, game); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	eventType := "game_reopened"
	if completed {
		eventType = "game_completed"
	}
	slog.Info("game state changed", "game_id", game.ID, "completed", completed)
	s.record(ctx, game.ID, caller.ID, eventType, nil)
	s.broadcast(ctx, game.ID, true, caller.ID)
	return nil
}

// StartStory opens a new story with its first round and makes it current.
func (s *Service) StartStory(ctx context.Context, caller Identity, gameID int64, name string) (*Story, error) {
	game, err := s.loadGame(ctx, caller, gameID, true)
	if err != nil {
		return nil, err
	}
	if game.Completed {
		return nil, fmt.Errorf("%w: game is completed", ErrConflict)
	}
	if game.CurrentStoryID != nil {
		return nil, fmt.Errorf("%w: game already has a current story", ErrConflict)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	story := &Story{
		GameID:    game.ID,
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateStory(ctx, story); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	round := &Round{StoryID: story.ID, CreatedAt: s.now()}
	if err := s.store.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}
	game.CurrentStoryID = &story.ID
	if err := s.store.UpdateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("update game: %w", err)
	}
	slog.Info("story started", "game_id", game.ID, "story_id", story.ID, "round_id", round.ID)
	s.record(ctx, game.ID, caller.ID, "story_started", map[string]any{"story_id": story.ID, "round_id": round.ID})
	s.broadcast(ctx, game.ID, true, caller.ID)
	return story, nil
}

// View returns the snapshot together with the caller's own cast cards
// keyed by round id. The map is empty unless the caller has joined.
func (s *Service) View(ctx context.Context, caller Identity, gameID int64) (*GameMessage, map[int64]int, error) {
	game, err := s.loadGame(ctx, caller, gameID, false)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.Snapshot(ctx, game.ID)
	if err != nil {
		return nil, nil, err
	}
	estimates := map[int64]int{}
	if _, err := s.store.GetParticipant(ctx, game.ID, caller.ID); err == nil {
		estimates, err = userEstimates(ctx, s.store, game.ID, caller.ID)
		if err != nil {
			return nil, nil, err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}
	return msg, estimates, nil
}

// Opened is called by a client once its push channel is connected: everyone
// gets a fresh snapshot and the caller gets back its own votes.
func (s *Service) Opened(ctx context.Context, caller Identity, gameID int64) (map[int64]int, error) {
	game, err := s.loadGame(ctx, caller, gameID, false)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, game.ID, true, caller.ID)
	return userEstimates(ctx, s.store, game.ID, caller.ID)
}

// ListEvents returns the audit trail of a game to its owner.
func (s *Service) ListEvents(ctx context.Context, caller Identity, gameID int64) ([]Event, error) {
	game, err := s.loadGame(ctx, caller, gameID, true)
	if err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, game.ID)
}

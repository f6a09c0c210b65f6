package poker

import (
	"context"
	"fmt"
	"log/slog"
)

// SkipStory closes the current story without an estimate.
func (s *Service) SkipStory(ctx context.Context, caller Identity, gameID, storyID int64) error {
	game, story, err := s.loadStory(ctx, caller, gameID, storyID, true)
	if err != nil {
		return err
	}
	if err := requireCurrent(game, story); err != nil {
		return err
	}
	return s.finishStory(ctx, caller, game, story, Skipped, "story_skipped")
}

// CompleteStory closes the current story with the chosen card.
func (s *Service) CompleteStory(ctx context.Context, caller Identity, gameID, storyID int64, card int) error {
	game, story, err := s.loadStory(ctx, caller, gameID, storyID, true)
	if err != nil {
		return err
	}
	if err := requireCurrent(game, story); err != nil {
		return err
	}
	if _, ok := CardLabel(game.DeckID, card); !ok {
		return fmt.Errorf("%w: card %d is not in the deck", ErrInvalid, card)
	}
	return s.finishStory(ctx, caller, game, story, card, "story_completed")
}

func (s *Service) finishStory(ctx context.Context, caller Identity, game *Game, story *Story, estimate int, eventType string) error {
	if err := s.completeRounds(ctx, story.ID, "story"); err != nil {
		return err
	}
	story.Estimate = intPtr(estimate)
	if err := s.store.UpdateStory(ctx, story); err != nil {
		return fmt.Errorf("update story: %w", err)
	}
	game.CurrentStoryID = nil
	if err := s.store.UpdateGame(ctx, game); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	slog.Info("story finished", "game_id", game.ID, "story_id", story.ID, "estimate", estimate)
	s.record(ctx, game.ID, caller.ID, eventType, map[string]any{"story_id": story.ID, "estimate": estimate})
	s.broadcast(ctx, game.ID, true, caller.ID)
	return nil
}

// NewRound starts a re-vote: prior rounds are completed, a fresh round is
// opened and the story estimate is cleared.
func (s *Service) NewRound(ctx context.Context, caller Identity, gameID, storyID int64) (*Round, error) {
	game, story, err := s.loadStory(ctx, caller, gameID, storyID, true)
	if err != nil {
		return nil, err
	}
	if err := requireCurrent(game, story); err != nil {
		return nil, err
	}
	if err := s.completeRounds(ctx, story.ID, "story"); err != nil {
		return nil, err
	}
	round := &Round{StoryID: story.ID, CreatedAt: s.now()}
	if err := s.store.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}
	story.Estimate = nil
	if err := s.store.UpdateStory(ctx, story); err != nil {
		return nil, fmt.Errorf("update story: %w", err)
	}
	slog.Info("round started", "game_id", game.ID, "story_id", story.ID, "round_id", round.ID)
	s.record(ctx, game.ID, caller.ID, "round_started", map[string]any{"story_id": story.ID, "round_id": round.ID})
	s.broadcast(ctx, game.ID, true, caller.ID)
	return round, nil
}

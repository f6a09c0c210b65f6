package poker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

func requireOpenRound(game *Game, story *Story, round *Round) error {
	if err := requireCurrent(game, story); err != nil {
		return err
	}
	if round.Completed {
		return fmt.Errorf("%w: round is completed", ErrConflict)
	}
	return nil
}

// CastEstimate records the caller's vote. A second vote by the same user in
// the same round returns the first one unchanged. The round completes once
// every non-observer participant has voted.
func (s *Service) CastEstimate(ctx context.Context, caller Identity, gameID, storyID, roundID int64, card int) (*Estimate, error) {
	game, story, round, err := s.loadRound(ctx, caller, gameID, storyID, roundID, false)
	if err != nil {
		return nil, err
	}
	if err := requireOpenRound(game, story, round); err != nil {
		return nil, err
	}
	if _, ok := CardLabel(game.DeckID, card); !ok {
		return nil, fmt.Errorf("%w: card %d is not in the deck", ErrInvalid, card)
	}
	participant, err := s.store.GetParticipant(ctx, game.ID, caller.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: join the game before voting", ErrForbidden)
	}
	if err != nil {
		return nil, err
	}

	estimate, created, err := s.store.GetOrCreateEstimate(ctx, &Estimate{
		RoundID:   round.ID,
		User:      caller.ID,
		Name:      participantName(*participant),
		Card:      card,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create estimate: %w", err)
	}
	if !created {
		return estimate, nil
	}
	s.recorder.EstimateCast()
	s.record(ctx, game.ID, caller.ID, "estimate_cast", map[string]any{"round_id": round.ID})

	completed, err := s.applyQuorum(ctx, game.ID, round.ID)
	if err != nil {
		return nil, err
	}
	if completed {
		slog.Info("round completed", "game_id", game.ID, "story_id", story.ID, "round_id", round.ID, "reason", "quorum")
	}
	s.broadcast(ctx, game.ID, completed, caller.ID)
	return estimate, nil
}

// applyQuorum completes the round when every current non-observer
// participant has an estimate in it. Observer votes never count. Losing
// the completion race to a concurrent voter still reports completion.
func (s *Service) applyQuorum(ctx context.Context, gameID, roundID int64) (bool, error) {
	participants, err := s.store.ListParticipants(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("list participants: %w", err)
	}
	voters := make(map[string]struct{}, len(participants))
	for _, participant := range participants {
		if !participant.Observer {
			voters[participant.User] = struct{}{}
		}
	}
	if len(voters) == 0 {
		return false, nil
	}
	estimates, err := s.store.ListEstimates(ctx, roundID)
	if err != nil {
		return false, fmt.Errorf("list estimates: %w", err)
	}
	votes := 0
	for _, estimate := range estimates {
		if _, ok := voters[estimate.User]; ok {
			votes++
		}
	}
	if votes < len(voters) {
		return false, nil
	}
	changed, err := s.store.CompleteRound(ctx, roundID)
	if err != nil {
		return false, fmt.Errorf("complete round: %w", err)
	}
	if changed {
		s.recorder.RoundCompleted("quorum")
	}
	return true, nil
}

// CompleteRound reveals the round without waiting for every vote.
func (s *Service) CompleteRound(ctx context.Context, caller Identity, gameID, storyID, roundID int64) error {
	game, story, round, err := s.loadRound(ctx, caller, gameID, storyID, roundID, true)
	if err != nil {
		return err
	}
	if err := requireOpenRound(game, story, round); err != nil {
		return err
	}
	changed, err := s.store.CompleteRound(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("complete round: %w", err)
	}
	if changed {
		s.recorder.RoundCompleted("manual")
		slog.Info("round completed", "game_id", game.ID, "story_id", story.ID, "round_id", round.ID, "reason", "manual")
		s.record(ctx, game.ID, caller.ID, "round_completed", map[string]any{"round_id": round.ID})
	}
	s.broadcast(ctx, game.ID, true, caller.ID)
	return nil
}

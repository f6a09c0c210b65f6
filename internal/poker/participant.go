package poker

import (
	"context"
	"fmt"
	"log/slog"
)

// Join registers the caller in the game, or returns the existing record.
// Cached profile fields are filled from the caller identity when missing.
func (s *Service) Join(ctx context.Context, caller Identity, gameID int64) (*Participant, error) {
	game, err := s.loadGame(ctx, caller, gameID, false)
	if err != nil {
		return nil, err
	}
	participant, created, err := s.store.GetOrCreateParticipant(ctx, &Participant{
		GameID:    game.ID,
		User:      caller.ID,
		Name:      caller.DisplayName(),
		Photo:     caller.Photo,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("join game: %w", err)
	}
	if created {
		slog.Info("participant joined", "game_id", game.ID, "user_id", caller.ID)
		s.record(ctx, game.ID, caller.ID, "participant_joined", nil)
		s.broadcast(ctx, game.ID, false, caller.ID)
		return participant, nil
	}
	if refreshProfile(participant, caller) {
		if err := s.store.UpdateParticipant(ctx, participant); err != nil {
			return nil, fmt.Errorf("update participant: %w", err)
		}
	}
	return participant, nil
}

func refreshProfile(participant *Participant, caller Identity) bool {
	changed := false
	if (participant.Name == "" || participant.Name == participant.User) && caller.DisplayName() != participant.Name {
		participant.Name = caller.DisplayName()
		changed = true
	}
	if participant.Photo == "" && caller.Photo != "" {
		participant.Photo = caller.Photo
		changed = true
	}
	return changed
}

// SetObserver toggles whether the participant votes. Owners may toggle
// anyone; everybody else only themselves.
func (s *Service) SetObserver(ctx context.Context, caller Identity, gameID int64, user string, observer bool) error {
	game, err := s.loadGame(ctx, caller, gameID, false)
	if err != nil {
		return err
	}
	if caller.ID != user && caller.ID != game.Owner {
		return fmt.Errorf("%w: cannot change another participant", ErrForbidden)
	}
	participant, err := s.store.GetParticipant(ctx, game.ID, user)
	if err != nil {
		return err
	}
	participant.Observer = observer
	if err := s.store.UpdateParticipant(ctx, participant); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	s.record(ctx, game.ID, caller.ID, "participant_observer", map[string]any{"user": user, "observer": observer})
	s.broadcast(ctx, game.ID, true, caller.ID)
	return nil
}

// RemoveParticipant drops a participant. The owner's own record stays.
func (s *Service) RemoveParticipant(ctx context.Context, caller Identity, gameID int64, user string) error {
	game, err := s.loadGame(ctx, caller, gameID, true)
	if err != nil {
		return err
	}
	participant, err := s.store.GetParticipant(ctx, game.ID, user)
	if err != nil {
		return err
	}
	if participant.User == game.Owner {
		return fmt.Errorf("%w: the owner cannot be removed", ErrConflict)
	}
	if err := s.store.DeleteParticipant(ctx, game.ID, participant.User); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	slog.Info("participant removed", "game_id", game.ID, "user_id", participant.User)
	s.record(ctx, game.ID, caller.ID, "participant_removed", map[string]any{"user": participant.User})
	s.broadcast(ctx, game.ID, true, caller.ID)
	return nil
}

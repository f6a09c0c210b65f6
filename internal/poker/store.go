package poker

import (
	"context"
	"time"
)

// Store persists the game tree. Child collections are returned ordered by
// creation time. Missing records are reported as ErrNotFound.
type Store interface {
	CreateGame(ctx context.Context, game *Game) error
	GetGame(ctx context.Context, id int64) (*Game, error)
	// ListGamesByOwner returns the owner's games, newest first.
	ListGamesByOwner(ctx context.Context, owner string) ([]Game, error)
	UpdateGame(ctx context.Context, game *Game) error
	// DeleteGame removes the participants, then every story with its rounds
	// and their estimates, then the game itself.
	DeleteGame(ctx context.Context, id int64) error

	CreateStory(ctx context.Context, story *Story) error
	GetStory(ctx context.Context, gameID, storyID int64) (*Story, error)
	ListStories(ctx context.Context, gameID int64) ([]Story, error)
	UpdateStory(ctx context.Context, story *Story) error

	CreateRound(ctx context.Context, round *Round) error
	GetRound(ctx context.Context, storyID, roundID int64) (*Round, error)
	ListRounds(ctx context.Context, storyID int64) ([]Round, error)
	// CompleteRound flips the completed flag if it is still false and
	// reports whether this call made the change.
	CompleteRound(ctx context.Context, roundID int64) (bool, error)

	// GetOrCreateEstimate inserts the estimate unless one already exists for
	// (round, user); the stored record is returned either way. A new estimate
	// in a completed round fails with ErrConflict.
	GetOrCreateEstimate(ctx context.Context, estimate *Estimate) (*Estimate, bool, error)
	GetEstimate(ctx context.Context, roundID int64, user string) (*Estimate, error)
	ListEstimates(ctx context.Context, roundID int64) ([]Estimate, error)

	// GetOrCreateParticipant inserts the participant unless one already
	// exists for (game, user); the stored record is returned either way.
	GetOrCreateParticipant(ctx context.Context, participant *Participant) (*Participant, bool, error)
	GetParticipant(ctx context.Context, gameID int64, user string) (*Participant, error)
	ListParticipants(ctx context.Context, gameID int64) ([]Participant, error)
	// UpdateParticipant writes the profile and observer flag. LastUpdate is
	// owned by TouchParticipant and left unchanged.
	UpdateParticipant(ctx context.Context, participant *Participant) error
	// TouchParticipant records the time of the last delivered update.
	TouchParticipant(ctx context.Context, gameID int64, user string, at time.Time) error
	DeleteParticipant(ctx context.Context, gameID int64, user string) error

	RecordEvent(ctx context.Context, event Event) error
	// ListEvents returns a game's events in recording order.
	ListEvents(ctx context.Context, gameID int64) ([]Event, error)
}

package poker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultQuietInterval is the minimum gap between two unforced updates to
// the same participant.
const DefaultQuietInterval = time.Second

// Notifier delivers a serialized snapshot to one participant's channel.
// An unreachable channel is not an error.
type Notifier interface {
	Push(ctx context.Context, key string, payload []byte) error
}

// Recorder observes core activity, typically for metrics.
type Recorder interface {
	BroadcastDelivered()
	BroadcastSuppressed()
	BroadcastFailed()
	EstimateCast()
	RoundCompleted(reason string)
}

type nopNotifier struct{}

func (nopNotifier) Push(context.Context, string, []byte) error { return nil }

type nopRecorder struct{}

func (nopRecorder) BroadcastDelivered() {}
func (nopRecorder) BroadcastSuppressed() {}
func (nopRecorder) BroadcastFailed() {}
func (nopRecorder) EstimateCast() {}
func (nopRecorder) RoundCompleted(string) {}

// Coordinator decides, per participant, whether a snapshot is pushed now.
// Suppressed snapshots are dropped, not queued: every push carries the full
// state, so the next delivered one supersedes them.
type Coordinator struct {
	store    Store
	notifier Notifier
	recorder Recorder
	quiet    time.Duration
	now      func() time.Time
}

func NewCoordinator(store Store, notifier Notifier, recorder Recorder, quiet time.Duration, now func() time.Time) *Coordinator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		quiet:    quiet,
		now:      now,
	}
}

// Due reports whether the participant may receive an unforced update at t.
func (c *Coordinator) Due(participant Participant, t time.Time) bool {
	return t.Sub(participant.LastUpdate) > c.quiet
}

// Deliver pushes payload to every participant that is forced or due and
// returns how many pushes were attempted. The acting user is always forced.
func (c *Coordinator) Deliver(ctx context.Context, gameID int64, participants []Participant, payload []byte, force bool, actor string) int {
	delivered := 0
	for _, participant := range participants {
		now := c.now()
		forced := force || (actor != "" && participant.User == actor)
		if !forced && !c.Due(participant, now) {
			c.recorder.BroadcastSuppressed()
			continue
		}
		if err := c.store.TouchParticipant(ctx, gameID, participant.User, now); err != nil {
			slog.Warn("record delivery time failed", "game_id", gameID, "user_id", participant.User, "error", err)
		}
		delivered++
		if err := c.notifier.Push(ctx, ChannelKey(gameID, participant.User), payload); err != nil {
			c.recorder.BroadcastFailed()
			slog.Warn("push update failed", "game_id", gameID, "user_id", participant.User, "error", err)
			continue
		}
		c.recorder.BroadcastDelivered()
	}
	return delivered
}

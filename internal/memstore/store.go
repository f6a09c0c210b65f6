// Package memstore keeps the game tree in process memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"planning-poker/internal/poker"
)

var _ poker.Store = (*Store)(nil)

type participantKey struct {
	gameID int64
	user   string
}

type estimateKey struct {
	roundID int64
	user    string
}

type Store struct {
	mu           sync.Mutex
	nextID       int64
	games        map[int64]*poker.Game
	stories      map[int64]*poker.Story
	rounds       map[int64]*poker.Round
	estimates    map[estimateKey]*poker.Estimate
	participants map[participantKey]*poker.Participant
	events       []poker.Event

	// children by parent id, in insertion order
	gameStories map[int64][]int64
	storyRounds map[int64][]int64
	roundVotes  map[int64][]string
	gameMembers map[int64][]string
}

func New() *Store {
	return &Store{
		nextID:       1,
		games:        make(map[int64]*poker.Game),
		stories:      make(map[int64]*poker.Story),
		rounds:       make(map[int64]*poker.Round),
		estimates:    make(map[estimateKey]*poker.Estimate),
		participants: make(map[participantKey]*poker.Participant),
		gameStories:  make(map[int64][]int64),
		storyRounds:  make(map[int64][]int64),
		roundVotes:   make(map[int64][]string),
		gameMembers:  make(map[int64][]string),
	}
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", poker.ErrNotFound, kind, id)
}

func (s *Store) CreateGame(_ context.Context, game *poker.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game.ID = s.id()
	stored := cloneGame(game)
	s.games[game.ID] = stored
	return nil
}

func (s *Store) GetGame(_ context.Context, id int64) (*poker.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, notFound("game", id)
	}
	return cloneGame(game), nil
}

func (s *Store) ListGamesByOwner(_ context.Context, owner string) ([]poker.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]poker.Game, 0)
	for _, game := range s.games {
		if game.Owner == owner {
			list = append(list, *cloneGame(game))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (s *Store) UpdateGame(_ context.Context, game *poker.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; !ok {
		return notFound("game", game.ID)
	}
	s.games[game.ID] = cloneGame(game)
	return nil
}

func (s *Store) DeleteGame(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[id]; !ok {
		return notFound("game", id)
	}
	for _, user := range s.gameMembers[id] {
		delete(s.participants, participantKey{gameID: id, user: user})
	}
	delete(s.gameMembers, id)
	for _, storyID := range s.gameStories[id] {
		for _, roundID := range s.storyRounds[storyID] {
			for _, user := range s.roundVotes[roundID] {
				delete(s.estimates, estimateKey{roundID: roundID, user: user})
			}
			delete(s.roundVotes, roundID)
			delete(s.rounds, roundID)
		}
		delete(s.storyRounds, storyID)
		delete(s.stories, storyID)
	}
	delete(s.gameStories, id)
	kept := s.events[:0]
	for _, event := range s.events {
		if event.GameID != id {
			kept = append(kept, event)
		}
	}
	s.events = kept
	delete(s.games, id)
	return nil
}

func (s *Store) CreateStory(_ context.Context, story *poker.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[story.GameID]; !ok {
		return notFound("game", story.GameID)
	}
	story.ID = s.id()
	s.stories[story.ID] = cloneStory(story)
	s.gameStories[story.GameID] = append(s.gameStories[story.GameID], story.ID)
	return nil
}

func (s *Store) GetStory(_ context.Context, gameID, storyID int64) (*poker.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok || story.GameID != gameID {
		return nil, notFound("story", storyID)
	}
	return cloneStory(story), nil
}

func (s *Store) ListStories(_ context.Context, gameID int64) ([]poker.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.gameStories[gameID]
	list := make([]poker.Story, 0, len(ids))
	for _, id := range ids {
		list = append(list, *cloneStory(s.stories[id]))
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Store) UpdateStory(_ context.Context, story *poker.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.stories[story.ID]
	if !ok || existing.GameID != story.GameID {
		return notFound("story", story.ID)
	}
	s.stories[story.ID] = cloneStory(story)
	return nil
}

func (s *Store) CreateRound(_ context.Context, round *poker.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[round.StoryID]; !ok {
		return notFound("story", round.StoryID)
	}
	round.ID = s.id()
	stored := *round
	s.rounds[round.ID] = &stored
	s.storyRounds[round.StoryID] = append(s.storyRounds[round.StoryID], round.ID)
	return nil
}

func (s *Store) GetRound(_ context.Context, storyID, roundID int64) (*poker.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundID]
	if !ok || round.StoryID != storyID {
		return nil, notFound("round", roundID)
	}
	out := *round
	return &out, nil
}

func (s *Store) ListRounds(_ context.Context, storyID int64) ([]poker.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.storyRounds[storyID]
	list := make([]poker.Round, 0, len(ids))
	for _, id := range ids {
		list = append(list, *s.rounds[id])
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Store) CompleteRound(_ context.Context, roundID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundID]
	if !ok {
		return false, notFound("round", roundID)
	}
	if round.Completed {
		return false, nil
	}
	round.Completed = true
	return true, nil
}

func (s *Store) GetOrCreateEstimate(_ context.Context, estimate *poker.Estimate) (*poker.Estimate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[estimate.RoundID]
	if !ok {
		return nil, false, notFound("round", estimate.RoundID)
	}
	key := estimateKey{roundID: estimate.RoundID, user: estimate.User}
	if existing, ok := s.estimates[key]; ok {
		out := *existing
		return &out, false, nil
	}
	if round.Completed {
		return nil, false, fmt.Errorf("%w: round %d is completed", poker.ErrConflict, round.ID)
	}
	stored := *estimate
	s.estimates[key] = &stored
	s.roundVotes[estimate.RoundID] = append(s.roundVotes[estimate.RoundID], estimate.User)
	out := stored
	return &out, true, nil
}

func (s *Store) GetEstimate(_ context.Context, roundID int64, user string) (*poker.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	estimate, ok := s.estimates[estimateKey{roundID: roundID, user: user}]
	if !ok {
		return nil, notFound("estimate", user)
	}
	out := *estimate
	return &out, nil
}

func (s *Store) ListEstimates(_ context.Context, roundID int64) ([]poker.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.roundVotes[roundID]
	list := make([]poker.Estimate, 0, len(users))
	for _, user := range users {
		list = append(list, *s.estimates[estimateKey{roundID: roundID, user: user}])
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Store) GetOrCreateParticipant(_ context.Context, participant *poker.Participant) (*poker.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[participant.GameID]; !ok {
		return nil, false, notFound("game", participant.GameID)
	}
	key := participantKey{gameID: participant.GameID, user: participant.User}
	if existing, ok := s.participants[key]; ok {
		out := *existing
		return &out, false, nil
	}
	stored := *participant
	s.participants[key] = &stored
	s.gameMembers[participant.GameID] = append(s.gameMembers[participant.GameID], participant.User)
	out := stored
	return &out, true, nil
}

func (s *Store) GetParticipant(_ context.Context, gameID int64, user string) (*poker.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[participantKey{gameID: gameID, user: user}]
	if !ok {
		return nil, notFound("participant", user)
	}
	out := *participant
	return &out, nil
}

func (s *Store) ListParticipants(_ context.Context, gameID int64) ([]poker.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.gameMembers[gameID]
	list := make([]poker.Participant, 0, len(users))
	for _, user := range users {
		list = append(list, *s.participants[participantKey{gameID: gameID, user: user}])
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Store) UpdateParticipant(_ context.Context, participant *poker.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{gameID: participant.GameID, user: participant.User}
	existing, ok := s.participants[key]
	if !ok {
		return notFound("participant", participant.User)
	}
	stored := *participant
	stored.LastUpdate = existing.LastUpdate
	s.participants[key] = &stored
	return nil
}

func (s *Store) TouchParticipant(_ context.Context, gameID int64, user string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[participantKey{gameID: gameID, user: user}]
	if !ok {
		return notFound("participant", user)
	}
	participant.LastUpdate = at
	return nil
}

func (s *Store) DeleteParticipant(_ context.Context, gameID int64, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{gameID: gameID, user: user}
	if _, ok := s.participants[key]; !ok {
		return notFound("participant", user)
	}
	delete(s.participants, key)
	members := s.gameMembers[gameID]
	for i, member := range members {
		if member == user {
			s.gameMembers[gameID] = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) RecordEvent(_ context.Context, event poker.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListEvents(_ context.Context, gameID int64) ([]poker.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]poker.Event, 0)
	for _, event := range s.events {
		if event.GameID == gameID {
			list = append(list, event)
		}
	}
	return list, nil
}

func cloneGame(game *poker.Game) *poker.Game {
	out := *game
	if game.CurrentStoryID != nil {
		id := *game.CurrentStoryID
		out.CurrentStoryID = &id
	}
	return &out
}

func cloneStory(story *poker.Story) *poker.Story {
	out := *story
	if story.Estimate != nil {
		value := *story.Estimate
		out.Estimate = &value
	}
	return &out
}

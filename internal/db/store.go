package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planning-poker/internal/poker"
)

var _ poker.Store = (*Store)(nil)

// Store implements poker.Store on Postgres through GORM.
type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", poker.ErrNotFound, kind, id)
}

// isForeignKeyViolation reports a missing parent row.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.conn.WithContext(ctx)
}

func (s *Store) CreateGame(ctx context.Context, game *poker.Game) error {
	record := Game{
		Name:           game.Name,
		DeckID:         game.DeckID,
		Completed:      game.Completed,
		CurrentStoryID: game.CurrentStoryID,
		OwnerID:        game.Owner,
		CreatedAt:      game.CreatedAt,
	}
	if err := s.db(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	game.ID = record.ID
	return nil
}

func (s *Store) GetGame(ctx context.Context, id int64) (*poker.Game, error) {
	var record Game
	if err := s.db(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("game", id)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return gameFromRecord(record), nil
}

func (s *Store) ListGamesByOwner(ctx context.Context, owner string) ([]poker.Game, error) {
	var records []Game
	if err := s.db(ctx).Where("owner_id = ?", owner).Order("created_at desc, id desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	games := make([]poker.Game, 0, len(records))
	for _, record := range records {
		games = append(games, *gameFromRecord(record))
	}
	return games, nil
}

func (s *Store) UpdateGame(ctx context.Context, game *poker.Game) error {
	result := s.db(ctx).Model(&Game{}).Where("id = ?", game.ID).Updates(map[string]any{
		"name":             game.Name,
		"completed":        game.Completed,
		"current_story_id": game.CurrentStoryID,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update game: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("game", game.ID)
	}
	return nil
}

func (s *Store) DeleteGame(ctx context.Context, id int64) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		stories := tx.Model(&Story{}).Select("id").Where("game_id = ?", id)
		rounds := tx.Model(&Round{}).Select("id").Where("story_id IN (?)", stories)
		if err := tx.Where("round_id IN (?)", rounds).Delete(&Estimate{}).Error; err != nil {
			return fmt.Errorf("failed to delete estimates: %w", err)
		}
		if err := tx.Where("story_id IN (?)", stories).Delete(&Round{}).Error; err != nil {
			return fmt.Errorf("failed to delete rounds: %w", err)
		}
		if err := tx.Where("game_id = ?", id).Delete(&Story{}).Error; err != nil {
			return fmt.Errorf("failed to delete stories: %w", err)
		}
		if err := tx.Where("game_id = ?", id).Delete(&Participant{}).Error; err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}
		if err := tx.Where("game_id = ?", id).Delete(&Event{}).Error; err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&Game{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete game: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFound("game", id)
		}
		return nil
	})
}

func (s *Store) CreateStory(ctx context.Context, story *poker.Story) error {
	record := Story{
		GameID:    story.GameID,
		Name:      story.Name,
		Estimate:  story.Estimate,
		CreatedAt: story.CreatedAt,
	}
	if err := s.db(ctx).Create(&record).Error; err != nil {
		if isForeignKeyViolation(err) {
			return notFound("game", story.GameID)
		}
		return fmt.Errorf("failed to insert story: %w", err)
	}
	story.ID = record.ID
	return nil
}

func (s *Store) GetStory(ctx context.Context, gameID, storyID int64) (*poker.Story, error) {
	var record Story
	if err := s.db(ctx).Where("id = ? AND game_id = ?", storyID, gameID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("story", storyID)
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return storyFromRecord(record), nil
}

func (s *Store) ListStories(ctx context.Context, gameID int64) ([]poker.Story, error) {
	var records []Story
	if err := s.db(ctx).Where("game_id = ?", gameID).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	stories := make([]poker.Story, 0, len(records))
	for _, record := range records {
		stories = append(stories, *storyFromRecord(record))
	}
	return stories, nil
}

func (s *Store) UpdateStory(ctx context.Context, story *poker.Story) error {
	result := s.db(ctx).Model(&Story{}).Where("id = ? AND game_id = ?", story.ID, story.GameID).Updates(map[string]any{
		"name":     story.Name,
		"estimate": story.Estimate,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update story: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("story", story.ID)
	}
	return nil
}

func (s *Store) CreateRound(ctx context.Context, round *poker.Round) error {
	record := Round{
		StoryID:   round.StoryID,
		Completed: round.Completed,
		CreatedAt: round.CreatedAt,
	}
	if err := s.db(ctx).Create(&record).Error; err != nil {
		if isForeignKeyViolation(err) {
			return notFound("story", round.StoryID)
		}
		return fmt.Errorf("failed to insert round: %w", err)
	}
	round.ID = record.ID
	return nil
}

func (s *Store) GetRound(ctx context.Context, storyID, roundID int64) (*poker.Round, error) {
	var record Round
	if err := s.db(ctx).Where("id = ? AND story_id = ?", roundID, storyID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("round", roundID)
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return roundFromRecord(record), nil
}

func (s *Store) ListRounds(ctx context.Context, storyID int64) ([]poker.Round, error) {
	var records []Round
	if err := s.db(ctx).Where("story_id = ?", storyID).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	rounds := make([]poker.Round, 0, len(records))
	for _, record := range records {
		rounds = append(rounds, *roundFromRecord(record))
	}
	return rounds, nil
}

func (s *Store) CompleteRound(ctx context.Context, roundID int64) (bool, error) {
	result := s.db(ctx).Model(&Round{}).
		Where("id = ? AND completed = ?", roundID, false).
		Update("completed", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete round: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	var count int64
	if err := s.db(ctx).Model(&Round{}).Where("id = ?", roundID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check round: %w", err)
	}
	if count == 0 {
		return false, notFound("round", roundID)
	}
	return false, nil
}

// GetOrCreateEstimate locks the round row so the insert cannot race a
// concurrent CompleteRound.
func (s *Store) GetOrCreateEstimate(ctx context.Context, estimate *poker.Estimate) (*poker.Estimate, bool, error) {
	var (
		stored  *poker.Estimate
		created bool
	)
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var round Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, estimate.RoundID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("round", estimate.RoundID)
			}
			return fmt.Errorf("failed to lock round: %w", err)
		}
		var existing Estimate
		err := tx.Where("round_id = ? AND user_id = ?", estimate.RoundID, estimate.User).First(&existing).Error
		if err == nil {
			stored = estimateFromRecord(existing)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to get estimate: %w", err)
		}
		if round.Completed {
			return fmt.Errorf("%w: round %d is completed", poker.ErrConflict, round.ID)
		}
		record := Estimate{
			RoundID:   estimate.RoundID,
			UserID:    estimate.User,
			Name:      estimate.Name,
			Card:      estimate.Card,
			CreatedAt: estimate.CreatedAt,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&record)
		if result.Error != nil {
			return fmt.Errorf("failed to insert estimate: %w", result.Error)
		}
		created = result.RowsAffected == 1
		if err := tx.Where("round_id = ? AND user_id = ?", estimate.RoundID, estimate.User).First(&existing).Error; err != nil {
			return fmt.Errorf("failed to read estimate: %w", err)
		}
		stored = estimateFromRecord(existing)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) GetEstimate(ctx context.Context, roundID int64, user string) (*poker.Estimate, error) {
	var record Estimate
	if err := s.db(ctx).Where("round_id = ? AND user_id = ?", roundID, user).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("estimate", user)
		}
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return estimateFromRecord(record), nil
}

func (s *Store) ListEstimates(ctx context.Context, roundID int64) ([]poker.Estimate, error) {
	var records []Estimate
	if err := s.db(ctx).Where("round_id = ?", roundID).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	estimates := make([]poker.Estimate, 0, len(records))
	for _, record := range records {
		estimates = append(estimates, *estimateFromRecord(record))
	}
	return estimates, nil
}

func (s *Store) GetOrCreateParticipant(ctx context.Context, participant *poker.Participant) (*poker.Participant, bool, error) {
	record := Participant{
		GameID:     participant.GameID,
		UserID:     participant.User,
		Name:       participant.Name,
		Photo:      participant.Photo,
		Observer:   participant.Observer,
		LastUpdate: timePtr(participant.LastUpdate),
		CreatedAt:  participant.CreatedAt,
	}
	result := s.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		if isForeignKeyViolation(result.Error) {
			return nil, false, notFound("game", participant.GameID)
		}
		return nil, false, fmt.Errorf("failed to insert participant: %w", result.Error)
	}
	stored, err := s.GetParticipant(ctx, participant.GameID, participant.User)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected == 1, nil
}

func (s *Store) GetParticipant(ctx context.Context, gameID int64, user string) (*poker.Participant, error) {
	var record Participant
	if err := s.db(ctx).Where("game_id = ? AND user_id = ?", gameID, user).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("participant", user)
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return participantFromRecord(record), nil
}

func (s *Store) ListParticipants(ctx context.Context, gameID int64) ([]poker.Participant, error) {
	var records []Participant
	if err := s.db(ctx).Where("game_id = ?", gameID).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	participants := make([]poker.Participant, 0, len(records))
	for _, record := range records {
		participants = append(participants, *participantFromRecord(record))
	}
	return participants, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, participant *poker.Participant) error {
	result := s.db(ctx).Model(&Participant{}).
		Where("game_id = ? AND user_id = ?", participant.GameID, participant.User).
		Updates(map[string]any{
			"name":     participant.Name,
			"photo":    participant.Photo,
			"observer": participant.Observer,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("participant", participant.User)
	}
	return nil
}

func (s *Store) TouchParticipant(ctx context.Context, gameID int64, user string, at time.Time) error {
	result := s.db(ctx).Model(&Participant{}).
		Where("game_id = ? AND user_id = ?", gameID, user).
		Update("last_update", at)
	if result.Error != nil {
		return fmt.Errorf("failed to touch participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("participant", user)
	}
	return nil
}

func (s *Store) DeleteParticipant(ctx context.Context, gameID int64, user string) error {
	result := s.db(ctx).Where("game_id = ? AND user_id = ?", gameID, user).Delete(&Participant{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("participant", user)
	}
	return nil
}

func (s *Store) RecordEvent(ctx context.Context, event poker.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	record := Event{
		GameID:    event.GameID,
		UserID:    event.User,
		Type:      event.Type,
		Payload:   datatypes.JSON(payload),
		CreatedAt: event.CreatedAt,
	}
	if err := s.db(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListEvents returns a game's audit trail in recording order.
func (s *Store) ListEvents(ctx context.Context, gameID int64) ([]poker.Event, error) {
	var records []Event
	if err := s.db(ctx).Where("game_id = ?", gameID).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]poker.Event, 0, len(records))
	for _, record := range records {
		payload := map[string]any{}
		if len(record.Payload) > 0 {
			if err := json.Unmarshal(record.Payload, &payload); err != nil {
				return nil, fmt.Errorf("failed to decode event payload: %w", err)
			}
		}
		events = append(events, poker.Event{
			GameID:    record.GameID,
			User:      record.UserID,
			Type:      record.Type,
			Payload:   payload,
			CreatedAt: record.CreatedAt,
		})
	}
	return events, nil
}

func gameFromRecord(record Game) *poker.Game {
	return &poker.Game{
		ID:             record.ID,
		Name:           record.Name,
		DeckID:         record.DeckID,
		Completed:      record.Completed,
		CurrentStoryID: record.CurrentStoryID,
		Owner:          record.OwnerID,
		CreatedAt:      record.CreatedAt,
	}
}

func storyFromRecord(record Story) *poker.Story {
	return &poker.Story{
		ID:        record.ID,
		GameID:    record.GameID,
		Name:      record.Name,
		Estimate:  record.Estimate,
		CreatedAt: record.CreatedAt,
	}
}

func roundFromRecord(record Round) *poker.Round {
	return &poker.Round{
		ID:        record.ID,
		StoryID:   record.StoryID,
		Completed: record.Completed,
		CreatedAt: record.CreatedAt,
	}
}

func estimateFromRecord(record Estimate) *poker.Estimate {
	return &poker.Estimate{
		RoundID:   record.RoundID,
		User:      record.UserID,
		Name:      record.Name,
		Card:      record.Card,
		CreatedAt: record.CreatedAt,
	}
}

func participantFromRecord(record Participant) *poker.Participant {
	participant := &poker.Participant{
		GameID:    record.GameID,
		User:      record.UserID,
		Name:      record.Name,
		Photo:     record.Photo,
		Observer:  record.Observer,
		CreatedAt: record.CreatedAt,
	}
	if record.LastUpdate != nil {
		participant.LastUpdate = *record.LastUpdate
	}
	return participant
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

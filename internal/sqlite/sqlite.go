// Package sqlite provides a SQLite-backed poker.Store for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"planning-poker/internal/poker"
)

var _ poker.Store = (*Store)(nil)

// Store implements poker.Store on one serialized SQLite connection.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions
	// from tripping over each other.
	db.SetMaxOpenConns(1)
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", poker.ErrNotFound, kind, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) CreateGame(ctx context.Context, game *poker.Game) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO games (name, deck, completed, current_story_id, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		game.Name, game.DeckID, game.Completed, nullableID(game.CurrentStoryID), game.Owner, toNanos(game.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	game.ID, err = res.LastInsertId()
	return err
}

const gameColumns = "id, name, deck, completed, current_story_id, owner_id, created_at"

func scanGame(row scanner) (*poker.Game, error) {
	var (
		game    poker.Game
		current sql.NullInt64
		created int64
	)
	if err := row.Scan(&game.ID, &game.Name, &game.DeckID, &game.Completed, &current, &game.Owner, &created); err != nil {
		return nil, err
	}
	if current.Valid {
		id := current.Int64
		game.CurrentStoryID = &id
	}
	game.CreatedAt = fromNanos(created)
	return &game, nil
}

func (s *Store) GetGame(ctx context.Context, id int64) (*poker.Game, error) {
	game, err := scanGame(s.db.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("game", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

func (s *Store) ListGamesByOwner(ctx context.Context, owner string) ([]poker.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE owner_id = ? ORDER BY created_at DESC, id DESC",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()
	games := make([]poker.Game, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *game)
	}
	return games, rows.Err()
}

func (s *Store) UpdateGame(ctx context.Context, game *poker.Game) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE games SET name = ?, completed = ?, current_story_id = ? WHERE id = ?",
		game.Name, game.Completed, nullableID(game.CurrentStoryID), game.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	return expectRow(res, "game", game.ID)
}

func (s *Store) DeleteGame(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		"DELETE FROM participants WHERE game_id = ?",
		"DELETE FROM estimates WHERE round_id IN (SELECT r.id FROM rounds r JOIN stories s ON s.id = r.story_id WHERE s.game_id = ?)",
		"DELETE FROM rounds WHERE story_id IN (SELECT id FROM stories WHERE game_id = ?)",
		"DELETE FROM stories WHERE game_id = ?",
		"DELETE FROM events WHERE game_id = ?",
	}
	for _, stmt := range steps {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete game tree: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if err := expectRow(res, "game", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) CreateStory(ctx context.Context, story *poker.Story) error {
	if _, err := s.GetGame(ctx, story.GameID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO stories (game_id, name, estimate, created_at) VALUES (?, ?, ?, ?)",
		story.GameID, story.Name, nullableInt(story.Estimate), toNanos(story.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}
	story.ID, err = res.LastInsertId()
	return err
}

const storyColumns = "id, game_id, name, estimate, created_at"

func scanStory(row scanner) (*poker.Story, error) {
	var (
		story    poker.Story
		estimate sql.NullInt64
		created  int64
	)
	if err := row.Scan(&story.ID, &story.GameID, &story.Name, &estimate, &created); err != nil {
		return nil, err
	}
	if estimate.Valid {
		value := int(estimate.Int64)
		story.Estimate = &value
	}
	story.CreatedAt = fromNanos(created)
	return &story, nil
}

func (s *Store) GetStory(ctx context.Context, gameID, storyID int64) (*poker.Story, error) {
	story, err := scanStory(s.db.QueryRowContext(ctx,
		"SELECT "+storyColumns+" FROM stories WHERE id = ? AND game_id = ?", storyID, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("story", storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return story, nil
}

func (s *Store) ListStories(ctx context.Context, gameID int64) ([]poker.Story, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+storyColumns+" FROM stories WHERE game_id = ? ORDER BY created_at, id", gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()
	stories := make([]poker.Story, 0)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, *story)
	}
	return stories, rows.Err()
}

func (s *Store) UpdateStory(ctx context.Context, story *poker.Story) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE stories SET name = ?, estimate = ? WHERE id = ? AND game_id = ?",
		story.Name, nullableInt(story.Estimate), story.ID, story.GameID,
	)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	return expectRow(res, "story", story.ID)
}

func (s *Store) CreateRound(ctx context.Context, round *poker.Round) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM stories WHERE id = ?", round.StoryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("story", round.StoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to check story: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO rounds (story_id, completed, created_at) VALUES (?, ?, ?)",
		round.StoryID, round.Completed, toNanos(round.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}
	round.ID, err = res.LastInsertId()
	return err
}

const roundColumns = "id, story_id, completed, created_at"

func scanRound(row scanner) (*poker.Round, error) {
	var (
		round   poker.Round
		created int64
	)
	if err := row.Scan(&round.ID, &round.StoryID, &round.Completed, &created); err != nil {
		return nil, err
	}
	round.CreatedAt = fromNanos(created)
	return &round, nil
}

func (s *Store) GetRound(ctx context.Context, storyID, roundID int64) (*poker.Round, error) {
	round, err := scanRound(s.db.QueryRowContext(ctx,
		"SELECT "+roundColumns+" FROM rounds WHERE id = ? AND story_id = ?", roundID, storyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("round", roundID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

func (s *Store) ListRounds(ctx context.Context, storyID int64) ([]poker.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+roundColumns+" FROM rounds WHERE story_id = ? ORDER BY created_at, id", storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()
	rounds := make([]poker.Round, 0)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, *round)
	}
	return rounds, rows.Err()
}

func (s *Store) CompleteRound(ctx context.Context, roundID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE rounds SET completed = 1 WHERE id = ? AND completed = 0", roundID)
	if err != nil {
		return false, fmt.Errorf("failed to complete round: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM rounds WHERE id = ?", roundID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("round", roundID)
	}
	return false, err
}

func (s *Store) GetOrCreateEstimate(ctx context.Context, estimate *poker.Estimate) (*poker.Estimate, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM rounds WHERE id = ?", estimate.RoundID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, notFound("round", estimate.RoundID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check round: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO estimates (round_id, user_id, name, card, created_at)
		SELECT ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM rounds WHERE id = ? AND completed = 0)
		ON CONFLICT (round_id, user_id) DO NOTHING`,
		estimate.RoundID, estimate.User, estimate.Name, estimate.Card, toNanos(estimate.CreatedAt),
		estimate.RoundID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert estimate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	stored, err := scanEstimate(tx.QueryRowContext(ctx,
		"SELECT "+estimateColumns+" FROM estimates WHERE round_id = ? AND user_id = ?", estimate.RoundID, estimate.User))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: round %d is completed", poker.ErrConflict, estimate.RoundID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read estimate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, affected == 1, nil
}

const estimateColumns = "round_id, user_id, name, card, created_at"

func scanEstimate(row scanner) (*poker.Estimate, error) {
	var (
		estimate poker.Estimate
		created  int64
	)
	if err := row.Scan(&estimate.RoundID, &estimate.User, &estimate.Name, &estimate.Card, &created); err != nil {
		return nil, err
	}
	estimate.CreatedAt = fromNanos(created)
	return &estimate, nil
}

func (s *Store) GetEstimate(ctx context.Context, roundID int64, user string) (*poker.Estimate, error) {
	estimate, err := scanEstimate(s.db.QueryRowContext(ctx,
		"SELECT "+estimateColumns+" FROM estimates WHERE round_id = ? AND user_id = ?", roundID, user))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("estimate", user)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return estimate, nil
}

func (s *Store) ListEstimates(ctx context.Context, roundID int64) ([]poker.Estimate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+estimateColumns+" FROM estimates WHERE round_id = ? ORDER BY created_at, id", roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()
	estimates := make([]poker.Estimate, 0)
	for rows.Next() {
		estimate, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, *estimate)
	}
	return estimates, rows.Err()
}

func (s *Store) GetOrCreateParticipant(ctx context.Context, participant *poker.Participant) (*poker.Participant, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM games WHERE id = ?", participant.GameID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, notFound("game", participant.GameID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check game: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO participants (game_id, user_id, name, photo, observer, last_update, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (game_id, user_id) DO NOTHING`,
		participant.GameID, participant.User, participant.Name, participant.Photo,
		participant.Observer, toNanos(participant.LastUpdate), toNanos(participant.CreatedAt),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	stored, err := scanParticipant(tx.QueryRowContext(ctx,
		"SELECT "+participantColumns+" FROM participants WHERE game_id = ? AND user_id = ?",
		participant.GameID, participant.User))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read participant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, affected == 1, nil
}

const participantColumns = "game_id, user_id, name, photo, observer, last_update, created_at"

func scanParticipant(row scanner) (*poker.Participant, error) {
	var (
		participant poker.Participant
		lastUpdate  int64
		created     int64
	)
	if err := row.Scan(&participant.GameID, &participant.User, &participant.Name, &participant.Photo,
		&participant.Observer, &lastUpdate, &created); err != nil {
		return nil, err
	}
	participant.LastUpdate = fromNanos(lastUpdate)
	participant.CreatedAt = fromNanos(created)
	return &participant, nil
}

func (s *Store) GetParticipant(ctx context.Context, gameID int64, user string) (*poker.Participant, error) {
	participant, err := scanParticipant(s.db.QueryRowContext(ctx,
		"SELECT "+participantColumns+" FROM participants WHERE game_id = ? AND user_id = ?", gameID, user))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("participant", user)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return participant, nil
}

func (s *Store) ListParticipants(ctx context.Context, gameID int64) ([]poker.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+participantColumns+" FROM participants WHERE game_id = ? ORDER BY created_at, id", gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()
	participants := make([]poker.Participant, 0)
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, *participant)
	}
	return participants, rows.Err()
}

func (s *Store) UpdateParticipant(ctx context.Context, participant *poker.Participant) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE participants SET name = ?, photo = ?, observer = ? WHERE game_id = ? AND user_id = ?",
		participant.Name, participant.Photo, participant.Observer, participant.GameID, participant.User,
	)
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return expectRow(res, "participant", participant.User)
}

func (s *Store) TouchParticipant(ctx context.Context, gameID int64, user string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE participants SET last_update = ? WHERE game_id = ? AND user_id = ?",
		toNanos(at), gameID, user,
	)
	if err != nil {
		return fmt.Errorf("failed to touch participant: %w", err)
	}
	return expectRow(res, "participant", user)
}

func (s *Store) DeleteParticipant(ctx context.Context, gameID int64, user string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM participants WHERE game_id = ? AND user_id = ?", gameID, user)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return expectRow(res, "participant", user)
}

func (s *Store) RecordEvent(ctx context.Context, event poker.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (game_id, user_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		event.GameID, event.User, event.Type, string(payload), toNanos(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, gameID int64) ([]poker.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT game_id, user_id, type, payload, created_at FROM events WHERE game_id = ? ORDER BY created_at, id", gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	events := make([]poker.Event, 0)
	for rows.Next() {
		var (
			event   poker.Event
			payload string
			created int64
		)
		if err := rows.Scan(&event.GameID, &event.User, &event.Type, &payload, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
		event.CreatedAt = fromNanos(created)
		events = append(events, event)
	}
	return events, rows.Err()
}

func expectRow(res sql.Result, kind string, id any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(kind, id)
	}
	return nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

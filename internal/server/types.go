package server

import (
	"strconv"
	"time"

	"planning-poker/internal/poker"
)

type createGameRequest struct {
	Name string `json:"name" binding:"required,gamename"`
	Deck int    `json:"deck" binding:"required,min=1"`
}

type startStoryRequest struct {
	Name string `json:"name" binding:"required,storyname"`
}

type cardRequest struct {
	Card *int `json:"card" binding:"required,min=0"`
}

type gameSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Deck      int       `json:"deck"`
	Completed bool      `json:"completed"`
	Owner     string    `json:"owner"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type storySummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type roundSummary struct {
	ID        int64  `json:"id"`
	Completed bool   `json:"completed"`
	URL       string `json:"url"`
}

type estimateSummary struct {
	RoundID int64  `json:"round_id"`
	User    string `json:"user"`
	Card    int    `json:"card"`
}

type participantSummary struct {
	User     string `json:"user"`
	Name     string `json:"name"`
	Photo    string `json:"photo"`
	Observer bool   `json:"observer"`
	URL      string `json:"url"`
}

type eventSummary struct {
	User      string         `json:"user"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func newGameSummary(game poker.Game) gameSummary {
	return gameSummary{
		ID:        game.ID,
		Name:      game.Name,
		Deck:      game.DeckID,
		Completed: game.Completed,
		Owner:     game.Owner,
		URL:       poker.GameURL(game.ID),
		CreatedAt: game.CreatedAt,
	}
}

func newParticipantSummary(participant poker.Participant) participantSummary {
	return participantSummary{
		User:     participant.User,
		Name:     participant.Name,
		Photo:    participant.Photo,
		Observer: participant.Observer,
		URL:      poker.ParticipantURL(participant.GameID, participant.User),
	}
}

// ownEstimates renders a round id to card map with string keys for JSON.
func ownEstimates(estimates map[int64]int) map[string]int {
	out := make(map[string]int, len(estimates))
	for roundID, card := range estimates {
		out[strconv.FormatInt(roundID, 10)] = card
	}
	return out
}

package poker

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
)

const storyLinkLimit = 80

var storyLinkPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

type GameMessage struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Deck         []string             `json:"deck"`
	Completed    bool                 `json:"completed"`
	Owner        string               `json:"owner"`
	URL          string               `json:"url"`
	CurrentStory *StoryMessage        `json:"current_story"`
	Participants []ParticipantMessage `json:"participants"`
	Stories      []StoryMessage       `json:"stories"`
}

type StoryMessage struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Estimate  *string        `json:"estimate"`
	URL       string         `json:"url"`
	IsCurrent bool           `json:"is_current"`
	Rounds    []RoundMessage `json:"rounds"`
}

type RoundMessage struct {
	ID        int64             `json:"id"`
	Completed bool              `json:"completed"`
	URL       string            `json:"url"`
	Estimates []EstimateMessage `json:"estimates"`
}

type EstimateMessage struct {
	User string  `json:"user"`
	Name string  `json:"name"`
	Card *string `json:"card"`
}

type ParticipantMessage struct {
	User     string `json:"user"`
	Name     string `json:"name"`
	Photo    string `json:"photo"`
	Observer bool   `json:"observer"`
	URL      string `json:"url"`
}

func buildSnapshot(ctx context.Context, store Store, gameID int64) (*GameMessage, error) {
	game, err := store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	deck := ResolveDeck(game.DeckID)
	msg := &GameMessage{
		ID:           game.ID,
		Name:         game.Name,
		Deck:         append([]string{}, deck...),
		Completed:    game.Completed,
		Owner:        game.Owner,
		URL:          GameURL(game.ID),
		Participants: []ParticipantMessage{},
		Stories:      []StoryMessage{},
	}

	participants, err := store.ListParticipants(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	for _, participant := range participants {
		msg.Participants = append(msg.Participants, ParticipantMessage{
			User:     participant.User,
			Name:     participantName(participant),
			Photo:    participant.Photo,
			Observer: participant.Observer,
			URL:      ParticipantURL(game.ID, participant.User),
		})
	}

	stories, err := store.ListStories(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	for _, story := range stories {
		storyMsg, err := buildStoryMessage(ctx, store, game, story)
		if err != nil {
			return nil, err
		}
		msg.Stories = append(msg.Stories, storyMsg)
		if storyMsg.IsCurrent {
			current := storyMsg
			msg.CurrentStory = &current
		}
	}
	return msg, nil
}

func buildStoryMessage(ctx context.Context, store Store, game *Game, story Story) (StoryMessage, error) {
	msg := StoryMessage{
		ID:        story.ID,
		Name:      storyDisplayName(story.Name),
		Estimate:  storyEstimateLabel(game.DeckID, story.Estimate),
		URL:       StoryURL(game.ID, story.ID),
		IsCurrent: game.IsCurrent(story.ID),
		Rounds:    []RoundMessage{},
	}
	if !msg.IsCurrent {
		return msg, nil
	}
	rounds, err := store.ListRounds(ctx, story.ID)
	if err != nil {
		return msg, fmt.Errorf("list rounds: %w", err)
	}
	for _, round := range rounds {
		estimates, err := store.ListEstimates(ctx, round.ID)
		if err != nil {
			return msg, fmt.Errorf("list estimates: %w", err)
		}
		roundMsg := RoundMessage{
			ID:        round.ID,
			Completed: round.Completed,
			URL:       RoundURL(game.ID, story.ID, round.ID),
			Estimates: make([]EstimateMessage, 0, len(estimates)),
		}
		for _, estimate := range estimates {
			roundMsg.Estimates = append(roundMsg.Estimates, EstimateMessage{
				User: estimate.User,
				Name: estimate.Name,
				Card: revealedCard(game.DeckID, round, estimate),
			})
		}
		msg.Rounds = append(msg.Rounds, roundMsg)
	}
	return msg, nil
}

// revealedCard hides every card of an open round.
func revealedCard(deckID int, round Round, estimate Estimate) *string {
	if !round.Completed {
		return nil
	}
	label, ok := CardLabel(deckID, estimate.Card)
	if !ok {
		return nil
	}
	return &label
}

func storyEstimateLabel(deckID int, estimate *int) *string {
	if estimate == nil {
		return nil
	}
	if *estimate == Skipped {
		label := SkippedLabel
		return &label
	}
	label, ok := CardLabel(deckID, *estimate)
	if !ok {
		return nil
	}
	return &label
}

func participantName(participant Participant) string {
	if participant.Name != "" {
		return participant.Name
	}
	return participant.User
}

// storyDisplayName escapes the name and turns http(s) URLs into links.
func storyDisplayName(name string) string {
	var b strings.Builder
	last := 0
	for _, loc := range storyLinkPattern.FindAllStringIndex(name, -1) {
		b.WriteString(html.EscapeString(name[last:loc[0]]))
		link := name[loc[0]:loc[1]]
		text := link
		if runes := []rune(text); len(runes) > storyLinkLimit {
			text = string(runes[:storyLinkLimit]) + "..."
		}
		fmt.Fprintf(&b, `<a href="%s" rel="noopener">%s</a>`, html.EscapeString(link), html.EscapeString(text))
		last = loc[1]
	}
	b.WriteString(html.EscapeString(name[last:]))
	return b.String()
}

func userEstimates(ctx context.Context, store Store, gameID int64, user string) (map[int64]int, error) {
	estimates := make(map[int64]int)
	if user == "" {
		return estimates, nil
	}
	stories, err := store.ListStories(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	for _, story := range stories {
		rounds, err := store.ListRounds(ctx, story.ID)
		if err != nil {
			return nil, fmt.Errorf("list rounds: %w", err)
		}
		for _, round := range rounds {
			estimate, err := store.GetEstimate(ctx, round.ID, user)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get estimate: %w", err)
			}
			estimates[round.ID] = estimate.Card
		}
	}
	return estimates, nil
}

package poker

import "time"

// Skipped is stored as a story estimate when the story was skipped
// instead of estimated.
const Skipped = -1

// SkippedLabel is the display value of a skipped story.
const SkippedLabel = "skipped"

// Identity is the resolved caller of a command.
type Identity struct {
	ID       string
	Name     string
	Nickname string
	Photo    string
}

// DisplayName is the best available human name for the identity.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.Nickname != "" {
		return i.Nickname
	}
	return i.ID
}

type Game struct {
	ID             int64
	Name           string
	DeckID         int
	Completed      bool
	CurrentStoryID *int64
	Owner          string
	CreatedAt      time.Time
}

// IsCurrent reports whether storyID is the game's current story.
func (g *Game) IsCurrent(storyID int64) bool {
	return g.CurrentStoryID != nil && *g.CurrentStoryID == storyID
}

type Story struct {
	ID     int64
	GameID int64
	Name   string
	// Estimate is nil while pending, Skipped when skipped, otherwise a deck index.
	Estimate  *int
	CreatedAt time.Time
}

type Round struct {
	ID        int64
	StoryID   int64
	Completed bool
	CreatedAt time.Time
}

type Estimate struct {
	RoundID   int64
	User      string
	Name      string
	Card      int
	CreatedAt time.Time
}

type Participant struct {
	GameID     int64
	User       string
	Name       string
	Photo      string
	Observer   bool
	LastUpdate time.Time
	CreatedAt  time.Time
}

// Event is an audit record of a successful command.
type Event struct {
	GameID    int64
	User      string
	Type      string
	Payload   map[string]any
	CreatedAt time.Time
}

func intPtr(v int) *int {
	return &v
}

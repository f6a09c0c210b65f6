package poker

import (
	"fmt"
	"net/url"
)

func GameURL(gameID int64) string {
	return fmt.Sprintf("/api/games/%d", gameID)
}

func StoryURL(gameID, storyID int64) string {
	return fmt.Sprintf("%s/stories/%d", GameURL(gameID), storyID)
}

func RoundURL(gameID, storyID, roundID int64) string {
	return fmt.Sprintf("%s/rounds/%d", StoryURL(gameID, storyID), roundID)
}

func ParticipantURL(gameID int64, user string) string {
	return fmt.Sprintf("%s/participants/%s", GameURL(gameID), url.PathEscape(user))
}

// ChannelKey is the push address of one participant.
func ChannelKey(gameID int64, user string) string {
	return fmt.Sprintf("game-%d/%s", gameID, user)
}

package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"planning-poker/internal/poker"
)

var (
	createGameMessages = bindMessages{
		"Name": {"required": "name is required", "gamename": "name is invalid"},
		"Deck": {"required": "deck is required", "min": "deck is invalid"},
	}
	startStoryMessages = bindMessages{
		"Name": {"required": "name is required", "storyname": "name is invalid"},
	}
	cardMessages = bindMessages{
		"Card": {"required": "card is required", "min": "card is invalid"},
	}
)

func (s *Server) handleDecks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"decks": poker.Decks()})
}

func (s *Server) handleListGames(c *gin.Context) {
	games, err := s.service.ListGames(c.Request.Context(), callerIdentity(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	page, perPage := parsePagination(c, defaultGamesPerPage, maxGamesPerPage)
	info, start, end := paginate(page, perPage, len(games))
	summaries := make([]gameSummary, 0, end-start)
	for _, game := range games[start:end] {
		summaries = append(summaries, newGameSummary(game))
	}
	c.JSON(http.StatusOK, gin.H{"games": summaries, "pagination": info})
}

func (s *Server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if !bindJSON(c, &req, createGameMessages, "invalid game") {
		return
	}
	name, _ := validateGameName(req.Name)
	game, err := s.service.CreateGame(c.Request.Context(), callerIdentity(c), name, req.Deck)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Header("Location", poker.GameURL(game.ID))
	c.JSON(http.StatusCreated, gin.H{"game": newGameSummary(*game)})
}

func (s *Server) handleGetGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	msg, estimates, err := s.service.View(c.Request.Context(), callerIdentity(c), uri.GameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": msg, "estimates": ownEstimates(estimates)})
}

func (s *Server) handleDeleteGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.service.DeleteGame(c.Request.Context(), callerIdentity(c), uri.GameID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListEvents(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	events, err := s.service.ListEvents(c.Request.Context(), callerIdentity(c), uri.GameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]eventSummary, 0, len(events))
	for _, event := range events {
		out = append(out, eventSummary{
			User:      event.User,
			Type:      event.Type,
			Payload:   event.Payload,
			CreatedAt: event.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (s *Server) handleJoin(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	caller := callerIdentity(c)
	participant, err := s.service.Join(c.Request.Context(), caller, uri.GameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant": newParticipantSummary(*participant),
		"channel":     poker.ChannelKey(uri.GameID, caller.ID),
		"websocket":   fmt.Sprintf("/ws/games/%d", uri.GameID),
	})
}

func (s *Server) handleOpened(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	estimates, err := s.service.Opened(c.Request.Context(), callerIdentity(c), uri.GameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"estimates": ownEstimates(estimates)})
}

func (s *Server) handleSetCompleted(completed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uri gameURI
		if !bindURI(c, &uri) {
			return
		}
		if err := s.service.SetCompleted(c.Request.Context(), callerIdentity(c), uri.GameID, completed); err != nil {
			writeServiceError(c, err)
			return
		}
		s.writeSnapshot(c, uri.GameID)
	}
}

func (s *Server) handleStartStory(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	var req startStoryRequest
	if !bindJSON(c, &req, startStoryMessages, "invalid story") {
		return
	}
	name, _ := validateStoryName(req.Name)
	story, err := s.service.StartStory(c.Request.Context(), callerIdentity(c), uri.GameID, name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	msg, err := s.service.Snapshot(c.Request.Context(), uri.GameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Header("Location", poker.StoryURL(uri.GameID, story.ID))
	c.JSON(http.StatusCreated, gin.H{
		"story": storySummary{ID: story.ID, Name: story.Name, URL: poker.StoryURL(uri.GameID, story.ID)},
		"game":  msg,
	})
}

func (s *Server) handleSkipStory(c *gin.Context) {
	var uri storyURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.service.SkipStory(c.Request.Context(), callerIdentity(c), uri.GameID, uri.StoryID); err != nil {
		writeServiceError(c, err)
		return
	}
	s.writeSnapshot(c, uri.GameID)
}

func (s *Server) handleCompleteStory(c *gin.Context) {
	var uri storyURI
	if !bindURI(c, &uri) {
		return
	}
	var req cardRequest
	if !bindJSON(c, &req, cardMessages, "invalid card") {
		return
	}
	if err := s.service.CompleteStory(c.Request.Context(), callerIdentity(c), uri.GameID, uri.StoryID, *req.Card); err != nil {
		writeServiceError(c, err)
		return
	}
	s.writeSnapshot(c, uri.GameID)
}

func (s *Server) handleNewRound(c *gin.Context) {
	var uri storyURI
	if !bindURI(c, &uri) {
		return
	}
	round, err := s.service.NewRound(c.Request.Context(), callerIdentity(c), uri.GameID, uri.StoryID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	roundURL := poker.RoundURL(uri.GameID, uri.StoryID, round.ID)
	c.Header("Location", roundURL)
	c.JSON(http.StatusCreated, gin.H{"round": roundSummary{ID: round.ID, Completed: round.Completed, URL: roundURL}})
}

func (s *Server) handleCompleteRound(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.service.CompleteRound(c.Request.Context(), callerIdentity(c), uri.GameID, uri.StoryID, uri.RoundID); err != nil {
		writeServiceError(c, err)
		return
	}
	s.writeSnapshot(c, uri.GameID)
}

func (s *Server) handleCastEstimate(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	var req cardRequest
	if !bindJSON(c, &req, cardMessages, "invalid card") {
		return
	}
	estimate, err := s.service.CastEstimate(c.Request.Context(), callerIdentity(c), uri.GameID, uri.StoryID, uri.RoundID, *req.Card)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"estimate": estimateSummary{
		RoundID: estimate.RoundID,
		User:    estimate.User,
		Card:    estimate.Card,
	}})
}

func (s *Server) handleSetObserver(observer bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uri participantURI
		if !bindURI(c, &uri) {
			return
		}
		if err := s.service.SetObserver(c.Request.Context(), callerIdentity(c), uri.GameID, uri.User, observer); err != nil {
			writeServiceError(c, err)
			return
		}
		s.writeSnapshot(c, uri.GameID)
	}
}

func (s *Server) handleRemoveParticipant(c *gin.Context) {
	var uri participantURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.service.RemoveParticipant(c.Request.Context(), callerIdentity(c), uri.GameID, uri.User); err != nil {
		writeServiceError(c, err)
		return
	}
	s.writeSnapshot(c, uri.GameID)
}

func (s *Server) writeSnapshot(c *gin.Context, gameID int64) {
	msg, err := s.service.Snapshot(c.Request.Context(), gameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": msg})
}

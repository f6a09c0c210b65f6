package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type bindMessages map[string]map[string]string

type gameURI struct {
	GameID int64 `uri:"game" binding:"required,min=1"`
}

type storyURI struct {
	GameID  int64 `uri:"game" binding:"required,min=1"`
	StoryID int64 `uri:"story" binding:"required,min=1"`
}

type roundURI struct {
	GameID  int64 `uri:"game" binding:"required,min=1"`
	StoryID int64 `uri:"story" binding:"required,min=1"`
	RoundID int64 `uri:"round" binding:"required,min=1"`
}

type participantURI struct {
	GameID int64  `uri:"game" binding:"required,min=1"`
	User   string `uri:"user" binding:"required"`
}

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"planning-poker/internal/poker"
)

// writeServiceError maps a poker error onto its HTTP status.
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, poker.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, poker.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, poker.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, poker.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request error", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

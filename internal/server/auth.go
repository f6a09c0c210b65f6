package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"planning-poker/internal/poker"
)

const identityKey = "identity"

// requireIdentity resolves the bearer token, or the token query parameter
// used by browsers opening a websocket, into the caller identity.
func (s *Server) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := s.tokens.Validate(bearerToken(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func callerIdentity(c *gin.Context) poker.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return poker.Identity{}
	}
	identity, _ := value.(poker.Identity)
	return identity
}

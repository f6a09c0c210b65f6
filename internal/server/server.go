package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"planning-poker/internal/auth"
	"planning-poker/internal/config"
	"planning-poker/internal/memstore"
	"planning-poker/internal/metrics"
	"planning-poker/internal/poker"
)

const tokenDuration = 24 * time.Hour

type Server struct {
	service  *poker.Service
	ws       *wsHub
	tokens   *auth.Manager
	metrics  *metrics.Collector
	cfg      config.Config
	upgrader websocket.Upgrader
}

// New wires the game service to the websocket hub. A nil store runs the
// server in memory.
func New(store poker.Store, cfg config.Config) *Server {
	if store == nil {
		store = memstore.New()
	}
	registerValidators()
	hub := newWSHub()
	collector := metrics.New()
	service := poker.NewService(store, hub, poker.Options{
		QuietInterval: cfg.QuietInterval,
		Recorder:      collector,
	})
	return &Server{
		service:  service,
		ws:       hub,
		tokens:   auth.NewManager(cfg.JWTSecret, tokenDuration),
		metrics:  collector,
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: allowAnyOrigin},
	}
}

func allowAnyOrigin(*http.Request) bool {
	return true
}

// Tokens exposes the signer so the embedding process can mint tokens.
func (s *Server) Tokens() *auth.Manager {
	return s.tokens
}

func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(s.requestLogger(), gin.Recovery(), cors.New(s.corsConfig()))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api", s.requireIdentity())
	api.GET("/decks", s.handleDecks)
	api.GET("/games", s.handleListGames)
	api.POST("/games", s.handleCreateGame)
	api.GET("/games/:game", s.handleGetGame)
	api.DELETE("/games/:game", s.handleDeleteGame)
	api.GET("/games/:game/events", s.handleListEvents)
	api.POST("/games/:game/join", s.handleJoin)
	api.POST("/games/:game/opened", s.handleOpened)
	api.POST("/games/:game/complete", s.handleSetCompleted(true))
	api.POST("/games/:game/reopen", s.handleSetCompleted(false))
	api.POST("/games/:game/stories", s.handleStartStory)
	api.POST("/games/:game/stories/:story/skip", s.handleSkipStory)
	api.POST("/games/:game/stories/:story/complete", s.handleCompleteStory)
	api.POST("/games/:game/stories/:story/rounds", s.handleNewRound)
	api.POST("/games/:game/stories/:story/rounds/:round/complete", s.handleCompleteRound)
	api.POST("/games/:game/stories/:story/rounds/:round/estimate", s.handleCastEstimate)
	api.POST("/games/:game/participants/:user/observer", s.handleSetObserver(true))
	api.POST("/games/:game/participants/:user/player", s.handleSetObserver(false))
	api.DELETE("/games/:game/participants/:user", s.handleRemoveParticipant)

	router.GET("/ws/games/:game", s.requireIdentity(), s.handleWebsocket)
	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	return cfg
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

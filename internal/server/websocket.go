package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"planning-poker/internal/poker"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// wsClient owns one socket. Only writeLoop writes to conn; pushes go
// through the bounded send queue.
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue reports false when the client is closed or its buffer is full.
func (c *wsClient) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) writeLoop(onError func()) {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				onError()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// wsHub holds the open sockets of every participant channel. One user may
// have several tabs open on the same channel.
type wsHub struct {
	mu       sync.Mutex
	channels map[string]map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		channels: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *wsHub) Add(key string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.channels[key]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.channels[key] = group
	}
	group[client] = struct{}{}
}

func (h *wsHub) Remove(key string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.channels[key]
	if group == nil {
		return
	}
	if _, ok := group[client]; !ok {
		return
	}
	delete(group, client)
	client.close()
	if len(group) == 0 {
		delete(h.channels, key)
	}
}

func (h *wsHub) Count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[key])
}

// Push queues payload on every socket of the channel. A channel without
// sockets is not an error; sockets that cannot keep up are dropped.
func (h *wsHub) Push(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	group := h.channels[key]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	var errs []error
	for _, client := range clients {
		if !client.enqueue(payload) {
			h.Remove(key, client)
			errs = append(errs, fmt.Errorf("push %s: client not keeping up", key))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleWebsocket(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	caller := callerIdentity(c)
	msg, _, err := s.service.View(c.Request.Context(), caller, uri.GameID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	key := poker.ChannelKey(uri.GameID, caller.ID)
	client := newWSClient(conn)
	slog.Info("ws connected", "game_id", uri.GameID, "user_id", caller.ID, "remote", c.Request.RemoteAddr)
	client.enqueue(data)
	s.ws.Add(key, client)
	go client.writeLoop(func() {
		s.ws.Remove(key, client)
	})
	go s.readWS(key, client)
}

func (s *Server) readWS(key string, client *wsClient) {
	defer s.ws.Remove(key, client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			slog.Debug("ws disconnected", "channel", key, "error", err)
			return
		}
	}
}

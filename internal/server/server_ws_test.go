package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebsocketRequiresToken(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)
	gameID := createGame(t, ts, owner, "Sprint 20", 1)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, gameID, ""), nil)
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestWebsocketReceivesThrottledSnapshots(t *testing.T) {
	cfg := testConfig()
	cfg.QuietInterval = time.Minute
	srv := New(nil, cfg)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	owner := tokenFor(t, srv, testOwner)
	ada := tokenFor(t, srv, testAda)

	gameID := createGame(t, ts, owner, "Sprint 21", 1)
	joinGame(t, ts, owner, gameID)
	joinGame(t, ts, ada, gameID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, gameID, owner), nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	defer conn.Close()

	initial := readWSSnapshot(t, conn, 5*time.Second)
	if len(initial["participants"].([]any)) != 2 {
		t.Fatalf("expected 2 participants, got %v", initial["participants"])
	}

	storyID, roundID := startStory(t, ts, owner, gameID, "Onboarding")
	started := readWSSnapshot(t, conn, 5*time.Second)
	current, ok := started["current_story"].(map[string]any)
	if !ok || current["name"] != "Onboarding" {
		t.Fatalf("expected current story Onboarding, got %v", started["current_story"])
	}

	resp := doRequest(t, ts, http.MethodPost, roundPath(gameID, storyID, roundID)+"/estimate", ada, map[string]int{"card": 1})
	assertStatus(t, resp, http.StatusOK)

	resp = doRequest(t, ts, http.MethodPost, roundPath(gameID, storyID, roundID)+"/estimate", owner, map[string]int{"card": 2})
	assertStatus(t, resp, http.StatusOK)
	completed := readWSSnapshot(t, conn, 5*time.Second)
	round := completed["current_story"].(map[string]any)["rounds"].([]any)[0].(map[string]any)
	if round["completed"] != true {
		t.Fatalf("expected completed round in pushed snapshot, got %v", round)
	}
	expectNoWSMessage(t, conn, 350*time.Millisecond)
}

func TestHubPushWithoutSockets(t *testing.T) {
	hub := newWSHub()
	if err := hub.Push(context.Background(), "game-1/ada", []byte(`{}`)); err != nil {
		t.Fatalf("expected nil error for empty channel, got %v", err)
	}
	if hub.Count("game-1/ada") != 0 {
		t.Fatalf("expected no sockets")
	}
}

func TestHubDropsStalledClient(t *testing.T) {
	hub := newWSHub()
	stalled := newWSClient(nil)
	hub.Add("game-1/ada", stalled)

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i <= sendBuffer; i++ {
			if err = hub.Push(context.Background(), "game-1/ada", []byte(`{}`)); err != nil {
				break
			}
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error once the send queue is full")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected pushes to a stalled client not to block")
	}
	if hub.Count("game-1/ada") != 0 {
		t.Fatalf("expected stalled client dropped")
	}
	if stalled.enqueue([]byte(`{}`)) {
		t.Fatalf("expected closed client to refuse payloads")
	}
}

func wsURL(base string, gameID int64, token string) string {
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws" + strings.TrimPrefix(gamePath(gameID), "/api")
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func readWSSnapshot(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		t.Fatalf("decode websocket message: %v", err)
	}
	if _, ok := snapshot["participants"]; !ok {
		t.Fatalf("expected game snapshot, got %s", payload)
	}
	return snapshot
}

func expectNoWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no websocket message within %s", timeout)
	} else {
		netErr, ok := err.(net.Error)
		if !ok || !netErr.Timeout() {
			t.Fatalf("expected websocket timeout, got %v", err)
		}
	}
}

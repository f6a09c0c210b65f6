package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func createGame(t *testing.T, ts *httptest.Server, token, name string, deck int) int64 {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", token, map[string]any{
		"name": name,
		"deck": deck,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	game := body["game"].(map[string]any)
	return int64(game["id"].(float64))
}

func joinGame(t *testing.T, ts *httptest.Server, token string, gameID int64) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/join", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

// startStory returns the story id and the id of its first round.
func startStory(t *testing.T, ts *httptest.Server, token string, gameID int64, name string) (int64, int64) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/stories", token, map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	story := body["story"].(map[string]any)
	game := body["game"].(map[string]any)
	current := game["current_story"].(map[string]any)
	rounds := current["rounds"].([]any)
	if len(rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(rounds))
	}
	round := rounds[0].(map[string]any)
	return int64(story["id"].(float64)), int64(round["id"].(float64))
}

func fetchGame(t *testing.T, ts *httptest.Server, token string, gameID int64) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, gamePath(gameID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func gamePath(gameID int64) string {
	return "/api/games/" + strconv.FormatInt(gameID, 10)
}

func roundPath(gameID, storyID, roundID int64) string {
	return gamePath(gameID) + "/stories/" + strconv.FormatInt(storyID, 10) + "/rounds/" + strconv.FormatInt(roundID, 10)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func assertString(t *testing.T, value any) {
	t.Helper()
	if _, ok := value.(string); !ok {
		t.Fatalf("expected string, got %T", value)
	}
}

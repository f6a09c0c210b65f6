package server

import (
	"net/http"
	"strconv"
	"testing"
)

func TestPlanningPokerFlow(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)
	ada := tokenFor(t, srv, testAda)

	gameID := createGame(t, ts, owner, "Sprint 12", 1)
	joined := joinGame(t, ts, ada, gameID)
	participant := joined["participant"].(map[string]any)
	if participant["user"] != "ada" {
		t.Fatalf("expected participant ada, got %v", participant["user"])
	}
	if joined["channel"] != "game-"+strconv.FormatInt(gameID, 10)+"/ada" {
		t.Fatalf("unexpected channel %v", joined["channel"])
	}
	assertString(t, joined["websocket"])

	storyID, roundID := startStory(t, ts, owner, gameID, "Login page")

	resp := doRequest(t, ts, http.MethodPost, roundPath(gameID, storyID, roundID)+"/estimate", ada, map[string]int{"card": 3})
	assertStatus(t, resp, http.StatusOK)
	estimate := decodeBody(t, resp)["estimate"].(map[string]any)
	if estimate["card"].(float64) != 3 {
		t.Fatalf("expected card 3, got %v", estimate["card"])
	}

	body := fetchGame(t, ts, ada, gameID)
	own := body["estimates"].(map[string]any)
	if own[strconv.FormatInt(roundID, 10)].(float64) != 3 {
		t.Fatalf("expected own estimate 3, got %v", own)
	}
	game := body["game"].(map[string]any)
	current := game["current_story"].(map[string]any)
	round := current["rounds"].([]any)[0].(map[string]any)
	if round["completed"] != true {
		t.Fatalf("expected round completed by quorum")
	}
	cards := round["estimates"].([]any)
	if len(cards) != 1 || cards[0].(map[string]any)["card"] != "5" {
		t.Fatalf("expected revealed card 5, got %v", cards)
	}

	resp = doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/stories/"+strconv.FormatInt(storyID, 10)+"/complete", owner, map[string]int{"card": 4})
	assertStatus(t, resp, http.StatusOK)
	game = decodeBody(t, resp)["game"].(map[string]any)
	if game["current_story"] != nil {
		t.Fatalf("expected no current story, got %v", game["current_story"])
	}
	stories := game["stories"].([]any)
	if len(stories) != 1 || stories[0].(map[string]any)["estimate"] != "8" {
		t.Fatalf("expected story estimate 8, got %v", stories)
	}

	resp = doRequest(t, ts, http.MethodGet, "/api/games", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	games := decodeBody(t, resp)["games"].([]any)
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}
}

func TestNewRoundAndSkip(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)

	gameID := createGame(t, ts, owner, "Sprint 13", 2)
	storyID, roundID := startStory(t, ts, owner, gameID, "Search")
	storyPath := gamePath(gameID) + "/stories/" + strconv.FormatInt(storyID, 10)

	resp := doRequest(t, ts, http.MethodPost, storyPath+"/rounds", owner, nil)
	assertStatus(t, resp, http.StatusCreated)
	round := decodeBody(t, resp)["round"].(map[string]any)
	if int64(round["id"].(float64)) == roundID {
		t.Fatalf("expected a fresh round")
	}
	if round["completed"] != false {
		t.Fatalf("expected new round open")
	}
	assertString(t, round["url"])

	resp = doRequest(t, ts, http.MethodPost, storyPath+"/skip", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	game := decodeBody(t, resp)["game"].(map[string]any)
	stories := game["stories"].([]any)
	if stories[0].(map[string]any)["estimate"] != "skipped" {
		t.Fatalf("expected skipped story, got %v", stories[0])
	}
}

func TestCloseAndReopenGame(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)

	gameID := createGame(t, ts, owner, "Sprint 14", 3)
	startStory(t, ts, owner, gameID, "Checkout")

	resp := doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/complete", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	game := decodeBody(t, resp)["game"].(map[string]any)
	if game["completed"] != true || game["current_story"] != nil {
		t.Fatalf("expected closed game without current story, got %v", game)
	}

	resp = doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/stories", owner, map[string]string{"name": "Late"})
	assertStatus(t, resp, http.StatusConflict)

	resp = doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/reopen", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	game = decodeBody(t, resp)["game"].(map[string]any)
	if game["completed"] != false {
		t.Fatalf("expected reopened game")
	}
	startStory(t, ts, owner, gameID, "Late")
}

func TestParticipantCommands(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)
	ada := tokenFor(t, srv, testAda)
	bob := tokenFor(t, srv, testBob)

	gameID := createGame(t, ts, owner, "Sprint 15", 1)
	joinGame(t, ts, owner, gameID)
	joinGame(t, ts, ada, gameID)
	joinGame(t, ts, bob, gameID)

	resp := doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/participants/ada/observer", bob, nil)
	assertStatus(t, resp, http.StatusForbidden)

	resp = doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/participants/ada/observer", ada, nil)
	assertStatus(t, resp, http.StatusOK)
	game := decodeBody(t, resp)["game"].(map[string]any)
	for _, raw := range game["participants"].([]any) {
		p := raw.(map[string]any)
		if p["user"] == "ada" && p["observer"] != true {
			t.Fatalf("expected ada to observe, got %v", p)
		}
	}

	resp = doRequest(t, ts, http.MethodPost, gamePath(gameID)+"/participants/ada/player", owner, nil)
	assertStatus(t, resp, http.StatusOK)

	resp = doRequest(t, ts, http.MethodDelete, gamePath(gameID)+"/participants/owner", owner, nil)
	assertStatus(t, resp, http.StatusConflict)

	resp = doRequest(t, ts, http.MethodDelete, gamePath(gameID)+"/participants/bob", ada, nil)
	assertStatus(t, resp, http.StatusForbidden)

	resp = doRequest(t, ts, http.MethodDelete, gamePath(gameID)+"/participants/bob", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	game = decodeBody(t, resp)["game"].(map[string]any)
	if len(game["participants"].([]any)) != 2 {
		t.Fatalf("expected 2 participants, got %v", game["participants"])
	}
}

func TestDeleteGameAndEvents(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)
	ada := tokenFor(t, srv, testAda)

	gameID := createGame(t, ts, owner, "Sprint 16", 1)
	joinGame(t, ts, ada, gameID)

	resp := doRequest(t, ts, http.MethodGet, gamePath(gameID)+"/events", ada, nil)
	assertStatus(t, resp, http.StatusForbidden)

	resp = doRequest(t, ts, http.MethodGet, gamePath(gameID)+"/events", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	events := decodeBody(t, resp)["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].(map[string]any)["type"] != "game_created" {
		t.Fatalf("expected game_created first, got %v", events[0])
	}
	if events[1].(map[string]any)["type"] != "participant_joined" {
		t.Fatalf("expected participant_joined second, got %v", events[1])
	}

	resp = doRequest(t, ts, http.MethodDelete, gamePath(gameID), ada, nil)
	assertStatus(t, resp, http.StatusForbidden)

	resp = doRequest(t, ts, http.MethodDelete, gamePath(gameID), owner, nil)
	assertStatus(t, resp, http.StatusNoContent)

	resp = doRequest(t, ts, http.MethodGet, gamePath(gameID), owner, nil)
	assertStatus(t, resp, http.StatusNotFound)
}

package server

import (
	"net/http"
	"strconv"
	"testing"
)

func TestPaginate(t *testing.T) {
	info, start, end := paginate(2, 2, 5)
	if start != 2 || end != 4 {
		t.Fatalf("expected bounds 2..4, got %d..%d", start, end)
	}
	if info.TotalPages != 3 || !info.HasPrev || !info.HasNext {
		t.Fatalf("unexpected page info %+v", info)
	}

	info, start, end = paginate(9, 2, 5)
	if info.Page != 3 || start != 4 || end != 5 {
		t.Fatalf("expected last page clamp, got %+v %d..%d", info, start, end)
	}

	info, start, end = paginate(1, 20, 0)
	if info.TotalPages != 1 || start != 0 || end != 0 {
		t.Fatalf("expected single empty page, got %+v %d..%d", info, start, end)
	}
}

func TestListGamesPagination(t *testing.T) {
	srv, ts := startServer(t)
	owner := tokenFor(t, srv, testOwner)
	for i := 1; i <= 3; i++ {
		createGame(t, ts, owner, "Sprint "+strconv.Itoa(i), 1)
	}

	resp := doRequest(t, ts, http.MethodGet, "/api/games?page=2&per_page=2", owner, nil)
	assertStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	games := body["games"].([]any)
	if len(games) != 1 {
		t.Fatalf("expected 1 game on page 2, got %d", len(games))
	}
	if games[0].(map[string]any)["name"] != "Sprint 1" {
		t.Fatalf("expected oldest game last, got %v", games[0])
	}
	pagination := body["pagination"].(map[string]any)
	if pagination["total"].(float64) != 3 || pagination["has_next"] != false {
		t.Fatalf("unexpected pagination %v", pagination)
	}
}

package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"planning-poker/internal/config"
	"planning-poker/internal/poker"
)

var (
	testOwner = poker.Identity{ID: "owner", Name: "Olive"}
	testAda   = poker.Identity{ID: "ada", Name: "Ada", Photo: "https://example.com/ada.png"}
	testBob   = poker.Identity{ID: "bob", Nickname: "bobby"}
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	return cfg
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func startServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(nil, testConfig())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func tokenFor(t *testing.T, srv *Server, identity poker.Identity) string {
	t.Helper()
	token, err := srv.Tokens().Generate(identity)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

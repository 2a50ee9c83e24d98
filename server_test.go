package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"

	"agentarena/pkg/config"
	"agentarena/pkg/registry"
	"agentarena/pkg/sim"
	"agentarena/pkg/wire"
)

func setupTestServer(t *testing.T, adminToken string) (http.Handler, *sim.Hub) {
	t.Helper()
	InfoLog = log.New(io.Discard, "", 0)
	ErrorLog = log.New(io.Discard, "", 0)

	reg := registry.New(t.TempDir(), t.Logf)
	hub := sim.New(sim.Options{
		RoomID:   "room-http",
		RoomName: "Router Test",
		Capacity: 8,
		Registry: reg,
	})
	cfg := &config.Config{
		PublicURL:  "http://arena.test",
		AdminToken: adminToken,
	}
	return buildRouter(hub, cfg), hub
}

// addrSeq hands every test its own client IP so the per-IP limiter in
// one test cannot starve another.
var addrSeq int64

func testAddr() string {
	return fmt.Sprintf("198.51.100.%d:4000", atomic.AddInt64(&addrSeq, 1))
}

func executeRequest(handler http.Handler, method, path, addr, token string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = addr
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router, hub := setupTestServer(t, "")
	addr := testAddr()

	rr := executeRequest(router, http.MethodGet, "/healthz", addr, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS header on every response, got %q", got)
	}

	var body struct {
		OK     bool   `json:"ok"`
		RoomID string `json:"roomId"`
		Tick   int64  `json:"tick"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !body.OK || body.RoomID != "room-http" {
		t.Errorf("unexpected health body: %+v", body)
	}

	hub.Step()
	rr = executeRequest(router, http.MethodGet, "/healthz", addr, "", nil)
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Tick != 1 {
		t.Errorf("expected tick 1 after one step, got %d", body.Tick)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestServer(t, "")

	rr := executeRequest(router, http.MethodGet, "/metrics", testAddr(), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "arena_agents_active") {
		t.Error("expected arena gauges in the metrics exposition")
	}
}

func TestCORSPreflightSkipsAuth(t *testing.T) {
	router, _ := setupTestServer(t, "secret-token")

	// Browsers preflight without credentials; the admin gate must not
	// apply to OPTIONS.
	rr := executeRequest(router, http.MethodOptions, "/admin/status", testAddr(), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Admin-Token") {
		t.Errorf("preflight must allow the admin header, got %q", got)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	router, _ := setupTestServer(t, "")

	rr := executeRequest(router, http.MethodGet, "/admin/status", testAddr(), "anything", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when no admin_token is configured, got %d", rr.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	router, _ := setupTestServer(t, "secret-token")
	addr := testAddr()

	// 1. No token.
	rr := executeRequest(router, http.MethodGet, "/admin/status", addr, "", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 without token, got %d", rr.Code)
	}

	// 2. Wrong token.
	rr = executeRequest(router, http.MethodGet, "/admin/status", addr, "not-the-token", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong token, got %d", rr.Code)
	}

	// 3. Right token.
	rr = executeRequest(router, http.MethodGet, "/admin/status", addr, "secret-token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	var st sim.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Room.RoomID != "room-http" {
		t.Errorf("expected status for room-http, got %q", st.Room.RoomID)
	}
}

func TestAdminSurvivalLifecycle(t *testing.T) {
	router, _ := setupTestServer(t, "secret-token")
	addr := testAddr()

	// 1. Start a round with a prize pool.
	rr := executeRequest(router, http.MethodPost, "/admin/survival/start", addr, "secret-token",
		map[string]any{"durationMs": 0, "prizePoolUsd": 500})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var reply survivalReply
	if err := json.Unmarshal(rr.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode survival reply: %v", err)
	}
	if reply.Survival.Status != wire.SurvivalActive {
		t.Errorf("expected active round, got %q", reply.Survival.Status)
	}
	if reply.Survival.PrizePoolUsd != 500 {
		t.Errorf("expected prize pool 500, got %v", reply.Survival.PrizePoolUsd)
	}

	// 2. Force the timer end.
	rr = executeRequest(router, http.MethodPost, "/admin/survival/end", addr, "secret-token", nil)
	json.Unmarshal(rr.Body.Bytes(), &reply)
	if reply.Survival.Status != wire.SurvivalTimerEnded {
		t.Errorf("expected timer_ended, got %q", reply.Survival.Status)
	}

	// 3. Reset back to waiting.
	rr = executeRequest(router, http.MethodPost, "/admin/survival/reset", addr, "secret-token", nil)
	json.Unmarshal(rr.Body.Bytes(), &reply)
	if reply.Survival.Status != wire.SurvivalWaiting {
		t.Errorf("expected waiting after reset, got %q", reply.Survival.Status)
	}
}

func TestAdminPhaseEndpoint(t *testing.T) {
	router, _ := setupTestServer(t, "secret-token")
	addr := testAddr()

	rr := executeRequest(router, http.MethodPost, "/admin/phase", addr, "secret-token",
		map[string]any{"phase": "afterparty"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown phase, got %d", rr.Code)
	}

	rr = executeRequest(router, http.MethodPost, "/admin/phase", addr, "secret-token",
		map[string]any{"phase": "battle"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var reply struct {
		OK    bool            `json:"ok"`
		Phase wire.PhaseState `json:"phase"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode phase reply: %v", err)
	}
	if reply.Phase.Phase != "battle" {
		t.Errorf("expected battle phase, got %q", reply.Phase.Phase)
	}
}

func TestAdminBanEndpoint(t *testing.T) {
	router, hub := setupTestServer(t, "secret-token")
	addr := testAddr()

	// 1. agentId is required.
	rr := executeRequest(router, http.MethodPost, "/admin/ban", addr, "secret-token",
		map[string]any{"banned": true})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without agentId, got %d", rr.Code)
	}

	// 2. Ban blocks registration.
	rr = executeRequest(router, http.MethodPost, "/admin/ban", addr, "secret-token",
		map[string]any{"agentId": "grim", "banned": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	profile := &wire.ProfileUpdate{WalletAddress: "router-wallet-grim-00"}
	if _, cmdErr := hub.Register("grim", profile, nil, nil, nil, nil); cmdErr == nil || cmdErr.Token != wire.ErrAgentBanned {
		t.Errorf("expected banned rejection, got %v", cmdErr)
	}

	// 3. Unban restores access.
	executeRequest(router, http.MethodPost, "/admin/ban", addr, "secret-token",
		map[string]any{"agentId": "grim", "banned": false})
	if _, cmdErr := hub.Register("grim", profile, nil, nil, nil, nil); cmdErr != nil {
		t.Errorf("expected registration after unban, got %v", cmdErr)
	}
}

func TestAdminReviveEndpoint(t *testing.T) {
	router, _ := setupTestServer(t, "secret-token")

	rr := executeRequest(router, http.MethodPost, "/admin/revive", testAddr(), "secret-token",
		map[string]any{"agentId": "nobody-home"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var reply struct {
		OK      bool `json:"ok"`
		Revived bool `json:"revived"`
	}
	json.Unmarshal(rr.Body.Bytes(), &reply)
	if !reply.OK || reply.Revived {
		t.Errorf("expected ok with revived=false for unknown agent, got %+v", reply)
	}
}

func TestIPCRoutedThroughRouter(t *testing.T) {
	router, _ := setupTestServer(t, "")

	rr := executeRequest(router, http.MethodPost, "/ipc", testAddr(), "",
		map[string]any{"command": "describe"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode describe: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("expected ok describe response, got %v", body)
	}
}

func TestWebSocketRouteRequiresGet(t *testing.T) {
	router, _ := setupTestServer(t, "")

	rr := executeRequest(router, http.MethodPost, "/ws", testAddr(), "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /ws, got %d", rr.Code)
	}
}

func TestPerIPRateLimit(t *testing.T) {
	router, _ := setupTestServer(t, "")
	flooder := testAddr()

	limited := 0
	for i := 0; i < 25; i++ {
		rr := executeRequest(router, http.MethodGet, "/healthz", flooder, "", nil)
		if i == 0 && rr.Code != http.StatusOK {
			t.Fatalf("first request should pass, got %d", rr.Code)
		}
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected the flood to trip the per-IP limiter")
	}

	// A different address is unaffected.
	rr := executeRequest(router, http.MethodGet, "/healthz", testAddr(), "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected other clients to pass, got %d", rr.Code)
	}
}

func TestGuessPublicURL(t *testing.T) {
	if got := guessPublicURL(":8080"); got != "http://localhost:8080" {
		t.Errorf("bare port: got %q", got)
	}
	if got := guessPublicURL("10.0.0.5:9000"); got != "http://10.0.0.5:9000" {
		t.Errorf("host and port: got %q", got)
	}
}

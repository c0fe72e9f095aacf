package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provably-fair-backend/internal/handlers"
	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/services"
	"provably-fair-backend/internal/storage/memory"
)

type testServer struct {
	router   *gin.Engine
	operator string
	player   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := sl.Discard()
	store := memory.New()
	signer, err := services.NewSigner("")
	require.NoError(t, err)
	tokens := services.NewJWTService("test-secret")

	audit := services.NewAuditTrail(store, log, 0)
	seeds := services.NewSeedService(store, audit, log, time.Hour)
	ledger := services.NewRoundLedger(seeds, store, signer, audit, log, false)
	verifier := services.NewVerifier(seeds, store, signer, audit, log)

	ws := handlers.NewWebSocketHandler(log)
	audit.SetBroadcaster(ws)

	router := handlers.NewRouter(handlers.RouterConfig{
		Fairness:  handlers.NewFairnessHandler(seeds, ledger, verifier, audit, signer, store, log),
		WebSocket: ws,
		Tokens:    tokens,
	})

	operator, err := tokens.GenerateToken("op-1", services.RoleOperator, time.Hour)
	require.NoError(t, err)
	player, err := tokens.GenerateToken("player-1", services.RolePlayer, time.Hour)
	require.NoError(t, err)

	return &testServer{router: router, operator: operator, player: player}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (s *testServer) createSeed(t *testing.T) (string, string) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/seeds", s.operator, nil)
	require.Equal(t, http.StatusCreated, code, body)
	return body["seed_id"].(string), body["commitment_hash"].(string)
}

func TestFairnessFlow(t *testing.T) {
	s := newTestServer(t)
	seedID, commitment := s.createSeed(t)

	code, body := s.do(t, http.MethodGet, "/api/seeds/"+seedID+"/commitment", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, commitment, body["commitment_hash"])

	round := map[string]any{
		"seed_id":     seedID,
		"client_seed": "lucky",
		"nonce":       1,
		"game_tag":    "minesweeper",
		"config":      map[string]any{"width": 5, "height": 5, "mine_count": 5},
	}
	code, body = s.do(t, http.MethodPost, "/api/rounds", "", round)
	require.Equal(t, http.StatusCreated, code, body)
	played := body["round"].(map[string]any)
	mines := played["result"].(map[string]any)["minesweeper"].(map[string]any)
	assert.Nil(t, mines["mines"], "mine positions are hidden before reveal")
	resultHash := played["result_hash"].(string)
	roundID := played["round_id"].(string)

	code, body = s.do(t, http.MethodPost, "/api/rounds", s.operator, round)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["replayed"])
	replayed := body["round"].(map[string]any)
	assert.Equal(t, roundID, replayed["round_id"])
	assert.Len(t, replayed["result"].(map[string]any)["minesweeper"].(map[string]any)["mines"], 5)

	verify := map[string]any{
		"seed_id":      seedID,
		"client_seed":  "lucky",
		"nonce":        1,
		"game_tag":     "minesweeper",
		"config":       map[string]any{"width": 5, "height": 5, "mine_count": 5},
		"claimed_hash": resultHash,
	}
	code, body = s.do(t, http.MethodPost, "/api/verify", "", verify)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NOT_REVEALED", body["code"])

	code, body = s.do(t, http.MethodPost, "/api/seeds/"+seedID+"/reveal", s.operator, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["secret_seed"], 64)

	code, body = s.do(t, http.MethodPost, "/api/verify", "", verify)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["match"])
	assert.Equal(t, resultHash, body["computed_hash"])
	assert.Equal(t, true, body["signature_valid"])

	code, body = s.do(t, http.MethodGet, "/api/rounds/"+roundID, "", nil)
	require.Equal(t, http.StatusOK, code)
	revealed := body["round"].(map[string]any)
	assert.Len(t, revealed["result"].(map[string]any)["minesweeper"].(map[string]any)["mines"], 5)

	code, body = s.do(t, http.MethodPost, "/api/rounds", "", map[string]any{
		"seed_id": seedID, "client_seed": "lucky", "nonce": 2, "game_tag": "baccarat",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_REVEALED", body["code"])

	code, body = s.do(t, http.MethodGet, "/api/audit", s.operator, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(6), body["count"], "the refused verification is audited too")
}

func TestRoundErrors(t *testing.T) {
	s := newTestServer(t)
	seedID, _ := s.createSeed(t)

	code, body := s.do(t, http.MethodPost, "/api/rounds", "", map[string]any{
		"seed_id": seedID, "client_seed": "c", "nonce": 1, "game_tag": "minesweeper",
		"config": map[string]any{"width": 5, "height": 5, "mine_count": 25},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CONFIG", body["code"])

	code, _ = s.do(t, http.MethodPost, "/api/rounds", "", map[string]any{
		"seed_id": "missing", "client_seed": "c", "nonce": 1, "game_tag": "baccarat",
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/rounds", "", map[string]any{"seed_id": seedID})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, "/api/rounds", "", map[string]any{
		"seed_id": seedID, "nonce": 1, "game_tag": "limbo", "config": map[string]any{"house_edge": 0.01},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["round"].(map[string]any)["client_seed"], "client seed is generated when omitted")

	code, _ = s.do(t, http.MethodGet, "/api/rounds/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOperatorRoutes(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/seeds", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/seeds", s.player, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/audit", s.player, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodGet, "/api/audit?from=yesterday", s.operator, nil)
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, body = s.do(t, http.MethodGet, "/api/seeds/missing/commitment", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = s.do(t, http.MethodGet, "/api/fairness/public-key", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["public_key"], 64)
}

func TestAuditFeed(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/audit/ws?token=" + s.operator
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "PONG", msg["type"])

	seedID, _ := s.createSeed(t)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "AUDIT_ENTRY", msg["type"])
	entry := msg["data"].(map[string]any)
	assert.Equal(t, "SeedCreated", entry["action"])
	assert.Equal(t, seedID, entry["subject_id"])
}

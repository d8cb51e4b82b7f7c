package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quantdriver/config"
	"quantdriver/indicator"
	"quantdriver/marketdata"
	"quantdriver/runner"
	"quantdriver/store"
)

func testServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret: "test-secret", JWTTTLSec: 3600,
		OperatorUser: "admin", OperatorPassHash: string(hash),
		StrategyMaxThreads: 4,
	}
	sup := runner.NewSupervisor(st, marketdata.KlineSource(nil), nil, indicator.Evaluator(nil), nil, cfg)
	return NewServer(st, sup, cfg), cfg
}

func doJSON(s *Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	rec := doJSON(s, http.MethodPost, "/api/v1/auth/login", loginRequest{Username: "admin", Password: "correct-horse"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	tok, _ := resp["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(s, http.MethodPost, "/api/v1/auth/login", loginRequest{Username: "admin", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	s, _ := testServer(t)
	token := login(t, s)

	rec := doJSON(s, http.MethodGet, "/api/v1/strategies", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStrategiesRequireAuth(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(s, http.MethodGet, "/api/v1/strategies", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateThenGetStrategyRoundTrips(t *testing.T) {
	s, _ := testServer(t)
	token := login(t, s)

	createRec := doJSON(s, http.MethodPost, "/api/v1/strategies", strategyRequest{
		Name: "trend-follow", Symbol: "BTCUSDT", Timeframe: "1h", Leverage: 3,
		InitialCapital: 1000,
	}, token)
	require.Equal(t, http.StatusOK, createRec.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	getRec := doJSON(s, http.MethodGet, "/api/v1/strategies/"+id, nil, token)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestUpdateRunningStrategyIsRejected(t *testing.T) {
	s, _ := testServer(t)
	token := login(t, s)

	createRec := doJSON(s, http.MethodPost, "/api/v1/strategies", strategyRequest{
		Name: "n", Symbol: "BTCUSDT",
	}, token)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	id := created["id"].(string)

	require.NoError(t, s.store.Strategies.SetStatus(id, "running"))

	rec := doJSON(s, http.MethodPut, "/api/v1/strategies/"+id, strategyRequest{Name: "n2", Symbol: "BTCUSDT"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListPositionsForUnownedStrategyIs404(t *testing.T) {
	s, _ := testServer(t)
	token := login(t, s)
	rec := doJSON(s, http.MethodGet, "/api/v1/strategies/does-not-exist/positions", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

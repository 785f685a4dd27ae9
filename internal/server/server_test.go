package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/assert/helpers"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/server"
	"github.com/weftlabs/weft/pkg/api"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(env *helpers.TestEnv) *gin.Engine {
	srv := server.NewServer(env.Orchestrator, env.Registry, env.EventHub)
	return srv.SetupRoutes()
}

func doJSON(
	t *testing.T, router *gin.Engine, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		rec := doJSON(t, newRouter(env), http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res api.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "weft", res.Service)
		assert.Equal(t, "healthy", res.Status)
		assert.Equal(t, "connected", res.Registry)
	})
}

// brokenRegistry fails health checks while delegating everything else
type brokenRegistry struct {
	registry.Service
}

func (brokenRegistry) HealthCheck(context.Context) error {
	return errors.New("registry unreachable")
}

func TestHealthDegraded(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		srv := server.NewServer(
			env.Orchestrator,
			brokenRegistry{Service: env.Registry},
			env.EventHub,
		)
		rec := doJSON(
			t, srv.SetupRoutes(), http.MethodGet, "/health", nil,
		)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var res api.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "degraded", res.Status)
		assert.Contains(t, res.Registry, "unreachable")
	})
}

func TestCreateSession(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		rec := doJSON(t, newRouter(env), http.MethodPost, "/session",
			api.CreateSessionRequest{
				ID:     "sess-1",
				Prompt: "notify slack on deploy",
			})
		require.Equal(t, http.StatusCreated, rec.Code)

		var status api.SessionStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, api.SessionID("sess-1"), status.SessionID)
		assert.Equal(t, api.PhaseDiscovery, status.Phase)
	})
}

func TestCreateSessionEmptyPrompt(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		rec := doJSON(t, newRouter(env), http.MethodPost, "/session",
			api.CreateSessionRequest{ID: "sess-1"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var res api.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.False(t, res.Retryable)
	})
}

func TestCreateSessionConflict(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		router := newRouter(env)
		req := api.CreateSessionRequest{
			ID:     "sess-1",
			Prompt: "notify slack on deploy",
		}
		rec := doJSON(t, router, http.MethodPost, "/session", req)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodPost, "/session", req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGetSessionNotFound(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		rec := doJSON(
			t, newRouter(env), http.MethodGet, "/session/nope", nil,
		)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListSessions(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		router := newRouter(env)
		for _, id := range []api.SessionID{"sess-a", "sess-b"} {
			rec := doJSON(t, router, http.MethodPost, "/session",
				api.CreateSessionRequest{ID: id, Prompt: "prompt"})
			require.Equal(t, http.StatusCreated, rec.Code)
		}

		rec := doJSON(t, router, http.MethodGet, "/session", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res api.SessionListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 2, res.Count)
	})
}

func TestAdvanceClarificationConflict(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		router := newRouter(env)
		env.Model.Respond(`{
			"confidence": 0.3,
			"question": "Which service should receive the data?",
			"capabilities": []}`)

		rec := doJSON(t, router, http.MethodPost, "/session",
			api.CreateSessionRequest{ID: "sess-1", Prompt: "do a thing"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(
			t, router, http.MethodPost, "/session/sess-1/advance", nil,
		)
		require.Equal(t, http.StatusOK, rec.Code)

		var status api.SessionStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		require.NotNil(t, status.Clarification)

		// A second advance conflicts until the question is answered
		rec = doJSON(
			t, router, http.MethodPost, "/session/sess-1/advance", nil,
		)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = doJSON(t, router, http.MethodPost,
			"/session/sess-1/clarification",
			api.ClarificationRequest{
				QuestionID: "bogus",
				Answer:     "slack",
			})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdvanceExternalFailureRetryable(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		router := newRouter(env)
		env.Model.Fail(errors.New("model unavailable"))

		rec := doJSON(t, router, http.MethodPost, "/session",
			api.CreateSessionRequest{ID: "sess-1", Prompt: "do a thing"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(
			t, router, http.MethodPost, "/session/sess-1/advance", nil,
		)
		require.Equal(t, http.StatusBadGateway, rec.Code)

		var res api.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Retryable)
	})
}

func TestExportWorkflowBeforeBuilding(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		router := newRouter(env)
		rec := doJSON(t, router, http.MethodPost, "/session",
			api.CreateSessionRequest{ID: "sess-1", Prompt: "do a thing"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodGet,
			"/session/sess-1/workflow", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		req := httptest.NewRequest(http.MethodOptions, "/session", nil)
		rec := httptest.NewRecorder()
		newRouter(env).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*",
			rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestWebSocketSubscribe(t *testing.T) {
	helpers.WithEnv(t, func(env *helpers.TestEnv) {
		router := newRouter(env)

		rec := doJSON(t, router, http.MethodPost, "/session",
			api.CreateSessionRequest{ID: "sess-1", Prompt: "do a thing"})
		require.Equal(t, http.StatusCreated, rec.Code)

		ts := httptest.NewServer(router)
		defer ts.Close()

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		defer func() { _ = res.Body.Close() }()

		require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
			Type: "subscribe",
			Data: api.ClientSubscription{SessionID: "sess-1"},
		}))

		require.NoError(t,
			conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		var ack api.SubscribedResult
		require.NoError(t, conn.ReadJSON(&ack))
		assert.Equal(t, "subscribed", ack.Type)
		assert.Equal(t, api.SessionID("sess-1"), ack.SessionID)

		var status api.SessionStatus
		require.NoError(t, json.Unmarshal(ack.Data, &status))
		assert.Equal(t, api.PhaseDiscovery, status.Phase)
	})
}

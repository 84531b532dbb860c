package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouteflan/penrose-experiment/internal/adapter/narrator"
	"github.com/bouteflan/penrose-experiment/internal/config"
	"github.com/bouteflan/penrose-experiment/internal/hub"
	"github.com/bouteflan/penrose-experiment/internal/policy"
	"github.com/bouteflan/penrose-experiment/internal/service"
	"github.com/bouteflan/penrose-experiment/tests/helpers"
)

func newTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	cfg := &config.Config{
		SessionDuration:   10 * time.Minute,
		DissonanceAfter:   3 * time.Minute,
		RuptureAfter:      7 * time.Minute,
		TickInterval:      time.Hour,
		SnapshotInterval:  time.Hour,
		NarratorTimeout:   100 * time.Millisecond,
		PersistRetries:    3,
		PersistQueueSize:  64,
		SubmissionMaxMeta: 2,
		WSReadLimit:       65536,
		WSPingInterval:    30 * time.Second,
		WSSendBuffer:      16,
	}
	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	h := hub.NewHub(cfg.WSSendBuffer)
	go h.Run()
	svc, err := service.New(db, narrator.FallbackNarrator{}, policyEngine, cfg, h)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/ws", NewServer(cfg, h, svc).HandleWebSocket)
	srv := httptest.NewServer(e)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		svc.Shutdown(context.Background())
		srv.Close()
		h.Stop()
	})
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestActionRequiresSessionInit(t *testing.T) {
	conn := newTestServer(t)

	resp := roundTrip(t, conn, `{"type":"player_action","request_id":"r1","action":{"kind":"file_click"}}`)
	assert.Equal(t, TypeError, resp["type"])
	assert.Equal(t, ErrorCodeSessionRequired, resp["code"])
	assert.Equal(t, "r1", resp["request_id"])
}

func TestSessionFlow(t *testing.T) {
	conn := newTestServer(t)

	ready := roundTrip(t, conn, `{"type":"session_init","session_id":"s1","player_name":"ada"}`)
	require.Equal(t, TypeSessionReady, ready["type"])
	assert.Equal(t, "s1", ready["session_id"])
	assert.Equal(t, false, ready["resumed"])
	assert.NotNil(t, ready["narrator"])

	processed := roundTrip(t, conn, `{"type":"player_action","request_id":"a1","action":{"kind":"file_click","target":"notes.txt"}}`)
	require.Equal(t, TypeActionProcessed, processed["type"])
	outcome := processed["outcome"].(map[string]interface{})
	status := outcome["status"].(map[string]interface{})
	assert.Equal(t, float64(1), status["total_orders"])

	state := roundTrip(t, conn, `{"type":"game_state_request","request_id":"g1"}`)
	require.Equal(t, TypeGameState, state["type"])
	assert.NotNil(t, state["corruption"])

	pong := roundTrip(t, conn, `{"type":"ping","request_id":"p1"}`)
	assert.Equal(t, TypePong, pong["type"])

	// Re-initialising an active session resumes it.
	resumed := roundTrip(t, conn, `{"type":"session_init","session_id":"s1"}`)
	require.Equal(t, TypeSessionReady, resumed["type"])
	assert.Equal(t, true, resumed["resumed"])
}

func TestUnknownMessageType(t *testing.T) {
	conn := newTestServer(t)

	resp := roundTrip(t, conn, `{"type":"teleport"}`)
	assert.Equal(t, TypeError, resp["type"])
	assert.Equal(t, ErrorCodeInvalidMessage, resp["code"])
}

func TestActionWithoutKindIsProcessed(t *testing.T) {
	conn := newTestServer(t)

	ready := roundTrip(t, conn, `{"type":"session_init","session_id":"s1","player_name":"ada"}`)
	require.Equal(t, TypeSessionReady, ready["type"])

	processed := roundTrip(t, conn, `{"type":"player_action","request_id":"a1","action":{"target":"notes.txt"}}`)
	require.Equal(t, TypeActionProcessed, processed["type"])
	outcome := processed["outcome"].(map[string]interface{})
	classification := outcome["classification"].(map[string]interface{})
	assert.Equal(t, "unknown", classification["kind"])
	assert.Equal(t, "neutral", classification["category"])
}

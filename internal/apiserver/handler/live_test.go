package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func liveServer(t *testing.T, p Presence, origins []string) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.GET("/live", NewLive(zap.NewNop(), p, origins).HandleLive)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
}

func TestHandleLive_Stream(t *testing.T) {
	p := newFakePresence()
	p.active = []*visitor.Visitor{{SessionID: "a"}}
	srv := liveServer(t, p, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "active_visitors", msg.Type)
	assert.Equal(t, 1, msg.Count)

	fn := <-p.handlers
	fn([]*visitor.Visitor{{SessionID: "a"}, {SessionID: "b"}})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 2, msg.Count)
	assert.Equal(t, "b", msg.Visitors[1].SessionID)

	require.NoError(t, conn.Close())
	select {
	case <-p.unsubscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not released after the client left")
	}
}

func TestHandleLive_SubscribeError(t *testing.T) {
	p := newFakePresence()
	p.subscribeErr = errors.New("receiver disabled")
	srv := liveServer(t, p, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}

func TestHandleLive_Origin(t *testing.T) {
	srv := liveServer(t, newFakePresence(), []string{"https://admin.lastik.example"})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{"Origin": {"https://admin.lastik.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestHandleLive_PlainHTTP(t *testing.T) {
	srv := liveServer(t, newFakePresence(), nil)

	resp, err := http.Get(srv.URL + "/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/vitrinhq/vitrin/internal/presence"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePresence struct {
	mu sync.Mutex

	env        visitor.Environment
	registerID string
	visitor    *visitor.Visitor

	heartbeat     presence.HeartbeatResult
	heartbeatPage string
	ended         []string

	active     []*visitor.Visitor
	activeErr  error
	history    []*visitor.HistoryRecord
	historyErr error
	hours      int

	subscribeErr error
	handlers     chan presence.ActiveHandler
	unsubscribed chan struct{}

	stale, forced int
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		handlers:     make(chan presence.ActiveHandler, 1),
		unsubscribed: make(chan struct{}),
	}
}

func (f *fakePresence) Register(_ context.Context, sessionID string, env visitor.Environment) *visitor.Visitor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerID, f.env = sessionID, env
	return f.visitor
}

func (f *fakePresence) Heartbeat(_ context.Context, sessionID, page string) presence.HeartbeatResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatPage = page
	return f.heartbeat
}

func (f *fakePresence) End(_ context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
}

func (f *fakePresence) Active(context.Context) ([]*visitor.Visitor, error) {
	return f.active, f.activeErr
}

func (f *fakePresence) History(_ context.Context, hours int) ([]*visitor.HistoryRecord, error) {
	f.hours = hours
	return f.history, f.historyErr
}

func (f *fakePresence) SubscribeActive(_ context.Context, fn presence.ActiveHandler) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	fn(f.active)
	f.handlers <- fn
	var once sync.Once
	return func() { once.Do(func() { close(f.unsubscribed) }) }, nil
}

func (f *fakePresence) CleanupStale(context.Context) int    { return f.stale }
func (f *fakePresence) ForceCleanupAll(context.Context) int { return f.forced }

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

package handler

import (
	"net/http"
	"testing"

	"github.com/vitrinhq/vitrin/internal/i18n"
	"github.com/vitrinhq/vitrin/internal/presence"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const sessionID = "visitor_1772186400000_abc123xyz"

func visitorRouter(p Presence) *gin.Engine {
	h := NewVisitor(zap.NewNop(), p)
	r := gin.New()
	r.Use(i18n.Middleware())
	r.POST("/api/visitors", h.HandleRegister)
	r.POST("/api/visitors/:id/heartbeat", h.HandleHeartbeat)
	r.DELETE("/api/visitors/:id", h.HandleEnd)
	r.POST("/api/visitors/:id/exit", h.HandleEnd)
	return r
}

func TestHandleRegister(t *testing.T) {
	p := newFakePresence()
	p.visitor = &visitor.Visitor{SessionID: sessionID, CurrentPage: "/lastikler"}
	r := visitorRouter(p)

	w := doJSON(t, r, http.MethodPost, "/api/visitors", RegisterRequest{
		SessionID:    sessionID,
		CurrentPage:  "/lastikler",
		Referrer:     "https://www.google.com/",
		ScreenWidth:  390,
		ScreenHeight: 844,
	}, http.Header{
		"User-Agent":      {"Mozilla/5.0 (iPhone)"},
		"Accept-Language": {"tr-TR,tr;q=0.9,en;q=0.8"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["tracking"])
	assert.Equal(t, sessionID, body["visitor"].(map[string]any)["sessionId"])

	assert.Equal(t, sessionID, p.registerID)
	assert.Equal(t, "/lastikler", p.env.Path)
	assert.Equal(t, "Mozilla/5.0 (iPhone)", p.env.UserAgent)
	assert.Equal(t, "tr-TR", p.env.Language)
	assert.Equal(t, 390, p.env.ScreenWidth)
	assert.NotEmpty(t, p.env.ClientIP)
}

func TestHandleRegister_EmptyBody(t *testing.T) {
	p := newFakePresence()
	p.visitor = &visitor.Visitor{SessionID: sessionID}

	w := doJSON(t, visitorRouter(p), http.MethodPost, "/api/visitors", nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, p.registerID)
	assert.Empty(t, p.env.Language)
}

func TestHandleRegister_BodyLanguageWins(t *testing.T) {
	p := newFakePresence()
	p.visitor = &visitor.Visitor{SessionID: sessionID}

	doJSON(t, visitorRouter(p), http.MethodPost, "/api/visitors",
		RegisterRequest{Language: "de-DE"}, http.Header{"Accept-Language": {"tr"}})
	assert.Equal(t, "de-DE", p.env.Language)
}

func TestHandleRegister_ReportedIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		reported  string
		want      string
	}{
		{"private connection uses the page address", "10.0.0.5", "85.105.12.34", "85.105.12.34"},
		{"public connection wins", "88.230.1.2", "85.105.12.34", "88.230.1.2"},
		{"private page address is ignored", "10.0.0.5", "192.168.1.20", "10.0.0.5"},
		{"garbage is ignored", "10.0.0.5", "not-an-ip", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePresence()
			p.visitor = &visitor.Visitor{SessionID: sessionID}

			doJSON(t, visitorRouter(p), http.MethodPost, "/api/visitors",
				RegisterRequest{IP: tt.reported}, http.Header{"X-Forwarded-For": {tt.forwarded}})
			assert.Equal(t, tt.want, p.env.ClientIP)
		})
	}
}

func TestHandleRegister_NotTracked(t *testing.T) {
	p := newFakePresence()

	w := doJSON(t, visitorRouter(p), http.MethodPost, "/api/visitors", RegisterRequest{}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["tracking"])
}

func TestHandleRegister_BadInput(t *testing.T) {
	p := newFakePresence()
	r := visitorRouter(p)

	w := doJSON(t, r, http.MethodPost, "/api/visitors", RegisterRequest{SessionID: "../../etc"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "../../etc")

	w = doJSON(t, r, http.MethodPost, "/api/visitors", "not an object", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, p.registerID)
}

func TestHandleHeartbeat(t *testing.T) {
	p := newFakePresence()
	r := visitorRouter(p)
	path := "/api/visitors/" + sessionID + "/heartbeat"

	p.heartbeat = presence.HeartbeatOK
	w := doJSON(t, r, http.MethodPost, path, HeartbeatRequest{CurrentPage: "/sepet"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/sepet", p.heartbeatPage)

	p.heartbeat = presence.HeartbeatNotFound
	w = doJSON(t, r, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["reregister"])
	assert.Equal(t, "Ziyaretçi oturumu bulunamadı", body["error"])

	p.heartbeat = presence.HeartbeatFailed
	w = doJSON(t, r, http.MethodPost, path, nil, http.Header{"X-Lang": {"en"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/visitors/bad$id/heartbeat", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEnd(t *testing.T) {
	p := newFakePresence()
	r := visitorRouter(p)

	w := doJSON(t, r, http.MethodDelete, "/api/visitors/"+sessionID, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// sendBeacon posts text/plain
	w = doJSON(t, r, http.MethodPost, "/api/visitors/"+sessionID+"/exit", "ignored", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, []string{sessionID, sessionID}, p.ended)
}

func TestPreferredLanguage(t *testing.T) {
	assert.Equal(t, "tr-TR", preferredLanguage("tr-TR,tr;q=0.9"))
	assert.Equal(t, "en", preferredLanguage("de;q=0.5, en"))
	assert.Empty(t, preferredLanguage(""))
}

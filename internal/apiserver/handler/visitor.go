package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/vitrinhq/vitrin/internal/geo"
	"github.com/vitrinhq/vitrin/internal/i18n"
	"github.com/vitrinhq/vitrin/internal/presence"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// RegisterRequest is sent by a storefront page when a visit starts
type RegisterRequest struct {
	SessionID    string `json:"sessionId"`
	CurrentPage  string `json:"currentPage"`
	Referrer     string `json:"referrer"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	Language     string `json:"language"`
	// IP is the public address the page resolved itself, used when the
	// connection only shows a private one
	IP string `json:"ip"`
}

// HeartbeatRequest is sent periodically while the page is open
type HeartbeatRequest struct {
	CurrentPage string `json:"currentPage"`
}

// Visitor serves the storefront tracking endpoints. Tracking must never
// break a page, so engine failures are reported in the body rather than as
// errors wherever the client can carry on.
type Visitor struct {
	logger   *zap.Logger
	presence Presence
}

// NewVisitor creates the storefront tracking handler
func NewVisitor(logger *zap.Logger, p Presence) *Visitor {
	return &Visitor{logger: logger.Named("handler.visitor"), presence: p}
}

// HandleRegister starts a visit
func (h *Visitor) HandleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		i18n.RespondWithError(c, i18n.ErrBadRequest)
		return
	}
	if req.SessionID != "" && !visitor.ValidSessionID(req.SessionID) {
		i18n.RespondWithError(c, i18n.ErrorInvalidSessionID.WithParam("ID", req.SessionID))
		return
	}

	lang := req.Language
	if lang == "" {
		lang = preferredLanguage(c.GetHeader("Accept-Language"))
	}
	v := h.presence.Register(c.Request.Context(), req.SessionID, visitor.Environment{
		UserAgent:    c.Request.UserAgent(),
		Path:         req.CurrentPage,
		Referrer:     req.Referrer,
		ScreenWidth:  req.ScreenWidth,
		ScreenHeight: req.ScreenHeight,
		Language:     lang,
		ClientIP:     clientIP(c, req.IP),
	})
	if v == nil {
		c.JSON(http.StatusOK, gin.H{"tracking": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tracking": true, "visitor": v})
}

// HandleHeartbeat keeps a visit alive
func (h *Visitor) HandleHeartbeat(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		i18n.RespondWithError(c, i18n.ErrBadRequest)
		return
	}

	switch h.presence.Heartbeat(c.Request.Context(), id, req.CurrentPage) {
	case presence.HeartbeatOK:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case presence.HeartbeatNotFound:
		// the session expired; the page should register again
		c.JSON(http.StatusNotFound, gin.H{
			"error":      i18n.TranslateError(c, i18n.ErrorVisitorNotFound),
			"reregister": true,
		})
	default:
		i18n.RespondWithError(c, i18n.ErrorHeartbeatFailed)
	}
}

// HandleEnd closes a visit. It also serves sendBeacon posts on page unload,
// whose body is ignored.
func (h *Visitor) HandleEnd(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	h.presence.End(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}

func sessionParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !visitor.ValidSessionID(id) {
		i18n.RespondWithError(c, i18n.ErrorInvalidSessionID.WithParam("ID", id))
		return "", false
	}
	return id, true
}

// clientIP prefers the connection's address; a page-reported address only
// replaces a private one, e.g. behind a proxy missing from trusted_proxies.
func clientIP(c *gin.Context, reported string) string {
	ip := c.ClientIP()
	if !geo.IsPublicIP(ip) && geo.IsPublicIP(reported) {
		return reported
	}
	return ip
}

func preferredLanguage(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vitrinhq/vitrin/internal/analytics"
	"github.com/vitrinhq/vitrin/internal/auth"
	"github.com/vitrinhq/vitrin/internal/i18n"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxHistoryHours = 24 * 31

// LoginRequest carries the admin credential
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

// Admin serves the dashboard endpoints
type Admin struct {
	logger   *zap.Logger
	auth     Authenticator
	presence Presence
	reporter Reporter
}

// NewAdmin creates the dashboard handler
func NewAdmin(logger *zap.Logger, a Authenticator, p Presence, r Reporter) *Admin {
	return &Admin{
		logger:   logger.Named("handler.admin"),
		auth:     a,
		presence: p,
		reporter: r,
	}
}

// HandleLogin exchanges the admin credential for a token
func (h *Admin) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		i18n.RespondWithError(c, i18n.ErrBadRequest)
		return
	}

	session, err := h.auth.Login(req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		i18n.RespondWithError(c, i18n.ErrorInvalidCredentials)
		return
	case errors.Is(err, auth.ErrAdminDisabled):
		i18n.RespondWithError(c, i18n.ErrorAdminDisabled)
		return
	default:
		h.logger.Error("failed to issue admin token", zap.Error(err))
		i18n.RespondWithError(c, i18n.ErrInternalServer)
		return
	}

	i18n.RespondOK(c, i18n.SuccessLogin, nil, gin.H{
		"token":     session.Token,
		"username":  session.Username,
		"expiresAt": session.ExpiresAt,
	})
}

// HandleActive returns the current non-stale visitors
func (h *Admin) HandleActive(c *gin.Context) {
	visitors, err := h.presence.Active(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list active visitors", zap.Error(err))
		i18n.RespondWithError(c, i18n.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitors": visitors, "count": len(visitors)})
}

// HandleHistory returns the visits of the trailing hours, 24 by default
func (h *Admin) HandleHistory(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryHours {
			i18n.RespondWithError(c, i18n.ErrorInvalidHours.WithParam("Hours", raw))
			return
		}
		hours = n
	}

	records, err := h.presence.History(c.Request.Context(), hours)
	if err != nil {
		h.logger.Error("failed to read visitor history", zap.Int("hours", hours), zap.Error(err))
		i18n.RespondWithError(c, i18n.ErrorHistoryUnavailable)
		return
	}
	if records == nil {
		records = []*visitor.HistoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"visitors": records, "count": len(records), "hours": hours})
}

// HandleAnalytics returns the dashboard report of a range
func (h *Admin) HandleAnalytics(c *gin.Context) {
	raw := c.Query("range")
	r, err := analytics.ParseRange(raw)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidRange.WithParam("Range", raw))
		return
	}

	report, err := h.reporter.Report(c.Request.Context(), r)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrorAnalyticsUnavailable)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleCleanup ends stale sessions, or every session with all=true
func (h *Admin) HandleCleanup(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))

	var n int
	if all {
		n = h.presence.ForceCleanupAll(c.Request.Context())
	} else {
		n = h.presence.CleanupStale(c.Request.Context())
	}
	h.logger.Info("admin cleanup", zap.Bool("all", all), zap.Int("removed", n))
	i18n.RespondOK(c, i18n.SuccessCleanupCompleted, map[string]any{"Count": n}, gin.H{"removed": n, "all": all})
}

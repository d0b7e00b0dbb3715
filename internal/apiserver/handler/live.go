package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/vitrinhq/vitrin/internal/i18n"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 10 * time.Second
)

// LiveMessage is one snapshot pushed to the dashboard
type LiveMessage struct {
	Type     string             `json:"type"`
	Visitors []*visitor.Visitor `json:"visitors"`
	Count    int                `json:"count"`
	At       time.Time          `json:"at"`
}

// Live pushes the active visitor feed to dashboard websockets
type Live struct {
	logger       *zap.Logger
	presence     Presence
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// NewLive creates the websocket handler; origins lists who may connect,
// empty or "*" allows any origin.
func NewLive(logger *zap.Logger, p Presence, origins []string) *Live {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")
	return &Live{
		logger:       logger.Named("handler.live"),
		presence:     p,
		pingInterval: livePingInterval,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

// HandleLive streams a snapshot on connect and after every change. A slow
// client only ever receives the newest snapshot.
func (h *Live) HandleLive(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		i18n.RespondWithError(c, i18n.ErrBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	latest := make(chan []*visitor.Visitor, 1)
	unsubscribe, err := h.presence.SubscribeActive(ctx, func(vs []*visitor.Visitor) {
		// single producer: after draining, the send cannot block
		select {
		case <-latest:
		default:
		}
		latest <- vs
	})
	if err != nil {
		h.logger.Error("failed to subscribe to active visitors", zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, i18n.TranslateError(c, i18n.ErrorLiveFeedUnavailable))
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(liveWriteTimeout))
		return
	}
	defer unsubscribe()

	// the dashboard never sends anything; reading only detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("live feed connected", zap.String("client_ip", c.ClientIP()))
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case vs := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			err := conn.WriteJSON(LiveMessage{Type: "active_visitors", Visitors: vs, Count: len(vs), At: time.Now()})
			if err != nil {
				h.logger.Debug("live feed write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/middleware"
	"github.com/campusconnect/campus-connect-api/internal/service"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
	"github.com/campusconnect/campus-connect-api/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin upgrades are allowed; authentication happens via JWT.
		return true
	},
}

// Handler upgrades authenticated HTTP requests to websocket connections.
type Handler struct {
	hub     *Hub
	chat    *service.ChatService
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewHandler builds the websocket endpoint handler.
func NewHandler(hub *Hub, chat *service.ChatService, metrics *service.MetricsService, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, chat: chat, metrics: metrics, logger: logger}
}

// Connect godoc
// @Summary Open the real-time chat socket
// @Description Upgrades the connection to a websocket. Clients then send join-room, leave-room, typing and stop-typing frames and receive new-message, user-typing and user-stop-typing frames.
// @Tags chat
// @Security BearerAuth
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *Handler) Connect(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	userID := claims.UserID
	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		rooms:  make(map[string]bool),
		authorize: func(ctx context.Context, roomID string) (bool, error) {
			return h.chat.IsParty(ctx, roomID, userID)
		},
		onEvent: h.metrics.ObserveWSEvent,
		logger:  h.logger,
	}

	h.hub.register <- client
	h.metrics.WSConnectionOpened()

	go func() {
		client.writePump()
	}()
	go func() {
		client.readPump()
		h.metrics.WSConnectionClosed()
	}()

	h.logger.Info("websocket connection established", zap.String("user_id", userID))
}

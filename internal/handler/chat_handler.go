package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/service"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
	"github.com/campusconnect/campus-connect-api/pkg/response"
)

// ChatHandler exposes the chat request lifecycle and messaging endpoints.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler creates a new handler.
func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// SendRequest godoc
// @Summary Send a chat request
// @Description Opens a pending chat request towards another member. Only one pending request per pair is allowed.
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body service.SendChatRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /chat/request [post]
func (h *ChatHandler) SendRequest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input service.SendChatRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat request payload"))
		return
	}

	req, err := h.service.SendRequest(c.Request.Context(), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// ListRequests godoc
// @Summary List chat requests
// @Description Returns every chat request where the caller is sender or receiver.
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat/requests [get]
func (h *ChatHandler) ListRequests(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.service.ListRequests(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Accept godoc
// @Summary Accept a chat request
// @Description Only the receiver of a pending request may accept it.
// @Tags Chat
// @Produce json
// @Param id path string true "Chat request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /chat/requests/{id}/accept [put]
func (h *ChatHandler) Accept(c *gin.Context) {
	h.respond(c, models.ChatAccepted)
}

// Reject godoc
// @Summary Reject a chat request
// @Description Only the receiver of a pending request may reject it.
// @Tags Chat
// @Produce json
// @Param id path string true "Chat request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /chat/requests/{id}/reject [put]
func (h *ChatHandler) Reject(c *gin.Context) {
	h.respond(c, models.ChatRejected)
}

func (h *ChatHandler) respond(c *gin.Context, decision models.ChatRequestStatus) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req, err := h.service.Respond(c.Request.Context(), c.Param("id"), claims.UserID, decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// ListMessages godoc
// @Summary List messages of an accepted chat
// @Tags Chat
// @Produce json
// @Param id path string true "Chat request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chat/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// SendMessage godoc
// @Summary Send a message in an accepted chat
// @Description Persists the message and broadcasts it to the chat room.
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "Chat request ID"
// @Param payload body object true "Message content"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), c.Param("id"), claims.UserID, payload.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/middleware"
	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/service"
)

type chatRepoStub struct {
	requests map[string]*models.ChatRequest
	messages map[string][]models.Message
}

func newChatRepoStub() *chatRepoStub {
	return &chatRepoStub{
		requests: make(map[string]*models.ChatRequest),
		messages: make(map[string][]models.Message),
	}
}

func (s *chatRepoStub) CreateRequest(_ context.Context, req *models.ChatRequest) error {
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *chatRepoStub) FindRequestByID(_ context.Context, id string) (*models.ChatRequest, error) {
	if req, ok := s.requests[id]; ok {
		copied := *req
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *chatRepoStub) FindPendingRequest(_ context.Context, senderID, receiverID string) (*models.ChatRequest, error) {
	for _, req := range s.requests {
		if req.SenderID == senderID && req.ReceiverID == receiverID && req.Status == models.ChatPending {
			copied := *req
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *chatRepoStub) ListRequestsForUser(_ context.Context, userID string) ([]models.ChatRequest, error) {
	var out []models.ChatRequest
	for _, req := range s.requests {
		if req.SenderID == userID || req.ReceiverID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *chatRepoStub) UpdateRequestStatus(_ context.Context, id string, status models.ChatRequestStatus, updatedAt time.Time) (bool, error) {
	req, ok := s.requests[id]
	if !ok || req.Status != models.ChatPending {
		return false, nil
	}
	req.Status = status
	req.UpdatedAt = updatedAt
	return true, nil
}

func (s *chatRepoStub) CreateMessage(_ context.Context, msg *models.Message) error {
	s.messages[msg.ChatRequestID] = append(s.messages[msg.ChatRequestID], *msg)
	return nil
}

func (s *chatRepoStub) ListMessages(_ context.Context, chatRequestID string) ([]models.Message, error) {
	return s.messages[chatRequestID], nil
}

type busStub struct {
	rooms  []string
	events []string
}

func (b *busStub) Publish(roomID, event string, _ interface{}) {
	b.rooms = append(b.rooms, roomID)
	b.events = append(b.events, event)
}

type notifierStub struct{}

func (notifierStub) Notify(string, string, models.NotificationType) {}

func newChatHandler(repo *chatRepoStub, users *userRepoStub, bus *busStub) *ChatHandler {
	svc := service.NewChatService(repo, users, bus, notifierStub{}, zap.NewNop())
	return NewChatHandler(svc)
}

func chatContext(t *testing.T, userID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID})
	return c, rec
}

func chatUsers() *userRepoStub {
	return newUserRepoStub(
		&models.User{ID: "u1", Name: "Alice", Email: "a@kiit.ac.in", Role: models.RoleJunior, AdmissionYear: 2024},
		&models.User{ID: "u2", Name: "Bob", Email: "b@kiit.ac.in", Role: models.RoleSenior, AdmissionYear: 2022},
	)
}

func TestChatHandlerSendRequest(t *testing.T) {
	repo := newChatRepoStub()
	handler := newChatHandler(repo, chatUsers(), &busStub{})

	c, rec := chatContext(t, "u1")
	c.Request = jsonRequest(http.MethodPost, "/chat/request", `{"receiverId":"u2","message":"hi Bob"}`)

	handler.SendRequest(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope authEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(models.ChatPending), envelope.Data["status"])
	assert.Equal(t, "u2", envelope.Data["receiverId"])
	assert.Len(t, repo.requests, 1)
}

func TestChatHandlerSendRequestToSelf(t *testing.T) {
	handler := newChatHandler(newChatRepoStub(), chatUsers(), &busStub{})

	c, rec := chatContext(t, "u1")
	c.Request = jsonRequest(http.MethodPost, "/chat/request", `{"receiverId":"u1"}`)

	handler.SendRequest(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerAcceptByReceiver(t *testing.T) {
	repo := newChatRepoStub()
	repo.requests["r1"] = &models.ChatRequest{
		ID: "r1", SenderID: "u1", ReceiverID: "u2", Status: models.ChatPending,
	}
	handler := newChatHandler(repo, chatUsers(), &busStub{})

	c, rec := chatContext(t, "u2")
	c.Request = httptest.NewRequest(http.MethodPut, "/chat/requests/r1/accept", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.Accept(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ChatAccepted, repo.requests["r1"].Status)
}

func TestChatHandlerAcceptBySenderForbidden(t *testing.T) {
	repo := newChatRepoStub()
	repo.requests["r1"] = &models.ChatRequest{
		ID: "r1", SenderID: "u1", ReceiverID: "u2", Status: models.ChatPending,
	}
	handler := newChatHandler(repo, chatUsers(), &busStub{})

	c, rec := chatContext(t, "u1")
	c.Request = httptest.NewRequest(http.MethodPut, "/chat/requests/r1/accept", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.Accept(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, models.ChatPending, repo.requests["r1"].Status)
}

func TestChatHandlerSendMessageBroadcasts(t *testing.T) {
	repo := newChatRepoStub()
	repo.requests["r1"] = &models.ChatRequest{
		ID: "r1", SenderID: "u1", ReceiverID: "u2", Status: models.ChatAccepted,
	}
	bus := &busStub{}
	handler := newChatHandler(repo, chatUsers(), bus)

	c, rec := chatContext(t, "u1")
	c.Request = jsonRequest(http.MethodPost, "/chat/r1/messages", `{"content":"hello"}`)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.SendMessage(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.messages["r1"], 1)
	assert.Equal(t, []string{"r1"}, bus.rooms)
	assert.Equal(t, []string{"new-message"}, bus.events)
}

func TestChatHandlerSendMessagePendingChat(t *testing.T) {
	repo := newChatRepoStub()
	repo.requests["r1"] = &models.ChatRequest{
		ID: "r1", SenderID: "u1", ReceiverID: "u2", Status: models.ChatPending,
	}
	handler := newChatHandler(repo, chatUsers(), &busStub{})

	c, rec := chatContext(t, "u1")
	c.Request = jsonRequest(http.MethodPost, "/chat/r1/messages", `{"content":"hello"}`)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.SendMessage(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, repo.messages["r1"])
}

func TestChatHandlerListMessagesOutsiderForbidden(t *testing.T) {
	repo := newChatRepoStub()
	repo.requests["r1"] = &models.ChatRequest{
		ID: "r1", SenderID: "u1", ReceiverID: "u2", Status: models.ChatAccepted,
	}
	handler := newChatHandler(repo, chatUsers(), &busStub{})

	c, rec := chatContext(t, "u3")
	c.Request = httptest.NewRequest(http.MethodGet, "/chat/r1/messages", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.ListMessages(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/repository"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

type chatRepository interface {
	CreateRequest(ctx context.Context, req *models.ChatRequest) error
	FindRequestByID(ctx context.Context, id string) (*models.ChatRequest, error)
	FindPendingRequest(ctx context.Context, senderID, receiverID string) (*models.ChatRequest, error)
	ListRequestsForUser(ctx context.Context, userID string) ([]models.ChatRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status models.ChatRequestStatus, updatedAt time.Time) (bool, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, chatRequestID string) ([]models.Message, error)
}

type chatUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Publisher is the capability the chat service needs from the real-time bus.
// Broadcast failures never fail the persisted write; the bus is a derived,
// non-authoritative channel.
type Publisher interface {
	Publish(roomID, event string, payload interface{})
}

type chatNotifier interface {
	Notify(userID, message string, kind models.NotificationType)
}

// SendChatRequestInput carries a new chat request.
type SendChatRequestInput struct {
	ReceiverID string  `json:"receiverId"`
	Message    *string `json:"message"`
}

// ChatService implements the request -> accept/reject -> conversation state
// machine. PENDING is the only non-terminal state; transitions are strictly
// guarded so a handled request cannot be re-decided.
type ChatService struct {
	repo     chatRepository
	users    chatUserRepository
	bus      Publisher
	notifier chatNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewChatService constructs a ChatService instance.
func NewChatService(repo chatRepository, users chatUserRepository, bus Publisher, notifier chatNotifier, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		repo:     repo,
		users:    users,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendRequest creates a pending request toward the receiver. At most one
// pending request may exist per ordered (sender, receiver) pair; the storage
// layer's partial unique index backs the pre-check under concurrency.
func (s *ChatService) SendRequest(ctx context.Context, senderID string, input SendChatRequestInput) (*models.ChatRequest, error) {
	receiverID := strings.TrimSpace(input.ReceiverID)
	if receiverID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receiverId is required")
	}
	if receiverID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot send a chat request to yourself")
	}

	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receiver not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receiver")
	}

	if _, err := s.repo.FindPendingRequest(ctx, senderID, receiverID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a pending request with this person")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}

	now := s.now()
	req := &models.ChatRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    normalizeIntro(input.Message),
		Status:     models.ChatPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a pending request with this person")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chat request")
	}

	if s.notifier != nil {
		s.notifier.Notify(receiverID, "You have a new chat request", models.NotificationChatRequest)
	}

	return req, nil
}

// ListRequests returns every request involving the user, newest-updated first.
func (s *ChatService) ListRequests(ctx context.Context, userID string) ([]models.ChatRequest, error) {
	requests, err := s.repo.ListRequestsForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chat requests")
	}
	return requests, nil
}

// Respond transitions a pending request to ACCEPTED or REJECTED. Only the
// receiver may decide, and only once.
func (s *ChatService) Respond(ctx context.Context, requestID, responderID string, decision models.ChatRequestStatus) (*models.ChatRequest, error) {
	if decision != models.ChatAccepted && decision != models.ChatRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be ACCEPTED or REJECTED")
	}

	req, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != responderID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the receiver can respond to this request")
	}
	if req.Status != models.ChatPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been responded to")
	}

	now := s.now()
	ok, err := s.repo.UpdateRequestStatus(ctx, requestID, decision, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update chat request")
	}
	if !ok {
		// Lost a race with a concurrent responder.
		return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been responded to")
	}

	req.Status = decision
	req.UpdatedAt = now
	return req, nil
}

// ListMessages returns the conversation oldest-first. The caller must be a
// party and the request must be accepted.
func (s *ChatService) ListMessages(ctx context.Context, requestID, requesterID string) ([]models.Message, error) {
	req, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveParty(req, requesterID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}

// SendMessage persists a message and then publishes it to the conversation
// room. The publish is best-effort: a bus failure leaves the stored message
// intact and clients reconcile on the next fetch.
func (s *ChatService) SendMessage(ctx context.Context, requestID, senderID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message content is required")
	}

	req, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveParty(req, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:            uuid.NewString(),
		ChatRequestID: requestID,
		SenderID:      senderID,
		Content:       content,
		CreatedAt:     s.now(),
	}
	if sender, err := s.users.FindByID(ctx, senderID); err == nil {
		msg.SenderName = sender.Name
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store message")
	}

	if s.bus != nil {
		s.bus.Publish(requestID, "new-message", msg)
	}

	return msg, nil
}

// IsParty reports whether the user belongs to the request. Used by the
// websocket handler to authorize room joins.
func (s *ChatService) IsParty(ctx context.Context, requestID, userID string) (bool, error) {
	req, err := s.findRequest(ctx, requestID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status == appErrors.ErrNotFound.Status {
			return false, nil
		}
		return false, err
	}
	return req.SenderID == userID || req.ReceiverID == userID, nil
}

func (s *ChatService) findRequest(ctx context.Context, requestID string) (*models.ChatRequest, error) {
	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chat request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat request")
	}
	return req, nil
}

func (s *ChatService) requireActiveParty(req *models.ChatRequest, userID string) error {
	if req.SenderID != userID && req.ReceiverID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not a party to this chat")
	}
	if req.Status != models.ChatAccepted {
		return appErrors.Clone(appErrors.ErrChatInactive, "")
	}
	return nil
}

func normalizeIntro(message *string) *string {
	if message == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*message)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

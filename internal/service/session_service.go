package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/repository"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]models.Session, error)
	Delete(ctx context.Context, id string) error
	ListAttendees(ctx context.Context, sessionID string) ([]models.SessionAttendee, error)
	IsAttending(ctx context.Context, sessionID, userID string) (bool, error)
	AddAttendee(ctx context.Context, sessionID, userID string) error
	RemoveAttendee(ctx context.Context, sessionID, userID string) error
}

type sessionNotifier interface {
	Notify(userID, message string, kind models.NotificationType)
}

// CreateSessionRequest carries a new mentorship session.
type CreateSessionRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	Duration    int       `json:"duration" validate:"required,gt=0"`
	Link        string    `json:"link"`
}

// SessionService provides mentorship session use cases. Creation and deletion
// are role-gated at the route level; ownership checks live here.
type SessionService struct {
	repo      sessionRepository
	notifier  sessionNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(repo sessionRepository, notifier sessionNotifier, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:      repo,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create schedules a new session hosted by the mentor.
func (s *SessionService) Create(ctx context.Context, mentorID string, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title, description, date and duration are required")
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		MentorID:    mentorID,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Duration:    req.Duration,
		Link:        req.Link,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// List returns all sessions ordered by date.
func (s *SessionService) List(ctx context.Context) ([]models.Session, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Get returns a session with its attendees.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	attendees, err := s.repo.ListAttendees(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendees")
	}
	session.Attendees = attendees
	return session, nil
}

// Join registers the caller as an attendee and notifies the mentor.
func (s *SessionService) Join(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MentorID == userID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you are the mentor of this session")
	}

	attending, err := s.repo.IsAttending(ctx, sessionID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if attending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you have already joined this session")
	}

	if err := s.repo.AddAttendee(ctx, sessionID, userID); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you have already joined this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join session")
	}

	if s.notifier != nil {
		s.notifier.Notify(session.MentorID, fmt.Sprintf("Someone joined your session: %q", session.Title), models.NotificationSessionJoin)
	}

	return s.Get(ctx, sessionID)
}

// Leave removes the caller from the attendee list.
func (s *SessionService) Leave(ctx context.Context, sessionID, userID string) error {
	if _, err := s.findSession(ctx, sessionID); err != nil {
		return err
	}

	attending, err := s.repo.IsAttending(ctx, sessionID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if !attending {
		return appErrors.Clone(appErrors.ErrValidation, "you are not attending this session")
	}

	if err := s.repo.RemoveAttendee(ctx, sessionID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave session")
	}
	return nil
}

// Delete removes a session. Only the owning mentor or an admin may delete.
func (s *SessionService) Delete(ctx context.Context, sessionID string, claims *models.JWTClaims) error {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.MentorID != claims.UserID && claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the mentor can delete this session")
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

func (s *SessionService) findSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

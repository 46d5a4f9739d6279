package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/models"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions  map[string]*models.Session
	attendees map[string]map[string]bool
}

func newMockSessionRepo(sessions ...*models.Session) *mockSessionRepo {
	m := &mockSessionRepo{
		sessions:  make(map[string]*models.Session),
		attendees: make(map[string]map[string]bool),
	}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) List(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	delete(m.attendees, id)
	return nil
}

func (m *mockSessionRepo) ListAttendees(ctx context.Context, sessionID string) ([]models.SessionAttendee, error) {
	var out []models.SessionAttendee
	for userID := range m.attendees[sessionID] {
		out = append(out, models.SessionAttendee{ID: userID})
	}
	return out, nil
}

func (m *mockSessionRepo) IsAttending(ctx context.Context, sessionID, userID string) (bool, error) {
	return m.attendees[sessionID][userID], nil
}

func (m *mockSessionRepo) AddAttendee(ctx context.Context, sessionID, userID string) error {
	if m.attendees[sessionID] == nil {
		m.attendees[sessionID] = make(map[string]bool)
	}
	m.attendees[sessionID][userID] = true
	return nil
}

func (m *mockSessionRepo) RemoveAttendee(ctx context.Context, sessionID, userID string) error {
	delete(m.attendees[sessionID], userID)
	return nil
}

func TestSessionServiceCreateValidates(t *testing.T) {
	svc := NewSessionService(newMockSessionRepo(), nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "mentor", CreateSessionRequest{Title: "Intro"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	session, err := svc.Create(context.Background(), "mentor", CreateSessionRequest{
		Title:       "Intro to backend",
		Description: "career chat",
		Date:        time.Now().Add(48 * time.Hour),
		Duration:    60,
	})
	require.NoError(t, err)
	assert.Equal(t, "mentor", session.MentorID)
	assert.NotEmpty(t, session.ID)
}

func TestSessionServiceJoinNotifiesMentor(t *testing.T) {
	repo := newMockSessionRepo(&models.Session{ID: "s1", MentorID: "mentor", Title: "Office hours"})
	notifier := &fakeNotifier{}
	svc := NewSessionService(repo, notifier, nil, zap.NewNop())

	session, err := svc.Join(context.Background(), "s1", "student")
	require.NoError(t, err)
	assert.Len(t, session.Attendees, 1)
	require.Len(t, notifier.userIDs, 1)
	assert.Equal(t, "mentor", notifier.userIDs[0])
	assert.Contains(t, notifier.messages[0], "Office hours")
}

func TestSessionServiceJoinGuards(t *testing.T) {
	repo := newMockSessionRepo(&models.Session{ID: "s1", MentorID: "mentor", Title: "Office hours"})
	svc := NewSessionService(repo, nil, nil, zap.NewNop())

	_, err := svc.Join(context.Background(), "s1", "mentor")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Join(context.Background(), "s1", "student")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "s1", "student")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Join(context.Background(), "missing", "student")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceLeave(t *testing.T) {
	repo := newMockSessionRepo(&models.Session{ID: "s1", MentorID: "mentor"})
	svc := NewSessionService(repo, nil, nil, zap.NewNop())

	err := svc.Leave(context.Background(), "s1", "student")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Join(context.Background(), "s1", "student")
	require.NoError(t, err)
	require.NoError(t, svc.Leave(context.Background(), "s1", "student"))
	assert.False(t, repo.attendees["s1"]["student"])
}

func TestSessionServiceDeleteOwnership(t *testing.T) {
	repo := newMockSessionRepo(&models.Session{ID: "s1", MentorID: "mentor"})
	svc := NewSessionService(repo, nil, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "s1", &models.JWTClaims{UserID: "intruder", Role: models.RoleSenior})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "s1", &models.JWTClaims{UserID: "admin-user", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, repo.sessions)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusconnect/campus-connect-api/internal/models"
)

// SessionRepository provides database access for mentorship sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	const query = `INSERT INTO sessions (id, mentor_id, title, description, date, duration, link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.MentorID, session.Title, session.Description,
		session.Date, session.Duration, session.Link, session.CreatedAt,
	); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID returns a session with its mentor name.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT s.id, s.mentor_id, s.title, s.description, s.date, s.duration, s.link, s.created_at, u.name AS mentor_name
		FROM sessions s
		JOIN users u ON u.id = s.mentor_id
		WHERE s.id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// List returns all sessions ordered by date ascending.
func (r *SessionRepository) List(ctx context.Context) ([]models.Session, error) {
	const query = `SELECT s.id, s.mentor_id, s.title, s.description, s.date, s.duration, s.link, s.created_at, u.name AS mentor_name
		FROM sessions s
		JOIN users u ON u.id = s.mentor_id
		ORDER BY s.date ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and its attendee rows.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_attendees WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session attendees: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListAttendees returns the attendees of a session.
func (r *SessionRepository) ListAttendees(ctx context.Context, sessionID string) ([]models.SessionAttendee, error) {
	const query = `SELECT u.id, u.name, u.role
		FROM session_attendees sa
		JOIN users u ON u.id = sa.user_id
		WHERE sa.session_id = $1
		ORDER BY u.name ASC`
	var attendees []models.SessionAttendee
	if err := r.db.SelectContext(ctx, &attendees, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendees: %w", err)
	}
	return attendees, nil
}

// IsAttending reports whether the user already joined the session.
func (r *SessionRepository) IsAttending(ctx context.Context, sessionID, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM session_attendees WHERE session_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID, userID); err != nil {
		return false, fmt.Errorf("check session attendance: %w", err)
	}
	return count > 0, nil
}

// AddAttendee records a user joining a session.
func (r *SessionRepository) AddAttendee(ctx context.Context, sessionID, userID string) error {
	const query = `INSERT INTO session_attendees (session_id, user_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, sessionID, userID); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("add session attendee: %w", err)
	}
	return nil
}

// RemoveAttendee records a user leaving a session.
func (r *SessionRepository) RemoveAttendee(ctx context.Context, sessionID, userID string) error {
	const query = `DELETE FROM session_attendees WHERE session_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, sessionID, userID); err != nil {
		return fmt.Errorf("remove session attendee: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusconnect/campus-connect-api/internal/models"
)

// ChatRepository provides database access for chat requests and messages.
//
// The pending-duplicate invariant is enforced in the schema with a partial
// unique index:
//
//	CREATE UNIQUE INDEX chat_requests_pending_pair
//	    ON chat_requests (sender_id, receiver_id) WHERE status = 'PENDING';
//
// so concurrent sends cannot both commit; the application-level pre-check in
// the service only exists for a friendlier error message.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateRequest inserts a new pending chat request. A concurrent duplicate
// surfaces as a unique violation the service maps to a conflict.
func (r *ChatRepository) CreateRequest(ctx context.Context, req *models.ChatRequest) error {
	const query = `INSERT INTO chat_requests (id, sender_id, receiver_id, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		req.ID, req.SenderID, req.ReceiverID, req.Message, req.Status, req.CreatedAt, req.UpdatedAt,
	); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create chat request: %w", err)
	}
	return nil
}

// FindRequestByID returns a chat request by identifier.
func (r *ChatRepository) FindRequestByID(ctx context.Context, id string) (*models.ChatRequest, error) {
	const query = `SELECT id, sender_id, receiver_id, message, status, created_at, updated_at FROM chat_requests WHERE id = $1 LIMIT 1`
	var req models.ChatRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find chat request: %w", err)
	}
	return &req, nil
}

// FindPendingRequest returns the pending request for the ordered pair, if any.
func (r *ChatRepository) FindPendingRequest(ctx context.Context, senderID, receiverID string) (*models.ChatRequest, error) {
	const query = `SELECT id, sender_id, receiver_id, message, status, created_at, updated_at FROM chat_requests WHERE sender_id = $1 AND receiver_id = $2 AND status = 'PENDING' LIMIT 1`
	var req models.ChatRequest
	if err := r.db.GetContext(ctx, &req, query, senderID, receiverID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending chat request: %w", err)
	}
	return &req, nil
}

// ListRequestsForUser returns every request where the user is sender or
// receiver, newest-updated first, with the party names joined in.
func (r *ChatRepository) ListRequestsForUser(ctx context.Context, userID string) ([]models.ChatRequest, error) {
	const query = `SELECT cr.id, cr.sender_id, cr.receiver_id, cr.message, cr.status, cr.created_at, cr.updated_at,
			s.name AS sender_name, rc.name AS receiver_name
		FROM chat_requests cr
		JOIN users s ON s.id = cr.sender_id
		JOIN users rc ON rc.id = cr.receiver_id
		WHERE cr.sender_id = $1 OR cr.receiver_id = $1
		ORDER BY cr.updated_at DESC`
	var requests []models.ChatRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list chat requests: %w", err)
	}
	return requests, nil
}

// UpdateRequestStatus transitions a pending request to a terminal state. The
// status guard in the WHERE clause keeps the transition single-shot even
// under concurrent responders.
func (r *ChatRepository) UpdateRequestStatus(ctx context.Context, id string, status models.ChatRequestStatus, updatedAt time.Time) (bool, error) {
	const query = `UPDATE chat_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, id, status, updatedAt)
	if err != nil {
		return false, fmt.Errorf("update chat request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update chat request status: %w", err)
	}
	return affected == 1, nil
}

// CreateMessage inserts a new message.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	const query = `INSERT INTO messages (id, chat_request_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.ChatRequestID, msg.SenderID, msg.Content, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages oldest-first with sender
// names joined in.
func (r *ChatRepository) ListMessages(ctx context.Context, chatRequestID string) ([]models.Message, error) {
	const query = `SELECT m.id, m.chat_request_id, m.sender_id, m.content, m.created_at, u.name AS sender_name
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_request_id = $1
		ORDER BY m.created_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, chatRequestID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

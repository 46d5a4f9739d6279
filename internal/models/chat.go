package models

import "time"

// ChatRequestStatus is the lifecycle state of a chat request.
type ChatRequestStatus string

const (
	ChatPending  ChatRequestStatus = "PENDING"
	ChatAccepted ChatRequestStatus = "ACCEPTED"
	ChatRejected ChatRequestStatus = "REJECTED"
)

// ChatRequest gates a direct conversation between two users. Its id is the
// conversation room key for real-time delivery.
type ChatRequest struct {
	ID           string            `db:"id" json:"id"`
	SenderID     string            `db:"sender_id" json:"senderId"`
	ReceiverID   string            `db:"receiver_id" json:"receiverId"`
	Message      *string           `db:"message" json:"message,omitempty"`
	Status       ChatRequestStatus `db:"status" json:"status"`
	SenderName   string            `db:"sender_name" json:"senderName,omitempty"`
	ReceiverName string            `db:"receiver_name" json:"receiverName,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

// Message is a single, immutable chat utterance within an accepted request.
type Message struct {
	ID            string    `db:"id" json:"id"`
	ChatRequestID string    `db:"chat_request_id" json:"chatRequestId"`
	SenderID      string    `db:"sender_id" json:"senderId"`
	SenderName    string    `db:"sender_name" json:"senderName,omitempty"`
	Content       string    `db:"content" json:"content"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

package models

import "time"

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotificationSessionJoin NotificationType = "session_join"
	NotificationChatRequest NotificationType = "chat_request"
)

// Notification is a short message delivered to a user's inbox.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"userId"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

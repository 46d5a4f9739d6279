package models

import "time"

// Session is a mentorship session hosted by a senior, alumni or admin.
type Session struct {
	ID          string    `db:"id" json:"id"`
	MentorID    string    `db:"mentor_id" json:"mentorId"`
	MentorName  string    `db:"mentor_name" json:"mentorName,omitempty"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Date        time.Time `db:"date" json:"date"`
	Duration    int       `db:"duration" json:"duration"`
	Link        string    `db:"link" json:"link"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`

	Attendees []SessionAttendee `db:"-" json:"attendees,omitempty"`
}

// SessionAttendee is a lightweight projection of a session participant.
type SessionAttendee struct {
	ID   string   `db:"id" json:"id"`
	Name string   `db:"name" json:"name"`
	Role UserRole `db:"role" json:"role"`
}

package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the role assigned to an account. junior and senior are
// derived from the academic year; alumni and admin are manually assigned.
type UserRole string

const (
	RoleJunior UserRole = "junior"
	RoleSenior UserRole = "senior"
	RoleAlumni UserRole = "alumni"
	RoleAdmin  UserRole = "admin"
)

// User represents an account stored in the users table. The academic year is
// never persisted; it is recomputed from AdmissionYear on every read.
type User struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Email         string         `db:"email" json:"email"`
	PasswordHash  string         `db:"password_hash" json:"-"`
	Role          UserRole       `db:"role" json:"role"`
	RollNumber    string         `db:"roll_number" json:"rollNumber"`
	AdmissionYear int            `db:"admission_year" json:"admissionYear"`
	Department    string         `db:"department" json:"department"`
	Bio           string         `db:"bio" json:"bio"`
	Skills        pq.StringArray `db:"skills" json:"skills"`
	Github        string         `db:"github" json:"github"`
	Linkedin      string         `db:"linkedin" json:"linkedin"`
	ProfilePic    string         `db:"profile_pic" json:"profilePic"`
	IsVerified    bool           `db:"is_verified" json:"isVerified"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// Profile is the outward projection of a user. PasswordHash never leaves the
// service layer; AcademicYear carries the live-computed value.
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          UserRole  `json:"role"`
	RollNumber    string    `json:"rollNumber"`
	AdmissionYear int       `json:"admissionYear"`
	AcademicYear  int       `json:"academicYear"`
	Department    string    `json:"department"`
	Bio           string    `json:"bio"`
	Skills        []string  `json:"skills"`
	Github        string    `json:"github"`
	Linkedin      string    `json:"linkedin"`
	ProfilePic    string    `json:"profilePic"`
	IsVerified    bool      `json:"isVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UserFilter captures filtering criteria for the user directory.
type UserFilter struct {
	Roles      []UserRole
	Department string
	Search     string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

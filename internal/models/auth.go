package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest is the registration payload. Role is deliberately absent:
// it is derived from the institutional email, never supplied by the client.
type RegisterRequest struct {
	Name       string   `json:"name" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6"`
	Department string   `json:"department"`
	Bio        string   `json:"bio"`
	Skills     []string `json:"skills"`
	Github     string   `json:"github"`
	Linkedin   string   `json:"linkedin"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login: the profile plus a bearer
// token. Role and academic year reflect the post-resync state.
type AuthResponse struct {
	Token string `json:"token"`
	Profile
}

// JWTClaims embeds the capability snapshot carried by access tokens. Role is
// frozen at issuance and refreshed only by the login-time resync.
type JWTClaims struct {
	UserID string   `json:"id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

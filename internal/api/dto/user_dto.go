package dto

import (
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// UserRegisterRequest payload for new agents.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields and the email shape.
func (r UserRegisterRequest) Validate() error {
	errs := fieldErrors{}
	if strings.TrimSpace(r.Name) == "" {
		errs.add("name", "name is required")
	}
	if email := strings.TrimSpace(r.Email); email == "" {
		errs.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.add("email", "email is invalid")
	}
	if r.Password == "" {
		errs.add("password", "password is required")
	}
	return errs.err()
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r UserLoginRequest) Validate() error {
	errs := fieldErrors{}
	if strings.TrimSpace(r.Email) == "" {
		errs.add("email", "email is required")
	}
	if r.Password == "" {
		errs.add("password", "password is required")
	}
	return errs.err()
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse pairs the signed-in user with their token.
type SessionResponse struct {
	User UserRefResponse `json:"user"`
	Auth AuthResponse    `json:"auth"`
}

// NewSessionResponse converts a user and token.
func NewSessionResponse(user *domain.User, token string, expiresAt time.Time) SessionResponse {
	return SessionResponse{
		User: UserRefResponse{ID: user.ID, Name: user.Name, Email: user.Email},
		Auth: AuthResponse{Token: token, ExpiresAt: expiresAt},
	}
}

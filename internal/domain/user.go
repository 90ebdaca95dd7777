package domain

import "time"

// User is an agent account. Any user can request, be assigned, comment
// or perform activities.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the lightweight user shape embedded in read models.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

// Ref returns the embedded shape for u.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

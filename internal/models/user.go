package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleGuest
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// Registration is the input of a user registration.
type Registration struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            Role   `json:"role"`
}

func (r Registration) Validate() error {
	var errs []FieldError
	if strings.TrimSpace(r.Username) == "" {
		errs = append(errs, FieldError{Field: "username", Description: "username is required"})
	}
	if len(r.Password) < MinPasswordLength {
		errs = append(errs, FieldError{Field: "password", Description: "password must be at least 6 characters"})
	}
	if r.Password != r.ConfirmPassword {
		errs = append(errs, FieldError{Field: "confirm_password", Description: "passwords do not match"})
	}
	if !r.Role.Valid() {
		errs = append(errs, FieldError{Field: "role", Description: "role must be admin or guest"})
	}
	return NewValidationError(errs...)
}

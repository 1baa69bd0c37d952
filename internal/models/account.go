package models

import "time"

// Account is one registered identity. PasswordHash never leaves the
// credential store: every account returned to callers is sanitized.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sanitized returns a copy of the account with the password hash stripped.
func (a *Account) Sanitized() *Account {
	copied := *a
	copied.PasswordHash = ""
	return &copied
}

package models

import "time"

// DeliveryMethod is the channel an OTP code is dispatched over.
type DeliveryMethod string

const (
	DeliveryEmail DeliveryMethod = "email"
	DeliverySMS   DeliveryMethod = "sms"
)

// Valid reports whether m is a known delivery method.
func (m DeliveryMethod) Valid() bool {
	return m == DeliveryEmail || m == DeliverySMS
}

// Challenge is the live OTP record for one account and one issuance.
// An account has at most one challenge at a time; issuing a new one
// replaces the old record entirely.
type Challenge struct {
	ID            string         `json:"id"`
	AccountID     int64          `json:"account_id"`
	Code          string         `json:"-"`
	Length        int            `json:"length"`
	Method        DeliveryMethod `json:"method"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiryMinutes int            `json:"expiry_minutes"`
	Consumed      bool           `json:"consumed"`
}

// ExpiresAt returns the instant the challenge stops being verifiable.
func (c *Challenge) ExpiresAt() time.Time {
	return c.CreatedAt.Add(time.Duration(c.ExpiryMinutes) * time.Minute)
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt())
}

// Active reports whether the challenge can still be verified at now.
func (c *Challenge) Active(now time.Time) bool {
	return !c.Consumed && !c.Expired(now)
}

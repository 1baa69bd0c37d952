package models

import "time"

// Security event types emitted by the auth service.
const (
	EventRegistered     = "account_registered"
	EventLoginSucceeded = "login_succeeded"
	EventLoginFailed    = "login_failed"
	EventOTPIssued      = "otp_issued"
	EventOTPVerified    = "otp_verified"
	EventOTPFailed      = "otp_failed"
	EventOTPExpired     = "otp_expired"
	EventLogout         = "logout"
	EventPasswordChange = "password_changed"
	EventProfileUpdated = "profile_updated"
)

// SecurityEvent is the audit record published for every auth decision.
type SecurityEvent struct {
	EventID   string    `json:"event_id"`
	AccountID int64     `json:"account_id"`
	EventType string    `json:"event_type"`
	EventTime time.Time `json:"event_time"`
	Details   string    `json:"details,omitempty"`
}

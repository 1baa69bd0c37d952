package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"login-service/internal/events"
	"login-service/internal/models"
	"login-service/internal/notify"
	"login-service/internal/otp"
	"login-service/internal/session"
	"login-service/internal/store"
	"login-service/internal/util"
	"login-service/internal/validation"

	"go.uber.org/zap"
)

// AuthService sequences the login flow: credential check, OTP challenge,
// session promotion. It owns one session machine per account currently
// mid-flow and never exposes challenges or stored credentials.
type AuthService struct {
	store  *store.CredentialStore
	otp    *otp.Manager
	events events.Publisher
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*session.Machine
}

// LoginResult is what a successful credential check hands back to the
// transport layer. DeliveryFailed is set when the passcode could not be
// dispatched; the challenge is live regardless.
type LoginResult struct {
	Account        *models.Account `json:"account"`
	SessionState   string          `json:"session_state"`
	OtpMethod      string          `json:"otp_method"`
	DeliveryFailed bool            `json:"delivery_failed,omitempty"`
}

// NewAuthService wires the service together.
func NewAuthService(credStore *store.CredentialStore, otpManager *otp.Manager, publisher events.Publisher, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:    credStore,
		otp:      otpManager,
		events:   publisher,
		logger:   logger,
		sessions: make(map[int64]*session.Machine),
	}
}

// Register validates the input and creates an account.
func (s *AuthService) Register(ctx context.Context, input store.RegisterInput) (*models.Account, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	account, err := s.store.Register(ctx, input)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, account.ID, models.EventRegistered, account.Username)

	return account, nil
}

// Login verifies credentials and, on success, issues an OTP challenge over
// method (email when unspecified). The session moves to OtpPending; a
// delivery failure is reported in the result, not as an error.
func (s *AuthService) Login(ctx context.Context, username, password string, method models.DeliveryMethod) (*LoginResult, error) {
	start := time.Now()

	account, err := s.store.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			s.events.Publish(ctx, 0, models.EventLoginFailed, username)
		}
		return nil, err
	}

	machine := s.resetSession(account.ID)
	if err := machine.MarkCredentialVerified(); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, account.ID, models.EventLoginSucceeded, "")

	if method == "" {
		method = models.DeliveryEmail
	}

	result := &LoginResult{Account: account, OtpMethod: string(method)}

	if err := s.issueChallenge(ctx, account, machine, method); err != nil {
		if !errors.Is(err, notify.ErrDeliveryFailed) {
			return nil, err
		}
		result.DeliveryFailed = true
	}
	result.SessionState = machine.Current().String()

	s.logger.Info("Login flow advanced to OTP",
		util.Int64("account_id", account.ID),
		util.String("method", string(method)),
		util.Bool("delivery_failed", result.DeliveryFailed),
		util.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// SendOTP issues (or re-issues) a challenge for an account that already
// passed the credential check.
func (s *AuthService) SendOTP(ctx context.Context, accountID int64, method models.DeliveryMethod) error {
	machine := s.sessionFor(accountID)
	if machine == nil {
		return ErrLoginRequired
	}
	switch machine.Current() {
	case session.CredentialVerified, session.OtpPending:
	default:
		return ErrLoginRequired
	}

	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if method == "" {
		method = models.DeliveryEmail
	}

	return s.issueChallenge(ctx, account, machine, method)
}

// VerifyOTP checks the code for the account's pending challenge and, on
// success, promotes the session to Authenticated. Any failure leaves the
// session at OtpPending so the user can retry until expiry.
func (s *AuthService) VerifyOTP(ctx context.Context, accountID int64, code string) error {
	machine := s.sessionFor(accountID)
	if machine == nil || machine.Current() != session.OtpPending {
		return ErrLoginRequired
	}

	if err := s.otp.Verify(ctx, accountID, code); err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			s.events.Publish(ctx, accountID, models.EventOTPExpired, "")
		case errors.Is(err, otp.ErrMismatch):
			s.events.Publish(ctx, accountID, models.EventOTPFailed, "")
		}
		return err
	}

	if err := machine.MarkAuthenticated(); err != nil {
		return err
	}
	s.events.Publish(ctx, accountID, models.EventOTPVerified, "")

	s.logger.Info("Session authenticated", util.Int64("account_id", accountID))

	return nil
}

// RemainingSeconds reports how long the account's challenge stays valid.
func (s *AuthService) RemainingSeconds(ctx context.Context, accountID int64) (int, error) {
	return s.otp.RemainingSeconds(ctx, accountID)
}

// Logout resets the account's session and invalidates any challenge.
func (s *AuthService) Logout(ctx context.Context, accountID int64) error {
	s.mu.Lock()
	machine := s.sessions[accountID]
	delete(s.sessions, accountID)
	s.mu.Unlock()

	if machine != nil {
		machine.Logout()
	}
	if err := s.otp.Invalidate(ctx, accountID); err != nil {
		return err
	}

	s.events.Publish(ctx, accountID, models.EventLogout, "")

	return nil
}

// IsAuthenticated reports whether the account completed the full flow.
func (s *AuthService) IsAuthenticated(accountID int64) bool {
	machine := s.sessionFor(accountID)
	return machine != nil && machine.IsAuthenticated()
}

// SessionState returns the session state name for the account.
func (s *AuthService) SessionState(accountID int64) string {
	machine := s.sessionFor(accountID)
	if machine == nil {
		return session.Unauthenticated.String()
	}
	return machine.Current().String()
}

// GetAccount returns the account, password stripped.
func (s *AuthService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.store.GetByID(ctx, accountID)
}

// ChangePassword validates the new password's strength and rotates it.
func (s *AuthService) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	if result := validation.Password(next); !result.Valid {
		return &ValidationError{Field: "password", Message: result.Message}
	}

	if err := s.store.ChangePassword(ctx, accountID, current, next); err != nil {
		return err
	}

	s.events.Publish(ctx, accountID, models.EventPasswordChange, "")

	return nil
}

// UpdateProfile changes the account's email address.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID int64, email string) (*models.Account, error) {
	if !validation.Email(email) {
		return nil, &ValidationError{Field: "email", Message: "Invalid email format"}
	}

	account, err := s.store.UpdateProfile(ctx, accountID, email)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, accountID, models.EventProfileUpdated, "")

	return account, nil
}

func (s *AuthService) issueChallenge(ctx context.Context, account *models.Account, machine *session.Machine, method models.DeliveryMethod) error {
	destination, err := destinationFor(account, method)
	if err != nil {
		return err
	}

	_, issueErr := s.otp.Issue(ctx, account.ID, destination, method)
	if issueErr != nil && !errors.Is(issueErr, notify.ErrDeliveryFailed) {
		return issueErr
	}

	// The challenge exists even when delivery failed, so the session
	// advances either way. Re-issues leave an OtpPending session alone.
	if machine.Current() == session.CredentialVerified {
		if err := machine.MarkOtpIssued(); err != nil {
			return err
		}
	}

	s.events.Publish(ctx, account.ID, models.EventOTPIssued, string(method))

	return issueErr
}

// sessionFor returns the machine for accountID, or nil when no login
// attempt is in flight.
func (s *AuthService) sessionFor(accountID int64) *session.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[accountID]
}

// resetSession installs a fresh machine for a new login attempt.
func (s *AuthService) resetSession(accountID int64) *session.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()

	machine := session.NewMachine()
	s.sessions[accountID] = machine
	return machine
}

func destinationFor(account *models.Account, method models.DeliveryMethod) (string, error) {
	switch method {
	case models.DeliveryEmail:
		return account.Email, nil
	case models.DeliverySMS:
		if account.Phone == "" {
			return "", &ValidationError{Field: "method", Message: "No phone number on file for SMS delivery"}
		}
		return account.Phone, nil
	default:
		return "", &ValidationError{Field: "method", Message: "Delivery method must be email or sms"}
	}
}

func validateRegisterInput(input store.RegisterInput) error {
	if result := validation.Username(input.Username); !result.Valid {
		return &ValidationError{Field: "username", Message: result.Message}
	}
	if !validation.Email(input.Email) {
		return &ValidationError{Field: "email", Message: "Invalid email format"}
	}
	if result := validation.Password(input.Password); !result.Valid {
		return &ValidationError{Field: "password", Message: result.Message}
	}
	if input.Phone != "" && !validation.Phone(input.Phone) {
		return &ValidationError{Field: "phone", Message: "Invalid phone number format"}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"login-service/internal/events"
	"login-service/internal/hashing"
	"login-service/internal/models"
	"login-service/internal/otp"
	"login-service/internal/session"
	"login-service/internal/store"

	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu       sync.Mutex
	lastCode string
	lastDest string
	fail     bool
}

func (n *recordingNotifier) Send(ctx context.Context, destination, code string, method models.DeliveryMethod) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastCode, n.lastDest = code, destination
	if n.fail {
		return errors.New("provider outage")
	}
	return nil
}

func (n *recordingNotifier) code() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastCode
}

func newTestService(t *testing.T) (*AuthService, *recordingNotifier) {
	t.Helper()

	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	credStore := store.NewCredentialStore(hashing.NewHasher(hashing.Argon2Params{}), nil, logger)
	manager := otp.NewManager(otp.NewMemoryChallengeStore(), notifier, nil, otp.Options{}, logger)

	return NewAuthService(credStore, manager, events.NopPublisher{}, logger), notifier
}

func register(t *testing.T, s *AuthService, username, email, password string) *models.Account {
	t.Helper()
	acc, err := s.Register(context.Background(), store.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return acc
}

func TestFullLoginFlow(t *testing.T) {
	ctx := context.Background()
	s, notifier := newTestService(t)

	acc := register(t, s, "alice", "alice@example.com", "Abcdef1!")

	result, err := s.Login(ctx, "alice", "Abcdef1!", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Account.ID != acc.ID {
		t.Errorf("account id = %d, want %d", result.Account.ID, acc.ID)
	}
	if result.SessionState != session.OtpPending.String() {
		t.Errorf("session state = %q, want otp_pending", result.SessionState)
	}
	if result.OtpMethod != "email" {
		t.Errorf("method = %q, want default email", result.OtpMethod)
	}
	if notifier.lastDest != "alice@example.com" {
		t.Errorf("destination = %q", notifier.lastDest)
	}
	if s.IsAuthenticated(acc.ID) {
		t.Fatal("otp pending must not count as authenticated")
	}

	if err := s.VerifyOTP(ctx, acc.ID, notifier.code()); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if !s.IsAuthenticated(acc.ID) {
		t.Fatal("expected authenticated after OTP success")
	}
	if got := s.SessionState(acc.ID); got != session.Authenticated.String() {
		t.Errorf("state = %q", got)
	}
}

func TestLoginFailureLeavesUnauthenticated(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	register(t, s, "bob", "bob@example.com", "Abcdef1!")

	if _, err := s.Login(ctx, "bob", "wrong", ""); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	if got := s.SessionState(1); got != session.Unauthenticated.String() {
		t.Errorf("state = %q, want unauthenticated", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	tests := []struct {
		name  string
		input store.RegisterInput
		field string
	}{
		{"BadUsername", store.RegisterInput{Username: "1bob", Email: "a@b.com", Password: "Abcdef1!"}, "username"},
		{"BadEmail", store.RegisterInput{Username: "bob", Email: "nope", Password: "Abcdef1!"}, "email"},
		{"WeakPassword", store.RegisterInput{Username: "bob", Email: "a@b.com", Password: "short"}, "password"},
		{"BadPhone", store.RegisterInput{Username: "bob", Email: "a@b.com", Password: "Abcdef1!", Phone: "123"}, "phone"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.input)
			ve, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestVerifyWithoutLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	register(t, s, "carol", "carol@example.com", "Abcdef1!")

	if err := s.VerifyOTP(ctx, 1, "123456"); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v, want ErrLoginRequired", err)
	}
	if err := s.SendOTP(ctx, 1, models.DeliveryEmail); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v, want ErrLoginRequired", err)
	}
}

func TestOTPMismatchAllowsRetry(t *testing.T) {
	ctx := context.Background()
	s, notifier := newTestService(t)

	acc := register(t, s, "dave", "dave@example.com", "Abcdef1!")
	if _, err := s.Login(ctx, "dave", "Abcdef1!", ""); err != nil {
		t.Fatal(err)
	}

	wrong := "000000"
	if wrong == notifier.code() {
		wrong = "000001"
	}
	if err := s.VerifyOTP(ctx, acc.ID, wrong); !errors.Is(err, otp.ErrMismatch) {
		t.Fatalf("err = %v, want ErrMismatch", err)
	}
	if got := s.SessionState(acc.ID); got != session.OtpPending.String() {
		t.Errorf("state after mismatch = %q, want otp_pending", got)
	}

	if err := s.VerifyOTP(ctx, acc.ID, notifier.code()); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

func TestResendReplacesChallenge(t *testing.T) {
	ctx := context.Background()
	s, notifier := newTestService(t)

	acc := register(t, s, "erin", "erin@example.com", "Abcdef1!")
	if _, err := s.Login(ctx, "erin", "Abcdef1!", ""); err != nil {
		t.Fatal(err)
	}

	firstCode := notifier.code()
	if err := s.SendOTP(ctx, acc.ID, models.DeliveryEmail); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	secondCode := notifier.code()

	if firstCode != secondCode {
		if err := s.VerifyOTP(ctx, acc.ID, firstCode); !errors.Is(err, otp.ErrMismatch) {
			t.Fatalf("superseded code err = %v, want ErrMismatch", err)
		}
	}
	if err := s.VerifyOTP(ctx, acc.ID, secondCode); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
}

func TestDeliveryFailureStillAdvancesSession(t *testing.T) {
	ctx := context.Background()
	s, notifier := newTestService(t)
	notifier.fail = true

	acc := register(t, s, "frank", "frank@example.com", "Abcdef1!")

	result, err := s.Login(ctx, "frank", "Abcdef1!", "")
	if err != nil {
		t.Fatalf("Login should succeed despite delivery failure: %v", err)
	}
	if !result.DeliveryFailed {
		t.Error("DeliveryFailed should be reported")
	}
	if result.SessionState != session.OtpPending.String() {
		t.Errorf("state = %q, want otp_pending", result.SessionState)
	}

	// The generated code is still live.
	if err := s.VerifyOTP(ctx, acc.ID, notifier.code()); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
}

func TestSMSRequiresPhone(t *testing.T) {
	ctx := context.Background()
	s, notifier := newTestService(t)

	register(t, s, "gina", "gina@example.com", "Abcdef1!")
	if _, err := s.Login(ctx, "gina", "Abcdef1!", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SendOTP(ctx, 1, models.DeliverySMS); err == nil {
		t.Fatal("sms without a phone on file should fail")
	} else if _, ok := AsValidationError(err); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	if _, err := s.Register(ctx, store.RegisterInput{
		Username: "hank",
		Email:    "hank@example.com",
		Phone:    "+15551234567",
		Password: "Abcdef1!",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Login(ctx, "hank", "Abcdef1!", models.DeliverySMS); err != nil {
		t.Fatal(err)
	}
	if notifier.lastDest != "+15551234567" {
		t.Errorf("destination = %q, want the phone number", notifier.lastDest)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s, notifier := newTestService(t)

	acc := register(t, s, "ivan", "ivan@example.com", "Abcdef1!")
	if _, err := s.Login(ctx, "ivan", "Abcdef1!", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.VerifyOTP(ctx, acc.ID, notifier.code()); err != nil {
		t.Fatal(err)
	}
	if !s.IsAuthenticated(acc.ID) {
		t.Fatal("expected authenticated")
	}

	if err := s.Logout(ctx, acc.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.IsAuthenticated(acc.ID) {
		t.Fatal("logout should reset authentication")
	}
	if err := s.VerifyOTP(ctx, acc.ID, notifier.code()); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v, want ErrLoginRequired", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	acc := register(t, s, "kate", "kate@example.com", "Abcdef1!")
	register(t, s, "liam", "liam@example.com", "Abcdef1!")

	if _, err := s.UpdateProfile(ctx, acc.ID, "not-an-email"); err == nil {
		t.Fatal("malformed email should be rejected")
	} else if ve, ok := AsValidationError(err); !ok || ve.Field != "email" {
		t.Fatalf("err = %v, want email ValidationError", err)
	}

	if _, err := s.UpdateProfile(ctx, acc.ID, "liam@example.com"); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if _, err := s.UpdateProfile(ctx, 999, "new@example.com"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}

	updated, err := s.UpdateProfile(ctx, acc.ID, "kate@new.example.com")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Email != "kate@new.example.com" {
		t.Errorf("email = %q", updated.Email)
	}

	got, err := s.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "kate@new.example.com" {
		t.Errorf("stored email = %q", got.Email)
	}
}

func TestChangePasswordEnforcesStrength(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	acc := register(t, s, "judy", "judy@example.com", "Abcdef1!")

	if err := s.ChangePassword(ctx, acc.ID, "Abcdef1!", "weak"); err == nil {
		t.Fatal("weak replacement password should be rejected")
	} else if _, ok := AsValidationError(err); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	if err := s.ChangePassword(ctx, acc.ID, "Abcdef1!", "NewPass1!"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := s.Login(ctx, "judy", "NewPass1!", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

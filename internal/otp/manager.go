package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"login-service/internal/clock"
	"login-service/internal/models"
	"login-service/internal/notify"
	"login-service/internal/shard"
	"login-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoActiveChallenge = errors.New("no active challenge for account")
	ErrExpired           = errors.New("passcode has expired")
	ErrMismatch          = errors.New("passcode does not match")
	ErrInvalidMethod     = errors.New("unknown delivery method")
)

const defaultExpiryMinutes = 10

// Options tunes challenge issuance.
type Options struct {
	CodeLength    int
	ExpiryMinutes int
	Alphanumeric  bool
	LockStripes   int
}

// Manager drives the challenge lifecycle: issue, dispatch, verify, expire.
// Operations on the same account are serialized through striped locks;
// different accounts proceed independently. Expiry is evaluated lazily
// against the clock, there is no eviction timer.
type Manager struct {
	store     ChallengeStore
	notifier  notify.Notifier
	generator *Generator
	locks     *shard.StripedLock
	clock     clock.Clock
	expiry    int
	logger    *zap.Logger
}

// NewManager creates a Manager. A nil clock means system time.
func NewManager(store ChallengeStore, notifier notify.Notifier, clk clock.Clock, opts Options, logger *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	expiry := opts.ExpiryMinutes
	if expiry < 1 {
		expiry = defaultExpiryMinutes
	}

	return &Manager{
		store:     store,
		notifier:  notifier,
		generator: NewGenerator(opts.CodeLength, opts.Alphanumeric),
		locks:     shard.NewStripedLock(opts.LockStripes),
		clock:     clk,
		expiry:    expiry,
		logger:    logger,
	}
}

// Issue creates a new challenge for the account, replacing any prior one,
// then dispatches the code to destination. The challenge is committed
// before dispatch: a delivery failure is returned wrapped in
// notify.ErrDeliveryFailed alongside the already-issued challenge.
func (m *Manager) Issue(ctx context.Context, accountID int64, destination string, method models.DeliveryMethod) (*models.Challenge, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	code, err := m.generator.Generate()
	if err != nil {
		return nil, err
	}

	challenge := &models.Challenge{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Code:          code,
		Length:        m.generator.Length(),
		Method:        method,
		CreatedAt:     m.clock.Now(),
		ExpiryMinutes: m.expiry,
	}

	m.locks.LockID(accountID)
	err = m.store.Put(ctx, challenge)
	m.locks.UnlockID(accountID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Challenge issued",
		util.Int64("account_id", accountID),
		util.String("challenge_id", challenge.ID),
		util.String("method", string(method)),
		util.Int("expiry_minutes", challenge.ExpiryMinutes),
	)

	// Dispatch after the state transition: a notifier failure must not
	// unwind the issued challenge.
	if err := m.notifier.Send(ctx, destination, code, method); err != nil {
		m.logger.Warn("Passcode delivery failed",
			util.Int64("account_id", accountID),
			util.String("challenge_id", challenge.ID),
			util.ErrorField(err),
		)
		return challenge, fmt.Errorf("%w: %v", notify.ErrDeliveryFailed, err)
	}

	return challenge, nil
}

// Verify checks input against the account's challenge. Expiry is checked
// before the code, a consumed challenge counts as absent, and a mismatch
// leaves the challenge active for another attempt.
func (m *Manager) Verify(ctx context.Context, accountID int64, input string) error {
	m.locks.LockID(accountID)
	defer m.locks.UnlockID(accountID)

	challenge, err := m.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return ErrNoActiveChallenge
		}
		return err
	}
	if challenge.Consumed {
		return ErrNoActiveChallenge
	}

	if challenge.Expired(m.clock.Now()) {
		m.logger.Info("Challenge expired",
			util.Int64("account_id", accountID),
			util.String("challenge_id", challenge.ID),
		)
		return ErrExpired
	}

	// Compare as strings so leading-zero codes survive.
	if stripWhitespace(input) != stripWhitespace(challenge.Code) {
		return ErrMismatch
	}

	challenge.Consumed = true
	if err := m.store.Put(ctx, challenge); err != nil {
		return err
	}

	m.logger.Info("Challenge verified",
		util.Int64("account_id", accountID),
		util.String("challenge_id", challenge.ID),
	)

	return nil
}

// RemainingSeconds returns how long the account's challenge stays
// verifiable, clamped at zero once expired.
func (m *Manager) RemainingSeconds(ctx context.Context, accountID int64) (int, error) {
	challenge, err := m.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return 0, ErrNoActiveChallenge
		}
		return 0, err
	}
	if challenge.Consumed {
		return 0, ErrNoActiveChallenge
	}

	remaining := challenge.ExpiresAt().Sub(m.clock.Now())
	seconds := int(remaining.Milliseconds() / 1000)
	if seconds < 0 {
		seconds = 0
	}
	return seconds, nil
}

// Invalidate drops the account's challenge, if any.
func (m *Manager) Invalidate(ctx context.Context, accountID int64) error {
	m.locks.LockID(accountID)
	defer m.locks.UnlockID(accountID)

	return m.store.Delete(ctx, accountID)
}

// FormatRemaining renders seconds as zero-padded MM:SS.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return pad2(seconds/60) + ":" + pad2(seconds%60)
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"login-service/internal/clock"
	"login-service/internal/hashing"
	"login-service/internal/models"
	"login-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrUsernameTaken        = errors.New("username already exists")
	ErrEmailTaken           = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAccountNotFound      = errors.New("account not found")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
)

// RegisterInput is the data needed to create an account. The password
// arrives in plaintext and is hashed before storage.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// CredentialStore is an in-memory account registry. It owns password
// hashing and never returns an account that still carries its hash.
// Instances are independent, so tests can use disposable stores.
type CredentialStore struct {
	mu         sync.RWMutex
	byID       map[int64]*models.Account
	byUsername map[string]int64
	byEmail    map[string]int64
	nextID     int64

	hasher *hashing.Hasher
	clock  clock.Clock
	logger *zap.Logger
}

// NewCredentialStore creates an empty store.
func NewCredentialStore(hasher *hashing.Hasher, clk clock.Clock, logger *zap.Logger) *CredentialStore {
	if clk == nil {
		clk = clock.New()
	}
	return &CredentialStore{
		byID:       make(map[int64]*models.Account),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
		nextID:     1,
		hasher:     hasher,
		clock:      clk,
		logger:     logger,
	}
}

// Register creates an account. Username and email must be unique with
// case-sensitive exact matching.
func (s *CredentialStore) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	hash, err := s.hasher.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[input.Username]; taken {
		return nil, ErrUsernameTaken
	}
	if _, taken := s.byEmail[input.Email]; taken {
		return nil, ErrEmailTaken
	}

	now := s.clock.Now().UTC()
	account := &models.Account{
		ID:           s.nextID,
		Username:     input.Username,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextID++

	s.byID[account.ID] = account
	s.byUsername[account.Username] = account.ID
	s.byEmail[account.Email] = account.ID

	s.logger.Info("Account registered",
		util.Int64("account_id", account.ID),
		util.String("username", account.Username),
	)

	return account.Sanitized(), nil
}

// Login verifies a username/password pair. Lookup failure and password
// mismatch return the same error so callers cannot probe usernames. The
// account and its hash are snapshotted under the lock; the slow hash
// verification runs on the copies.
func (s *CredentialStore) Login(ctx context.Context, username, password string) (*models.Account, error) {
	s.mu.RLock()
	var account *models.Account
	var hash string
	if id, ok := s.byUsername[username]; ok {
		if stored := s.byID[id]; stored != nil {
			account = stored.Sanitized()
			hash = stored.PasswordHash
		}
	}
	s.mu.RUnlock()

	if account == nil {
		return nil, ErrInvalidCredentials
	}

	match, err := s.hasher.VerifyPassword(password, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// ChangePassword replaces the password after verifying the current one.
// Hashing happens outside the lock; the write re-checks that the stored
// hash is the one the caller's password was verified against, so a
// concurrent rotation cannot be silently overwritten.
func (s *CredentialStore) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	s.mu.RLock()
	var oldHash string
	found := false
	if account := s.byID[accountID]; account != nil {
		oldHash = account.PasswordHash
		found = true
	}
	s.mu.RUnlock()

	if !found {
		return ErrAccountNotFound
	}

	match, err := s.hasher.VerifyPassword(current, oldHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return ErrWrongCurrentPassword
	}

	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.byID[accountID]
	if account == nil {
		return ErrAccountNotFound
	}
	if account.PasswordHash != oldHash {
		return ErrWrongCurrentPassword
	}
	account.PasswordHash = hash
	account.UpdatedAt = s.clock.Now().UTC()

	s.logger.Info("Password changed", util.Int64("account_id", accountID))

	return nil
}

// GetByID returns the account with the given id, password stripped.
func (s *CredentialStore) GetByID(ctx context.Context, accountID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account := s.byID[accountID]
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account.Sanitized(), nil
}

// UpdateProfile changes an account's email, keeping email uniqueness.
func (s *CredentialStore) UpdateProfile(ctx context.Context, accountID int64, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.byID[accountID]
	if account == nil {
		return nil, ErrAccountNotFound
	}

	if email != account.Email {
		if _, taken := s.byEmail[email]; taken {
			return nil, ErrEmailTaken
		}
		delete(s.byEmail, account.Email)
		account.Email = email
		s.byEmail[email] = accountID
	}
	account.UpdatedAt = s.clock.Now().UTC()

	return account.Sanitized(), nil
}

// Count returns the number of registered accounts.
func (s *CredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

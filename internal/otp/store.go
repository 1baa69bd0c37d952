package otp

import (
	"context"
	"errors"
	"sync"

	"login-service/internal/models"
)

// ErrChallengeNotFound is returned by a ChallengeStore when an account has
// no stored challenge.
var ErrChallengeNotFound = errors.New("no challenge stored for account")

// ChallengeStore keeps at most one challenge per account. Put replaces any
// existing record for the same account.
type ChallengeStore interface {
	Get(ctx context.Context, accountID int64) (*models.Challenge, error)
	Put(ctx context.Context, challenge *models.Challenge) error
	Delete(ctx context.Context, accountID int64) error
}

// MemoryChallengeStore is the default map-backed store.
type MemoryChallengeStore struct {
	mu         sync.RWMutex
	challenges map[int64]*models.Challenge
}

// NewMemoryChallengeStore returns an empty in-memory store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[int64]*models.Challenge),
	}
}

// Get returns a copy of the stored challenge for accountID.
func (s *MemoryChallengeStore) Get(ctx context.Context, accountID int64) (*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.challenges[accountID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	copied := *challenge
	return &copied, nil
}

// Put stores challenge, replacing any previous record for the account.
func (s *MemoryChallengeStore) Put(ctx context.Context, challenge *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *challenge
	s.challenges[challenge.AccountID] = &copied
	return nil
}

// Delete removes the challenge for accountID, if any.
func (s *MemoryChallengeStore) Delete(ctx context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, accountID)
	return nil
}

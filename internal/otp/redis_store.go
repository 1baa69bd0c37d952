package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"login-service/internal/client"
	"login-service/internal/models"
	"login-service/internal/util"

	"go.uber.org/zap"
)

const (
	otpKeyPrefix = "otp:"

	// Records are kept well past code expiry so that verification can
	// still distinguish an expired challenge from a missing one.
	otpRetention = 24 * time.Hour
)

// RedisChallengeStore keeps challenges in Redis under otp:<accountID>,
// letting several service instances share one challenge set.
type RedisChallengeStore struct {
	client *client.RedisClient
}

// storedChallenge is the wire form of a challenge. models.Challenge hides
// Code and other fields from API JSON, so the store encodes explicitly.
type storedChallenge struct {
	ID            string `json:"id"`
	AccountID     int64  `json:"account_id"`
	Code          string `json:"code"`
	Length        int    `json:"length"`
	Method        string `json:"method"`
	CreatedAt     int64  `json:"created_at_unix_ms"`
	ExpiryMinutes int    `json:"expiry_minutes"`
	Consumed      bool   `json:"consumed"`
}

// NewRedisChallengeStore returns a store backed by the given client.
func NewRedisChallengeStore(c *client.RedisClient) *RedisChallengeStore {
	return &RedisChallengeStore{client: c}
}

func (s *RedisChallengeStore) Get(ctx context.Context, accountID int64) (*models.Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKey(accountID))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}

	var stored storedChallenge
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}

	return &models.Challenge{
		ID:            stored.ID,
		AccountID:     stored.AccountID,
		Code:          stored.Code,
		Length:        stored.Length,
		Method:        models.DeliveryMethod(stored.Method),
		CreatedAt:     time.UnixMilli(stored.CreatedAt),
		ExpiryMinutes: stored.ExpiryMinutes,
		Consumed:      stored.Consumed,
	}, nil
}

func (s *RedisChallengeStore) Put(ctx context.Context, challenge *models.Challenge) error {
	stored := storedChallenge{
		ID:            challenge.ID,
		AccountID:     challenge.AccountID,
		Code:          challenge.Code,
		Length:        challenge.Length,
		Method:        string(challenge.Method),
		CreatedAt:     challenge.CreatedAt.UnixMilli(),
		ExpiryMinutes: challenge.ExpiryMinutes,
		Consumed:      challenge.Consumed,
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}

	key := challengeKey(challenge.AccountID)
	if err := s.client.Set(ctx, key, raw, otpRetention); err != nil {
		util.Error("Failed to store challenge in Redis",
			zap.Int64("account_id", challenge.AccountID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	return nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, accountID int64) error {
	if err := s.client.Del(ctx, challengeKey(accountID)); err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

func challengeKey(accountID int64) string {
	return otpKeyPrefix + strconv.FormatInt(accountID, 10)
}

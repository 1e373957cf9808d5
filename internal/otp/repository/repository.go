package repository

import (
	"context"

	"tuitionpay/internal/otp/domain"
)

// Repository defines persistence for OTP challenges.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetByTransaction(ctx context.Context, transactionID string) (*domain.Challenge, error)
	// IncrementAttempts atomically bumps the attempt counter and returns the
	// new value. Returns 0 with no error when the challenge does not exist.
	IncrementAttempts(ctx context.Context, transactionID string) (int, error)
	MarkUsed(ctx context.Context, transactionID string) error
	// Replace swaps an expired or used challenge for a fresh one in a single
	// upsert, preserving at-most-one-live-challenge per transaction.
	Replace(ctx context.Context, c *domain.Challenge) error
}

package repository

import (
	"context"

	"tuitionpay/internal/payer/domain"
)

// Repository defines persistence for payers and their balances.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Payer, error)
	GetByUsername(ctx context.Context, username string) (*domain.Payer, error)
	Create(ctx context.Context, p *domain.Payer) error
	// ConditionalDebit decrements the payer's balance by amount iff the current
	// balance covers it, as one atomic statement. Returns the new balance and
	// ok=true on success; ok=false (no error) when the guard failed.
	ConditionalDebit(ctx context.Context, id string, amount int64) (int64, bool, error)
}

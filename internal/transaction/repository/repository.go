package repository

import (
	"context"
	"time"

	"tuitionpay/internal/transaction/domain"
)

// Repository defines persistence for payment transactions.
type Repository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	// FindActiveByStudent returns a PENDING or PROCESSING transaction for the
	// student whose expires_at is after now, or nil. This is the initiation-time
	// serialization guard.
	FindActiveByStudent(ctx context.Context, studentID string, now time.Time) (*domain.Transaction, error)
	// SetStatus moves a non-terminal transaction to status. Terminal rows are
	// never touched; returns ok=false when no row transitioned.
	SetStatus(ctx context.Context, id string, status domain.Status) (bool, error)
	// Complete moves a non-terminal transaction to the given terminal status and
	// stamps completed_at. Returns ok=false when the row was already terminal or missing.
	Complete(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error)
	// Delete removes a transaction; used as a compensating action when OTP
	// issuance fails right after creation.
	Delete(ctx context.Context, id string) error
	ListByPayer(ctx context.Context, payerID string, offset, limit int) ([]domain.Transaction, error)
	CountByPayer(ctx context.Context, payerID string) (int, error)
}

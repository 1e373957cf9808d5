package repository

import (
	"context"

	"tuitionpay/internal/audit/domain"
)

// Repository defines persistence for the payment audit trail.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByPayer(ctx context.Context, payerID string, limit int) ([]domain.AuditLog, error)
}

// Package audit records a best-effort trail of payment events. Entries never
// influence the settlement outcome: a failed write is logged and dropped.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"tuitionpay/internal/audit/domain"
	auditrepo "tuitionpay/internal/audit/repository"
)

// Actions recorded by the settlement path.
const (
	ActionPaymentInitiated = "payment_initiated"
	ActionPaymentSettled   = "payment_settled"
	ActionPaymentFailed    = "payment_failed"
	ActionPaymentRejected  = "payment_rejected"
)

// Logger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type Logger interface {
	LogEvent(ctx context.Context, payerID, studentID, action, resource, metadata string)
}

// DBLogger implements Logger using the audit repository.
type DBLogger struct {
	repo auditrepo.Repository
}

// NewLogger returns a Logger that persists to repo.
func NewLogger(repo auditrepo.Repository) *DBLogger {
	return &DBLogger{repo: repo}
}

// LogEvent writes one audit entry. Best-effort: errors are logged and not returned.
func (l *DBLogger) LogEvent(ctx context.Context, payerID, studentID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		PayerID:   payerID,
		StudentID: studentID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}

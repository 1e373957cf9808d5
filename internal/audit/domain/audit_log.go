package domain

import "time"

// AuditLog is one recorded payment event (stored in audit_log table).
type AuditLog struct {
	ID        string
	PayerID   string
	StudentID string
	Action    string
	Resource  string
	Metadata  string
	CreatedAt time.Time
}

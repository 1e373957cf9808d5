package domain

import "time"

// Status is the transaction lifecycle state. PENDING and PROCESSING are the
// only non-terminal states; SUCCESS and FAILED are terminal and final.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// TypeTuitionPayment is the only transaction type the service currently records.
const TypeTuitionPayment = "TUITION_PAYMENT"

// TTL is how long a created transaction stays settleable. A transaction past
// ExpiresAt is treated as absent by the active-transaction lookup; its stored
// status is not rewritten.
const TTL = 15 * time.Minute

// Transaction is one payment attempt for a student's tuition bill.
type Transaction struct {
	ID          string
	PayerID     string
	StudentID   string
	Amount      int64
	Type        string
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Expired reports whether the transaction is past its TTL at the given time.
func (t *Transaction) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

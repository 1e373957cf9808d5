// Package otp issues and validates the one-time passcodes that authorize a
// pending payment. Codes are 6 digits, live for 5 minutes, and allow at most
// 3 verification attempts per transaction.
package otp

import (
	"context"
	"errors"
	"time"

	"tuitionpay/internal/otp/domain"
	"tuitionpay/internal/otp/repository"
)

const (
	// ChallengeTTL is how long an issued code stays valid. Shorter than the
	// transaction TTL so a stale code dies before its transaction does.
	ChallengeTTL = 5 * time.Minute
	// MaxAttempts is the number of verification attempts allowed per
	// transaction. The counter is bumped before the code is compared, so a
	// caller cannot probe for free.
	MaxAttempts = 3
)

// ErrChallengePending is returned by Issue when a live code already exists for
// the transaction. Callers surface the remaining validity instead of minting a
// second code that would invalidate the first.
var ErrChallengePending = errors.New("an unexpired code already exists for this transaction")

// Ledger issues, counts attempts against, verifies, and consumes OTP challenges.
type Ledger struct {
	repo repository.Repository
	now  func() time.Time
}

// NewLedger returns a Ledger over the given repository.
func NewLedger(repo repository.Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Issue mints a fresh 6-digit code for the transaction and persists its hash
// with a zeroed attempt counter. Returns the plaintext code for out-of-band
// delivery; it is not retrievable afterwards. Returns ErrChallengePending
// (and the remaining TTL) when a live challenge already exists.
func (l *Ledger) Issue(ctx context.Context, transactionID, payerID string) (code string, remaining time.Duration, err error) {
	now := l.now().UTC()
	existing, err := l.repo.GetByTransaction(ctx, transactionID)
	if err != nil {
		return "", 0, err
	}
	if existing != nil && existing.Live(now) {
		return "", existing.ExpiresAt.Sub(now), ErrChallengePending
	}

	code, err = GenerateCode()
	if err != nil {
		return "", 0, err
	}
	c := &domain.Challenge{
		TransactionID: transactionID,
		PayerID:       payerID,
		CodeHash:      HashCode(code),
		Attempts:      0,
		IsUsed:        false,
		ExpiresAt:     now.Add(ChallengeTTL),
		CreatedAt:     now,
	}
	if existing != nil {
		err = l.repo.Replace(ctx, c)
	} else {
		err = l.repo.Create(ctx, c)
	}
	if err != nil {
		return "", 0, err
	}
	return code, ChallengeTTL, nil
}

// RecordAttempt atomically increments and returns the attempt counter. Called
// before the submitted code is evaluated so a crash between increment and
// check still costs an attempt.
func (l *Ledger) RecordAttempt(ctx context.Context, transactionID string) (int, error) {
	return l.repo.IncrementAttempts(ctx, transactionID)
}

// Verify reports whether a live challenge for the transaction matches the
// submitted code. It does not consume the code and does not count attempts;
// callers must RecordAttempt first.
func (l *Ledger) Verify(ctx context.Context, transactionID, submittedCode string) (bool, error) {
	c, err := l.repo.GetByTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if c == nil || !c.Live(l.now().UTC()) {
		return false, nil
	}
	return CodeEqual(submittedCode, c.CodeHash), nil
}

// MarkUsed consumes the challenge. Called only after settlement fully
// succeeds, so a settlement that fails for unrelated reasons does not burn a
// valid code.
func (l *Ledger) MarkUsed(ctx context.Context, transactionID string) error {
	return l.repo.MarkUsed(ctx, transactionID)
}

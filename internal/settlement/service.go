// Package settlement orchestrates the initiate → verify → settle protocol for
// tuition payments. It owns the transaction state machine and is the only
// place that moves money: the debit, the student paid flag, and the
// transaction's terminal status are written solely between lock acquisition
// and release in Verify.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tuitionpay/internal/audit"
	"tuitionpay/internal/lock"
	"tuitionpay/internal/notify"
	"tuitionpay/internal/otp"
	payerdomain "tuitionpay/internal/payer/domain"
	studentdomain "tuitionpay/internal/student/domain"
	txdomain "tuitionpay/internal/transaction/domain"
)

// ExpirySeconds is the client-visible validity window returned by Initiate.
// Fixed independently of the internal OTP and transaction TTLs so the API
// contract survives tuning of either.
const ExpirySeconds = 300

// Sentinel errors for the settlement engine; the handler maps them to HTTP codes.
var (
	ErrPendingExists       = errors.New("a pending transaction already exists for this student")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStudentNotFound     = errors.New("student not found")
	ErrAlreadyPaid         = errors.New("tuition has already been paid")
	ErrAmountMismatch      = errors.New("amount must equal the student's tuition amount")
	ErrTransactionNotFound = errors.New("transaction not found or expired")
	ErrLockContended       = errors.New("another settlement is in progress for this student")
	ErrAttemptsExceeded    = errors.New("verification attempts exceeded; initiate a new payment")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrUnavailable         = errors.New("service temporarily unavailable")
)

// TransactionRepo is the minimal transaction repository needed by the engine.
type TransactionRepo interface {
	Create(ctx context.Context, t *txdomain.Transaction) error
	GetByID(ctx context.Context, id string) (*txdomain.Transaction, error)
	FindActiveByStudent(ctx context.Context, studentID string, now time.Time) (*txdomain.Transaction, error)
	SetStatus(ctx context.Context, id string, status txdomain.Status) (bool, error)
	Complete(ctx context.Context, id string, status txdomain.Status, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

// PayerRepo is the minimal payer repository needed by the engine.
type PayerRepo interface {
	GetByID(ctx context.Context, id string) (*payerdomain.Payer, error)
	ConditionalDebit(ctx context.Context, id string, amount int64) (int64, bool, error)
}

// StudentRepo is the minimal student repository needed by the engine.
type StudentRepo interface {
	GetByID(ctx context.Context, studentID string) (*studentdomain.Student, error)
	MarkPaid(ctx context.Context, studentID string, amount int64, at time.Time) error
}

// Service is the settlement engine.
type Service struct {
	txRepo      TransactionRepo
	payerRepo   PayerRepo
	studentRepo StudentRepo
	ledger      *otp.Ledger
	locks       lock.Manager
	lockTTL     time.Duration
	producer    notify.Producer
	auditor     audit.Logger
	now         func() time.Time
}

// NewService returns a settlement engine with the given collaborators.
// producer and auditor may be nil; both are best-effort.
func NewService(
	txRepo TransactionRepo,
	payerRepo PayerRepo,
	studentRepo StudentRepo,
	ledger *otp.Ledger,
	locks lock.Manager,
	lockTTL time.Duration,
	producer notify.Producer,
	auditor audit.Logger,
) *Service {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Service{
		txRepo:      txRepo,
		payerRepo:   payerRepo,
		studentRepo: studentRepo,
		ledger:      ledger,
		locks:       locks,
		lockTTL:     lockTTL,
		producer:    producer,
		auditor:     auditor,
		now:         time.Now,
	}
}

// InitiateResult is the client-visible outcome of Initiate.
type InitiateResult struct {
	TransactionID string
	Message       string
	ExpiresIn     int
}

// Initiate validates the payment request, creates a PENDING transaction with
// its OTP challenge, and schedules delivery of the code. Preconditions are
// checked in a fixed order; the first failure wins. The balance check here is
// a fast user-facing pre-check only — the authoritative check happens inside
// the lock in Verify.
func (s *Service) Initiate(ctx context.Context, payer *payerdomain.Payer, studentID string, amount int64) (*InitiateResult, error) {
	if err := studentdomain.ValidateStudentID(studentID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	active, err := s.txRepo.FindActiveByStudent(ctx, studentID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if active != nil {
		return nil, ErrPendingExists
	}

	if payer.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	if student.IsPaid {
		return nil, ErrAlreadyPaid
	}
	if amount != student.TuitionAmount {
		return nil, ErrAmountMismatch
	}

	tx := &txdomain.Transaction{
		ID:        uuid.New().String(),
		PayerID:   payer.ID,
		StudentID: studentID,
		Amount:    amount,
		Type:      txdomain.TypeTuitionPayment,
		Status:    txdomain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(txdomain.TTL),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	code, _, err := s.ledger.Issue(ctx, tx.ID, payer.ID)
	if err != nil {
		// Compensate: a transaction without a code can never settle and would
		// block future initiations for this student until it expires.
		if delErr := s.txRepo.Delete(ctx, tx.ID); delErr != nil {
			log.Printf("settlement: compensating delete of %s failed: %v", tx.ID, delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	notify.DispatchAsync(s.producer, &notify.Message{
		Kind:  notify.KindOTPCode,
		Email: payer.Email,
		Code:  code,
	})
	s.audit(ctx, payer.ID, studentID, audit.ActionPaymentInitiated, tx.ID,
		fmt.Sprintf(`{"amount":%d}`, amount))

	return &InitiateResult{
		TransactionID: tx.ID,
		Message:       "A verification code has been sent to your email.",
		ExpiresIn:     ExpirySeconds,
	}, nil
}

// Verify checks the submitted code and, under the per-student lock, performs
// the settlement: conditional debit, student paid flag, transaction SUCCESS,
// and OTP consumption. Every gate is hard; the attempt counter is bumped
// before the code is compared so probing always costs an attempt.
func (s *Service) Verify(ctx context.Context, payer *payerdomain.Payer, transactionID, submittedCode string) error {
	attempts, err := s.ledger.RecordAttempt(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if attempts > otp.MaxAttempts {
		return ErrAttemptsExceeded
	}

	matched, err := s.ledger.Verify(ctx, transactionID, submittedCode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !matched {
		remaining := otp.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return fmt.Errorf("%w: %d attempts left", ErrInvalidCode, remaining)
	}

	now := s.now().UTC()
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tx == nil || tx.PayerID != payer.ID || tx.Status.Terminal() || tx.Expired(now) {
		return ErrTransactionNotFound
	}

	key := lock.StudentKey(tx.StudentID)
	if !s.locks.TryAcquire(ctx, key, s.lockTTL) {
		return ErrLockContended
	}
	defer s.locks.Release(ctx, key)

	ok, err := s.txRepo.SetStatus(ctx, tx.ID, txdomain.StatusProcessing)
	if err != nil {
		return s.fail(ctx, payer, tx, "internal error", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if !ok {
		// Lost the race to a settlement that just finished.
		return ErrTransactionNotFound
	}

	// Re-check balance and paid flag under the lock; both may have changed
	// since Initiate.
	current, err := s.payerRepo.GetByID(ctx, payer.ID)
	if err != nil || current == nil {
		return s.fail(ctx, payer, tx, "internal error", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if current.Balance < tx.Amount {
		return s.fail(ctx, payer, tx, "insufficient balance", ErrInsufficientBalance)
	}
	student, err := s.studentRepo.GetByID(ctx, tx.StudentID)
	if err != nil {
		return s.fail(ctx, payer, tx, "internal error", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if student == nil {
		return s.fail(ctx, payer, tx, "student not found", ErrStudentNotFound)
	}
	if student.IsPaid {
		return s.fail(ctx, payer, tx, "tuition already paid", ErrAlreadyPaid)
	}

	_, debited, err := s.payerRepo.ConditionalDebit(ctx, payer.ID, tx.Amount)
	if err != nil {
		return s.fail(ctx, payer, tx, "internal error", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if !debited {
		// Balance dropped below the amount between the re-check and the
		// debit: a concurrent settlement by the same payer for another student.
		return s.fail(ctx, payer, tx, "insufficient balance", ErrInsufficientBalance)
	}

	completedAt := s.now().UTC()
	if err := s.studentRepo.MarkPaid(ctx, tx.StudentID, tx.Amount, completedAt); err != nil {
		return s.fail(ctx, payer, tx, "internal error", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if _, err := s.txRepo.Complete(ctx, tx.ID, txdomain.StatusSuccess, completedAt); err != nil {
		return s.fail(ctx, payer, tx, "internal error", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if err := s.ledger.MarkUsed(ctx, tx.ID); err != nil {
		log.Printf("settlement: mark code used for %s failed: %v", tx.ID, err)
	}

	s.audit(ctx, payer.ID, tx.StudentID, audit.ActionPaymentSettled, tx.ID,
		fmt.Sprintf(`{"amount":%d}`, tx.Amount))
	notify.DispatchAsync(s.producer, &notify.Message{
		Kind:          notify.KindPaymentSuccess,
		Email:         payer.Email,
		TransactionID: tx.ID,
		StudentID:     tx.StudentID,
		Amount:        tx.Amount,
		CompletedAt:   &completedAt,
	})
	return nil
}

// fail moves the transaction to FAILED (terminal states stick regardless),
// records the audit entry, schedules the failure email, and returns cause.
func (s *Service) fail(ctx context.Context, payer *payerdomain.Payer, tx *txdomain.Transaction, reason string, cause error) error {
	failedAt := s.now().UTC()
	if _, err := s.txRepo.Complete(ctx, tx.ID, txdomain.StatusFailed, failedAt); err != nil {
		log.Printf("settlement: mark %s failed errored: %v", tx.ID, err)
	}
	s.audit(ctx, payer.ID, tx.StudentID, audit.ActionPaymentFailed, tx.ID,
		fmt.Sprintf(`{"reason":%q}`, reason))
	notify.DispatchAsync(s.producer, &notify.Message{
		Kind:          notify.KindPaymentFailure,
		Email:         payer.Email,
		TransactionID: tx.ID,
		StudentID:     tx.StudentID,
		Reason:        reason,
		FailedAt:      &failedAt,
	})
	return cause
}

func (s *Service) audit(ctx context.Context, payerID, studentID, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, payerID, studentID, action, resource, metadata)
}

package settlement

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tuitionpay/internal/lock"
	"tuitionpay/internal/notify"
	"tuitionpay/internal/otp"
	otpdomain "tuitionpay/internal/otp/domain"
	payerdomain "tuitionpay/internal/payer/domain"
	studentdomain "tuitionpay/internal/student/domain"
	txdomain "tuitionpay/internal/transaction/domain"
)

type memTxRepo struct {
	mu sync.Mutex
	m  map[string]*txdomain.Transaction
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{m: make(map[string]*txdomain.Transaction)}
}

func (r *memTxRepo) Create(ctx context.Context, t *txdomain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t2 := *t
	r.m[t.ID] = &t2
	return nil
}

func (r *memTxRepo) GetByID(ctx context.Context, id string) (*txdomain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.m[id]; ok {
		t2 := *t
		return &t2, nil
	}
	return nil, nil
}

func (r *memTxRepo) FindActiveByStudent(ctx context.Context, studentID string, now time.Time) (*txdomain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.m {
		if t.StudentID == studentID && !t.Status.Terminal() && t.ExpiresAt.After(now) {
			t2 := *t
			return &t2, nil
		}
	}
	return nil, nil
}

func (r *memTxRepo) SetStatus(ctx context.Context, id string, status txdomain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[id]
	if !ok || t.Status.Terminal() {
		return false, nil
	}
	t.Status = status
	return true, nil
}

func (r *memTxRepo) Complete(ctx context.Context, id string, status txdomain.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[id]
	if !ok || t.Status.Terminal() {
		return false, nil
	}
	t.Status = status
	at2 := at
	t.CompletedAt = &at2
	return true, nil
}

func (r *memTxRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

type memPayerRepo struct {
	mu sync.Mutex
	m  map[string]*payerdomain.Payer
}

func newMemPayerRepo() *memPayerRepo {
	return &memPayerRepo{m: make(map[string]*payerdomain.Payer)}
}

func (r *memPayerRepo) GetByID(ctx context.Context, id string) (*payerdomain.Payer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.m[id]; ok {
		p2 := *p
		return &p2, nil
	}
	return nil, nil
}

func (r *memPayerRepo) ConditionalDebit(ctx context.Context, id string, amount int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.m[id]
	if !ok || p.Balance < amount {
		return 0, false, nil
	}
	p.Balance -= amount
	return p.Balance, true, nil
}

type memStudentRepo struct {
	mu sync.Mutex
	m  map[string]*studentdomain.Student
}

func newMemStudentRepo() *memStudentRepo {
	return &memStudentRepo{m: make(map[string]*studentdomain.Student)}
}

func (r *memStudentRepo) GetByID(ctx context.Context, studentID string) (*studentdomain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[studentID]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memStudentRepo) MarkPaid(ctx context.Context, studentID string, amount int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[studentID]; ok {
		s.IsPaid = true
		a := amount
		s.LastPaymentAmount = &a
		at2 := at
		s.LastPaymentDate = &at2
	}
	return nil
}

type memChallengeRepo struct {
	mu sync.Mutex
	m  map[string]*otpdomain.Challenge
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{m: make(map[string]*otpdomain.Challenge)}
}

func (r *memChallengeRepo) Create(ctx context.Context, c *otpdomain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[c.TransactionID]; ok {
		return errors.New("duplicate challenge")
	}
	c2 := *c
	r.m[c.TransactionID] = &c2
	return nil
}

func (r *memChallengeRepo) GetByTransaction(ctx context.Context, transactionID string) (*otpdomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[transactionID]; ok {
		c2 := *c
		return &c2, nil
	}
	return nil, nil
}

func (r *memChallengeRepo) IncrementAttempts(ctx context.Context, transactionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[transactionID]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

func (r *memChallengeRepo) MarkUsed(ctx context.Context, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[transactionID]; ok {
		c.IsUsed = true
	}
	return nil
}

func (r *memChallengeRepo) Replace(ctx context.Context, c *otpdomain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c2 := *c
	r.m[c.TransactionID] = &c2
	return nil
}

// chanProducer captures dispatched messages so tests can read OTP codes and
// assert on outcome emails.
type chanProducer struct {
	ch chan *notify.Message
}

func newChanProducer() *chanProducer {
	return &chanProducer{ch: make(chan *notify.Message, 128)}
}

func (p *chanProducer) Send(ctx context.Context, msg *notify.Message) error {
	p.ch <- msg
	return nil
}

func (p *chanProducer) Close() error { return nil }

func (p *chanProducer) wait(t *testing.T, kind notify.Kind) *notify.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-p.ch:
			if msg.Kind == kind {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s message", kind)
			return nil
		}
	}
}

type fixture struct {
	svc        *Service
	txs        *memTxRepo
	payers     *memPayerRepo
	students   *memStudentRepo
	challenges *memChallengeRepo
	producer   *chanProducer
	payer      *payerdomain.Payer
}

func newFixture(t *testing.T, balance, tuition int64) *fixture {
	t.Helper()
	f := &fixture{
		txs:        newMemTxRepo(),
		payers:     newMemPayerRepo(),
		students:   newMemStudentRepo(),
		challenges: newMemChallengeRepo(),
		producer:   newChanProducer(),
	}
	f.payer = &payerdomain.Payer{
		ID:       "payer-1",
		Username: "nva",
		Email:    "nva@example.com",
		Balance:  balance,
	}
	f.payers.m[f.payer.ID] = f.payer
	f.students.m["52300001"] = &studentdomain.Student{
		StudentID:     "52300001",
		FullName:      "Nguyen Van B",
		TuitionAmount: tuition,
	}
	f.svc = NewService(
		f.txs, f.payers, f.students,
		otp.NewLedger(f.challenges),
		lock.NewMemoryManager(), 30*time.Second,
		f.producer, nil,
	)
	return f
}

// currentPayer re-reads the payer as the auth middleware would.
func (f *fixture) currentPayer(t *testing.T) *payerdomain.Payer {
	t.Helper()
	p, err := f.payers.GetByID(context.Background(), f.payer.ID)
	if err != nil || p == nil {
		t.Fatalf("payer lookup: %v", err)
	}
	return p
}

// seedChallenge installs a transaction and its challenge directly, bypassing
// Initiate, with a known code.
func (f *fixture) seedChallenge(txID, studentID, code string, amount int64) {
	now := time.Now().UTC()
	f.txs.m[txID] = &txdomain.Transaction{
		ID:        txID,
		PayerID:   f.payer.ID,
		StudentID: studentID,
		Amount:    amount,
		Type:      txdomain.TypeTuitionPayment,
		Status:    txdomain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(txdomain.TTL),
	}
	f.challenges.m[txID] = &otpdomain.Challenge{
		TransactionID: txID,
		PayerID:       f.payer.ID,
		CodeHash:      otp.HashCode(code),
		ExpiresAt:     now.Add(otp.ChallengeTTL),
		CreatedAt:     now,
	}
}

func TestInitiateThenVerifySettles(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()

	res, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.ExpiresIn != 300 {
		t.Fatalf("ExpiresIn = %d, want 300", res.ExpiresIn)
	}

	code := f.producer.wait(t, notify.KindOTPCode).Code
	if len(code) != 6 {
		t.Fatalf("OTP code %q is not 6 digits", code)
	}

	if err := f.svc.Verify(ctx, f.currentPayer(t), res.TransactionID, code); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	p := f.currentPayer(t)
	if p.Balance != 5_000_000 {
		t.Fatalf("balance = %d, want 5000000", p.Balance)
	}
	s, _ := f.students.GetByID(ctx, "52300001")
	if !s.IsPaid {
		t.Fatal("student should be marked paid")
	}
	if s.LastPaymentAmount == nil || *s.LastPaymentAmount != 15_000_000 {
		t.Fatal("last payment amount not recorded")
	}
	tx, _ := f.txs.GetByID(ctx, res.TransactionID)
	if tx.Status != txdomain.StatusSuccess || tx.CompletedAt == nil {
		t.Fatalf("transaction = %s, want SUCCESS with completedAt", tx.Status)
	}
	if m := f.producer.wait(t, notify.KindPaymentSuccess); m.Amount != 15_000_000 {
		t.Fatalf("success email amount = %d", m.Amount)
	}

	// A second verify against the settled transaction must be rejected.
	err = f.svc.Verify(ctx, f.currentPayer(t), res.TransactionID, code)
	if !errors.Is(err, ErrTransactionNotFound) && !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("second Verify err = %v, want terminal rejection", err)
	}
	if p := f.currentPayer(t); p.Balance != 5_000_000 {
		t.Fatalf("balance changed on replay: %d", p.Balance)
	}
}

func TestInitiatePreconditionsOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid student id", func(t *testing.T) {
		f := newFixture(t, 20_000_000, 15_000_000)
		_, err := f.svc.Initiate(ctx, f.currentPayer(t), "1234", 15_000_000)
		if !errors.Is(err, studentdomain.ErrInvalidStudentID) {
			t.Fatalf("err = %v, want ErrInvalidStudentID", err)
		}
		_, err = f.svc.Initiate(ctx, f.currentPayer(t), "12345abc", 15_000_000)
		if !errors.Is(err, studentdomain.ErrInvalidStudentID) {
			t.Fatalf("err = %v, want ErrInvalidStudentID", err)
		}
	})

	t.Run("pending transaction conflict", func(t *testing.T) {
		f := newFixture(t, 40_000_000, 15_000_000)
		if _, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000); err != nil {
			t.Fatalf("first Initiate: %v", err)
		}
		_, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000)
		if !errors.Is(err, ErrPendingExists) {
			t.Fatalf("err = %v, want ErrPendingExists", err)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		f := newFixture(t, 1_000_000, 15_000_000)
		_, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000)
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		f := newFixture(t, 20_000_000, 15_000_000)
		_, err := f.svc.Initiate(ctx, f.currentPayer(t), "99999999", 15_000_000)
		if !errors.Is(err, ErrStudentNotFound) {
			t.Fatalf("err = %v, want ErrStudentNotFound", err)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		f := newFixture(t, 20_000_000, 15_000_000)
		f.students.m["52300001"].IsPaid = true
		_, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000)
		if !errors.Is(err, ErrAlreadyPaid) {
			t.Fatalf("err = %v, want ErrAlreadyPaid", err)
		}
	})

	t.Run("amount mismatch", func(t *testing.T) {
		f := newFixture(t, 20_000_000, 15_000_000)
		_, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 10_000_000)
		if !errors.Is(err, ErrAmountMismatch) {
			t.Fatalf("err = %v, want ErrAmountMismatch", err)
		}
	})
}

func TestAttemptExhaustion(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.seedChallenge("tx-1", "52300001", "424242", 15_000_000)

	for i := 1; i <= 3; i++ {
		err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "000000")
		if !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d err = %v, want ErrInvalidCode", i, err)
		}
		if want := 3 - i; !strings.Contains(err.Error(), "attempts left") {
			t.Fatalf("attempt %d message %q lacks remaining count %d", i, err, want)
		}
	}

	// Fourth call with the real code is still rejected.
	err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242")
	if !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("err = %v, want ErrAttemptsExceeded", err)
	}
	if p := f.currentPayer(t); p.Balance != 20_000_000 {
		t.Fatalf("balance moved: %d", p.Balance)
	}
}

func TestVerifyRejectsExpiredTransaction(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.seedChallenge("tx-1", "52300001", "424242", 15_000_000)
	f.txs.m["tx-1"].ExpiresAt = time.Now().Add(-time.Minute)
	// Keep the challenge itself alive so the transaction gate is what trips.
	f.challenges.m["tx-1"].ExpiresAt = time.Now().Add(time.Minute)

	err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestVerifyRejectsForeignTransaction(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.seedChallenge("tx-1", "52300001", "424242", 15_000_000)
	f.txs.m["tx-1"].PayerID = "someone-else"

	err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestVerifyLockContention(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.seedChallenge("tx-1", "52300001", "424242", 15_000_000)

	// Simulate a settlement in flight for the same student.
	mgr := lock.NewMemoryManager()
	f.svc.locks = mgr
	if !mgr.TryAcquire(ctx, lock.StudentKey("52300001"), time.Minute) {
		t.Fatal("setup acquire failed")
	}

	err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242")
	if !errors.Is(err, ErrLockContended) {
		t.Fatalf("err = %v, want ErrLockContended", err)
	}
	// No state was touched; the transaction survives for a later retry.
	tx, _ := f.txs.GetByID(ctx, "tx-1")
	if tx.Status != txdomain.StatusPending {
		t.Fatalf("status = %s, want PENDING", tx.Status)
	}
	if p := f.currentPayer(t); p.Balance != 20_000_000 {
		t.Fatalf("balance moved: %d", p.Balance)
	}
}

func TestConcurrentVerifiesSettleExactlyOnce(t *testing.T) {
	f := newFixture(t, 100_000_000, 15_000_000)
	ctx := context.Background()

	// Distinct valid transactions for the same student, each with its own code.
	const n = 8
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := "tx-" + string(rune('a'+i))
		ids[i] = id
		f.seedChallenge(id, "52300001", "424242", 15_000_000)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, contended, alreadyPaid := 0, 0, 0
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(txID string) {
			defer wg.Done()
			<-start
			err := f.svc.Verify(ctx, f.currentPayer(t), txID, "424242")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrLockContended):
				contended++
			case errors.Is(err, ErrAlreadyPaid):
				alreadyPaid++
			default:
				t.Errorf("unexpected error for %s: %v", txID, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if contended+alreadyPaid != n-1 {
		t.Fatalf("contended=%d alreadyPaid=%d, want %d rejections", contended, alreadyPaid, n-1)
	}
	if p := f.currentPayer(t); p.Balance != 100_000_000-15_000_000 {
		t.Fatalf("balance = %d, want a single debit", p.Balance)
	}
}

func TestNoDoubleDebitAcrossStudents(t *testing.T) {
	// Balance covers one settlement but not two: B with A <= B < 2A.
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.students.m["52300002"] = &studentdomain.Student{
		StudentID:     "52300002",
		FullName:      "Tran Thi C",
		TuitionAmount: 15_000_000,
	}
	f.seedChallenge("tx-1", "52300001", "111111", 15_000_000)
	f.seedChallenge("tx-2", "52300002", "222222", 15_000_000)

	codes := map[string]string{"tx-1": "111111", "tx-2": "222222"}
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	start := make(chan struct{})
	for _, id := range []string{"tx-1", "tx-2"} {
		wg.Add(1)
		go func(txID string) {
			defer wg.Done()
			<-start
			err := f.svc.Verify(ctx, f.currentPayer(t), txID, codes[txID])
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("unexpected error for %s: %v", txID, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if p := f.currentPayer(t); p.Balance != 5_000_000 {
		t.Fatalf("balance = %d, want 5000000 (B-A, never B-2A)", p.Balance)
	}
}

func TestTerminalStateIsMonotonic(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.seedChallenge("tx-1", "52300001", "424242", 15_000_000)

	if err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	tx, _ := f.txs.GetByID(ctx, "tx-1")
	if tx.Status != txdomain.StatusSuccess {
		t.Fatalf("status = %s", tx.Status)
	}
	completedAt := *tx.CompletedAt

	// Replays cannot move a terminal transaction.
	_ = f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242")
	_ = f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "000000")

	tx, _ = f.txs.GetByID(ctx, "tx-1")
	if tx.Status != txdomain.StatusSuccess || !tx.CompletedAt.Equal(completedAt) {
		t.Fatal("terminal transaction transitioned again")
	}
}

func TestVerifyFailsWhenStudentPaidMeanwhile(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.seedChallenge("tx-1", "52300001", "424242", 15_000_000)
	f.students.m["52300001"].IsPaid = true

	err := f.svc.Verify(ctx, f.currentPayer(t), "tx-1", "424242")
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
	tx, _ := f.txs.GetByID(ctx, "tx-1")
	if tx.Status != txdomain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", tx.Status)
	}
	if m := f.producer.wait(t, notify.KindPaymentFailure); m.TransactionID != "tx-1" {
		t.Fatalf("failure email for %s", m.TransactionID)
	}
	if p := f.currentPayer(t); p.Balance != 20_000_000 {
		t.Fatalf("balance moved: %d", p.Balance)
	}
}

type failingChallengeRepo struct {
	*memChallengeRepo
}

func (r *failingChallengeRepo) Create(ctx context.Context, c *otpdomain.Challenge) error {
	return errors.New("store down")
}

func TestInitiateCompensatesWhenIssueFails(t *testing.T) {
	f := newFixture(t, 20_000_000, 15_000_000)
	ctx := context.Background()
	f.svc.ledger = otp.NewLedger(&failingChallengeRepo{f.challenges})

	_, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}

	// The orphaned transaction was deleted, so a retry is not blocked.
	f.svc.ledger = otp.NewLedger(f.challenges)
	if _, err := f.svc.Initiate(ctx, f.currentPayer(t), "52300001", 15_000_000); err != nil {
		t.Fatalf("retry Initiate: %v", err)
	}
}

package lock

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
)

// PostgresManager implements Manager on a lock_leases table. Acquisition is a
// single INSERT that only succeeds when no live lease exists for the key: the
// ON CONFLICT arm takes over a row whose lease has already expired, and updates
// nothing otherwise. Works across multiple service instances sharing the database.
type PostgresManager struct {
	db     *sql.DB
	holder string
}

// NewPostgresManager returns a Manager backed by the given db. Each manager
// carries a unique holder id so a takeover is distinguishable in the table.
func NewPostgresManager(db *sql.DB) *PostgresManager {
	return &PostgresManager{db: db, holder: uuid.New().String()}
}

// TryAcquire takes the lease iff the key is absent or its current lease has
// expired. Any database error yields false: a rejected payment is preferable
// to a double debit.
func (m *PostgresManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx,
		`INSERT INTO lock_leases (key, holder, acquired_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		 SET holder = EXCLUDED.holder, acquired_at = EXCLUDED.acquired_at, expires_at = EXCLUDED.expires_at
		 WHERE lock_leases.expires_at <= $3`,
		key, m.holder, now, now.Add(ttl))
	if err != nil {
		log.Printf("lock: acquire %s failed: %v", key, err)
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		log.Printf("lock: acquire %s failed: %v", key, err)
		return false
	}
	return n == 1
}

// Release deletes the lease row if this manager still holds it. Errors are
// logged and swallowed; the lease expires on its own.
func (m *PostgresManager) Release(ctx context.Context, key string) {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM lock_leases WHERE key = $1 AND holder = $2`, key, m.holder); err != nil {
		log.Printf("lock: release %s failed: %v", key, err)
	}
}

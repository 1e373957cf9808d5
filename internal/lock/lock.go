// Package lock provides short-lived named mutual-exclusion leases used to
// serialize settlement per student. A lease self-expires after its TTL, so a
// crashed holder can only block a key for a bounded window.
package lock

import (
	"context"
	"time"
)

// Manager hands out named leases. TryAcquire is a single attempt with no
// internal retry; callers that lose simply report contention.
type Manager interface {
	// TryAcquire attempts to take the lease for key for ttl. Exactly one of
	// any set of concurrent callers for the same key receives true. Returns
	// false on contention and on backing-store failure (fail-closed).
	TryAcquire(ctx context.Context, key string, ttl time.Duration) bool
	// Release frees the lease. Idempotent: releasing an absent or expired
	// lease is not an error. Failures are logged and swallowed; the TTL
	// guarantees eventual availability either way.
	Release(ctx context.Context, key string)
}

// StudentKey returns the lease key guarding settlement for one student.
func StudentKey(studentID string) string {
	return "settlement:" + studentID
}

package port

import (
	"context"
	"time"

	"github.com/expensehub/claimflow/internal/domain/claim"
)

// Filter narrows a ClaimStore query. Zero values mean "no constraint".
type Filter struct {
	Statuses     []claim.Status
	RequiredRole claim.Role // role of the claim's active step
	Department   string
	EmployeeID   string
	Limit        int
	Offset       int
}

// ClaimStore persists claims and their approval workflows. The engine never
// assumes a specific database; any store with atomic compare-and-set
// semantics on the lock field satisfies it.
type ClaimStore interface {
	// Create persists a new claim and its workflow.
	Create(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error

	// Get returns the claim and its workflow, or claim.ErrNotFound.
	Get(ctx context.Context, claimID string) (*claim.Claim, *claim.ApprovalWorkflow, error)

	// CompareAndSwapLock atomically replaces the claim's lock with next iff
	// the stored lock matches expected. A nil expected matches an empty or
	// expired lock; a nil next clears the lock. Returns
	// claim.ErrAlreadyLocked when the stored lock does not match, and
	// claim.ErrNotFound for an unknown claim.
	CompareAndSwapLock(ctx context.Context, claimID string, expected, next *claim.Lock) error

	// Save persists the mutated claim and workflow iff the stored version
	// still equals c.Version, then increments it. Returns
	// claim.ErrStoreConflict when a concurrent writer got there first.
	Save(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error

	// Query returns claims matching the filter, most recent first.
	Query(ctx context.Context, f Filter) ([]*claim.Claim, error)

	// RecentByEmployee returns the employee's claims submitted at or after
	// the given instant. Used for duplicate detection.
	RecentByEmployee(ctx context.Context, employeeID string, since time.Time) ([]*claim.Claim, error)
}

// HistoryRepository is the append-only sink for audit records. It never
// rejects a write on business grounds; it is the last line of traceability
// even for denied attempts. Writes are ordered per claim.
type HistoryRepository interface {
	Append(ctx context.Context, entry *claim.HistoryEntry) error
	GetByClaimID(ctx context.Context, claimID string) ([]*claim.HistoryEntry, error)
}

// NotificationRepository persists notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *claim.Notification) error
	GetByClaimID(ctx context.Context, claimID string) ([]*claim.Notification, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMsg string) error
}

// TransactionManager runs a function inside a storage transaction. The
// decision save and its audit record commit as a single logical unit.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

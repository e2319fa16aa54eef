package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
)

// HistoryRepository is an in-memory append-only audit trail.
type HistoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	entries map[string][]*claim.HistoryEntry
}

// NewHistoryRepository creates an empty in-memory history repository.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{
		nextID:  1,
		entries: make(map[string][]*claim.HistoryEntry),
	}
}

// Append stores one history entry.
func (r *HistoryRepository) Append(_ context.Context, entry *claim.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	cp.ID = r.nextID
	r.nextID++
	r.entries[cp.ClaimID] = append(r.entries[cp.ClaimID], &cp)
	entry.ID = cp.ID
	return nil
}

// GetByClaimID returns the claim's entries in append order.
func (r *HistoryRepository) GetByClaimID(_ context.Context, claimID string) ([]*claim.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.entries[claimID]
	out := make([]*claim.HistoryEntry, len(stored))
	for i, e := range stored {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// NotificationRepository is an in-memory port.NotificationRepository.
type NotificationRepository struct {
	mu      sync.Mutex
	byID    map[string]*claim.Notification
	byClaim map[string][]string
}

// NewNotificationRepository creates an empty in-memory notification repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		byID:    make(map[string]*claim.Notification),
		byClaim: make(map[string][]string),
	}
}

// Create stores a notification record.
func (r *NotificationRepository) Create(_ context.Context, n *claim.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[n.ID]; ok {
		return fmt.Errorf("%w: notification %s already exists", claim.ErrStoreConflict, n.ID)
	}
	cp := *n
	r.byID[n.ID] = &cp
	r.byClaim[n.ClaimID] = append(r.byClaim[n.ClaimID], n.ID)
	return nil
}

// GetByClaimID returns the claim's notifications in creation order.
func (r *NotificationRepository) GetByClaimID(_ context.Context, claimID string) ([]*claim.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*claim.Notification
	for _, id := range r.byClaim[claimID] {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

// MarkSent flips the record to SENT.
func (r *NotificationRepository) MarkSent(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", claim.ErrNotFound, id)
	}
	now := time.Now()
	n.Status = claim.NotificationSent
	n.SentAt = &now
	n.ErrorMessage = ""
	return nil
}

// MarkFailed flips the record to FAILED.
func (r *NotificationRepository) MarkFailed(_ context.Context, id string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", claim.ErrNotFound, id)
	}
	n.Status = claim.NotificationFailed
	n.ErrorMessage = errorMsg
	return nil
}

// User is one directory entry.
type User struct {
	ID         string
	Role       claim.Role
	Department string
}

// UserDirectory is a static in-memory port.UserDirectory.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewUserDirectory creates a directory from a fixed user set.
func NewUserDirectory(users ...User) *UserDirectory {
	d := &UserDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// RoleOf returns the approval role of the user.
func (d *UserDirectory) RoleOf(_ context.Context, userID string) (claim.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return "", fmt.Errorf("%w: user %s", claim.ErrNotFound, userID)
	}
	return u.Role, nil
}

// DepartmentOf returns the department of the user.
func (d *UserDirectory) DepartmentOf(_ context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return "", fmt.Errorf("%w: user %s", claim.ErrNotFound, userID)
	}
	return u.Department, nil
}

// ApproversFor returns the user IDs holding the given role, optionally
// narrowed to a department.
func (d *UserDirectory) ApproversFor(_ context.Context, role claim.Role, department string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []string
	for _, u := range d.users {
		if u.Role != role {
			continue
		}
		if department != "" && u.Department != department {
			continue
		}
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// TransactionManager satisfies port.TransactionManager without real
// transactions; the in-memory repositories are individually atomic.
type TransactionManager struct{}

// NewTransactionManager creates a pass-through transaction manager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// WithTransaction runs fn directly.
func (*TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Verify interface compliance.
var (
	_ port.HistoryRepository      = (*HistoryRepository)(nil)
	_ port.NotificationRepository = (*NotificationRepository)(nil)
	_ port.UserDirectory          = (*UserDirectory)(nil)
	_ port.TransactionManager     = (*TransactionManager)(nil)
)

// Package memory provides in-process implementations of the persistence
// ports. They back tests and single-node deployments where SQLite is not
// wanted; the lock and version semantics match the SQLite repositories.
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

type record struct {
	claim    *claim.Claim
	workflow *claim.ApprovalWorkflow
}

// ClaimStore is an in-memory port.ClaimStore. All methods copy on the way
// in and out so callers never share state with the store.
type ClaimStore struct {
	mu      sync.Mutex
	records map[string]*record
	order   []string
	now     func() time.Time
}

// StoreOption configures the store.
type StoreOption func(*ClaimStore)

// WithClock overrides the time source used for lock expiry (tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *ClaimStore) {
		s.now = now
	}
}

// NewClaimStore creates an empty in-memory claim store.
func NewClaimStore(opts ...StoreOption) *ClaimStore {
	s := &ClaimStore{
		records: make(map[string]*record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new claim and its workflow.
func (s *ClaimStore) Create(_ context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[c.ID]; ok {
		return fmt.Errorf("%w: claim %s already exists", claim.ErrStoreConflict, c.ID)
	}
	s.records[c.ID] = &record{claim: copyClaim(c), workflow: copyWorkflow(wf)}
	s.order = append(s.order, c.ID)
	return nil
}

// Get returns copies of the claim and its workflow.
func (s *ClaimStore) Get(_ context.Context, claimID string) (*claim.Claim, *claim.ApprovalWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[claimID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: claim %s", claim.ErrNotFound, claimID)
	}
	return copyClaim(rec.claim), copyWorkflow(rec.workflow), nil
}

// CompareAndSwapLock atomically replaces the claim's lock with next iff the
// stored lock matches expected. A nil expected matches an empty or expired
// lock; a nil next clears the lock.
func (s *ClaimStore) CompareAndSwapLock(_ context.Context, claimID string, expected, next *claim.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[claimID]
	if !ok {
		return fmt.Errorf("%w: claim %s", claim.ErrNotFound, claimID)
	}

	stored := rec.claim.Lock
	if expected == nil {
		now := s.now()
		if next != nil {
			now = next.AcquiredAt
		}
		if stored != nil && !stored.Expired(now) {
			return fmt.Errorf("%w: claim %s", claim.ErrAlreadyLocked, claimID)
		}
	} else {
		if stored == nil || stored.HolderID != expected.HolderID || !stored.AcquiredAt.Equal(expected.AcquiredAt) {
			return fmt.Errorf("%w: claim %s", claim.ErrAlreadyLocked, claimID)
		}
	}

	if next == nil {
		rec.claim.Lock = nil
	} else {
		lock := *next
		rec.claim.Lock = &lock
	}
	return nil
}

// Save persists the mutated claim and workflow iff the stored version still
// equals c.Version, then increments it. The stored lock is preserved; only
// CompareAndSwapLock moves it.
func (s *ClaimStore) Save(_ context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[c.ID]
	if !ok {
		return fmt.Errorf("%w: claim %s", claim.ErrNotFound, c.ID)
	}
	if rec.claim.Version != c.Version {
		return fmt.Errorf("%w: claim %s version %d is stale", claim.ErrStoreConflict, c.ID, c.Version)
	}

	stored := copyClaim(c)
	stored.Version = c.Version + 1
	stored.Lock = rec.claim.Lock
	rec.claim = stored
	rec.workflow = copyWorkflow(wf)
	c.Version++
	return nil
}

// Query returns claims matching the filter, most recently submitted first.
func (s *ClaimStore) Query(_ context.Context, f port.Filter) ([]*claim.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*claim.Claim
	for _, id := range s.order {
		rec := s.records[id]
		if !s.matches(rec, f) {
			continue
		}
		matched = append(matched, copyClaim(rec.claim))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// RecentByEmployee returns the employee's claims submitted at or after since.
func (s *ClaimStore) RecentByEmployee(_ context.Context, employeeID string, since time.Time) ([]*claim.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*claim.Claim
	for _, id := range s.order {
		rec := s.records[id]
		if rec.claim.EmployeeID != employeeID || rec.claim.SubmittedAt.Before(since) {
			continue
		}
		matched = append(matched, copyClaim(rec.claim))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})
	return matched, nil
}

func (s *ClaimStore) matches(rec *record, f port.Filter) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, status := range f.Statuses {
			if rec.claim.Status == status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.RequiredRole != "" {
		if rec.workflow.IsTerminal() {
			return false
		}
		step, ok := rec.workflow.CurrentStep()
		if !ok || step.RequiredRole != f.RequiredRole {
			return false
		}
	}
	if f.Department != "" && rec.claim.Department != f.Department {
		return false
	}
	if f.EmployeeID != "" && rec.claim.EmployeeID != f.EmployeeID {
		return false
	}
	return true
}

func copyClaim(c *claim.Claim) *claim.Claim {
	cp := *c
	cp.Receipts = append([]string(nil), c.Receipts...)
	cp.RiskFlags = append([]string(nil), c.RiskFlags...)
	if c.Lock != nil {
		lock := *c.Lock
		cp.Lock = &lock
	}
	return &cp
}

func copyWorkflow(wf *claim.ApprovalWorkflow) *claim.ApprovalWorkflow {
	cp := *wf
	cp.Steps = make([]claim.ApprovalStep, len(wf.Steps))
	for i, s := range wf.Steps {
		cp.Steps[i] = s
		if s.CompletedAt != nil {
			t := *s.CompletedAt
			cp.Steps[i].CompletedAt = &t
		}
	}
	return &cp
}

// Verify interface compliance.
var _ port.ClaimStore = (*ClaimStore)(nil)

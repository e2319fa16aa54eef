package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim is a single expense reimbursement request.
type Claim struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employee_id"`
	Department  string          `json:"department"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpenseDate time.Time       `json:"expense_date"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor,omitempty"`
	Receipts    []string        `json:"receipts"`

	Status    Status   `json:"status"`
	RiskScore int      `json:"risk_score"`
	RiskFlags []string `json:"risk_flags,omitempty"`
	Flagged   bool     `json:"flagged"`

	Lock *Lock `json:"lock,omitempty"`

	// Version guards optimistic saves; every successful save increments it.
	Version int64 `json:"version"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasReceipt returns true if at least one receipt reference is attached.
func (c *Claim) HasReceipt() bool {
	return len(c.Receipts) > 0
}

// Lock is a short-lived exclusive claim on processing rights for one claim.
type Lock struct {
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired returns true if the lock TTL has elapsed at the given instant.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// HeldBy returns true if the lock is live and held by the given actor.
func (l *Lock) HeldBy(actorID string, now time.Time) bool {
	return l != nil && l.HolderID == actorID && !l.Expired(now)
}

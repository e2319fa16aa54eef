package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/expensehub/claimflow/internal/domain/claim"
)

// Event is a domain event published after a claim transition commits.
// Delivery to subscribers is at-least-once; consumers must be idempotent.
type Event struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	ClaimID       string          `json:"claim_id"`
	EmployeeID    string          `json:"employee_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Category      string          `json:"category"`
	NewStatus     claim.Status    `json:"new_status"`
	Comments      string          `json:"comments,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
}

// NewEvent creates a domain event for a claim with an auto-generated ID and
// timestamp.
func NewEvent(eventType Type, c *claim.Claim, comments string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ClaimID:       c.ID,
		EmployeeID:    c.EmployeeID,
		Amount:        c.Amount,
		Currency:      c.Currency,
		Category:      c.Category,
		NewStatus:     c.Status,
		Comments:      comments,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain.
func NewEventWithCorrelation(eventType Type, c *claim.Claim, comments, correlationID string) *Event {
	evt := NewEvent(eventType, c, comments)
	evt.CorrelationID = correlationID
	return evt
}

// TypeForStatus maps a post-decision claim status to its event type. The
// boolean is false for statuses that do not publish an event.
func TypeForStatus(s claim.Status) (Type, bool) {
	switch s {
	case claim.StatusApproved:
		return TypeClaimApproved, true
	case claim.StatusRejected:
		return TypeClaimRejected, true
	case claim.StatusEscalated:
		return TypeClaimEscalated, true
	case claim.StatusInfoRequested:
		return TypeClaimInfoRequested, true
	default:
		// Intermediate review hops (e.g. manager -> hr_review) do not
		// publish; subscribers track outcomes, not queue position.
		return "", false
	}
}

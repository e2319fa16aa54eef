package claim

import "time"

// Notification delivery status.
const (
	NotificationPending = "PENDING"
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
)

// Notification kinds.
const (
	// NotificationOutcome tells the employee what happened to their claim.
	NotificationOutcome = "OUTCOME"
	// NotificationActionRequired tells the next approver a claim awaits them.
	NotificationActionRequired = "ACTION_REQUIRED"
)

// Notification is a persisted notification record built after a successful
// transition. Delivery happens outside the decision path.
type Notification struct {
	ID           string     `json:"id"`
	ClaimID      string     `json:"claim_id"`
	RecipientID  string     `json:"recipient_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Message      string     `json:"message"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

package claim

import "time"

// Action tags a history entry with what the actor attempted. Failed
// attempts are tagged with the corresponding error kind so the audit trail
// is complete even for denied calls.
type Action string

const (
	ActionSubmit      Action = "SUBMIT"
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
	ActionEscalate    Action = "ESCALATE"
	ActionRequestInfo Action = "REQUEST_INFO"

	ActionLockDenied        Action = "LOCK_DENIED"
	ActionUnauthorized      Action = "UNAUTHORIZED"
	ActionInvalidTransition Action = "INVALID_TRANSITION"
	ActionValidationFailed  Action = "VALIDATION_FAILED"
	ActionStoreConflict     Action = "STORE_CONFLICT"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// HistoryEntry is one immutable record in a claim's audit trail. Entries
// are never mutated or deleted.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	ClaimID        string    `json:"claim_id"`
	StepNumber     int       `json:"step_number"`
	ActorID        string    `json:"actor_id"`
	ActorRole      Role      `json:"actor_role"`
	Action         Action    `json:"action"`
	Comments       string    `json:"comments,omitempty"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

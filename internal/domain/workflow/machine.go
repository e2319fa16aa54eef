// Package workflow provides the state machine that validates claim status
// transitions. Claim status is derived from the approval workflow; the
// machine asserts that each derived transition is one the review lifecycle
// permits.
package workflow

import (
	"github.com/expensehub/claimflow/internal/domain/claim"
)

// Trigger is the decision kind driving a transition.
type Trigger string

const (
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerEscalate    Trigger = "ESCALATE"
	TriggerRequestInfo Trigger = "REQUEST_INFO"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor maps a decision to its transition trigger.
func TriggerFor(d claim.Decision) Trigger {
	switch d {
	case claim.DecisionReject:
		return TriggerReject
	case claim.DecisionEscalate:
		return TriggerEscalate
	case claim.DecisionRequestInfo:
		return TriggerRequestInfo
	default:
		return TriggerApprove
	}
}

// StateMachine validates transitions between claim statuses.
type StateMachine interface {
	// State returns the current status.
	State() claim.Status

	// CanFire returns true if the trigger is permitted in the current
	// status, regardless of target.
	CanFire(trigger Trigger) bool

	// Fire transitions to the target status if the trigger permits it,
	// returning a claim.ErrInvalidTransition error otherwise. The target
	// is explicit because the same trigger can land on different statuses
	// depending on the remaining workflow steps.
	Fire(trigger Trigger, to claim.Status) error

	// PermittedTriggers returns all triggers that can fire from the
	// current status.
	PermittedTriggers() []Trigger
}

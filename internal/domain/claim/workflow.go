package claim

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStep is one required sign-off in a claim's workflow.
type ApprovalStep struct {
	Number       int        `json:"number"`
	RequiredRole Role       `json:"required_role"`
	Status       StepStatus `json:"status"`
	ApproverID   string     `json:"approver_id,omitempty"`
	Comments     string     `json:"comments,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// AmountThreshold records the configured threshold that caused this
	// step to be included. Diagnostic only.
	AmountThreshold decimal.Decimal `json:"amount_threshold"`
}

// ApprovalWorkflow is the ordered approval plan attached to a claim at
// submission. It is never replaced, only extended (by escalation).
type ApprovalWorkflow struct {
	ClaimID          string         `json:"claim_id"`
	Steps            []ApprovalStep `json:"steps"`
	CurrentStepIndex int            `json:"current_step_index"`
	Status           WorkflowStatus `json:"status"`
}

// NewWorkflow creates a workflow for a claim from the ordered steps emitted
// by the rule engine.
func NewWorkflow(claimID string, steps []ApprovalStep) *ApprovalWorkflow {
	w := &ApprovalWorkflow{
		ClaimID: claimID,
		Steps:   steps,
	}
	w.Recompute()
	return w
}

// CurrentStep returns the active step, or false if the workflow is past its
// last step.
func (w *ApprovalWorkflow) CurrentStep() (*ApprovalStep, bool) {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return nil, false
	}
	return &w.Steps[w.CurrentStepIndex], true
}

// IsTerminal returns true if the workflow has reached a final outcome.
func (w *ApprovalWorkflow) IsTerminal() bool {
	return w.Status.IsTerminal()
}

// Recompute re-derives the overall workflow status from the steps. The
// workflow is rejected iff any step is rejected, and approved iff every
// step has been resolved and none rejected.
func (w *ApprovalWorkflow) Recompute() {
	for _, s := range w.Steps {
		if s.Status == StepRejected {
			w.Status = WorkflowRejected
			return
		}
	}
	if w.CurrentStepIndex >= len(w.Steps) {
		w.Status = WorkflowApproved
		return
	}
	for _, s := range w.Steps {
		if s.Status != StepPending {
			w.Status = WorkflowInProgress
			return
		}
	}
	w.Status = WorkflowPending
}

// advance moves the step index past every already-terminal step.
func (w *ApprovalWorkflow) advance() {
	for w.CurrentStepIndex < len(w.Steps) && w.Steps[w.CurrentStepIndex].Status.IsTerminal() {
		w.CurrentStepIndex++
	}
}

// Approve marks the active step approved and advances the workflow.
func (w *ApprovalWorkflow) Approve(actorID, comments string, at time.Time) error {
	step, ok := w.activeStep()
	if !ok {
		return fmt.Errorf("%w: workflow for claim %s has no active step", ErrInvalidTransition, w.ClaimID)
	}
	step.Status = StepApproved
	step.ApproverID = actorID
	step.Comments = comments
	step.CompletedAt = &at
	w.advance()
	w.Recompute()
	return nil
}

// Reject marks the active step rejected, which rejects the whole workflow.
func (w *ApprovalWorkflow) Reject(actorID, comments string, at time.Time) error {
	step, ok := w.activeStep()
	if !ok {
		return fmt.Errorf("%w: workflow for claim %s has no active step", ErrInvalidTransition, w.ClaimID)
	}
	step.Status = StepRejected
	step.ApproverID = actorID
	step.Comments = comments
	step.CompletedAt = &at
	w.advance()
	w.Recompute()
	return nil
}

// Escalate resolves the active step without a final decision and re-enters
// the sequence at the next unresolved step requiring HR or higher. If no
// such step exists the workflow is extended with an HR step, so flagged
// escalations never dead-end.
func (w *ApprovalWorkflow) Escalate(actorID, comments string, at time.Time) error {
	step, ok := w.activeStep()
	if !ok {
		return fmt.Errorf("%w: workflow for claim %s has no active step", ErrInvalidTransition, w.ClaimID)
	}
	step.Status = StepEscalated
	step.ApproverID = actorID
	step.Comments = comments
	step.CompletedAt = &at

	// Skip forward to the next pending step with role >= HR.
	for i := w.CurrentStepIndex + 1; i < len(w.Steps); i++ {
		s := &w.Steps[i]
		if s.Status != StepPending {
			continue
		}
		if s.RequiredRole.Rank() >= RoleHR.Rank() {
			break
		}
		s.Status = StepSkipped
		s.CompletedAt = &at
	}

	w.advance()
	if _, ok := w.CurrentStep(); !ok {
		w.Steps = append(w.Steps, ApprovalStep{
			Number:       len(w.Steps) + 1,
			RequiredRole: RoleHR,
			Status:       StepPending,
		})
		w.CurrentStepIndex = len(w.Steps) - 1
	}
	w.Recompute()
	return nil
}

// RequestInfo pauses the active step without advancing the workflow. The
// step records who asked so that only that approver, or an equal/higher
// role, may resume it.
func (w *ApprovalWorkflow) RequestInfo(actorID, comments string, at time.Time) error {
	step, ok := w.activeStep()
	if !ok {
		return fmt.Errorf("%w: workflow for claim %s has no active step", ErrInvalidTransition, w.ClaimID)
	}
	step.Status = StepInfoRequested
	step.ApproverID = actorID
	step.Comments = comments
	step.CompletedAt = nil
	w.Recompute()
	return nil
}

// activeStep returns the current step if it can still accept a decision.
func (w *ApprovalWorkflow) activeStep() (*ApprovalStep, bool) {
	step, ok := w.CurrentStep()
	if !ok {
		return nil, false
	}
	if step.Status.IsTerminal() {
		return nil, false
	}
	return step, true
}

// DerivedClaimStatus computes the claim status from the workflow alone.
// The workflow is the single source of truth; callers must never set a
// claim status that disagrees with this derivation.
func (w *ApprovalWorkflow) DerivedClaimStatus() Status {
	switch w.Status {
	case WorkflowApproved:
		return StatusApproved
	case WorkflowRejected:
		return StatusRejected
	}

	step, ok := w.CurrentStep()
	if !ok {
		// Unreachable for a consistent workflow; Recompute would have
		// marked it approved.
		return StatusApproved
	}

	if step.Status == StepInfoRequested {
		return StatusInfoRequested
	}

	if step.Status == StepPending && w.enteredByEscalation() {
		return StatusEscalated
	}

	if w.Status == WorkflowPending {
		return StatusPending
	}

	switch step.RequiredRole {
	case RoleHR:
		return StatusHRReview
	case RoleAdministrator:
		return StatusAdminReview
	default:
		return StatusManagerReview
	}
}

// enteredByEscalation reports whether the current step was reached through
// an escalation (the nearest earlier resolved step, skipping skipped ones,
// was escalated).
func (w *ApprovalWorkflow) enteredByEscalation() bool {
	for i := w.CurrentStepIndex - 1; i >= 0; i-- {
		switch w.Steps[i].Status {
		case StepSkipped:
			continue
		case StepEscalated:
			return true
		default:
			return false
		}
	}
	return false
}

package workflow

import (
	"github.com/expensehub/claimflow/internal/domain/claim"
)

// BuildClaimReviewMachine creates a state machine configured for the claim
// review lifecycle: pending → manager_review → {hr_review, admin_review,
// approved, rejected}, with escalated and info_requested side branches.
// Approved and rejected are terminal.
func BuildClaimReviewMachine(initial claim.Status) StateMachine {
	builder := NewBuilder()

	// A freshly submitted claim sits at the manager step; the first
	// decision may resolve it outright or hand it to HR/admin.
	reviewTargets := []claim.Status{
		claim.StatusHRReview,
		claim.StatusAdminReview,
		claim.StatusApproved,
	}

	builder.Configure(claim.StatusPending).
		Permit(TriggerApprove, reviewTargets...).
		Permit(TriggerReject, claim.StatusRejected).
		Permit(TriggerEscalate, claim.StatusEscalated).
		Permit(TriggerRequestInfo, claim.StatusInfoRequested)

	builder.Configure(claim.StatusManagerReview).
		Permit(TriggerApprove, reviewTargets...).
		Permit(TriggerReject, claim.StatusRejected).
		Permit(TriggerEscalate, claim.StatusEscalated).
		Permit(TriggerRequestInfo, claim.StatusInfoRequested)

	builder.Configure(claim.StatusHRReview).
		Permit(TriggerApprove, claim.StatusAdminReview, claim.StatusApproved).
		Permit(TriggerReject, claim.StatusRejected).
		Permit(TriggerEscalate, claim.StatusEscalated).
		Permit(TriggerRequestInfo, claim.StatusInfoRequested)

	builder.Configure(claim.StatusAdminReview).
		Permit(TriggerApprove, claim.StatusApproved).
		Permit(TriggerReject, claim.StatusRejected).
		Permit(TriggerEscalate, claim.StatusEscalated).
		Permit(TriggerRequestInfo, claim.StatusInfoRequested)

	builder.Configure(claim.StatusEscalated).
		Permit(TriggerApprove, claim.StatusAdminReview, claim.StatusApproved).
		Permit(TriggerReject, claim.StatusRejected).
		Permit(TriggerEscalate, claim.StatusEscalated).
		Permit(TriggerRequestInfo, claim.StatusInfoRequested)

	builder.Configure(claim.StatusInfoRequested).
		Permit(TriggerApprove, reviewTargets...).
		Permit(TriggerReject, claim.StatusRejected).
		Permit(TriggerEscalate, claim.StatusEscalated).
		Permit(TriggerRequestInfo, claim.StatusInfoRequested)

	// APPROVED and REJECTED are terminal, no outgoing transitions.

	return builder.Build(initial)
}

package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStepWorkflow() *ApprovalWorkflow {
	return NewWorkflow("claim-1", []ApprovalStep{
		{Number: 1, RequiredRole: RoleManager, Status: StepPending},
		{Number: 2, RequiredRole: RoleHR, Status: StepPending},
		{Number: 3, RequiredRole: RoleAdministrator, Status: StepPending},
	})
}

var testTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNewWorkflowStartsPending(t *testing.T) {
	wf := threeStepWorkflow()

	assert.Equal(t, WorkflowPending, wf.Status)
	assert.Equal(t, StatusPending, wf.DerivedClaimStatus())

	step, ok := wf.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, RoleManager, step.RequiredRole)
}

func TestApproveAdvancesThroughSteps(t *testing.T) {
	wf := threeStepWorkflow()

	require.NoError(t, wf.Approve("mgr-1", "ok", testTime))
	assert.Equal(t, WorkflowInProgress, wf.Status)
	assert.Equal(t, StatusHRReview, wf.DerivedClaimStatus())

	require.NoError(t, wf.Approve("hr-1", "ok", testTime))
	assert.Equal(t, StatusAdminReview, wf.DerivedClaimStatus())

	require.NoError(t, wf.Approve("adm-1", "ok", testTime))
	assert.Equal(t, WorkflowApproved, wf.Status)
	assert.Equal(t, StatusApproved, wf.DerivedClaimStatus())
	assert.True(t, wf.IsTerminal())
}

func TestRejectTerminatesWorkflow(t *testing.T) {
	wf := threeStepWorkflow()

	require.NoError(t, wf.Approve("mgr-1", "ok", testTime))
	require.NoError(t, wf.Reject("hr-1", "not compliant", testTime))

	assert.Equal(t, WorkflowRejected, wf.Status)
	assert.Equal(t, StatusRejected, wf.DerivedClaimStatus())
	assert.True(t, wf.IsTerminal())
}

func TestRequestInfoPausesWithoutAdvancing(t *testing.T) {
	wf := threeStepWorkflow()

	require.NoError(t, wf.RequestInfo("mgr-1", "need itemized receipt", testTime))

	assert.Equal(t, StatusInfoRequested, wf.DerivedClaimStatus())
	step, ok := wf.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, StepInfoRequested, step.Status)
	assert.Equal(t, "mgr-1", step.ApproverID)

	// The paused step can still be decided.
	require.NoError(t, wf.Approve("mgr-1", "receipt attached", testTime))
	assert.Equal(t, StatusHRReview, wf.DerivedClaimStatus())
}

func TestEscalateSkipsToHR(t *testing.T) {
	wf := threeStepWorkflow()

	require.NoError(t, wf.Escalate("mgr-1", "unusual vendor", testTime))

	assert.Equal(t, StatusEscalated, wf.DerivedClaimStatus())
	step, ok := wf.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, RoleHR, step.RequiredRole)
	assert.Equal(t, StepEscalated, wf.Steps[0].Status)
}

func TestEscalateExtendsWorkflowWhenNoHigherStepRemains(t *testing.T) {
	wf := NewWorkflow("claim-1", []ApprovalStep{
		{Number: 1, RequiredRole: RoleManager, Status: StepPending},
	})

	require.NoError(t, wf.Escalate("mgr-1", "needs review", testTime))

	require.Len(t, wf.Steps, 2)
	step, ok := wf.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, RoleHR, step.RequiredRole)
	assert.Equal(t, StatusEscalated, wf.DerivedClaimStatus())
	assert.False(t, wf.IsTerminal())
}

func TestEscalatedStatusClearsAfterDecision(t *testing.T) {
	wf := threeStepWorkflow()

	require.NoError(t, wf.Escalate("mgr-1", "unusual vendor", testTime))
	require.NoError(t, wf.Approve("hr-1", "reviewed", testTime))

	// The escalation entry status applies only to the step it landed on.
	assert.Equal(t, StatusAdminReview, wf.DerivedClaimStatus())
}

func TestDecisionOnResolvedWorkflowFails(t *testing.T) {
	wf := NewWorkflow("claim-1", []ApprovalStep{
		{Number: 1, RequiredRole: RoleManager, Status: StepPending},
	})
	require.NoError(t, wf.Approve("mgr-1", "ok", testTime))

	assert.ErrorIs(t, wf.Approve("mgr-1", "again", testTime), ErrInvalidTransition)
	assert.ErrorIs(t, wf.Reject("mgr-1", "no", testTime), ErrInvalidTransition)
}

func TestDerivedStatusNeverDisagreesWithSteps(t *testing.T) {
	// Whatever sequence of decisions is applied, the derived status must
	// stay consistent with the step states.
	sequences := [][]Decision{
		{DecisionApprove, DecisionApprove, DecisionApprove},
		{DecisionApprove, DecisionReject},
		{DecisionRequestInfo, DecisionApprove, DecisionEscalate},
		{DecisionEscalate, DecisionApprove, DecisionApprove},
		{DecisionRequestInfo, DecisionRequestInfo, DecisionApprove, DecisionApprove, DecisionApprove},
	}

	for _, seq := range sequences {
		wf := threeStepWorkflow()
		for _, d := range seq {
			if wf.IsTerminal() {
				break
			}
			var err error
			switch d {
			case DecisionApprove:
				err = wf.Approve("actor", "c", testTime)
			case DecisionReject:
				err = wf.Reject("actor", "c", testTime)
			case DecisionEscalate:
				err = wf.Escalate("actor", "c", testTime)
			case DecisionRequestInfo:
				err = wf.RequestInfo("actor", "c", testTime)
			}
			require.NoError(t, err)

			status := wf.DerivedClaimStatus()
			assert.True(t, status.IsValid())
			if wf.IsTerminal() {
				assert.True(t, status.IsTerminal())
			} else {
				assert.False(t, status.IsTerminal())
				_, ok := wf.CurrentStep()
				assert.True(t, ok)
			}
		}
	}
}

func TestRoleSatisfies(t *testing.T) {
	tests := []struct {
		actor    Role
		required Role
		want     bool
	}{
		{RoleManager, RoleManager, true},
		{RoleManager, RoleHR, false},
		{RoleHR, RoleManager, true},
		{RoleHR, RoleHR, true},
		{RoleHR, RoleAdministrator, false},
		{RoleAdministrator, RoleManager, true},
		{RoleAdministrator, RoleHR, true},
		{RoleAdministrator, RoleAdministrator, true},
		{RoleEmployee, RoleManager, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.actor.Satisfies(tt.required),
			"%s satisfies %s", tt.actor, tt.required)
	}
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensehub/claimflow/internal/domain/claim"
)

func TestClaimReviewMachineTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    claim.Status
		trigger Trigger
		to      claim.Status
		wantErr bool
	}{
		{
			name:    "manager approval hands off to hr",
			from:    claim.StatusManagerReview,
			trigger: TriggerApprove,
			to:      claim.StatusHRReview,
		},
		{
			name:    "manager approval can resolve the claim",
			from:    claim.StatusManagerReview,
			trigger: TriggerApprove,
			to:      claim.StatusApproved,
		},
		{
			name:    "pending claim can be rejected",
			from:    claim.StatusPending,
			trigger: TriggerReject,
			to:      claim.StatusRejected,
		},
		{
			name:    "hr approval hands off to admin",
			from:    claim.StatusHRReview,
			trigger: TriggerApprove,
			to:      claim.StatusAdminReview,
		},
		{
			name:    "hr approval cannot go back to hr review",
			from:    claim.StatusHRReview,
			trigger: TriggerApprove,
			to:      claim.StatusHRReview,
			wantErr: true,
		},
		{
			name:    "admin approval resolves the claim",
			from:    claim.StatusAdminReview,
			trigger: TriggerApprove,
			to:      claim.StatusApproved,
		},
		{
			name:    "admin approval cannot hand off further",
			from:    claim.StatusAdminReview,
			trigger: TriggerApprove,
			to:      claim.StatusHRReview,
			wantErr: true,
		},
		{
			name:    "escalated claim resumes via approval",
			from:    claim.StatusEscalated,
			trigger: TriggerApprove,
			to:      claim.StatusAdminReview,
		},
		{
			name:    "info requested claim resumes",
			from:    claim.StatusInfoRequested,
			trigger: TriggerApprove,
			to:      claim.StatusHRReview,
		},
		{
			name:    "any review state can escalate",
			from:    claim.StatusManagerReview,
			trigger: TriggerEscalate,
			to:      claim.StatusEscalated,
		},
		{
			name:    "approved is terminal",
			from:    claim.StatusApproved,
			trigger: TriggerApprove,
			to:      claim.StatusApproved,
			wantErr: true,
		},
		{
			name:    "rejected is terminal",
			from:    claim.StatusRejected,
			trigger: TriggerReject,
			to:      claim.StatusRejected,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildClaimReviewMachine(tt.from)

			err := machine.Fire(tt.trigger, tt.to)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, claim.ErrInvalidTransition)
				assert.Equal(t, tt.from, machine.State())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, machine.State())
		})
	}
}

func TestCanFire(t *testing.T) {
	machine := BuildClaimReviewMachine(claim.StatusManagerReview)
	assert.True(t, machine.CanFire(TriggerApprove))
	assert.True(t, machine.CanFire(TriggerReject))
	assert.True(t, machine.CanFire(TriggerEscalate))
	assert.True(t, machine.CanFire(TriggerRequestInfo))

	terminal := BuildClaimReviewMachine(claim.StatusApproved)
	assert.False(t, terminal.CanFire(TriggerApprove))
	assert.Empty(t, terminal.PermittedTriggers())
}

func TestTriggerForDecision(t *testing.T) {
	assert.Equal(t, TriggerApprove, TriggerFor(claim.DecisionApprove))
	assert.Equal(t, TriggerReject, TriggerFor(claim.DecisionReject))
	assert.Equal(t, TriggerEscalate, TriggerFor(claim.DecisionEscalate))
	assert.Equal(t, TriggerRequestInfo, TriggerFor(claim.DecisionRequestInfo))
}

func TestBuilderIsolation(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(claim.StatusPending).Permit(TriggerApprove, claim.StatusApproved)

	machine := builder.Build(claim.StatusPending)

	// Later builder mutations must not leak into the built machine.
	builder.Configure(claim.StatusPending).Permit(TriggerReject, claim.StatusRejected)

	assert.False(t, machine.CanFire(TriggerReject))
	assert.True(t, machine.CanFire(TriggerApprove))
}

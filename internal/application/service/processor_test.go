package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testDirectory() *memory.UserDirectory {
	return memory.NewUserDirectory(
		memory.User{ID: "emp-1", Role: claim.RoleEmployee, Department: "Engineering"},
		memory.User{ID: "mgr-1", Role: claim.RoleManager, Department: "Engineering"},
		memory.User{ID: "mgr-2", Role: claim.RoleManager, Department: "Engineering"},
		memory.User{ID: "hr-1", Role: claim.RoleHR, Department: "People"},
		memory.User{ID: "adm-1", Role: claim.RoleAdministrator, Department: "IT"},
	)
}

type processorFixture struct {
	store     *memory.ClaimStore
	history   *memory.HistoryRepository
	directory *memory.UserDirectory
	processor ApprovalProcessor
}

func newProcessorFixture(t *testing.T, opts ...ProcessorOption) *processorFixture {
	t.Helper()

	fx := &processorFixture{
		store:     memory.NewClaimStore(),
		history:   memory.NewHistoryRepository(),
		directory: testDirectory(),
	}

	audit := NewAuditLogger(fx.history, nopLogger{})
	opts = append([]ProcessorOption{WithClock(func() time.Time { return testNow })}, opts...)
	fx.processor = NewApprovalProcessor(
		fx.store, fx.directory, audit, memory.NewTransactionManager(),
		30*time.Second, nopLogger{}, opts...,
	)
	return fx
}

func (fx *processorFixture) seedClaim(t *testing.T, id string, roles ...claim.Role) {
	t.Helper()

	steps := make([]claim.ApprovalStep, len(roles))
	for i, role := range roles {
		steps[i] = claim.ApprovalStep{Number: i + 1, RequiredRole: role, Status: claim.StepPending}
	}
	wf := claim.NewWorkflow(id, steps)

	c := &claim.Claim{
		ID:          id,
		EmployeeID:  "emp-1",
		Department:  "Engineering",
		Category:    "Travel",
		Amount:      decimal.NewFromInt(500),
		Currency:    "USD",
		Receipts:    []string{"receipt-1"},
		Status:      wf.DerivedClaimStatus(),
		ExpenseDate: testNow.AddDate(0, 0, -2),
		SubmittedAt: testNow,
		UpdatedAt:   testNow,
	}
	require.NoError(t, fx.store.Create(context.Background(), c, wf))
}

func (fx *processorFixture) historyFor(t *testing.T, claimID string) []*claim.HistoryEntry {
	t.Helper()
	entries, err := fx.history.GetByClaimID(context.Background(), claimID)
	require.NoError(t, err)
	return entries
}

func approveCmd(claimID, actorID string, role claim.Role) DecideCommand {
	return DecideCommand{
		ClaimID:   claimID,
		ActorID:   actorID,
		ActorRole: role,
		Decision:  claim.DecisionApprove,
		Comments:  "looks fine",
	}
}

func TestDecideApproveAdvancesClaim(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager, claim.RoleHR, claim.RoleAdministrator)

	result, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))

	require.NoError(t, err)
	assert.Equal(t, claim.StatusHRReview, result.Claim.Status)
	assert.Equal(t, claim.WorkflowInProgress, result.WorkflowStatus)
	assert.EqualValues(t, 1, result.Claim.Version)

	stored, _, err := fx.store.Get(context.Background(), "claim-1")
	require.NoError(t, err)
	assert.Equal(t, claim.StatusHRReview, stored.Status)
	assert.Nil(t, stored.Lock, "lock must be released after the decision")

	entries := fx.historyFor(t, "claim-1")
	require.Len(t, entries, 1)
	assert.Equal(t, claim.ActionApprove, entries[0].Action)
	assert.Equal(t, claim.StatusPending, entries[0].PreviousStatus)
	assert.Equal(t, claim.StatusHRReview, entries[0].NewStatus)
	assert.Equal(t, 1, entries[0].StepNumber)
}

func TestDecideUnknownClaim(t *testing.T) {
	fx := newProcessorFixture(t)

	_, err := fx.processor.Decide(context.Background(), approveCmd("missing", "mgr-1", claim.RoleManager))

	assert.ErrorIs(t, err, claim.ErrNotFound)
	assert.Len(t, fx.historyFor(t, "missing"), 1)
}

func TestDecideOnResolvedClaim(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager)

	_, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))
	require.NoError(t, err)

	_, err = fx.processor.Decide(context.Background(), approveCmd("claim-1", "adm-1", claim.RoleAdministrator))

	assert.ErrorIs(t, err, claim.ErrInvalidTransition)

	entries := fx.historyFor(t, "claim-1")
	require.Len(t, entries, 2)
	assert.Equal(t, claim.ActionInvalidTransition, entries[1].Action)
}

func TestDecideCommentRequirements(t *testing.T) {
	tests := []struct {
		name     string
		decision claim.Decision
		wantMsg  string
	}{
		{"reject needs a reason", claim.DecisionReject, "rejection requires a reason"},
		{"escalate needs a reason", claim.DecisionEscalate, "escalation requires a reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newProcessorFixture(t)
			fx.seedClaim(t, "claim-1", claim.RoleManager)

			_, err := fx.processor.Decide(context.Background(), DecideCommand{
				ClaimID:   "claim-1",
				ActorID:   "mgr-1",
				ActorRole: claim.RoleManager,
				Decision:  tt.decision,
			})

			require.ErrorIs(t, err, claim.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)

			entries := fx.historyFor(t, "claim-1")
			require.Len(t, entries, 1)
			assert.Equal(t, claim.ActionValidationFailed, entries[0].Action)
		})
	}
}

func TestDecideUnknownDecision(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager)

	_, err := fx.processor.Decide(context.Background(), DecideCommand{
		ClaimID:   "claim-1",
		ActorID:   "mgr-1",
		ActorRole: claim.RoleManager,
		Decision:  claim.Decision("SHRED"),
	})

	assert.ErrorIs(t, err, claim.ErrValidation)
}

func TestDecideAuthorization(t *testing.T) {
	tests := []struct {
		name      string
		actorID   string
		actorRole claim.Role
	}{
		{"employees cannot decide", "emp-1", claim.RoleEmployee},
		{"claimed role must match the directory", "emp-1", claim.RoleManager},
		{"unknown actors are rejected", "ghost", claim.RoleManager},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newProcessorFixture(t)
			fx.seedClaim(t, "claim-1", claim.RoleManager)

			_, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", tt.actorID, tt.actorRole))

			require.ErrorIs(t, err, claim.ErrUnauthorized)

			entries := fx.historyFor(t, "claim-1")
			require.Len(t, entries, 1)
			assert.Equal(t, claim.ActionUnauthorized, entries[0].Action)

			stored, _, getErr := fx.store.Get(context.Background(), "claim-1")
			require.NoError(t, getErr)
			assert.Nil(t, stored.Lock, "lock must be released after a denied decision")
		})
	}
}

func TestDecideRoleMustCoverStep(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager, claim.RoleHR)

	_, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))
	require.NoError(t, err)

	// The HR step is active now; a manager cannot decide it.
	_, err = fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-2", claim.RoleManager))
	assert.ErrorIs(t, err, claim.ErrUnauthorized)

	// An administrator outranks HR and can.
	_, err = fx.processor.Decide(context.Background(), approveCmd("claim-1", "adm-1", claim.RoleAdministrator))
	require.NoError(t, err)
}

func TestDecideHeldLockIsDenied(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager)

	held := &claim.Lock{HolderID: "mgr-2", AcquiredAt: testNow, ExpiresAt: testNow.Add(time.Minute)}
	require.NoError(t, fx.store.CompareAndSwapLock(context.Background(), "claim-1", nil, held))

	_, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))

	require.ErrorIs(t, err, claim.ErrAlreadyLocked)

	entries := fx.historyFor(t, "claim-1")
	require.Len(t, entries, 1)
	assert.Equal(t, claim.ActionLockDenied, entries[0].Action)

	// The holder's lock is untouched.
	stored, _, err := fx.store.Get(context.Background(), "claim-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Lock)
	assert.Equal(t, "mgr-2", stored.Lock.HolderID)
}

func TestDecideTakesOverExpiredLock(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager)

	stale := &claim.Lock{
		HolderID:   "mgr-2",
		AcquiredAt: testNow.Add(-2 * time.Minute),
		ExpiresAt:  testNow.Add(-90 * time.Second),
	}
	require.NoError(t, fx.store.CompareAndSwapLock(context.Background(), "claim-1", nil, stale))

	result, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))

	require.NoError(t, err)
	assert.Equal(t, claim.StatusApproved, result.Claim.Status)
}

func TestDecideConcurrentCallsExactlyOneWins(t *testing.T) {
	fx := &processorFixture{
		store:     memory.NewClaimStore(),
		history:   memory.NewHistoryRepository(),
		directory: testDirectory(),
	}
	audit := NewAuditLogger(fx.history, nopLogger{})
	fx.processor = NewApprovalProcessor(
		fx.store, fx.directory, audit, memory.NewTransactionManager(),
		30*time.Second, nopLogger{},
	)
	fx.seedClaim(t, "claim-1", claim.RoleManager)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		lost := errors.Is(err, claim.ErrAlreadyLocked) || errors.Is(err, claim.ErrInvalidTransition)
		assert.True(t, lost, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	stored, _, err := fx.store.Get(context.Background(), "claim-1")
	require.NoError(t, err)
	assert.Equal(t, claim.StatusApproved, stored.Status)
	assert.Nil(t, stored.Lock)
}

func TestDecideRejectTerminatesClaim(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager, claim.RoleHR)

	result, err := fx.processor.Decide(context.Background(), DecideCommand{
		ClaimID:   "claim-1",
		ActorID:   "mgr-1",
		ActorRole: claim.RoleManager,
		Decision:  claim.DecisionReject,
		Comments:  "policy violation",
	})

	require.NoError(t, err)
	assert.Equal(t, claim.StatusRejected, result.Claim.Status)
	assert.Equal(t, claim.WorkflowRejected, result.WorkflowStatus)

	entries := fx.historyFor(t, "claim-1")
	require.Len(t, entries, 1)
	assert.Equal(t, claim.ActionReject, entries[0].Action)
	assert.Equal(t, "policy violation", entries[0].Comments)
}

func TestDecideEscalateHandsOffToHR(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager, claim.RoleHR)

	result, err := fx.processor.Decide(context.Background(), DecideCommand{
		ClaimID:   "claim-1",
		ActorID:   "mgr-1",
		ActorRole: claim.RoleManager,
		Decision:  claim.DecisionEscalate,
		Comments:  "unusual vendor",
	})

	require.NoError(t, err)
	assert.Equal(t, claim.StatusEscalated, result.Claim.Status)

	step, ok := result.Workflow.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, claim.RoleHR, step.RequiredRole)
}

func TestDecideInfoRequestPausesStep(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.seedClaim(t, "claim-1", claim.RoleManager)

	// HR covers manager steps and pauses this one.
	_, err := fx.processor.Decide(context.Background(), DecideCommand{
		ClaimID:   "claim-1",
		ActorID:   "hr-1",
		ActorRole: claim.RoleHR,
		Decision:  claim.DecisionRequestInfo,
		Comments:  "need itemized receipt",
	})
	require.NoError(t, err)

	// A lower-ranked actor cannot resume someone else's pause.
	_, err = fx.processor.Decide(context.Background(), approveCmd("claim-1", "mgr-1", claim.RoleManager))
	assert.ErrorIs(t, err, claim.ErrUnauthorized)

	// The requester can.
	result, err := fx.processor.Decide(context.Background(), approveCmd("claim-1", "hr-1", claim.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, claim.StatusApproved, result.Claim.Status)
}

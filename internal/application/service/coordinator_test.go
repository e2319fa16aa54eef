package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/domain/risk"
	"github.com/expensehub/claimflow/internal/domain/rules"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/memory"
)

type mockNotifier struct {
	submitted   []string
	transitions []string
}

func (m *mockNotifier) NotifySubmitted(_ context.Context, c *claim.Claim, _ *claim.ApprovalWorkflow) error {
	m.submitted = append(m.submitted, c.ID)
	return nil
}

func (m *mockNotifier) NotifyTransition(_ context.Context, c *claim.Claim, _ *claim.ApprovalWorkflow, _ string) error {
	m.transitions = append(m.transitions, c.ID)
	return nil
}

type coordinatorFixture struct {
	store       *memory.ClaimStore
	history     *memory.HistoryRepository
	notifier    *mockNotifier
	coordinator WorkflowCoordinator
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	directory := memory.NewUserDirectory(
		memory.User{ID: "emp-1", Role: claim.RoleEmployee, Department: "Engineering"},
		memory.User{ID: "emp-2", Role: claim.RoleEmployee, Department: "Sales"},
		memory.User{ID: "mgr-1", Role: claim.RoleManager, Department: "Engineering"},
		memory.User{ID: "mgr-3", Role: claim.RoleManager, Department: "Sales"},
		memory.User{ID: "hr-1", Role: claim.RoleHR, Department: "People"},
		memory.User{ID: "adm-1", Role: claim.RoleAdministrator, Department: "IT"},
	)

	fx := &coordinatorFixture{
		store:    memory.NewClaimStore(),
		history:  memory.NewHistoryRepository(),
		notifier: &mockNotifier{},
	}

	annotator := risk.NewAnnotator(risk.Config{
		HighValueThreshold:  decimal.NewFromInt(10000),
		SensitiveCategories: []string{"Entertainment"},
		LateSubmissionDays:  30,
		DuplicateLookback:   30 * 24 * time.Hour,
		FlagScoreThreshold:  70,
	})
	engine := rules.NewEngine(rules.Config{
		HRThreshold:         decimal.NewFromInt(5000),
		AdminThreshold:      decimal.NewFromInt(15000),
		CriticalScore:       70,
		SensitiveCategories: []string{"Entertainment"},
	})

	audit := NewAuditLogger(fx.history, nopLogger{})
	txManager := memory.NewTransactionManager()
	processor := NewApprovalProcessor(
		fx.store, directory, audit, txManager,
		30*time.Second, nopLogger{}, WithClock(func() time.Time { return testNow }),
	)

	fx.coordinator = NewWorkflowCoordinator(
		fx.store, directory, annotator, engine, processor, audit, fx.notifier,
		txManager, 30*24*time.Hour, nopLogger{},
		WithCoordinatorClock(func() time.Time { return testNow }),
	)
	return fx
}

func testSubmission() Submission {
	return Submission{
		EmployeeID:  "emp-1",
		Category:    "Travel",
		Amount:      decimal.NewFromInt(300),
		Currency:    "USD",
		ExpenseDate: testNow.AddDate(0, 0, -2),
		Description: "client visit",
		Vendor:      "Acme Travel",
		Receipts:    []string{"receipt-1"},
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Submission)
	}{
		{"missing employee id", func(s *Submission) { s.EmployeeID = "" }},
		{"zero amount", func(s *Submission) { s.Amount = decimal.Zero }},
		{"negative amount", func(s *Submission) { s.Amount = decimal.NewFromInt(-5) }},
		{"bad currency", func(s *Submission) { s.Currency = "dollars" }},
		{"missing category", func(s *Submission) { s.Category = "" }},
		{"missing expense date", func(s *Submission) { s.ExpenseDate = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newCoordinatorFixture(t)
			sub := testSubmission()
			tt.mutate(&sub)

			_, _, err := fx.coordinator.Submit(context.Background(), sub)

			assert.ErrorIs(t, err, claim.ErrValidation)
			assert.Empty(t, fx.notifier.submitted)
		})
	}
}

func TestSubmitBuildsWorkflowFromRules(t *testing.T) {
	fx := newCoordinatorFixture(t)

	sub := testSubmission()
	sub.Amount = decimal.NewFromInt(20000)

	c, wf, err := fx.coordinator.Submit(context.Background(), sub)

	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, claim.StatusPending, c.Status)
	assert.Equal(t, "Engineering", c.Department, "department resolves from the directory")

	require.Len(t, wf.Steps, 3)
	assert.Equal(t, claim.RoleManager, wf.Steps[0].RequiredRole)
	assert.Equal(t, claim.RoleHR, wf.Steps[1].RequiredRole)
	assert.Equal(t, claim.RoleAdministrator, wf.Steps[2].RequiredRole)

	assert.Equal(t, []string{c.ID}, fx.notifier.submitted)

	entries, err := fx.history.GetByClaimID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, claim.ActionSubmit, entries[0].Action)
	assert.Equal(t, claim.RoleEmployee, entries[0].ActorRole)
	assert.Equal(t, "emp-1", entries[0].ActorID)
}

func TestSubmitScoresDuplicates(t *testing.T) {
	fx := newCoordinatorFixture(t)

	_, _, err := fx.coordinator.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	second, _, err := fx.coordinator.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	assert.Contains(t, second.RiskFlags, risk.FlagDuplicateClaim)
	assert.GreaterOrEqual(t, second.RiskScore, 30)
}

func TestDecideFansOutTransitions(t *testing.T) {
	fx := newCoordinatorFixture(t)

	c, _, err := fx.coordinator.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	result, err := fx.coordinator.Decide(context.Background(), DecideCommand{
		ClaimID:   c.ID,
		ActorID:   "mgr-1",
		ActorRole: claim.RoleManager,
		Decision:  claim.DecisionApprove,
		Comments:  "ok",
	})

	require.NoError(t, err)
	assert.Equal(t, claim.StatusApproved, result.Claim.Status)
	assert.Equal(t, []string{c.ID}, fx.notifier.transitions)
}

func TestDecideFailureSkipsFanOut(t *testing.T) {
	fx := newCoordinatorFixture(t)

	c, _, err := fx.coordinator.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	_, err = fx.coordinator.Decide(context.Background(), DecideCommand{
		ClaimID:   c.ID,
		ActorID:   "emp-1",
		ActorRole: claim.RoleEmployee,
		Decision:  claim.DecisionApprove,
	})

	assert.ErrorIs(t, err, claim.ErrUnauthorized)
	assert.Empty(t, fx.notifier.transitions)
}

func TestGetHistoryUnknownClaim(t *testing.T) {
	fx := newCoordinatorFixture(t)

	_, err := fx.coordinator.GetHistory(context.Background(), "missing")

	assert.ErrorIs(t, err, claim.ErrNotFound)
}

func TestGetHistoryReturnsTrail(t *testing.T) {
	fx := newCoordinatorFixture(t)

	c, _, err := fx.coordinator.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	_, err = fx.coordinator.Decide(context.Background(), DecideCommand{
		ClaimID:   c.ID,
		ActorID:   "mgr-1",
		ActorRole: claim.RoleManager,
		Decision:  claim.DecisionApprove,
		Comments:  "ok",
	})
	require.NoError(t, err)

	entries, err := fx.coordinator.GetHistory(context.Background(), c.ID)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, claim.ActionSubmit, entries[0].Action)
	assert.Equal(t, claim.ActionApprove, entries[1].Action)
}

func TestGetPendingScopesByRole(t *testing.T) {
	fx := newCoordinatorFixture(t)
	ctx := context.Background()

	// Engineering claim waiting on its manager step.
	engineering, _, err := fx.coordinator.Submit(ctx, testSubmission())
	require.NoError(t, err)

	// Sales claim waiting on its manager step.
	salesSub := testSubmission()
	salesSub.EmployeeID = "emp-2"
	salesSub.Vendor = "Office Mart"
	sales, _, err := fx.coordinator.Submit(ctx, salesSub)
	require.NoError(t, err)

	// A third claim advanced past its manager step to HR review.
	hrSub := testSubmission()
	hrSub.Amount = decimal.NewFromInt(8000)
	hrSub.Vendor = "Conference Co"
	hrClaim, _, err := fx.coordinator.Submit(ctx, hrSub)
	require.NoError(t, err)
	_, err = fx.coordinator.Decide(ctx, DecideCommand{
		ClaimID:   hrClaim.ID,
		ActorID:   "mgr-1",
		ActorRole: claim.RoleManager,
		Decision:  claim.DecisionApprove,
		Comments:  "ok",
	})
	require.NoError(t, err)

	ids := func(claims []*claim.Claim) []string {
		out := make([]string, len(claims))
		for i, c := range claims {
			out[i] = c.ID
		}
		return out
	}

	managerPending, err := fx.coordinator.GetPending(ctx, "mgr-1", claim.RoleManager)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{engineering.ID}, ids(managerPending),
		"managers see only manager steps in their department")

	salesPending, err := fx.coordinator.GetPending(ctx, "mgr-3", claim.RoleManager)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{sales.ID}, ids(salesPending))

	hrPending, err := fx.coordinator.GetPending(ctx, "hr-1", claim.RoleHR)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{engineering.ID, sales.ID, hrClaim.ID}, ids(hrPending),
		"hr sees manager steps across departments plus hr steps")

	adminPending, err := fx.coordinator.GetPending(ctx, "adm-1", claim.RoleAdministrator)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{engineering.ID, sales.ID, hrClaim.ID}, ids(adminPending))

	employeePending, err := fx.coordinator.GetPending(ctx, "emp-1", claim.RoleEmployee)
	require.NoError(t, err)
	assert.Empty(t, employeePending)
}

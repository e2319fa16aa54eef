package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/domain/risk"
	"github.com/expensehub/claimflow/internal/domain/rules"
	"github.com/expensehub/claimflow/pkg/metrics"
	"github.com/expensehub/claimflow/pkg/utils"
)

// Submission is the attribute set for a new expense claim.
type Submission struct {
	EmployeeID  string
	Department  string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	ExpenseDate time.Time
	Description string
	Vendor      string
	Receipts    []string
}

// WorkflowCoordinator exposes the engine's public operations: submit,
// decide, and the history/pending queries.
type WorkflowCoordinator interface {
	Submit(ctx context.Context, sub Submission) (*claim.Claim, *claim.ApprovalWorkflow, error)
	Decide(ctx context.Context, cmd DecideCommand) (*DecideResult, error)
	GetClaim(ctx context.Context, claimID string) (*claim.Claim, *claim.ApprovalWorkflow, error)
	GetHistory(ctx context.Context, claimID string) ([]*claim.HistoryEntry, error)
	GetPending(ctx context.Context, actorID string, actorRole claim.Role) ([]*claim.Claim, error)
}

type coordinatorImpl struct {
	store       port.ClaimStore
	directory   port.UserDirectory
	annotator   *risk.Annotator
	ruleEngine  *rules.Engine
	processor   ApprovalProcessor
	audit       AuditLogger
	notifier    NotificationDispatcher
	txManager   port.TransactionManager
	dupLookback time.Duration
	now         func() time.Time
	logger      Logger
	metrics     *metrics.Metrics
}

// CoordinatorOption configures the coordinator.
type CoordinatorOption func(*coordinatorImpl)

// WithCoordinatorClock overrides the time source (tests).
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *coordinatorImpl) {
		c.now = now
	}
}

// WithCoordinatorMetrics attaches Prometheus instrumentation.
func WithCoordinatorMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *coordinatorImpl) {
		c.metrics = m
	}
}

// NewWorkflowCoordinator creates a WorkflowCoordinator.
func NewWorkflowCoordinator(
	store port.ClaimStore,
	directory port.UserDirectory,
	annotator *risk.Annotator,
	ruleEngine *rules.Engine,
	processor ApprovalProcessor,
	audit AuditLogger,
	notifier NotificationDispatcher,
	txManager port.TransactionManager,
	dupLookback time.Duration,
	logger Logger,
	opts ...CoordinatorOption,
) WorkflowCoordinator {
	c := &coordinatorImpl{
		store:       store,
		directory:   directory,
		annotator:   annotator,
		ruleEngine:  ruleEngine,
		processor:   processor,
		audit:       audit,
		notifier:    notifier,
		txManager:   txManager,
		dupLookback: dupLookback,
		now:         time.Now,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Submit creates a claim, scores it, attaches its approval workflow, and
// announces it. The claim and its submit audit entry commit together.
func (s *coordinatorImpl) Submit(ctx context.Context, sub Submission) (*claim.Claim, *claim.ApprovalWorkflow, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, nil, err
	}

	now := s.now()

	department := sub.Department
	if department == "" {
		if dept, err := s.directory.DepartmentOf(ctx, sub.EmployeeID); err == nil {
			department = dept
		}
	}

	c := &claim.Claim{
		ID:          uuid.NewString(),
		EmployeeID:  sub.EmployeeID,
		Department:  department,
		Category:    sub.Category,
		Amount:      sub.Amount,
		Currency:    sub.Currency,
		ExpenseDate: sub.ExpenseDate,
		Description: sub.Description,
		Vendor:      sub.Vendor,
		Receipts:    sub.Receipts,
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	recent, err := s.store.RecentByEmployee(ctx, c.EmployeeID, now.Add(-s.dupLookback))
	if err != nil {
		s.logger.Error("Failed to load recent claims for duplicate check",
			"error", err,
			"employee_id", c.EmployeeID,
		)
		return nil, nil, fmt.Errorf("load recent claims: %w", err)
	}

	riskResult := s.annotator.Assess(c, recent)
	c.RiskScore = riskResult.Score
	c.RiskFlags = riskResult.Flags
	c.Flagged = riskResult.Flagged

	wf := claim.NewWorkflow(c.ID, s.ruleEngine.BuildSteps(c, riskResult))
	c.Status = wf.DerivedClaimStatus()

	entry := &claim.HistoryEntry{
		ClaimID:    c.ID,
		ActorID:    c.EmployeeID,
		ActorRole:  claim.RoleEmployee,
		Action:     claim.ActionSubmit,
		Comments:   sub.Description,
		NewStatus:  c.Status,
		Timestamp:  now,
		StepNumber: 0,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, c, wf); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		return s.audit.Record(txCtx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to submit claim", "error", err, "employee_id", c.EmployeeID)
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.SubmissionsTotal.Inc()
	}

	s.logger.Info("Claim submitted",
		"claim_id", c.ID,
		"employee_id", c.EmployeeID,
		"amount", c.Amount.StringFixed(2),
		"risk_score", c.RiskScore,
		"flagged", c.Flagged,
		"steps", len(wf.Steps),
	)

	if err := s.notifier.NotifySubmitted(ctx, c, wf); err != nil {
		// The claim is durable; fan-out problems must not unwind it.
		s.logger.Error("Submission fan-out failed", "error", err, "claim_id", c.ID)
	}

	return c, wf, nil
}

// Decide applies a decision through the processor and fans out the result.
func (s *coordinatorImpl) Decide(ctx context.Context, cmd DecideCommand) (*DecideResult, error) {
	result, err := s.processor.Decide(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// The lock is already released; notification I/O happens on the
	// committed state.
	if err := s.notifier.NotifyTransition(ctx, result.Claim, result.Workflow, cmd.Comments); err != nil {
		s.logger.Error("Decision fan-out failed", "error", err, "claim_id", cmd.ClaimID)
	}

	return result, nil
}

// GetClaim returns a claim and its workflow.
func (s *coordinatorImpl) GetClaim(ctx context.Context, claimID string) (*claim.Claim, *claim.ApprovalWorkflow, error) {
	return s.store.Get(ctx, claimID)
}

// GetHistory returns a claim's audit trail.
func (s *coordinatorImpl) GetHistory(ctx context.Context, claimID string) ([]*claim.HistoryEntry, error) {
	if _, _, err := s.store.Get(ctx, claimID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, claimID)
}

// GetPending returns the claims whose active step the actor may decide.
// HR and administrators also see steps below their rank; managers see only
// manager steps within their department.
func (s *coordinatorImpl) GetPending(ctx context.Context, actorID string, actorRole claim.Role) ([]*claim.Claim, error) {
	department := ""
	if actorRole == claim.RoleManager {
		dept, err := s.directory.DepartmentOf(ctx, actorID)
		if err != nil {
			return nil, fmt.Errorf("resolve department: %w", err)
		}
		department = dept
	}

	var pending []*claim.Claim
	seen := make(map[string]bool)

	for _, required := range []claim.Role{claim.RoleManager, claim.RoleHR, claim.RoleAdministrator} {
		if !actorRole.Satisfies(required) {
			continue
		}

		filter := port.Filter{RequiredRole: required}
		if required == claim.RoleManager {
			filter.Department = department
		}

		claims, err := s.store.Query(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("query pending claims: %w", err)
		}
		for _, c := range claims {
			if !seen[c.ID] {
				seen[c.ID] = true
				pending = append(pending, c)
			}
		}
	}

	return pending, nil
}

// validateSubmission checks the claim attributes before anything persists.
func validateSubmission(sub Submission) error {
	if err := utils.ValidateEmployeeID(sub.EmployeeID); err != nil {
		return fmt.Errorf("%w: %v", claim.ErrValidation, err)
	}
	if !sub.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", claim.ErrValidation)
	}
	if err := utils.ValidateCurrency(sub.Currency); err != nil {
		return fmt.Errorf("%w: %v", claim.ErrValidation, err)
	}
	if sub.Category == "" {
		return fmt.Errorf("%w: category is required", claim.ErrValidation)
	}
	if sub.ExpenseDate.IsZero() {
		return fmt.Errorf("%w: expense date is required", claim.ErrValidation)
	}
	return nil
}

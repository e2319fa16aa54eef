package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/domain/workflow"
	"github.com/expensehub/claimflow/pkg/metrics"
)

// DecideCommand is one approver's decision on one claim.
type DecideCommand struct {
	ClaimID   string
	ActorID   string
	ActorRole claim.Role
	Decision  claim.Decision
	Comments  string
}

// DecideResult is the committed outcome of a successful decision.
type DecideResult struct {
	Claim          *claim.Claim
	Workflow       *claim.ApprovalWorkflow
	WorkflowStatus claim.WorkflowStatus
}

// ApprovalProcessor applies one approver's decision to one claim under an
// exclusive lock. No two Decide calls on the same claim may both succeed:
// the lock plus the version check on save form the at-most-one-concurrent-
// decision guarantee.
type ApprovalProcessor interface {
	Decide(ctx context.Context, cmd DecideCommand) (*DecideResult, error)
}

type processorImpl struct {
	store     port.ClaimStore
	directory port.UserDirectory
	audit     AuditLogger
	txManager port.TransactionManager
	lockTTL   time.Duration
	now       func() time.Time
	logger    Logger
	metrics   *metrics.Metrics
}

// ProcessorOption configures the processor.
type ProcessorOption func(*processorImpl)

// WithClock overrides the processor's time source (tests).
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *processorImpl) {
		p.now = now
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *processorImpl) {
		p.metrics = m
	}
}

// NewApprovalProcessor creates an ApprovalProcessor.
func NewApprovalProcessor(
	store port.ClaimStore,
	directory port.UserDirectory,
	audit AuditLogger,
	txManager port.TransactionManager,
	lockTTL time.Duration,
	logger Logger,
	opts ...ProcessorOption,
) ApprovalProcessor {
	p := &processorImpl{
		store:     store,
		directory: directory,
		audit:     audit,
		txManager: txManager,
		lockTTL:   lockTTL,
		now:       time.Now,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Decide applies the decision. Every call, success or failure, appends
// exactly one history entry; failures are tagged with the error kind.
func (p *processorImpl) Decide(ctx context.Context, cmd DecideCommand) (*DecideResult, error) {
	started := time.Now()

	result, err := p.process(ctx, cmd)
	if err != nil {
		p.recordFailure(ctx, cmd, err)
	}
	p.observe(cmd, err, started)

	return result, err
}

// process runs the guarded single-writer transition. The success-path
// history entry commits in the same transaction as the save: a decision
// that cannot be audited is not applied.
func (p *processorImpl) process(ctx context.Context, cmd DecideCommand) (*DecideResult, error) {
	if !cmd.Decision.IsValid() {
		return nil, fmt.Errorf("%w: unknown decision %q", claim.ErrValidation, string(cmd.Decision))
	}
	if cmd.Decision.RequiresComments() && cmd.Comments == "" {
		switch cmd.Decision {
		case claim.DecisionEscalate:
			return nil, fmt.Errorf("%w: escalation requires a reason", claim.ErrValidation)
		default:
			return nil, fmt.Errorf("%w: rejection requires a reason", claim.ErrValidation)
		}
	}

	c, wf, err := p.store.Get(ctx, cmd.ClaimID)
	if err != nil {
		return nil, err
	}
	if wf.IsTerminal() {
		return nil, fmt.Errorf("%w: claim %s is already %s", claim.ErrInvalidTransition, c.ID, c.Status)
	}

	now := p.now()
	lock := &claim.Lock{
		HolderID:   cmd.ActorID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(p.lockTTL),
	}
	if err := p.store.CompareAndSwapLock(ctx, cmd.ClaimID, nil, lock); err != nil {
		return nil, err
	}

	// The lock is released on every exit path. A detached context keeps
	// the release working even when the caller has gone away.
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := p.store.CompareAndSwapLock(releaseCtx, cmd.ClaimID, lock, nil); err != nil {
			p.logger.Error("Failed to release claim lock",
				"error", err,
				"claim_id", cmd.ClaimID,
				"holder_id", cmd.ActorID,
			)
		}
	}()

	// Re-read under the lock; the pre-lock snapshot may be stale.
	c, wf, err = p.store.Get(ctx, cmd.ClaimID)
	if err != nil {
		return nil, err
	}
	if wf.IsTerminal() {
		return nil, fmt.Errorf("%w: claim %s is already %s", claim.ErrInvalidTransition, c.ID, c.Status)
	}

	step, ok := wf.CurrentStep()
	if !ok {
		return nil, fmt.Errorf("%w: claim %s has no active step", claim.ErrInvalidTransition, c.ID)
	}

	if err := p.authorize(ctx, cmd, step); err != nil {
		return nil, err
	}

	previous := c.Status
	stepNumber := step.Number

	if err := p.applyDecision(wf, cmd, now); err != nil {
		return nil, err
	}

	next := wf.DerivedClaimStatus()
	machine := workflow.BuildClaimReviewMachine(previous)
	if err := machine.Fire(workflow.TriggerFor(cmd.Decision), next); err != nil {
		return nil, err
	}

	c.Status = next
	c.UpdatedAt = now

	entry := &claim.HistoryEntry{
		ClaimID:        c.ID,
		StepNumber:     stepNumber,
		ActorID:        cmd.ActorID,
		ActorRole:      cmd.ActorRole,
		Action:         actionForDecision(cmd.Decision),
		Comments:       cmd.Comments,
		PreviousStatus: previous,
		NewStatus:      next,
		Timestamp:      now,
	}

	err = p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.store.Save(txCtx, c, wf); err != nil {
			return err
		}
		return p.audit.Record(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Decision applied",
		"claim_id", c.ID,
		"actor_id", cmd.ActorID,
		"decision", cmd.Decision,
		"previous_status", previous,
		"new_status", next,
	)

	return &DecideResult{
		Claim:          c,
		Workflow:       wf,
		WorkflowStatus: wf.Status,
	}, nil
}

// authorize checks the actor against the directory and the active step.
func (p *processorImpl) authorize(ctx context.Context, cmd DecideCommand, step *claim.ApprovalStep) error {
	dirRole, err := p.directory.RoleOf(ctx, cmd.ActorID)
	if err != nil {
		if errors.Is(err, claim.ErrNotFound) {
			return fmt.Errorf("%w: unknown actor %s", claim.ErrUnauthorized, cmd.ActorID)
		}
		return fmt.Errorf("resolve actor role: %w", err)
	}
	if dirRole != cmd.ActorRole {
		return fmt.Errorf("%w: actor %s does not hold role %s", claim.ErrUnauthorized, cmd.ActorID, cmd.ActorRole)
	}

	if !cmd.ActorRole.Satisfies(step.RequiredRole) {
		return fmt.Errorf("%w: step %d requires role %s", claim.ErrUnauthorized, step.Number, step.RequiredRole)
	}

	// A paused step resumes only for the approver who asked for more
	// information, or an equal/higher role.
	if step.Status == claim.StepInfoRequested && cmd.ActorID != step.ApproverID {
		requesterRole, err := p.directory.RoleOf(ctx, step.ApproverID)
		if err == nil && cmd.ActorRole.Rank() < requesterRole.Rank() {
			return fmt.Errorf("%w: step %d is paused by %s", claim.ErrUnauthorized, step.Number, step.ApproverID)
		}
	}

	return nil
}

// applyDecision mutates the workflow for the decision kind.
func (p *processorImpl) applyDecision(wf *claim.ApprovalWorkflow, cmd DecideCommand, now time.Time) error {
	switch cmd.Decision {
	case claim.DecisionApprove:
		return wf.Approve(cmd.ActorID, cmd.Comments, now)
	case claim.DecisionReject:
		return wf.Reject(cmd.ActorID, cmd.Comments, now)
	case claim.DecisionEscalate:
		return wf.Escalate(cmd.ActorID, cmd.Comments, now)
	case claim.DecisionRequestInfo:
		return wf.RequestInfo(cmd.ActorID, cmd.Comments, now)
	default:
		return fmt.Errorf("%w: unknown decision %q", claim.ErrValidation, string(cmd.Decision))
	}
}

// recordFailure appends the audit entry for a denied or failed attempt.
// The failure itself already surfaced to the caller, so an audit write
// error here is logged rather than returned.
func (p *processorImpl) recordFailure(ctx context.Context, cmd DecideCommand, cause error) {
	entry := &claim.HistoryEntry{
		ClaimID:   cmd.ClaimID,
		ActorID:   cmd.ActorID,
		ActorRole: cmd.ActorRole,
		Action:    actionForError(cause, cmd.Decision),
		Comments:  cause.Error(),
		Timestamp: p.now(),
	}

	auditCtx := context.WithoutCancel(ctx)
	if err := p.audit.Record(auditCtx, entry); err != nil {
		p.logger.Error("Failed to audit denied decision",
			"error", err,
			"claim_id", cmd.ClaimID,
			"actor_id", cmd.ActorID,
		)
	}
}

// observe updates metrics and logs the outcome.
func (p *processorImpl) observe(cmd DecideCommand, err error, started time.Time) {
	if p.metrics == nil {
		return
	}

	result := "success"
	if err != nil {
		result = string(actionForError(err, cmd.Decision))
		if errors.Is(err, claim.ErrAlreadyLocked) {
			p.metrics.LockConflicts.Inc()
		}
	}

	p.metrics.DecisionsTotal.WithLabelValues(string(cmd.Decision), result).Inc()
	p.metrics.DecideLatency.WithLabelValues(string(cmd.Decision)).Observe(time.Since(started).Seconds())
}

// actionForDecision maps a decision kind to its audit action.
func actionForDecision(d claim.Decision) claim.Action {
	switch d {
	case claim.DecisionReject:
		return claim.ActionReject
	case claim.DecisionEscalate:
		return claim.ActionEscalate
	case claim.DecisionRequestInfo:
		return claim.ActionRequestInfo
	default:
		return claim.ActionApprove
	}
}

// actionForError maps an error kind to the audit tag for the failed attempt.
func actionForError(err error, d claim.Decision) claim.Action {
	switch {
	case errors.Is(err, claim.ErrAlreadyLocked):
		return claim.ActionLockDenied
	case errors.Is(err, claim.ErrUnauthorized):
		return claim.ActionUnauthorized
	case errors.Is(err, claim.ErrInvalidTransition):
		return claim.ActionInvalidTransition
	case errors.Is(err, claim.ErrValidation):
		return claim.ActionValidationFailed
	case errors.Is(err, claim.ErrStoreConflict):
		return claim.ActionStoreConflict
	default:
		return actionForDecision(d)
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/expensehub/claimflow/internal/application/dispatcher"
	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/domain/event"
	"github.com/expensehub/claimflow/pkg/metrics"
)

// NotificationDispatcher builds notification records for the employee and
// the next approvers after a committed transition, and publishes the domain
// event. It runs after the claim lock is released: a slow subscriber cannot
// stall approval throughput, and the decision is already durable, so
// notification problems are logged rather than failing the call.
type NotificationDispatcher interface {
	// NotifySubmitted announces a new claim to the first approvers.
	NotifySubmitted(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error

	// NotifyTransition fans out the outcome of a committed decision.
	NotifyTransition(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow, comments string) error
}

type notificationDispatcherImpl struct {
	notificationRepo port.NotificationRepository
	directory        port.UserDirectory
	bus              dispatcher.Dispatcher
	now              func() time.Time
	logger           Logger
	metrics          *metrics.Metrics
}

// NotifierOption configures the notification dispatcher.
type NotifierOption func(*notificationDispatcherImpl)

// WithNotifierClock overrides the time source (tests).
func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *notificationDispatcherImpl) {
		n.now = now
	}
}

// WithNotifierMetrics attaches Prometheus instrumentation.
func WithNotifierMetrics(m *metrics.Metrics) NotifierOption {
	return func(n *notificationDispatcherImpl) {
		n.metrics = m
	}
}

// NewNotificationDispatcher creates a NotificationDispatcher.
func NewNotificationDispatcher(
	notificationRepo port.NotificationRepository,
	directory port.UserDirectory,
	bus dispatcher.Dispatcher,
	logger Logger,
	opts ...NotifierOption,
) NotificationDispatcher {
	n := &notificationDispatcherImpl{
		notificationRepo: notificationRepo,
		directory:        directory,
		bus:              bus,
		now:              time.Now,
		logger:           logger,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// NotifySubmitted announces a new claim to the first approvers and
// publishes claim.submitted.
func (n *notificationDispatcherImpl) NotifySubmitted(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error {
	message := fmt.Sprintf("Expense claim %s (%s %s) awaits your review", c.ID, c.Amount.StringFixed(2), c.Currency)
	if err := n.notifyNextApprovers(ctx, c, wf, message); err != nil {
		return err
	}

	n.publish(ctx, event.NewEvent(event.TypeClaimSubmitted, c, ""))
	return nil
}

// NotifyTransition fans out the outcome of a committed decision.
func (n *notificationDispatcherImpl) NotifyTransition(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow, comments string) error {
	outcome := n.buildOutcome(c, comments)
	if err := n.deliver(ctx, outcome); err != nil {
		return err
	}

	if !wf.IsTerminal() {
		message := fmt.Sprintf("Expense claim %s (%s %s) awaits your review", c.ID, c.Amount.StringFixed(2), c.Currency)
		if err := n.notifyNextApprovers(ctx, c, wf, message); err != nil {
			return err
		}
	}

	if eventType, ok := event.TypeForStatus(c.Status); ok {
		n.publish(ctx, event.NewEvent(eventType, c, comments))
	}

	return nil
}

// buildOutcome constructs the employee-facing notification. Wording
// follows the derived status rather than the raw decision: an approval
// that hands the claim to HR reads as a move, not a final approval.
func (n *notificationDispatcherImpl) buildOutcome(c *claim.Claim, comments string) *claim.Notification {
	var verb string
	switch c.Status {
	case claim.StatusApproved:
		verb = "approved"
	case claim.StatusRejected:
		verb = "rejected"
	case claim.StatusEscalated:
		verb = "escalated"
	case claim.StatusInfoRequested:
		verb = "paused pending more information"
	default:
		verb = fmt.Sprintf("moved to %s", c.Status)
	}

	message := fmt.Sprintf("Your expense claim %s was %s", c.ID, verb)
	if comments != "" {
		message = fmt.Sprintf("%s: %s", message, comments)
	}

	return &claim.Notification{
		ID:          uuid.NewString(),
		ClaimID:     c.ID,
		RecipientID: c.EmployeeID,
		Kind:        claim.NotificationOutcome,
		Status:      claim.NotificationPending,
		Message:     message,
		CreatedAt:   n.now(),
	}
}

// notifyNextApprovers builds one notification per approver of the active
// step, if any step remains.
func (n *notificationDispatcherImpl) notifyNextApprovers(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow, message string) error {
	step, ok := wf.CurrentStep()
	if !ok {
		return nil
	}

	department := ""
	if step.RequiredRole == claim.RoleManager {
		department = c.Department
	}

	approvers, err := n.directory.ApproversFor(ctx, step.RequiredRole, department)
	if err != nil {
		n.logger.Error("Failed to resolve next approvers",
			"error", err,
			"claim_id", c.ID,
			"required_role", step.RequiredRole,
		)
		return fmt.Errorf("resolve approvers: %w", err)
	}

	for _, approverID := range approvers {
		notification := &claim.Notification{
			ID:          uuid.NewString(),
			ClaimID:     c.ID,
			RecipientID: approverID,
			Kind:        claim.NotificationActionRequired,
			Status:      claim.NotificationPending,
			Message:     message,
			CreatedAt:   n.now(),
		}
		if err := n.deliver(ctx, notification); err != nil {
			return err
		}
	}

	return nil
}

// deliver persists the record and marks it sent. Actual transport belongs
// to bus subscribers; the record tracks that the engine produced it.
func (n *notificationDispatcherImpl) deliver(ctx context.Context, notification *claim.Notification) error {
	if err := n.notificationRepo.Create(ctx, notification); err != nil {
		n.logger.Error("Failed to persist notification",
			"error", err,
			"claim_id", notification.ClaimID,
			"recipient_id", notification.RecipientID,
		)
		return fmt.Errorf("persist notification: %w", err)
	}

	if err := n.notificationRepo.MarkSent(ctx, notification.ID); err != nil {
		n.logger.Error("Failed to mark notification sent",
			"error", err,
			"notification_id", notification.ID,
		)
		return nil
	}

	return nil
}

// publish emits the domain event without blocking the caller.
func (n *notificationDispatcherImpl) publish(ctx context.Context, evt *event.Event) {
	n.bus.DispatchAsync(ctx, evt)

	if n.metrics != nil {
		n.metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()
	}

	n.logger.Info("Domain event published",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"claim_id", evt.ClaimID,
		"new_status", evt.NewStatus,
	)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
)

// AuditLogger is the append-only sink for decision attempts. It never
// rejects a write because of a business-rule failure; denied and failed
// attempts are recorded the same as successes.
type AuditLogger interface {
	// Record appends one history entry. A zero timestamp is stamped with
	// the current time.
	Record(ctx context.Context, entry *claim.HistoryEntry) error

	// History returns the claim's audit trail in per-claim order.
	History(ctx context.Context, claimID string) ([]*claim.HistoryEntry, error)
}

type auditLoggerImpl struct {
	historyRepo port.HistoryRepository
	now         func() time.Time
	logger      Logger
}

// NewAuditLogger creates an AuditLogger backed by the history repository.
func NewAuditLogger(historyRepo port.HistoryRepository, logger Logger) AuditLogger {
	return &auditLoggerImpl{
		historyRepo: historyRepo,
		now:         time.Now,
		logger:      logger,
	}
}

// Record appends one history entry.
func (s *auditLoggerImpl) Record(ctx context.Context, entry *claim.HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	if err := s.historyRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry",
			"error", err,
			"claim_id", entry.ClaimID,
			"action", entry.Action,
		)
		return fmt.Errorf("append audit entry: %w", err)
	}

	return nil
}

// History returns the claim's audit trail.
func (s *auditLoggerImpl) History(ctx context.Context, claimID string) ([]*claim.HistoryEntry, error) {
	entries, err := s.historyRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		s.logger.Error("Failed to load audit trail", "error", err, "claim_id", claimID)
		return nil, fmt.Errorf("load audit trail: %w", err)
	}
	return entries, nil
}

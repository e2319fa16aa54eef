package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository. Rows are append-only;
// there is no update or delete path.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one history entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *claim.HistoryEntry) error {
	query := `
		INSERT INTO approval_history (
			claim_id, step_number, actor_id, actor_role, action,
			comments, previous_status, new_status, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		entry.ClaimID,
		entry.StepNumber,
		entry.ActorID,
		string(entry.ActorRole),
		string(entry.Action),
		entry.Comments,
		string(entry.PreviousStatus),
		string(entry.NewStatus),
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.String("claim_id", entry.ClaimID),
			zap.String("action", entry.Action.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id

	return nil
}

// GetByClaimID retrieves the claim's history entries in insertion order.
func (r *HistoryRepository) GetByClaimID(ctx context.Context, claimID string) ([]*claim.HistoryEntry, error) {
	query := `
		SELECT id, claim_id, step_number, actor_id, actor_role, action,
			comments, previous_status, new_status, timestamp
		FROM approval_history
		WHERE claim_id = ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get history", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var entries []*claim.HistoryEntry
	for rows.Next() {
		var (
			e          claim.HistoryEntry
			actorRole  string
			action     string
			prevStatus string
			newStatus  string
		)
		err := rows.Scan(
			&e.ID,
			&e.ClaimID,
			&e.StepNumber,
			&e.ActorID,
			&actorRole,
			&action,
			&e.Comments,
			&prevStatus,
			&newStatus,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.ActorRole = claim.Role(actorRole)
		e.Action = claim.Action(action)
		e.PreviousStatus = claim.Status(prevStatus)
		e.NewStatus = claim.Status(newStatus)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history entries: %w", err)
	}

	return entries, nil
}

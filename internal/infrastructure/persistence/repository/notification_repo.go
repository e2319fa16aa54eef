package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository.
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *claim.Notification) error {
	query := `
		INSERT INTO notifications (
			id, claim_id, recipient_id, kind, status, message,
			sent_at, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var sentAt interface{}
	if n.SentAt != nil {
		sentAt = *n.SentAt
	}

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.ClaimID,
		n.RecipientID,
		n.Kind,
		n.Status,
		n.Message,
		sentAt,
		n.ErrorMessage,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("claim_id", n.ClaimID),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByClaimID retrieves all notifications for a claim, oldest first.
func (r *NotificationRepository) GetByClaimID(ctx context.Context, claimID string) ([]*claim.Notification, error) {
	query := `
		SELECT id, claim_id, recipient_id, kind, status, message,
			sent_at, error_message, created_at
		FROM notifications
		WHERE claim_id = ?
		ORDER BY created_at
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get notifications", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*claim.Notification
	for rows.Next() {
		var (
			n      claim.Notification
			sentAt sql.NullTime
		)
		err := rows.Scan(
			&n.ID,
			&n.ClaimID,
			&n.RecipientID,
			&n.Kind,
			&n.Status,
			&n.Message,
			&sentAt,
			&n.ErrorMessage,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkSent flips the record to SENT and stamps the send time.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE notifications SET status = ?, sent_at = ?, error_message = '' WHERE id = ?`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, claim.NotificationSent, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification sent", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return requireRow(result, id)
}

// MarkFailed flips the record to FAILED and records the delivery error.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	query := `UPDATE notifications SET status = ?, error_message = ? WHERE id = ?`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, claim.NotificationFailed, errorMsg, id)
	if err != nil {
		r.logger.Error("Failed to mark notification failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: notification %s", claim.ErrNotFound, id)
	}
	return nil
}

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

// UserDirectory implements port.UserDirectory over the users table.
type UserDirectory struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserDirectory creates a new user directory.
func NewUserDirectory(db *sql.DB, logger *zap.Logger) port.UserDirectory {
	return &UserDirectory{
		db:     db,
		logger: logger,
	}
}

// RoleOf returns the approval role of the user.
func (r *UserDirectory) RoleOf(ctx context.Context, userID string) (claim.Role, error) {
	var role string
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT role FROM users WHERE id = ?`, userID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: user %s", claim.ErrNotFound, userID)
	}
	if err != nil {
		r.logger.Error("Failed to resolve user role", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("failed to resolve user role: %w", err)
	}
	return claim.Role(role), nil
}

// DepartmentOf returns the department of the user.
func (r *UserDirectory) DepartmentOf(ctx context.Context, userID string) (string, error) {
	var department string
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT department FROM users WHERE id = ?`, userID,
	).Scan(&department)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: user %s", claim.ErrNotFound, userID)
	}
	if err != nil {
		r.logger.Error("Failed to resolve user department", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("failed to resolve user department: %w", err)
	}
	return department, nil
}

// ApproversFor returns the user IDs holding the given role. A non-empty
// department narrows the result; HR and administrators are org-wide.
func (r *UserDirectory) ApproversFor(ctx context.Context, role claim.Role, department string) ([]string, error) {
	query := `SELECT id FROM users WHERE role = ?`
	args := []interface{}{string(role)}

	if department != "" {
		query += ` AND department = ?`
		args = append(args, department)
	}
	query += ` ORDER BY id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvers", zap.String("role", string(role)), zap.Error(err))
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan approver id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approvers: %w", err)
	}

	return ids, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expensehub/claimflow/internal/application/port"
	"github.com/expensehub/claimflow/internal/domain/claim"
	"github.com/expensehub/claimflow/internal/infrastructure/persistence/sqlite"
)

// ClaimRepository implements port.ClaimStore on SQLite. The processing lock
// and the save version both live on the claims row, so a single guarded
// UPDATE gives the compare-and-set semantics the processor relies on.
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository.
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.ClaimStore {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new claim with its workflow and steps.
func (r *ClaimRepository) Create(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error {
	receipts, err := json.Marshal(c.Receipts)
	if err != nil {
		return fmt.Errorf("marshal receipts: %w", err)
	}
	riskFlags, err := json.Marshal(c.RiskFlags)
	if err != nil {
		return fmt.Errorf("marshal risk flags: %w", err)
	}

	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		INSERT INTO claims (
			id, employee_id, department, category, amount, currency,
			expense_date, description, vendor, receipts,
			status, risk_score, risk_flags, flagged,
			version, submitted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = exec.ExecContext(ctx, query,
		c.ID,
		c.EmployeeID,
		c.Department,
		c.Category,
		c.Amount.String(),
		c.Currency,
		c.ExpenseDate,
		c.Description,
		c.Vendor,
		string(receipts),
		string(c.Status),
		c.RiskScore,
		string(riskFlags),
		c.Flagged,
		c.Version,
		c.SubmittedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("claim_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	if err := r.insertWorkflow(ctx, wf); err != nil {
		return err
	}
	return r.replaceSteps(ctx, wf)
}

// Get retrieves a claim and its workflow by ID.
func (r *ClaimRepository) Get(ctx context.Context, claimID string) (*claim.Claim, *claim.ApprovalWorkflow, error) {
	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		SELECT id, employee_id, department, category, amount, currency,
			expense_date, description, vendor, receipts,
			status, risk_score, risk_flags, flagged,
			lock_holder, lock_acquired_at, lock_expires_at,
			version, submitted_at, updated_at
		FROM claims
		WHERE id = ?
	`

	c, err := scanClaim(exec.QueryRowContext(ctx, query, claimID))
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("%w: claim %s", claim.ErrNotFound, claimID)
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.String("claim_id", claimID), zap.Error(err))
		return nil, nil, fmt.Errorf("failed to get claim: %w", err)
	}

	wf, err := r.getWorkflow(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}

	return c, wf, nil
}

// CompareAndSwapLock atomically replaces the claim's lock with next iff the
// stored lock matches expected. The match condition is folded into the
// UPDATE's WHERE clause so the swap is a single statement.
func (r *ClaimRepository) CompareAndSwapLock(ctx context.Context, claimID string, expected, next *claim.Lock) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	var (
		query string
		args  []interface{}
	)

	var holder, acquiredAt, expiresAt interface{}
	if next != nil {
		holder = next.HolderID
		acquiredAt = next.AcquiredAt
		expiresAt = next.ExpiresAt
	}

	if expected == nil {
		// Matches an empty or expired lock. "Now" is the acquisition
		// instant of the incoming lock, or the wall clock for a bare clear.
		now := time.Now()
		if next != nil {
			now = next.AcquiredAt
		}
		query = `
			UPDATE claims
			SET lock_holder = ?, lock_acquired_at = ?, lock_expires_at = ?
			WHERE id = ? AND (lock_holder IS NULL OR lock_expires_at <= ?)
		`
		args = []interface{}{holder, acquiredAt, expiresAt, claimID, now}
	} else {
		query = `
			UPDATE claims
			SET lock_holder = ?, lock_acquired_at = ?, lock_expires_at = ?
			WHERE id = ? AND lock_holder = ? AND lock_acquired_at = ?
		`
		args = []interface{}{holder, acquiredAt, expiresAt, claimID, expected.HolderID, expected.AcquiredAt}
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to swap claim lock", zap.String("claim_id", claimID), zap.Error(err))
		return fmt.Errorf("failed to swap claim lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, claimID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: claim %s", claim.ErrNotFound, claimID)
		}
		return fmt.Errorf("%w: claim %s", claim.ErrAlreadyLocked, claimID)
	}

	return nil
}

// Save persists the mutated claim and workflow iff the stored version still
// matches, then increments it. The lock columns are owned by
// CompareAndSwapLock and never touched here.
func (r *ClaimRepository) Save(ctx context.Context, c *claim.Claim, wf *claim.ApprovalWorkflow) error {
	riskFlags, err := json.Marshal(c.RiskFlags)
	if err != nil {
		return fmt.Errorf("marshal risk flags: %w", err)
	}

	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		UPDATE claims
		SET status = ?, risk_score = ?, risk_flags = ?, flagged = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := exec.ExecContext(ctx, query,
		string(c.Status),
		c.RiskScore,
		string(riskFlags),
		c.Flagged,
		c.UpdatedAt,
		c.ID,
		c.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save claim", zap.String("claim_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to save claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, c.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: claim %s", claim.ErrNotFound, c.ID)
		}
		return fmt.Errorf("%w: claim %s version %d is stale", claim.ErrStoreConflict, c.ID, c.Version)
	}
	c.Version++

	wfQuery := `UPDATE workflows SET current_step_index = ?, status = ? WHERE claim_id = ?`
	if _, err := exec.ExecContext(ctx, wfQuery, wf.CurrentStepIndex, string(wf.Status), wf.ClaimID); err != nil {
		r.logger.Error("Failed to save workflow", zap.String("claim_id", wf.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return r.replaceSteps(ctx, wf)
}

// Query returns claims matching the filter, most recent first.
func (r *ClaimRepository) Query(ctx context.Context, f port.Filter) ([]*claim.Claim, error) {
	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		SELECT c.id, c.employee_id, c.department, c.category, c.amount, c.currency,
			c.expense_date, c.description, c.vendor, c.receipts,
			c.status, c.risk_score, c.risk_flags, c.flagged,
			c.lock_holder, c.lock_acquired_at, c.lock_expires_at,
			c.version, c.submitted_at, c.updated_at
		FROM claims c
	`

	var conditions []string
	var args []interface{}

	if f.RequiredRole != "" {
		// The active step is the workflow's current index; step numbers are
		// one-based, so the join adds one.
		query += `
		JOIN workflows w ON w.claim_id = c.id
		JOIN approval_steps s ON s.claim_id = c.id AND s.step_number = w.current_step_index + 1
		`
		conditions = append(conditions, "s.required_role = ?", "w.status IN ('PENDING', 'IN_PROGRESS')")
		args = append(args, string(f.RequiredRole))
	}

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("c.status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.Department != "" {
		conditions = append(conditions, "c.department = ?")
		args = append(args, f.Department)
	}
	if f.EmployeeID != "" {
		conditions = append(conditions, "c.employee_id = ?")
		args = append(args, f.EmployeeID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.submitted_at DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query claims", zap.Error(err))
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

// RecentByEmployee returns the employee's claims submitted at or after since.
func (r *ClaimRepository) RecentByEmployee(ctx context.Context, employeeID string, since time.Time) ([]*claim.Claim, error) {
	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		SELECT id, employee_id, department, category, amount, currency,
			expense_date, description, vendor, receipts,
			status, risk_score, risk_flags, flagged,
			lock_holder, lock_acquired_at, lock_expires_at,
			version, submitted_at, updated_at
		FROM claims
		WHERE employee_id = ? AND submitted_at >= ?
		ORDER BY submitted_at DESC
	`

	rows, err := exec.QueryContext(ctx, query, employeeID, since)
	if err != nil {
		r.logger.Error("Failed to query recent claims", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to query recent claims: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

func (r *ClaimRepository) exists(ctx context.Context, claimID string) (bool, error) {
	exec := sqlite.ExecutorFor(ctx, r.db)

	var one int
	err := exec.QueryRowContext(ctx, `SELECT 1 FROM claims WHERE id = ?`, claimID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check claim existence: %w", err)
	}
	return true, nil
}

func (r *ClaimRepository) insertWorkflow(ctx context.Context, wf *claim.ApprovalWorkflow) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `INSERT INTO workflows (claim_id, current_step_index, status) VALUES (?, ?, ?)`
	if _, err := exec.ExecContext(ctx, query, wf.ClaimID, wf.CurrentStepIndex, string(wf.Status)); err != nil {
		r.logger.Error("Failed to create workflow", zap.String("claim_id", wf.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// replaceSteps rewrites the workflow's step rows. Escalation can extend the
// step list, so a full replace is simpler than diffing.
func (r *ClaimRepository) replaceSteps(ctx context.Context, wf *claim.ApprovalWorkflow) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		INSERT OR REPLACE INTO approval_steps (
			claim_id, step_number, required_role, status,
			approver_id, comments, completed_at, amount_threshold
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, s := range wf.Steps {
		var completedAt interface{}
		if s.CompletedAt != nil {
			completedAt = *s.CompletedAt
		}
		_, err := exec.ExecContext(ctx, query,
			wf.ClaimID,
			s.Number,
			string(s.RequiredRole),
			string(s.Status),
			s.ApproverID,
			s.Comments,
			completedAt,
			s.AmountThreshold.String(),
		)
		if err != nil {
			r.logger.Error("Failed to save approval step",
				zap.String("claim_id", wf.ClaimID),
				zap.Int("step_number", s.Number),
				zap.Error(err),
			)
			return fmt.Errorf("failed to save approval step: %w", err)
		}
	}
	return nil
}

func (r *ClaimRepository) getWorkflow(ctx context.Context, claimID string) (*claim.ApprovalWorkflow, error) {
	exec := sqlite.ExecutorFor(ctx, r.db)

	wf := &claim.ApprovalWorkflow{ClaimID: claimID}

	var status string
	err := exec.QueryRowContext(ctx,
		`SELECT current_step_index, status FROM workflows WHERE claim_id = ?`, claimID,
	).Scan(&wf.CurrentStepIndex, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: workflow for claim %s", claim.ErrNotFound, claimID)
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	wf.Status = claim.WorkflowStatus(status)

	rows, err := exec.QueryContext(ctx, `
		SELECT step_number, required_role, status, approver_id, comments,
			completed_at, amount_threshold
		FROM approval_steps
		WHERE claim_id = ?
		ORDER BY step_number
	`, claimID)
	if err != nil {
		r.logger.Error("Failed to get approval steps", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s           claim.ApprovalStep
			role        string
			status      string
			completedAt sql.NullTime
			threshold   string
		)
		if err := rows.Scan(&s.Number, &role, &status, &s.ApproverID, &s.Comments, &completedAt, &threshold); err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		s.RequiredRole = claim.Role(role)
		s.Status = claim.StepStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			s.CompletedAt = &t
		}
		amount, err := decimal.NewFromString(threshold)
		if err != nil {
			return nil, fmt.Errorf("parse amount threshold: %w", err)
		}
		s.AmountThreshold = amount
		wf.Steps = append(wf.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approval steps: %w", err)
	}

	return wf, nil
}

// rowScanner covers sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*claim.Claim, error) {
	var (
		c              claim.Claim
		amount         string
		status         string
		receipts       string
		riskFlags      string
		lockHolder     sql.NullString
		lockAcquiredAt sql.NullTime
		lockExpiresAt  sql.NullTime
	)

	err := row.Scan(
		&c.ID,
		&c.EmployeeID,
		&c.Department,
		&c.Category,
		&amount,
		&c.Currency,
		&c.ExpenseDate,
		&c.Description,
		&c.Vendor,
		&receipts,
		&status,
		&c.RiskScore,
		&riskFlags,
		&c.Flagged,
		&lockHolder,
		&lockAcquiredAt,
		&lockExpiresAt,
		&c.Version,
		&c.SubmittedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	c.Amount = parsed
	c.Status = claim.Status(status)

	if receipts != "" {
		if err := json.Unmarshal([]byte(receipts), &c.Receipts); err != nil {
			return nil, fmt.Errorf("unmarshal receipts: %w", err)
		}
	}
	if riskFlags != "" {
		if err := json.Unmarshal([]byte(riskFlags), &c.RiskFlags); err != nil {
			return nil, fmt.Errorf("unmarshal risk flags: %w", err)
		}
	}

	if lockHolder.Valid && lockHolder.String != "" {
		c.Lock = &claim.Lock{
			HolderID:   lockHolder.String,
			AcquiredAt: lockAcquiredAt.Time,
			ExpiresAt:  lockExpiresAt.Time,
		}
	}

	return &c, nil
}

func collectClaims(rows *sql.Rows) ([]*claim.Claim, error) {
	var claims []*claim.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}
	return claims, nil
}

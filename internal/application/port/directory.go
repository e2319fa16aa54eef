package port

import (
	"context"

	"github.com/expensehub/claimflow/internal/domain/claim"
)

// UserDirectory resolves user attributes used for authorization checks.
type UserDirectory interface {
	// RoleOf returns the approval role of the user, or claim.ErrNotFound.
	RoleOf(ctx context.Context, userID string) (claim.Role, error)

	// DepartmentOf returns the department of the user, or claim.ErrNotFound.
	DepartmentOf(ctx context.Context, userID string) (string, error)

	// ApproversFor returns the user IDs holding the given role, scoped to
	// a department for manager steps (empty department means any).
	ApproversFor(ctx context.Context, role claim.Role, department string) ([]string, error)
}

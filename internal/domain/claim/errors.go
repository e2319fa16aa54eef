package claim

import "errors"

var (
	// ErrNotFound is returned when a claim id is unknown.
	ErrNotFound = errors.New("claim not found")

	// ErrUnauthorized is returned when the actor's role does not satisfy
	// the active step's required approver role.
	ErrUnauthorized = errors.New("actor not authorized for this step")

	// ErrAlreadyLocked is returned when another actor holds a live lock on
	// the claim. Callers may retry with backoff.
	ErrAlreadyLocked = errors.New("claim is currently being processed")

	// ErrInvalidTransition is returned when the workflow is already
	// terminal or the requested decision is not permitted from the
	// current state.
	ErrInvalidTransition = errors.New("invalid claim state transition")

	// ErrValidation is returned when the request itself is malformed,
	// e.g. a rejection without a reason.
	ErrValidation = errors.New("validation failed")

	// ErrStoreConflict is returned when the versioned save lost to a
	// concurrent writer. Callers may retry with backoff.
	ErrStoreConflict = errors.New("concurrent modification detected")
)

// IsRetryable reports whether the caller may reasonably retry the
// operation. Only locking and store conflicts are transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAlreadyLocked) || errors.Is(err, ErrStoreConflict)
}

package claim

// Status is the review state of a claim. It is always derived from the
// claim's approval workflow, never set independently.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusManagerReview Status = "MANAGER_REVIEW"
	StatusHRReview      Status = "HR_REVIEW"
	StatusAdminReview   Status = "ADMIN_REVIEW"
	StatusInfoRequested Status = "INFO_REQUESTED"
	StatusEscalated     Status = "ESCALATED"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusPending:       true,
	StatusManagerReview: true,
	StatusHRReview:      true,
	StatusAdminReview:   true,
	StatusInfoRequested: true,
	StatusEscalated:     true,
	StatusApproved:      true,
	StatusRejected:      true,
}

// IsValid returns true if the status is a known claim status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// StepStatus is the state of a single approval step.
type StepStatus string

const (
	StepPending       StepStatus = "PENDING"
	StepApproved      StepStatus = "APPROVED"
	StepRejected      StepStatus = "REJECTED"
	StepSkipped       StepStatus = "SKIPPED"
	StepEscalated     StepStatus = "ESCALATED"
	StepInfoRequested StepStatus = "INFO_REQUESTED"
)

// IsTerminal returns true if the step can no longer change. An
// info-requested step is paused, not terminal.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepApproved, StepRejected, StepSkipped, StepEscalated:
		return true
	default:
		return false
	}
}

// String returns the string representation of the step status.
func (s StepStatus) String() string {
	return string(s)
}

// WorkflowStatus is the overall state of an approval workflow.
type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "PENDING"
	WorkflowInProgress WorkflowStatus = "IN_PROGRESS"
	WorkflowApproved   WorkflowStatus = "APPROVED"
	WorkflowRejected   WorkflowStatus = "REJECTED"
)

// IsTerminal returns true if the workflow has reached a final outcome.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowApproved || s == WorkflowRejected
}

// String returns the string representation of the workflow status.
func (s WorkflowStatus) String() string {
	return string(s)
}

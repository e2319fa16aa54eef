package claim

// Role identifies the authority level of an actor in the approval chain.
type Role string

const (
	RoleEmployee      Role = "EMPLOYEE"
	RoleManager       Role = "MANAGER"
	RoleHR            Role = "HR"
	RoleAdministrator Role = "ADMINISTRATOR"
)

var roleRanks = map[Role]int{
	RoleEmployee:      0,
	RoleManager:       1,
	RoleHR:            2,
	RoleAdministrator: 3,
}

// Rank returns the numeric authority rank of the role. Unknown roles rank
// below employee.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return -1
}

// IsValid returns true if the role is a known approval role.
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Satisfies reports whether an actor holding this role may act on a step
// requiring the given role. HR and administrators may override any step
// below their own rank; managers may only act on manager steps.
func (r Role) Satisfies(required Role) bool {
	switch r {
	case RoleHR, RoleAdministrator:
		return r.Rank() >= required.Rank()
	case RoleManager:
		return required == RoleManager
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Decision is the kind of action an approver submits for the active step.
type Decision string

const (
	DecisionApprove     Decision = "APPROVE"
	DecisionReject      Decision = "REJECT"
	DecisionEscalate    Decision = "ESCALATE"
	DecisionRequestInfo Decision = "REQUEST_INFO"
)

var validDecisions = map[Decision]bool{
	DecisionApprove:     true,
	DecisionReject:      true,
	DecisionEscalate:    true,
	DecisionRequestInfo: true,
}

// IsValid returns true if the decision is a known decision kind.
func (d Decision) IsValid() bool {
	return validDecisions[d]
}

// RequiresComments reports whether the decision must carry a non-empty
// comment (rejections and escalations always need a reason).
func (d Decision) RequiresComments() bool {
	return d == DecisionReject || d == DecisionEscalate
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

package event

// Type identifies the type of domain event.
type Type string

const (
	TypeClaimSubmitted     Type = "claim.submitted"
	TypeClaimApproved      Type = "claim.approved"
	TypeClaimRejected      Type = "claim.rejected"
	TypeClaimEscalated     Type = "claim.escalated"
	TypeClaimInfoRequested Type = "claim.info_requested"
)

// AllTypes returns every defined event type.
func AllTypes() []Type {
	return []Type{
		TypeClaimSubmitted,
		TypeClaimApproved,
		TypeClaimRejected,
		TypeClaimEscalated,
		TypeClaimInfoRequested,
	}
}

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeClaimSubmitted,
		TypeClaimApproved,
		TypeClaimRejected,
		TypeClaimEscalated,
		TypeClaimInfoRequested:
		return true
	default:
		return false
	}
}

package domain

import "fmt"

// Role represents the closed set of user roles in a hostel.
type Role string

const (
	RoleResident Role = "resident"
	RoleAdmin    Role = "admin"
	RoleGuardian Role = "guardian"
)

// ParseRole converts a stored role string into a Role.
// An empty string yields the zero Role (user not yet assigned to a hostel).
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleResident, RoleAdmin, RoleGuardian:
		return Role(s), nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleAdmin, RoleGuardian:
		return true
	default:
		return false
	}
}

// ResidentStatus is the lifecycle status of a resident.
type ResidentStatus string

const (
	ResidentActive   ResidentStatus = "active"
	ResidentInactive ResidentStatus = "inactive"
)

// MovementType is the direction of an entry/exit log.
type MovementType string

const (
	MovementEntry MovementType = "entry"
	MovementExit  MovementType = "exit"
)

// ParseMovementType validates a movement direction.
func ParseMovementType(s string) (MovementType, error) {
	switch MovementType(s) {
	case MovementEntry, MovementExit:
		return MovementType(s), nil
	default:
		return "", fmt.Errorf("%w: movement type %q", ErrInvalidInput, s)
	}
}

// ComplaintStatus is the status of a resident complaint.
type ComplaintStatus string

const (
	ComplaintOpen     ComplaintStatus = "open"
	ComplaintResolved ComplaintStatus = "resolved"
)

// Tenanted is implemented by every entity partitioned by hostel.
type Tenanted interface {
	TenantID() string
}

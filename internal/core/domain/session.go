package domain

import "fmt"

// Session is the immutable identity of a logged-in device.
// It is built once per login and replaced only on explicit refresh.
type Session struct {
	UID              string
	Phone            string
	Role             Role
	HostelID         string
	ResidentID       string
	LinkedResidentID string
}

// NewSession validates the role linkage of a resolved user and builds its session.
// A user without a role is allowed; such a session can only register a hostel.
func NewSession(uid, phone string, role Role, hostelID, residentID, linkedResidentID string) (Session, error) {
	if uid == "" {
		return Session{}, fmt.Errorf("%w: empty uid", ErrInvalidInput)
	}
	s := Session{UID: uid, Phone: phone, Role: role, HostelID: hostelID}
	switch role {
	case RoleResident:
		if residentID == "" {
			return Session{}, ErrResidentProfileMissing
		}
		s.ResidentID = residentID
	case RoleGuardian:
		if linkedResidentID == "" {
			return Session{}, ErrGuardianNotLinked
		}
		s.LinkedResidentID = linkedResidentID
	case RoleAdmin:
	case "":
		s.HostelID = ""
	default:
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return s, nil
}

// Scope returns the tenant scope of the session.
func (s Session) Scope() (Scope, error) {
	if s.HostelID == "" || !s.Role.Valid() {
		return Scope{}, ErrNoTenant
	}
	return Scope{hostelID: s.HostelID}, nil
}

// WardID returns the resident the session acts for: the resident itself or a guardian's ward.
func (s Session) WardID() string {
	switch s.Role {
	case RoleResident:
		return s.ResidentID
	case RoleGuardian:
		return s.LinkedResidentID
	default:
		return ""
	}
}

// Scope pins every scoped read and write to one hostel.
// The zero Scope is invalid and rejected by repositories.
type Scope struct {
	hostelID string
}

// TenantScope builds a scope for background jobs that act on behalf of a hostel
// rather than a user session.
func TenantScope(hostelID string) Scope {
	return Scope{hostelID: hostelID}
}

// HostelID returns the tenant of the scope.
func (s Scope) HostelID() string { return s.hostelID }

// Valid reports whether the scope names a tenant.
func (s Scope) Valid() bool { return s.hostelID != "" }

// AssertSameTenant fails with TenantMismatchError when entity belongs to another hostel.
func AssertSameTenant(entity Tenanted, scope Scope) error {
	if !scope.Valid() {
		return ErrNoTenant
	}
	if entity.TenantID() != scope.hostelID {
		return &TenantMismatchError{Session: scope.hostelID, Supplied: entity.TenantID()}
	}
	return nil
}

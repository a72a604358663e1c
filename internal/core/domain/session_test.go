package domain

import (
	"errors"
	"testing"
)

type tenantEntity string

func (e tenantEntity) TenantID() string { return string(e) }

func TestNewSession(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		resident string
		linked   string
		wantErr  error
	}{
		{"resident with profile", RoleResident, "r1", "", nil},
		{"resident without profile", RoleResident, "", "", ErrResidentProfileMissing},
		{"guardian linked", RoleGuardian, "", "r1", nil},
		{"guardian unlinked", RoleGuardian, "", "", ErrGuardianNotLinked},
		{"admin", RoleAdmin, "", "", nil},
		{"unassigned", "", "", "", nil},
		{"unknown role", Role("owner"), "", "", ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession("uid-1", "+911234567890", tt.role, "h1", tt.resident, tt.linked)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewSession() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSession_Scope(t *testing.T) {
	s, err := NewSession("uid-1", "", RoleAdmin, "h1", "", "")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	scope, err := s.Scope()
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.HostelID() != "h1" {
		t.Errorf("HostelID() = %q, want h1", scope.HostelID())
	}

	unassigned, _ := NewSession("uid-2", "", "", "h1", "", "")
	if _, err := unassigned.Scope(); !errors.Is(err, ErrNoTenant) {
		t.Errorf("expected ErrNoTenant for unassigned session, got %v", err)
	}
}

func TestAssertSameTenant(t *testing.T) {
	scope := TenantScope("A")

	if err := AssertSameTenant(tenantEntity("A"), scope); err != nil {
		t.Errorf("same tenant: unexpected error %v", err)
	}

	err := AssertSameTenant(tenantEntity("B"), scope)
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
	var tme *TenantMismatchError
	if !errors.As(err, &tme) || tme.Supplied != "B" || tme.Session != "A" {
		t.Errorf("unexpected mismatch detail: %+v", tme)
	}

	if err := AssertSameTenant(tenantEntity("A"), Scope{}); !errors.Is(err, ErrNoTenant) {
		t.Errorf("zero scope: expected ErrNoTenant, got %v", err)
	}
}

func TestAttendanceRejection_Is(t *testing.T) {
	tests := []struct {
		reason RejectionReason
		target error
	}{
		{ReasonOutsideTimeWindow, ErrOutsideTimeWindow},
		{ReasonOutsideGeofence, ErrOutsideGeofence},
		{ReasonLocationUnavailable, ErrLocationUnavailable},
		{ReasonBiometricFailed, ErrBiometricFailed},
	}
	for _, tt := range tests {
		var err error = &AttendanceRejection{Reason: tt.reason}
		if !errors.Is(err, tt.target) {
			t.Errorf("%s should match %v", tt.reason, tt.target)
		}
		if errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s should not match ErrInvalidTransition", tt.reason)
		}
	}

	wrapped := &AttendanceRejection{Reason: ReasonLocationUnavailable, Err: ErrLocationPermissionDenied}
	if !errors.Is(wrapped, ErrLocationPermissionDenied) {
		t.Error("expected rejection to unwrap to the sensor error")
	}
}

package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUnknownRole  = errors.New("unknown role")
	ErrNoTenant     = errors.New("session has no hostel assigned")
)

// Identity errors
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrIdentityResolution     = errors.New("identity resolution failed")
	ErrStaleResolution        = errors.New("identity resolution superseded by a newer request")
	ErrPhoneInUse             = errors.New("phone already registered")
	ErrHostelAlreadyAssigned  = errors.New("user already belongs to a hostel")
	ErrGuardianNotLinked      = errors.New("guardian is not linked to this resident")
	ErrResidentProfileMissing = errors.New("resident profile missing")
	ErrResidentInactive       = errors.New("resident has been offboarded")
)

// Partition and workflow errors
var (
	ErrTenantMismatch    = errors.New("tenant mismatch")
	ErrInvalidTransition = errors.New("invalid leave transition")
)

// Attendance rejections
var (
	ErrOutsideTimeWindow   = errors.New("outside attendance time window")
	ErrOutsideGeofence     = errors.New("outside hostel geofence")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrBiometricFailed     = errors.New("biometric verification failed")
)

// Sensor errors reported by location providers
var (
	ErrLocationPermissionDenied = errors.New("location permission denied")
	ErrLocationHardware         = errors.New("location hardware unavailable")
)

// Notification errors
var (
	ErrNotificationQueueFull = errors.New("notification queue full")
)

// IdentityResolutionError reports a failed lookup or migration of a user record.
type IdentityResolutionError struct {
	UID string
	Err error
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("resolve identity %s: %v", e.UID, e.Err)
}

func (e *IdentityResolutionError) Unwrap() error { return e.Err }

func (e *IdentityResolutionError) Is(target error) bool { return target == ErrIdentityResolution }

// TenantMismatchError is returned when a write targets a hostel other than the session's.
type TenantMismatchError struct {
	Session  string
	Supplied string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("tenant mismatch: session hostel %q, supplied %q", e.Session, e.Supplied)
}

func (e *TenantMismatchError) Is(target error) bool { return target == ErrTenantMismatch }

// InvalidTransitionError is returned when a leave action is not allowed
// from the current status or by the acting role.
type InvalidTransitionError struct {
	From   LeaveStatus
	Actor  Role
	Action LeaveAction
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s leave in status %s as %q", e.Action, e.From, e.Actor)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// RejectionReason names why a roll-call attempt was rejected.
type RejectionReason string

const (
	ReasonOutsideTimeWindow   RejectionReason = "OutsideTimeWindow"
	ReasonOutsideGeofence     RejectionReason = "OutsideGeofence"
	ReasonLocationUnavailable RejectionReason = "LocationUnavailable"
	ReasonBiometricFailed     RejectionReason = "BiometricFailed"
)

// AttendanceRejection is returned for every rejected roll-call or movement attempt.
type AttendanceRejection struct {
	Reason        RejectionReason
	NextSlotLabel string
	Distance      float64
	Err           error
}

func (e *AttendanceRejection) Error() string {
	switch e.Reason {
	case ReasonOutsideTimeWindow:
		return fmt.Sprintf("attendance rejected: %s, next window %s", e.Reason, e.NextSlotLabel)
	case ReasonOutsideGeofence:
		return fmt.Sprintf("attendance rejected: %s (%.1fm from hostel)", e.Reason, e.Distance)
	}
	if e.Err != nil {
		return fmt.Sprintf("attendance rejected: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("attendance rejected: %s", e.Reason)
}

func (e *AttendanceRejection) Unwrap() error { return e.Err }

func (e *AttendanceRejection) Is(target error) bool {
	switch e.Reason {
	case ReasonOutsideTimeWindow:
		return target == ErrOutsideTimeWindow
	case ReasonOutsideGeofence:
		return target == ErrOutsideGeofence
	case ReasonLocationUnavailable:
		return target == ErrLocationUnavailable
	case ReasonBiometricFailed:
		return target == ErrBiometricFailed
	}
	return false
}

package domain

// LeaveStatus is the state of a leave request.
type LeaveStatus string

const (
	LeavePendingGuardian LeaveStatus = "pending_guardian"
	LeavePendingAdmin    LeaveStatus = "pending_admin"
	LeaveApproved        LeaveStatus = "approved"
	LeaveRejected        LeaveStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s LeaveStatus) Valid() bool {
	switch s {
	case LeavePendingGuardian, LeavePendingAdmin, LeaveApproved, LeaveRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s LeaveStatus) Terminal() bool {
	return s == LeaveApproved || s == LeaveRejected
}

// LeaveAction is a decision taken on a pending leave.
type LeaveAction string

const (
	LeaveApprove LeaveAction = "approve"
	LeaveReject  LeaveAction = "reject"
)

// NextLeaveStatus applies the transition table of the leave pipeline:
//
//	pending_guardian --guardian approve--> pending_admin
//	pending_guardian --guardian reject---> rejected
//	pending_admin    --admin approve-----> approved
//	pending_admin    --admin reject------> rejected
//
// Any other combination yields an InvalidTransitionError.
func NextLeaveStatus(current LeaveStatus, actor Role, action LeaveAction) (LeaveStatus, error) {
	invalid := &InvalidTransitionError{From: current, Actor: actor, Action: action}

	var stage LeaveStatus
	switch actor {
	case RoleGuardian:
		stage = LeavePendingGuardian
	case RoleAdmin:
		stage = LeavePendingAdmin
	default:
		return current, invalid
	}
	if current != stage {
		return current, invalid
	}

	switch action {
	case LeaveApprove:
		if stage == LeavePendingGuardian {
			return LeavePendingAdmin, nil
		}
		return LeaveApproved, nil
	case LeaveReject:
		return LeaveRejected, nil
	default:
		return current, invalid
	}
}

// StepState is the display state of one progress step.
type StepState string

const (
	StepDone     StepState = "done"
	StepCurrent  StepState = "current"
	StepPending  StepState = "pending"
	StepRejected StepState = "rejected"
)

// ProgressStep is one entry of the Applied / Guardian / Admin indicator.
type ProgressStep struct {
	Label string    `json:"label"`
	State StepState `json:"state"`
}

// LeaveProgress projects a status onto the three-step progress indicator.
// A rejected leave marks every step after Applied as rejected since the
// status alone does not record which stage decided.
func LeaveProgress(status LeaveStatus) []ProgressStep {
	applied := ProgressStep{Label: "Applied", State: StepDone}
	guardian := ProgressStep{Label: "Guardian"}
	admin := ProgressStep{Label: "Admin"}

	switch status {
	case LeavePendingGuardian:
		guardian.State, admin.State = StepCurrent, StepPending
	case LeavePendingAdmin:
		guardian.State, admin.State = StepDone, StepCurrent
	case LeaveApproved:
		guardian.State, admin.State = StepDone, StepDone
	case LeaveRejected:
		guardian.State, admin.State = StepRejected, StepRejected
	default:
		applied.State, guardian.State, admin.State = StepPending, StepPending, StepPending
	}
	return []ProgressStep{applied, guardian, admin}
}

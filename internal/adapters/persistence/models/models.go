package models

import (
	"time"

	"hostelpg/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Identity
// ============================================================

// User represents users table (identity record, may be re-keyed on first login)
type User struct {
	ID               string      `gorm:"primaryKey;size:64" json:"id"`
	Name             string      `gorm:"size:100" json:"name"`
	Phone            string      `gorm:"size:20;index;not null" json:"phone"`
	Role             domain.Role `gorm:"size:20;index:idx_users_hostel_role,priority:2" json:"role"`
	HostelID         string      `gorm:"size:64;index:idx_users_hostel_role,priority:1" json:"hostel_id"`
	ResidentID       string      `gorm:"size:64;index" json:"resident_id,omitempty"`
	LinkedResidentID string      `gorm:"size:64;index" json:"linked_resident_id,omitempty"`
	PushToken        string      `gorm:"size:255" json:"-"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Session builds the domain session for a resolved user
func (u *User) Session() (domain.Session, error) {
	return domain.NewSession(u.ID, u.Phone, u.Role, u.HostelID, u.ResidentID, u.LinkedResidentID)
}

// UserResponse DTO
type UserResponse struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone"`
	Role             domain.Role `json:"role"`
	HostelID         string      `json:"hostel_id,omitempty"`
	ResidentID       string      `json:"resident_id,omitempty"`
	LinkedResidentID string      `json:"linked_resident_id,omitempty"`
	HasPushToken     bool        `json:"has_push_token"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		Name:             u.Name,
		Phone:            u.Phone,
		Role:             u.Role,
		HostelID:         u.HostelID,
		ResidentID:       u.ResidentID,
		LinkedResidentID: u.LinkedResidentID,
		HasPushToken:     u.PushToken != "",
	}
}

// AuthIdentity maps a verified phone number to its stable authenticated uid
type AuthIdentity struct {
	Phone     string    `gorm:"primaryKey;size:20" json:"phone"`
	UID       string    `gorm:"uniqueIndex;size:64;not null" json:"uid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuthIdentity) TableName() string {
	return "auth_identities"
}

// DeviceSession represents device_sessions table: one signed session token per row.
// A token is honoured only while its row is unrevoked and unexpired.
type DeviceSession struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	UID       string     `gorm:"size:64;index;not null" json:"uid"`
	DeviceID  string     `gorm:"size:128;index;not null" json:"device_id"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
}

func (DeviceSession) TableName() string {
	return "device_sessions"
}

// Active reports whether the session may still authenticate requests at now
func (d *DeviceSession) Active(now time.Time) bool {
	return d.RevokedAt == nil && now.Before(d.ExpiresAt)
}

// ============================================================
// Tenant root
// ============================================================

// Hostel represents hostels table (tenant)
type Hostel struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	Occupancy int       `gorm:"default:0" json:"occupancy"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Hostel) TableName() string {
	return "hostels"
}

// ============================================================
// Tenant-scoped entities
// ============================================================

// Resident represents residents table
type Resident struct {
	ID            string                `gorm:"primaryKey;size:64" json:"id"`
	HostelID      string                `gorm:"size:64;not null;index:idx_residents_hostel_name,priority:1" json:"hostel_id"`
	Name          string                `gorm:"size:100;not null;index:idx_residents_hostel_name,priority:2" json:"name"`
	Phone         string                `gorm:"size:20;not null" json:"phone"`
	RoomNumber    string                `gorm:"size:20" json:"room_number"`
	GuardianName  string                `gorm:"size:100" json:"guardian_name"`
	GuardianPhone string                `gorm:"size:20;index" json:"guardian_phone"`
	Status        domain.ResidentStatus `gorm:"size:20;default:'active'" json:"status"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Resident) TableName() string {
	return "residents"
}

// LeaveRequest represents leave_requests table
type LeaveRequest struct {
	ID         string             `gorm:"primaryKey;size:64" json:"id"`
	HostelID   string             `gorm:"size:64;not null;index:idx_leaves_resident_created,priority:1;index:idx_leaves_hostel_created,priority:1" json:"hostel_id"`
	ResidentID string             `gorm:"size:64;not null;index:idx_leaves_resident_created,priority:2" json:"resident_id"`
	UserID     string             `gorm:"size:64;not null" json:"user_id"`
	Reason     string             `gorm:"type:text;not null" json:"reason"`
	StartDate  string             `gorm:"size:10;not null" json:"start_date"`
	EndDate    string             `gorm:"size:10;not null" json:"end_date"`
	Status     domain.LeaveStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt  time.Time          `gorm:"autoCreateTime;index:idx_leaves_resident_created,priority:3;index:idx_leaves_hostel_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// AttendanceRecord represents attendance_records table (append-only roll-call)
type AttendanceRecord struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	HostelID   string    `gorm:"size:64;not null;index:idx_attendance_resident_time,priority:1" json:"hostel_id"`
	ResidentID string    `gorm:"size:64;not null;index:idx_attendance_resident_time,priority:2" json:"resident_id"`
	UserID     string    `gorm:"size:64;not null" json:"user_id"`
	Timestamp  time.Time `gorm:"not null;index:idx_attendance_resident_time,priority:3" json:"timestamp"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Distance   float64   `json:"distance"`
	Bypassed   bool      `gorm:"default:false" json:"bypassed"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

// EntryExitLog represents entry_exit_logs table (append-only movement log)
type EntryExitLog struct {
	ID         string              `gorm:"primaryKey;size:64" json:"id"`
	HostelID   string              `gorm:"size:64;not null;index:idx_movements_resident_time,priority:1" json:"hostel_id"`
	ResidentID string              `gorm:"size:64;not null;index:idx_movements_resident_time,priority:2" json:"resident_id"`
	UserID     string              `gorm:"size:64;not null" json:"user_id"`
	Type       domain.MovementType `gorm:"size:10;not null" json:"type"`
	Timestamp  time.Time           `gorm:"not null;index:idx_movements_resident_time,priority:3" json:"timestamp"`
}

func (EntryExitLog) TableName() string {
	return "entry_exit_logs"
}

// Complaint represents complaints table
type Complaint struct {
	ID          string                 `gorm:"primaryKey;size:64" json:"id"`
	HostelID    string                 `gorm:"size:64;not null;index:idx_complaints_hostel_created,priority:1" json:"hostel_id"`
	ResidentID  string                 `gorm:"size:64;not null;index" json:"resident_id"`
	UserID      string                 `gorm:"size:64;not null" json:"user_id"`
	Title       string                 `gorm:"size:150;not null" json:"title"`
	Description string                 `gorm:"type:text" json:"description"`
	Status      domain.ComplaintStatus `gorm:"size:20;not null;default:'open'" json:"status"`
	ResolvedBy  string                 `gorm:"size:64" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
	CreatedAt   time.Time              `gorm:"autoCreateTime;index:idx_complaints_hostel_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Complaint) TableName() string {
	return "complaints"
}

// Broadcast represents broadcasts table
type Broadcast struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	HostelID  string    `gorm:"size:64;not null;index:idx_broadcasts_hostel_created,priority:1" json:"hostel_id"`
	AuthorID  string    `gorm:"size:64;not null" json:"author_id"`
	Title     string    `gorm:"size:150;not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_broadcasts_hostel_created,priority:2" json:"created_at"`
}

func (Broadcast) TableName() string {
	return "broadcasts"
}

// ============================================================
// Tenant accessors used by the scoped repository
// ============================================================

func (r *Resident) TenantID() string { return r.HostelID }
func (r *Resident) SetTenantID(id string) { r.HostelID = id }
func (r *Resident) EntityID() string { return r.ID }
func (r *Resident) SetEntityID(id string) { r.ID = id }
func (l *LeaveRequest) TenantID() string { return l.HostelID }
func (l *LeaveRequest) SetTenantID(id string) { l.HostelID = id }
func (l *LeaveRequest) EntityID() string { return l.ID }
func (l *LeaveRequest) SetEntityID(id string) { l.ID = id }
func (a *AttendanceRecord) TenantID() string { return a.HostelID }
func (a *AttendanceRecord) SetTenantID(id string) { a.HostelID = id }
func (a *AttendanceRecord) EntityID() string { return a.ID }
func (a *AttendanceRecord) SetEntityID(id string) { a.ID = id }
func (m *EntryExitLog) TenantID() string { return m.HostelID }
func (m *EntryExitLog) SetTenantID(id string) { m.HostelID = id }
func (m *EntryExitLog) EntityID() string { return m.ID }
func (m *EntryExitLog) SetEntityID(id string) { m.ID = id }
func (c *Complaint) TenantID() string { return c.HostelID }
func (c *Complaint) SetTenantID(id string) { c.HostelID = id }
func (c *Complaint) EntityID() string { return c.ID }
func (c *Complaint) SetEntityID(id string) { c.ID = id }
func (b *Broadcast) TenantID() string { return b.HostelID }
func (b *Broadcast) SetTenantID(id string) { b.HostelID = id }
func (b *Broadcast) EntityID() string { return b.ID }
func (b *Broadcast) SetEntityID(id string) { b.ID = id }

// AutoMigrate creates or updates every table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&AuthIdentity{},
		&DeviceSession{},
		&Hostel{},
		&Resident{},
		&LeaveRequest{},
		&AttendanceRecord{},
		&EntryExitLog{},
		&Complaint{},
		&Broadcast{},
	)
}

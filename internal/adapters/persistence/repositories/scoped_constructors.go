package repositories

import (
	"hostelpg/internal/adapters/persistence/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewResidentRepository creates a new resident repository
func NewResidentRepository(db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) ResidentRepository {
	return NewScoped[models.Resident, *models.Resident](db, feed, logger)
}

// NewLeaveRepository creates a new leave request repository
func NewLeaveRepository(db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) LeaveRepository {
	return NewScoped[models.LeaveRequest, *models.LeaveRequest](db, feed, logger)
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) AttendanceRepository {
	return NewScoped[models.AttendanceRecord, *models.AttendanceRecord](db, feed, logger)
}

// NewMovementRepository creates a new entry/exit log repository
func NewMovementRepository(db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) MovementRepository {
	return NewScoped[models.EntryExitLog, *models.EntryExitLog](db, feed, logger)
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) ComplaintRepository {
	return NewScoped[models.Complaint, *models.Complaint](db, feed, logger)
}

// NewBroadcastRepository creates a new broadcast repository
func NewBroadcastRepository(db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) BroadcastRepository {
	return NewScoped[models.Broadcast, *models.Broadcast](db, feed, logger)
}

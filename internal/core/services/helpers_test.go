package services

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/geofence"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:svc_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testStores bundles every repository over one database
type testStores struct {
	db         *gorm.DB
	feed       *repositories.ChangeFeed
	users      repositories.UserRepository
	hostels    repositories.HostelRepository
	residents  repositories.ResidentRepository
	leaves     repositories.LeaveRepository
	attendance repositories.AttendanceRepository
	movements  repositories.MovementRepository
	complaints repositories.ComplaintRepository
	broadcasts repositories.BroadcastRepository
	sessions   repositories.DeviceSessionRepository
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	db := setupTestDB(t)
	feed := repositories.NewChangeFeed(zap.NewNop())
	log := zap.NewNop()
	return &testStores{
		db:         db,
		feed:       feed,
		users:      repositories.NewUserRepository(db),
		hostels:    repositories.NewHostelRepository(db),
		residents:  repositories.NewResidentRepository(db, feed, log),
		leaves:     repositories.NewLeaveRepository(db, feed, log),
		attendance: repositories.NewAttendanceRepository(db, feed, log),
		movements:  repositories.NewMovementRepository(db, feed, log),
		complaints: repositories.NewComplaintRepository(db, feed, log),
		broadcasts: repositories.NewBroadcastRepository(db, feed, log),
		sessions:   repositories.NewDeviceSessionRepository(db),
	}
}

// hostelFixture is one hostel with an admin, a resident and the resident's guardian
type hostelFixture struct {
	hostel   *models.Hostel
	resident *models.Resident
	admin    domain.Session
	student  domain.Session
	guardian domain.Session
}

var hostelCenter = geofence.Point{Latitude: 12.9716, Longitude: 77.5946}

func seedHostel(t *testing.T, s *testStores, id string) hostelFixture {
	t.Helper()
	ctx := context.Background()
	scope := domain.TenantScope(id)

	hostel := &models.Hostel{ID: id, Name: "Hostel " + id, Latitude: hostelCenter.Latitude, Longitude: hostelCenter.Longitude}
	if err := s.hostels.Create(ctx, hostel); err != nil {
		t.Fatalf("hostel: %v", err)
	}
	resident := &models.Resident{Name: "Asha", Phone: "+91900000" + id, RoomNumber: "101", Status: domain.ResidentActive}
	if err := s.residents.Create(ctx, scope, resident); err != nil {
		t.Fatalf("resident: %v", err)
	}

	users := []*models.User{
		{ID: "admin-" + id, Phone: "+91800000" + id, Role: domain.RoleAdmin, HostelID: id, PushToken: "tok-admin-" + id},
		{ID: "student-" + id, Phone: resident.Phone, Role: domain.RoleResident, HostelID: id, ResidentID: resident.ID, PushToken: "tok-student-" + id},
		{ID: "guardian-" + id, Phone: "+91700000" + id, Role: domain.RoleGuardian, HostelID: id, LinkedResidentID: resident.ID, PushToken: "tok-guardian-" + id},
	}
	sessions := make([]domain.Session, len(users))
	for i, u := range users {
		if err := s.users.Create(ctx, u); err != nil {
			t.Fatalf("user: %v", err)
		}
		sess, err := u.Session()
		if err != nil {
			t.Fatalf("session: %v", err)
		}
		sessions[i] = sess
	}

	return hostelFixture{hostel: hostel, resident: resident, admin: sessions[0], student: sessions[1], guardian: sessions[2]}
}

// drain returns every notification waiting on an unstarted notifier
func drain(n *Notifier) []Notification {
	var out []Notification
	for {
		select {
		case item := <-n.queue:
			out = append(out, item)
		default:
			return out
		}
	}
}

// fakeLocation returns a fixed point or error
type fakeLocation struct {
	point geofence.Point
	err   error
	calls int
}

func (f *fakeLocation) CurrentPosition(ctx context.Context) (geofence.Point, error) {
	f.calls++
	return f.point, f.err
}

// fakeBiometric returns a fixed outcome
type fakeBiometric struct {
	ok    bool
	err   error
	calls int
}

func (f *fakeBiometric) Authenticate(ctx context.Context) (bool, error) {
	f.calls++
	return f.ok, f.err
}

// recordingPush records deliveries
type recordingPush struct {
	mu        sync.Mutex
	delivered []Notification
	err       error
	signal    chan struct{}
}

func newRecordingPush() *recordingPush {
	return &recordingPush{signal: make(chan struct{}, 16)}
}

func (p *recordingPush) Send(ctx context.Context, token string, msg PushMessage) error {
	return p.SendBulk(ctx, []string{token}, msg)
}

func (p *recordingPush) SendBulk(ctx context.Context, tokens []string, msg PushMessage) error {
	p.mu.Lock()
	p.delivered = append(p.delivered, Notification{Tokens: tokens, Message: msg})
	p.mu.Unlock()
	p.signal <- struct{}{}
	return p.err
}

// northOf returns the point meters due north of p
func northOf(p geofence.Point, meters float64) geofence.Point {
	return geofence.Point{
		Latitude:  p.Latitude + meters/(geofence.EarthRadiusMeters*math.Pi/180),
		Longitude: p.Longitude,
	}
}

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

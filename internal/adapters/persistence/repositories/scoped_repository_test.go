package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/core/domain"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:repo_"+name+"?mode=memory&cache=shared"), &gorm.Config{
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

func newLeave(resident string, created time.Time) *models.LeaveRequest {
	return &models.LeaveRequest{
		ResidentID: resident,
		UserID:     "u-" + resident,
		Reason:     "Festival",
		StartDate:  "2024-10-10",
		EndDate:    "2024-10-15",
		Status:     domain.LeavePendingGuardian,
		CreatedAt:  created,
	}
}

func TestScoped_TenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaveRepository(db, NewChangeFeed(nil), zap.NewNop())
	ctx := context.Background()
	hostelA, hostelB := domain.TenantScope("hostel-a"), domain.TenantScope("hostel-b")
	base := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, hostelA, newLeave("r1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("create A: %v", err)
		}
		if err := repo.Create(ctx, hostelB, newLeave("r1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("create B: %v", err)
		}
	}

	items, err := repo.Find(ctx, hostelA, Query{Filters: []Filter{Where("resident_id", "r1")}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 leaves for hostel A, got %d", len(items))
	}
	for _, l := range items {
		if l.HostelID != "hostel-a" {
			t.Errorf("scoped query leaked entity of %q", l.HostelID)
		}
	}

	foreign := items[0].ID
	if _, err := repo.Get(ctx, hostelB, foreign); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant get: expected ErrNotFound, got %v", err)
	}
	if err := repo.Update(ctx, hostelB, foreign, map[string]interface{}{"reason": "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant update: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, hostelB, foreign); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant delete: expected ErrNotFound, got %v", err)
	}

	count, err := repo.Count(ctx, hostelB)
	if err != nil || count != 3 {
		t.Errorf("Count(B) = %d, %v", count, err)
	}
}

func TestScoped_CreateStampsAndRejectsForeignTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaveRepository(db, nil, nil)
	ctx := context.Background()
	scope := domain.TenantScope("hostel-a")

	leave := newLeave("r1", time.Time{})
	if err := repo.Create(ctx, scope, leave); err != nil {
		t.Fatalf("create: %v", err)
	}
	if leave.HostelID != "hostel-a" || leave.ID == "" {
		t.Errorf("expected stamped tenant and id, got %q / %q", leave.HostelID, leave.ID)
	}

	foreign := newLeave("r1", time.Time{})
	foreign.HostelID = "hostel-b"
	err := repo.Create(ctx, scope, foreign)
	var mismatch *domain.TenantMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TenantMismatchError, got %v", err)
	}
	if mismatch.Session != "hostel-a" || mismatch.Supplied != "hostel-b" {
		t.Errorf("mismatch = %+v", mismatch)
	}

	if err := repo.Update(ctx, scope, leave.ID, map[string]interface{}{"hostel_id": "hostel-b"}); !errors.Is(err, domain.ErrTenantMismatch) {
		t.Errorf("re-homing update: expected ErrTenantMismatch, got %v", err)
	}

	if err := repo.Create(ctx, domain.Scope{}, newLeave("r1", time.Time{})); !errors.Is(err, domain.ErrNoTenant) {
		t.Errorf("zero scope: expected ErrNoTenant, got %v", err)
	}
	if _, err := repo.Find(ctx, scope, Query{Filters: []Filter{Where("hostel_id", "hostel-b")}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("tenant filter: expected ErrInvalidInput, got %v", err)
	}
}

func TestScoped_FindFallsBackWithoutIndex(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaveRepository(db, nil, zap.NewNop())
	ctx := context.Background()
	scope := domain.TenantScope("hostel-a")
	base := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

	// inserted out of order
	for _, h := range []int{2, 0, 3, 1} {
		if err := repo.Create(ctx, scope, newLeave("r1", base.Add(time.Duration(h)*time.Hour))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(ctx, scope, newLeave("r2", base.Add(10*time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	q := Query{
		Filters: []Filter{Where("resident_id", "r1")},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   3,
		Index:   "idx_leaves_resident_created",
	}

	indexed, err := repo.Find(ctx, scope, q)
	if err != nil {
		t.Fatalf("indexed find: %v", err)
	}

	if err := db.Migrator().DropIndex(&models.LeaveRequest{}, "idx_leaves_resident_created"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if db.Migrator().HasIndex(&models.LeaveRequest{}, "idx_leaves_resident_created") {
		t.Fatal("index still present")
	}

	fallback, err := repo.Find(ctx, scope, q)
	if err != nil {
		t.Fatalf("fallback find: %v", err)
	}

	if len(indexed) != 3 || len(fallback) != 3 {
		t.Fatalf("expected 3 results from both tiers, got %d and %d", len(indexed), len(fallback))
	}
	for i := range indexed {
		if indexed[i].ID != fallback[i].ID {
			t.Errorf("position %d: indexed %s, fallback %s", i, indexed[i].ID, fallback[i].ID)
		}
	}
	for i := 1; i < len(fallback); i++ {
		if fallback[i-1].CreatedAt.Before(fallback[i].CreatedAt) {
			t.Errorf("fallback not sorted desc at %d", i)
		}
	}

	q.Offset = 3
	rest, err := repo.Find(ctx, scope, q)
	if err != nil || len(rest) != 1 {
		t.Errorf("fallback offset: got %d items, %v", len(rest), err)
	}
}

func TestScoped_CompareAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaveRepository(db, nil, nil)
	ctx := context.Background()
	scope := domain.TenantScope("hostel-a")

	leave := newLeave("r1", time.Time{})
	if err := repo.Create(ctx, scope, leave); err != nil {
		t.Fatalf("create: %v", err)
	}

	expect := map[string]interface{}{"status": domain.LeavePendingGuardian}
	patch := map[string]interface{}{"status": domain.LeavePendingAdmin}

	ok, err := repo.CompareAndUpdate(ctx, scope, leave.ID, expect, patch)
	if err != nil || !ok {
		t.Fatalf("first CAS = %v, %v", ok, err)
	}
	ok, err = repo.CompareAndUpdate(ctx, scope, leave.ID, expect, patch)
	if err != nil || ok {
		t.Errorf("second CAS should not match, got %v, %v", ok, err)
	}

	got, err := repo.Get(ctx, scope, leave.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.LeavePendingAdmin {
		t.Errorf("status = %s", got.Status)
	}
}

func TestScoped_Subscribe(t *testing.T) {
	db := setupTestDB(t)
	feed := NewChangeFeed(zap.NewNop())
	repo := NewLeaveRepository(db, feed, zap.NewNop())
	scope := domain.TenantScope("hostel-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repo.Create(ctx, scope, newLeave("r1", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}

	stream, err := repo.Subscribe(ctx, scope, Query{OrderBy: "created_at", Index: "idx_leaves_hostel_created"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	next := func() []*models.LeaveRequest {
		t.Helper()
		select {
		case snap := <-stream:
			return snap
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
		return nil
	}

	if snap := next(); len(snap) != 1 {
		t.Fatalf("initial snapshot has %d items", len(snap))
	}

	// other tenants do not wake the subscriber
	if err := repo.Create(ctx, domain.TenantScope("hostel-b"), newLeave("r9", time.Time{})); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if err := repo.Create(ctx, scope, newLeave("r2", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := next()
	if len(snap) != 2 {
		t.Fatalf("expected 2 items after write, got %d", len(snap))
	}
	for _, l := range snap {
		if l.HostelID != "hostel-a" {
			t.Errorf("snapshot leaked %q", l.HostelID)
		}
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				if n := feed.listenerCount(); n != 0 {
					t.Errorf("listener not released, %d left", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}

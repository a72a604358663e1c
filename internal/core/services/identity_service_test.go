package services

import (
	"context"
	"errors"
	"testing"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestIdentity_PlaceholderMigration(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	placeholder := &models.User{ID: "placeholder-1", Name: "Asha", Phone: "+911234567890", Role: domain.RoleResident, HostelID: "h1", ResidentID: "r1"}
	if err := stores.users.Create(ctx, placeholder); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewIdentityService(stores.users, "91", zap.NewNop())
	user, err := svc.Resolve(ctx, "auth-99", "+911234567890")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != "auth-99" || user.ResidentID != "r1" || user.HostelID != "h1" || user.Role != domain.RoleResident {
		t.Errorf("migrated user = %+v", user)
	}

	if _, err := stores.users.GetByID(ctx, "placeholder-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("placeholder should be gone, got %v", err)
	}
	stored, err := stores.users.GetByID(ctx, "auth-99")
	if err != nil || stored.Name != "Asha" {
		t.Errorf("stored = %+v, %v", stored, err)
	}

	// second login resolves directly by uid
	again, err := svc.Resolve(ctx, "auth-99", "")
	if err != nil || again.ID != "auth-99" {
		t.Errorf("direct resolve = %+v, %v", again, err)
	}
}

func TestIdentity_AlternatePhoneForm(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	// admin typed the national number
	if err := stores.users.Create(ctx, &models.User{ID: "placeholder-2", Phone: "1234567890", Role: domain.RoleGuardian, HostelID: "h1", LinkedResidentID: "r1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewIdentityService(stores.users, "91", zap.NewNop())
	user, err := svc.Resolve(ctx, "auth-7", "+911234567890")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != "auth-7" || user.LinkedResidentID != "r1" {
		t.Errorf("user = %+v", user)
	}
}

func TestIdentity_NotFound(t *testing.T) {
	stores := newTestStores(t)
	svc := NewIdentityService(stores.users, "91", zap.NewNop())

	if _, err := svc.Resolve(context.Background(), "auth-1", "+915555555555"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown phone: expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), "auth-1", ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("no phone: expected ErrUserNotFound, got %v", err)
	}
}

// flakyUsers fails selected calls of an otherwise real repository
type flakyUsers struct {
	repositories.UserRepository
	getErr    error
	deleteErr error
}

func (f *flakyUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.UserRepository.GetByID(ctx, id)
}

func (f *flakyUsers) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.UserRepository.Delete(ctx, id)
}

func TestIdentity_CleanupFailureIsLogged(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	if err := stores.users.Create(ctx, &models.User{ID: "placeholder-1", Phone: "+911234567890", Role: domain.RoleAdmin, HostelID: "h1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	users := &flakyUsers{UserRepository: stores.users, deleteErr: errors.New("permission denied")}
	svc := NewIdentityService(users, "91", zap.New(core))

	user, err := svc.Resolve(ctx, "auth-99", "+911234567890")
	if err != nil {
		t.Fatalf("resolve must succeed despite cleanup failure: %v", err)
	}
	if user.ID != "auth-99" {
		t.Errorf("user = %+v", user)
	}
	if logs.FilterMessage("placeholder cleanup failed").Len() != 1 {
		t.Errorf("expected one cleanup warning, got %v", logs.All())
	}
	if _, err := stores.users.GetByID(ctx, "auth-99"); err != nil {
		t.Errorf("migrated record rolled back: %v", err)
	}
}

func TestIdentity_LookupFailure(t *testing.T) {
	stores := newTestStores(t)
	users := &flakyUsers{UserRepository: stores.users, getErr: errors.New("connection reset")}
	svc := NewIdentityService(users, "91", zap.NewNop())

	_, err := svc.Resolve(context.Background(), "auth-1", "+911234567890")
	var resErr *domain.IdentityResolutionError
	if !errors.As(err, &resErr) || resErr.UID != "auth-1" {
		t.Fatalf("expected IdentityResolutionError, got %v", err)
	}
	if !errors.Is(err, domain.ErrIdentityResolution) {
		t.Error("error should match ErrIdentityResolution")
	}
}

func TestResolutionTracker_LastDispatchedWins(t *testing.T) {
	tracker := NewResolutionTracker()
	var applied []uint64
	apply := func(device string, seq uint64) bool {
		ok, err := tracker.Apply(device, seq, func() error {
			applied = append(applied, seq)
			return nil
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		return ok
	}

	seq1 := tracker.Dispatch("dev")
	seq2 := tracker.Dispatch("dev")
	seq3 := tracker.Dispatch("dev")

	if apply("dev", seq1) {
		t.Error("invocation 1 must be discarded")
	}
	if !apply("dev", seq3) {
		t.Fatal("invocation 3 must apply")
	}
	if apply("dev", seq2) {
		t.Error("invocation 2 completing after 3 must be discarded")
	}
	if len(applied) != 1 || applied[0] != seq3 {
		t.Errorf("applied = %v, want only invocation 3", applied)
	}

	// devices are independent
	other := tracker.Dispatch("other")
	if !apply("other", other) {
		t.Error("other device blocked")
	}
	tracker.Finish("other", other)

	tracker.Finish("dev", seq1)
	tracker.Finish("dev", seq2)
	if tracker.tracked() != 1 {
		t.Errorf("tracked = %d while invocation 3 is in flight, want 1", tracker.tracked())
	}
	tracker.Finish("dev", seq3)
	if tracker.tracked() != 0 {
		t.Errorf("tracked = %d after every resolution finished, want 0", tracker.tracked())
	}
}

func TestResolutionTracker_StaleAfterRedispatch(t *testing.T) {
	tracker := NewResolutionTracker()

	old := tracker.Dispatch("dev")
	tracker.Finish("dev", old)
	if tracker.Latest("dev", old) {
		t.Error("finished resolution still reported as latest")
	}

	// a new dispatch never reuses a sequence number
	fresh := tracker.Dispatch("dev")
	defer tracker.Finish("dev", fresh)
	if fresh == old {
		t.Fatalf("sequence %d reused", fresh)
	}
	ran, err := tracker.Apply("dev", old, func() error { return nil })
	if err != nil || ran {
		t.Errorf("stale sequence applied: ran=%v err=%v", ran, err)
	}
	if !tracker.Latest("dev", fresh) {
		t.Error("fresh dispatch should be latest")
	}
}

func TestResolutionTracker_ApplyError(t *testing.T) {
	tracker := NewResolutionTracker()
	seq := tracker.Dispatch("dev")
	defer tracker.Finish("dev", seq)

	boom := errors.New("insert failed")
	ran, err := tracker.Apply("dev", seq, func() error { return boom })
	if ran || !errors.Is(err, boom) {
		t.Errorf("Apply = %v, %v; want false, %v", ran, err, boom)
	}
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/jwt"

	"go.uber.org/zap"
)

// staticConfirmer maps challenge ids to identities
type staticConfirmer map[string]*AuthenticatedIdentity

func (c staticConfirmer) ConfirmCode(ctx context.Context, challengeID, code string) (*AuthenticatedIdentity, error) {
	if id, ok := c[challengeID]; ok && code == "123456" {
		return id, nil
	}
	return nil, ErrOTPInvalid
}

// gatedResolver blocks each uid's resolution until its gate is released
type gatedResolver struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	users map[string]*models.User
}

func (r *gatedResolver) gate(uid string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gates[uid] == nil {
		r.gates[uid] = make(chan struct{})
	}
	return r.gates[uid]
}

func (r *gatedResolver) Resolve(ctx context.Context, uid, phone string) (*models.User, error) {
	<-r.gate(uid)
	if u, ok := r.users[uid]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func TestAuthService_ResolutionRace(t *testing.T) {
	resolver := &gatedResolver{
		gates: map[string]chan struct{}{},
		users: map[string]*models.User{
			"u1": {ID: "u1", Role: domain.RoleAdmin, HostelID: "h1"},
			"u2": {ID: "u2", Role: domain.RoleAdmin, HostelID: "h2"},
			"u3": {ID: "u3", Role: domain.RoleAdmin, HostelID: "h3"},
		},
	}
	confirmer := staticConfirmer{
		"c1": {UID: "u1"}, "c2": {UID: "u2"}, "c3": {UID: "u3"},
	}
	stores := newTestStores(t)
	tracker := NewResolutionTracker()
	svc := NewAuthService(confirmer, resolver, tracker, stores.sessions, "secret", 15, zap.NewNop())

	type outcome struct {
		res *LoginResult
		err error
	}
	results := make([]chan outcome, 3)
	for i, challenge := range []string{"c1", "c2", "c3"} {
		results[i] = make(chan outcome, 1)
		ch := results[i]
		challenge := challenge
		go func() {
			res, err := svc.Login(context.Background(), "device", challenge, "123456")
			ch <- outcome{res, err}
		}()
		// dispatch strictly in order 1, 2, 3
		waitForDispatch(t, tracker, "device", uint64(i+1))
	}

	// 1 completes, then 3, then 2
	close(resolver.gate("u1"))
	first := <-results[0]
	close(resolver.gate("u3"))
	third := <-results[2]
	close(resolver.gate("u2"))
	second := <-results[1]

	if !errors.Is(first.err, domain.ErrStaleResolution) {
		t.Errorf("invocation 1: expected ErrStaleResolution, got %v", first.err)
	}
	if third.err != nil {
		t.Fatalf("invocation 3: %v", third.err)
	}
	if !errors.Is(second.err, domain.ErrStaleResolution) {
		t.Errorf("invocation 2: expected ErrStaleResolution, got %v", second.err)
	}

	if third.res.Session.UID != "u3" || third.res.Session.HostelID != "h3" {
		t.Errorf("applied session = %+v, want invocation 3", third.res.Session)
	}
	claims, err := jwt.ValidateSessionToken(third.res.Token, "secret")
	if err != nil || claims.Subject != "u3" || claims.DeviceID != "device" || claims.ID != third.res.SessionID {
		t.Errorf("token claims = %+v, %v", claims, err)
	}
	if err := svc.CheckSession(context.Background(), third.res.SessionID, "device"); err != nil {
		t.Errorf("winning session should be live: %v", err)
	}

	var stored int64
	stores.db.Model(&models.DeviceSession{}).Where("device_id = ?", "device").Count(&stored)
	if stored != 1 {
		t.Errorf("stored sessions = %d, want only invocation 3", stored)
	}
	if n := tracker.tracked(); n != 0 {
		t.Errorf("tracker still holds %d devices", n)
	}
}

func waitForDispatch(t *testing.T, tracker *ResolutionTracker, device string, seq uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tracker.mu.Lock()
		d := tracker.devices[device]
		done := d != nil && d.dispatched >= seq
		tracker.mu.Unlock()
		if done {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("dispatch %d not observed", seq)
}

func TestAuthService_LoginUnregistered(t *testing.T) {
	stores := newTestStores(t)
	identity := NewIdentityService(stores.users, "91", zap.NewNop())
	confirmer := staticConfirmer{"c1": {UID: "owner-1", Phone: "+919999999999"}}
	svc := NewAuthService(confirmer, identity, NewResolutionTracker(), stores.sessions, "secret", 15, zap.NewNop())

	res, err := svc.Login(context.Background(), "device", "c1", "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Registered || res.Session.Role != "" {
		t.Errorf("expected unregistered session, got %+v", res)
	}
	if _, err := res.Session.Scope(); !errors.Is(err, domain.ErrNoTenant) {
		t.Errorf("unregistered session must have no tenant, got %v", err)
	}

	if _, err := svc.Login(context.Background(), "device", "c1", "000000"); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("wrong code: expected ErrOTPInvalid, got %v", err)
	}
}

func TestAuthService_RefreshPicksUpHostel(t *testing.T) {
	stores := newTestStores(t)
	identity := NewIdentityService(stores.users, "91", zap.NewNop())
	confirmer := staticConfirmer{"c1": {UID: "owner-1", Phone: "+919999999999"}}
	svc := NewAuthService(confirmer, identity, NewResolutionTracker(), stores.sessions, "secret", 15, zap.NewNop())
	hostels := NewHostelService(stores.hostels, stores.residents, stores.users, "91", zap.NewNop())
	ctx := context.Background()

	res, err := svc.Login(ctx, "device", "c1", "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	hostel, err := hostels.RegisterHostel(ctx, res.Session, RegisterHostelInput{OwnerName: "Ravi", Name: "Green PG", Latitude: 12.97, Longitude: 77.59})
	if err != nil {
		t.Fatalf("register hostel: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, "device", res.Session)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Session.Role != domain.RoleAdmin || refreshed.Session.HostelID != hostel.ID {
		t.Errorf("refreshed session = %+v", refreshed.Session)
	}
}

func newSessionAuth(t *testing.T) (*AuthService, *testStores) {
	t.Helper()
	stores := newTestStores(t)
	identity := NewIdentityService(stores.users, "91", zap.NewNop())
	confirmer := staticConfirmer{"c1": {UID: "owner-1", Phone: "+919999999999"}}
	return NewAuthService(confirmer, identity, NewResolutionTracker(), stores.sessions, "secret", 15, zap.NewNop()), stores
}

func TestAuthService_LogoutRevokesSession(t *testing.T) {
	svc, _ := newSessionAuth(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "device", "c1", "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.CheckSession(ctx, res.SessionID, "device"); err != nil {
		t.Fatalf("fresh session: %v", err)
	}

	if err := svc.Logout(ctx, "device", res.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.CheckSession(ctx, res.SessionID, "device"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("after logout: expected ErrUnauthorized, got %v", err)
	}

	// signing in again issues a new live session
	again, err := svc.Login(ctx, "device", "c1", "123456")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.SessionID == res.SessionID {
		t.Error("session id reused")
	}
	if err := svc.CheckSession(ctx, again.SessionID, "device"); err != nil {
		t.Errorf("second session: %v", err)
	}
}

func TestAuthService_NewLoginReplacesDeviceSession(t *testing.T) {
	svc, _ := newSessionAuth(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, "device", "c1", "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	refreshed, err := svc.Refresh(ctx, "device", first.Session)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := svc.CheckSession(ctx, first.SessionID, "device"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("replaced session: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.CheckSession(ctx, refreshed.SessionID, "device"); err != nil {
		t.Errorf("refreshed session: %v", err)
	}
	// a token is bound to the device it was issued to
	if err := svc.CheckSession(ctx, refreshed.SessionID, "other-device"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign device: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.CheckSession(ctx, "unknown", "device"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("unknown session: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_LogoutDuringLogin(t *testing.T) {
	resolver := &gatedResolver{
		gates: map[string]chan struct{}{},
		users: map[string]*models.User{"u1": {ID: "u1", Role: domain.RoleAdmin, HostelID: "h1"}},
	}
	stores := newTestStores(t)
	tracker := NewResolutionTracker()
	svc := NewAuthService(staticConfirmer{"c1": {UID: "u1"}}, resolver, tracker, stores.sessions, "secret", 15, zap.NewNop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Login(ctx, "device", "c1", "123456")
		done <- err
	}()
	waitForDispatch(t, tracker, "device", 1)

	if err := svc.Logout(ctx, "device", ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(resolver.gate("u1"))
	if err := <-done; !errors.Is(err, domain.ErrStaleResolution) {
		t.Errorf("login overtaken by logout: expected ErrStaleResolution, got %v", err)
	}

	var stored int64
	stores.db.Model(&models.DeviceSession{}).Count(&stored)
	if stored != 0 {
		t.Errorf("stored sessions = %d, want none", stored)
	}
}

func TestAuthService_LoginRequiresDevice(t *testing.T) {
	svc, _ := newSessionAuth(t)
	if _, err := svc.Login(context.Background(), "", "c1", "123456"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_CleanupRemovesExpired(t *testing.T) {
	svc, stores := newSessionAuth(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "device", "c1", "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if err := svc.CheckSession(ctx, res.SessionID, "device"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expired session: expected ErrUnauthorized, got %v", err)
	}

	svc.cleanup()
	if _, err := stores.sessions.GetByID(ctx, res.SessionID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected expired session deleted, got %v", err)
	}
}

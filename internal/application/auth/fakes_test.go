package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

type fakeTenants struct {
	mu      sync.Mutex
	tenants map[string]*entity.Tenant
	err     error
}

func (f *fakeTenants) Create(_ context.Context, t *entity.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenants) FindByID(_ context.Context, id string) (*entity.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.tenants[id], nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*entity.User
	err   error
	block bool // espera a que el contexto termine
}

func (f *fakeUsers) Create(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.TenantID == u.TenantID && existing.Email == u.Email {
			return domain.ErrEmailAlreadyExists
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUsers) FindByTenantAndEmail(ctx context.Context, tenantID, email string) (*entity.User, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.User
	for _, u := range f.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = &at
	return nil
}

type fakeRoles struct {
	mu    sync.Mutex
	roles map[string]*entity.Role
}

func newFakeRoles(names ...string) *fakeRoles {
	f := &fakeRoles{roles: map[string]*entity.Role{}}
	for _, n := range names {
		f.roles["role-"+strings.ToLower(n)] = &entity.Role{ID: "role-" + strings.ToLower(n), Name: n}
	}
	return f
}

func (f *fakeRoles) FindByID(_ context.Context, id string) (*entity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[id], nil
}

func (f *fakeRoles) FindByName(_ context.Context, name string) (*entity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRoles) UpsertByName(ctx context.Context, name string) (*entity.Role, error) {
	if r, _ := f.FindByName(ctx, name); r != nil {
		return r, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &entity.Role{ID: uuid.NewString(), Name: name}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeRoles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, id)
	return nil
}

type fakeWallets struct {
	byUser map[string]*entity.Wallet
}

func (f *fakeWallets) FindByUserID(_ context.Context, userID string) (*entity.Wallet, error) {
	return f.byUser[userID], nil
}

// fakeTx ejecuta fn sobre los mismos repos; si fn falla descarta lo creado.
type fakeTx struct {
	tenants *fakeTenants
	users   *fakeUsers
}

func (f *fakeTx) RunSignUp(ctx context.Context, fn func(tenants repository.TenantRepository, users repository.UserRepository) error) error {
	stagedTenants := &fakeTenants{tenants: map[string]*entity.Tenant{}}
	err := fn(stagedTenants, f.users)
	if err != nil {
		return err
	}
	for id, t := range stagedTenants.tenants {
		f.tenants.tenants[id] = t
	}
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []FailureEvent
}

func (r *recordingAudit) PublishFailure(_ context.Context, ev FailureEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []RecoveryMessage
	err      error
}

func (r *recordingNotifier) SendRecovery(_ context.Context, m RecoveryMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, m)
	return nil
}

func (r *recordingNotifier) sent() []RecoveryMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecoveryMessage(nil), r.messages...)
}

// countingHasher cuenta las comparaciones para comprobar el hash ficticio.
type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	verifies int
}

func (c *countingHasher) Verify(password, hash string) (bool, error) {
	c.mu.Lock()
	c.verifies++
	c.mu.Unlock()
	return c.PasswordHasher.Verify(password, hash)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

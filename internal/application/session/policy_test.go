package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var (
	k1 = jwt.Key{ID: "k1", Secret: []byte("one")}
	k2 = jwt.Key{ID: "k2", Secret: []byte("two")}
	k3 = jwt.Key{ID: "k3", Secret: []byte("three")}
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memStore struct {
	mu        sync.Mutex
	entries   map[string]entity.RevokedToken
	revokeErr error
	deleted   []time.Time
}

func newMemStore() *memStore { return &memStore{entries: map[string]entity.RevokedToken{}} }

func (s *memStore) Revoke(_ context.Context, t entity.RevokedToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revokeErr != nil {
		return false, s.revokeErr
	}
	if _, ok := s.entries[t.TokenID]; ok {
		return false, nil
	}
	s.entries[t.TokenID] = t
	return true, nil
}

func (s *memStore) ListActive(_ context.Context, now time.Time) ([]entity.RevokedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.RevokedToken
	for _, e := range s.entries {
		if e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, now)
	var n int64
	for k, e := range s.entries {
		if !e.ExpiresAt.After(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func keyIDs(keys []jwt.Key) []string {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.ID)
	}
	return ids
}

func newTestPolicy(t *testing.T, cfg Config, opts ...Option) (*Policy, *clock) {
	t.Helper()
	c := newClock()
	p, err := NewPolicy(cfg, k1, append([]Option{WithClock(c.Now)}, opts...)...)
	require.NoError(t, err)
	return p, c
}

func TestNewPolicy_Validacion(t *testing.T) {
	_, err := NewPolicy(Config{TTL: time.Minute}, jwt.Key{ID: "k0"})
	assert.ErrorIs(t, err, jwt.ErrNoKey)

	_, err = NewPolicy(Config{}, k1)
	assert.Error(t, err)

	_, err = NewPolicy(Config{TTL: time.Minute, MaxSessionAge: -time.Second}, k1)
	assert.Error(t, err)

	p, err := NewPolicy(Config{TTL: time.Minute}, k1)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecoveryTTL, p.RecoveryTTL())
	assert.Zero(t, p.MaxSessionAge())
}

func TestNewPolicy_ClaveAnteriorConPlazoAbsoluto(t *testing.T) {
	c := newClock()
	until := c.Now().Add(5 * time.Minute)

	boot := func() *Policy {
		p, err := NewPolicy(Config{TTL: 15 * time.Minute, RotationGrace: time.Hour}, k2,
			WithClock(c.Now), WithPreviousKey(k1, until))
		require.NoError(t, err)
		return p
	}

	first := boot()
	assert.Equal(t, "k2", first.CurrentSigningKey().ID)
	assert.Equal(t, []string{"k2", "k1"}, keyIDs(first.TrustedVerificationKeys()))

	// Un reinicio a mitad de plazo no reabre la ventana.
	c.Advance(3 * time.Minute)
	second := boot()
	assert.Equal(t, []string{"k2", "k1"}, keyIDs(second.TrustedVerificationKeysAt(until.Add(-time.Second))))
	assert.Equal(t, []string{"k2"}, keyIDs(second.TrustedVerificationKeysAt(until)))
	assert.Equal(t, []string{"k2"}, keyIDs(first.TrustedVerificationKeysAt(until)))

	c.Advance(3 * time.Minute)
	assert.Equal(t, []string{"k2"}, keyIDs(boot().TrustedVerificationKeys()), "plazo vencido: solo la actual")

	same, err := NewPolicy(Config{TTL: time.Minute}, k2, WithPreviousKey(k2, until.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, []string{"k2"}, keyIDs(same.TrustedVerificationKeysAt(until)))
}

func TestRotate_GraciaDeLaClaveAnterior(t *testing.T) {
	p, c := newTestPolicy(t, Config{TTL: 15 * time.Minute, RotationGrace: 10 * time.Minute})

	require.NoError(t, p.Rotate(k2))
	assert.Equal(t, "k2", p.CurrentSigningKey().ID)
	assert.Equal(t, []string{"k2", "k1"}, keyIDs(p.TrustedVerificationKeys()))

	c.Advance(9 * time.Minute)
	assert.Equal(t, []string{"k2", "k1"}, keyIDs(p.TrustedVerificationKeys()))

	c.Advance(time.Minute)
	assert.Equal(t, []string{"k2"}, keyIDs(p.TrustedVerificationKeys()), "al cumplirse la gracia k1 deja de aceptarse")
}

func TestRotate_SoloLaInmediatamenteAnterior(t *testing.T) {
	p, _ := newTestPolicy(t, Config{TTL: 15 * time.Minute, RotationGrace: time.Hour})

	require.NoError(t, p.Rotate(k2))
	require.NoError(t, p.Rotate(k3))
	assert.Equal(t, []string{"k3", "k2"}, keyIDs(p.TrustedVerificationKeys()))
}

func TestRotate_SinGraciaYMismaClave(t *testing.T) {
	p, _ := newTestPolicy(t, Config{TTL: 15 * time.Minute})

	require.NoError(t, p.Rotate(k1))
	assert.Equal(t, []string{"k1"}, keyIDs(p.TrustedVerificationKeys()))

	require.NoError(t, p.Rotate(k2))
	assert.Equal(t, []string{"k2"}, keyIDs(p.TrustedVerificationKeys()))

	assert.ErrorIs(t, p.Rotate(jwt.Key{ID: "k9"}), jwt.ErrNoKey)
}

func TestRotate_MismoKidOtroSecreto(t *testing.T) {
	p, _ := newTestPolicy(t, Config{TTL: 15 * time.Minute, RotationGrace: time.Minute})

	err := p.Rotate(jwt.Key{ID: "k1", Secret: []byte("otro")})
	assert.ErrorIs(t, err, ErrKeyConflict)
	assert.Equal(t, []byte("one"), p.CurrentSigningKey().Secret)
	assert.Equal(t, []string{"k1"}, keyIDs(p.TrustedVerificationKeys()))
}

func TestRevoke(t *testing.T) {
	store := newMemStore()
	p, c := newTestPolicy(t, Config{TTL: 15 * time.Minute, RevocationEnabled: true}, WithRevocationStore(store))
	ctx := context.Background()

	created, err := p.Revoke(ctx, "jti-1", c.Now().Add(15*time.Minute))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, p.IsRevoked("jti-1"))
	assert.False(t, p.IsRevoked("jti-2"))
	assert.Contains(t, store.entries, "jti-1")

	// Idempotente, pero informa que ya estaba revocado.
	created, err = p.Revoke(ctx, "jti-1", c.Now().Add(15*time.Minute))
	require.NoError(t, err)
	assert.False(t, created)

	_, err = p.Revoke(ctx, "", c.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	store.revokeErr = errors.New("db caída")
	_, err = p.Revoke(ctx, "jti-3", c.Now())
	assert.Error(t, err)
	assert.False(t, p.IsRevoked("jti-3"), "si el almacén falla no se revoca localmente")
}

func TestRevoke_UnaSolaLlamadaGana(t *testing.T) {
	for _, withStore := range []bool{false, true} {
		var opts []Option
		if withStore {
			opts = append(opts, WithRevocationStore(newMemStore()))
		}
		p, c := newTestPolicy(t, Config{TTL: 15 * time.Minute, RevocationEnabled: true}, opts...)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := p.Revoke(context.Background(), "jti", c.Now().Add(time.Minute))
				assert.NoError(t, err)
				if created {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins, "store=%v", withStore)
	}
}

func TestRevoke_OtraInstanciaYaRevoco(t *testing.T) {
	store := newMemStore()
	cfg := Config{TTL: 15 * time.Minute, RevocationEnabled: true}
	a, c := newTestPolicy(t, cfg, WithRevocationStore(store))
	b, err := NewPolicy(cfg, k1, WithClock(c.Now), WithRevocationStore(store))
	require.NoError(t, err)

	created, err := a.Revoke(context.Background(), "jti-1", c.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.Revoke(context.Background(), "jti-1", c.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, b.IsRevoked("jti-1"))
}

func TestRevoke_Deshabilitada(t *testing.T) {
	p, c := newTestPolicy(t, Config{TTL: 15 * time.Minute})
	_, err := p.Revoke(context.Background(), "jti-1", c.Now())
	assert.ErrorIs(t, err, domain.ErrRevocationDisabled)
	assert.False(t, p.IsRevoked("jti-1"))
	assert.False(t, p.RevocationEnabled())
}

func TestPrune(t *testing.T) {
	store := newMemStore()
	p, c := newTestPolicy(t, Config{TTL: 15 * time.Minute, RevocationEnabled: true}, WithRevocationStore(store))
	ctx := context.Background()

	_, err := p.Revoke(ctx, "viejo", c.Now().Add(15*time.Minute))
	require.NoError(t, err)
	// Emitido con un TTL mayor en un despliegue anterior.
	_, err = p.Revoke(ctx, "largo", c.Now().Add(2*time.Hour))
	require.NoError(t, err)
	c.Advance(10 * time.Minute)
	_, err = p.Revoke(ctx, "nuevo", c.Now().Add(15*time.Minute))
	require.NoError(t, err)

	c.Advance(5 * time.Minute) // "viejo" expira justo ahora
	n, err := p.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, p.IsRevoked("viejo"))
	assert.True(t, p.IsRevoked("nuevo"))
	require.Len(t, store.deleted, 1)
	assert.Equal(t, c.Now(), store.deleted[0])
	assert.NotContains(t, store.entries, "viejo")

	c.Advance(time.Hour)
	_, err = p.Prune(ctx)
	require.NoError(t, err)
	assert.True(t, p.IsRevoked("largo"), "se poda por expiración del token, no por el TTL actual")
	assert.False(t, p.IsRevoked("nuevo"))
}

func TestSync_VeRevocacionesDeOtraInstancia(t *testing.T) {
	store := newMemStore()
	cfg := Config{TTL: 15 * time.Minute, RevocationEnabled: true}
	a, c := newTestPolicy(t, cfg, WithRevocationStore(store))
	b, err := NewPolicy(cfg, k1, WithClock(c.Now), WithRevocationStore(store))
	require.NoError(t, err)

	_, err = a.Revoke(context.Background(), "jti-1", c.Now().Add(15*time.Minute))
	require.NoError(t, err)
	assert.False(t, b.IsRevoked("jti-1"))

	require.NoError(t, b.Sync(context.Background()))
	assert.True(t, b.IsRevoked("jti-1"))
}

func TestRun_TerminaConElContexto(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newMemStore()
	p, _ := newTestPolicy(t, Config{TTL: 15 * time.Minute, RevocationEnabled: true}, WithRevocationStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run no terminó tras cancelar el contexto")
	}

	store.mu.Lock()
	assert.NotEmpty(t, store.deleted, "el loop debe podar periódicamente")
	store.mu.Unlock()
}

func TestRun_IntervaloCeroRetornaInmediato(t *testing.T) {
	defer goleak.VerifyNone(t)
	p, _ := newTestPolicy(t, Config{TTL: 15 * time.Minute, RevocationEnabled: true})
	p.Run(context.Background(), 0)
}

func TestConcurrencia_LectoresSinBloqueo(t *testing.T) {
	p, c := newTestPolicy(t, Config{TTL: 15 * time.Minute, RotationGrace: time.Minute, RevocationEnabled: true})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				keys := p.TrustedVerificationKeys()
				assert.NotEmpty(t, keys)
				_ = p.IsRevoked("jti")
			}
		}()
	}
	for j := 0; j < 50; j++ {
		if j%2 == 0 {
			require.NoError(t, p.Rotate(k2))
		} else {
			require.NoError(t, p.Rotate(k1))
		}
		_, err := p.Revoke(ctx, "jti", c.Now().Add(time.Minute))
		require.NoError(t, err)
	}
	wg.Wait()
	assert.True(t, p.IsRevoked("jti"))
}

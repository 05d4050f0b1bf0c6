// Package session gobierna la vida de los tokens: TTL, claves de firma con rotación
// y conjunto de revocación. Emisor y validador leen snapshots inmutables publicados
// con atomic.Pointer; los escritores se serializan con un mutex.
package session

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
	"github.com/jhoicas/voter-auth-api/pkg/jwt"
	"github.com/rs/zerolog"
)

// ErrKeyConflict se devuelve al rotar a un kid ya activo con otro secreto.
var ErrKeyConflict = errors.New("session: kid ya en uso con otro secreto")

// DefaultRecoveryTTL vida de un token de recuperación si no se configura.
const DefaultRecoveryTTL = 30 * time.Minute

// Config parámetros de la política.
type Config struct {
	TTL               time.Duration
	RotationGrace     time.Duration
	RevocationEnabled bool
	// MaxSessionAge tope de vida de una sesión contando renovaciones; 0 = sin tope.
	MaxSessionAge time.Duration
	RecoveryTTL   time.Duration
}

type keySet struct {
	current       jwt.Key
	previous      *jwt.Key
	previousUntil time.Time
}

type revocationSet struct {
	entries map[string]entity.RevokedToken
}

// Policy implementa la política de sesión. Segura para uso concurrente.
type Policy struct {
	cfg   Config
	store repository.RevocationRepository // nil = solo memoria
	now   func() time.Time
	log   zerolog.Logger

	mu      sync.Mutex // serializa Rotate/Revoke/Prune/Sync
	keys    atomic.Pointer[keySet]
	revoked atomic.Pointer[revocationSet]

	previous      *jwt.Key
	previousUntil time.Time
}

// Option configura una Policy.
type Option func(*Policy)

// WithClock inyecta el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithRevocationStore comparte el conjunto de revocación a través de un almacén.
func WithRevocationStore(store repository.RevocationRepository) Option {
	return func(p *Policy) { p.store = store }
}

// WithPreviousKey acepta key para verificar hasta until, un instante absoluto.
// Así todas las instancias, y cada reinicio, retiran la clave anterior a la vez.
func WithPreviousKey(key jwt.Key, until time.Time) Option {
	return func(p *Policy) {
		p.previous = &key
		p.previousUntil = until
	}
}

// WithLogger asigna el logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Policy) { p.log = log }
}

// NewPolicy construye la política con la clave de firma activa.
func NewPolicy(cfg Config, signingKey jwt.Key, opts ...Option) (*Policy, error) {
	if len(signingKey.Secret) == 0 {
		return nil, fmt.Errorf("session: %w", jwt.ErrNoKey)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session: TTL debe ser positivo")
	}
	if cfg.MaxSessionAge < 0 {
		return nil, fmt.Errorf("session: MaxSessionAge no puede ser negativo")
	}
	if cfg.RecoveryTTL <= 0 {
		cfg.RecoveryTTL = DefaultRecoveryTTL
	}
	p := &Policy{cfg: cfg, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	ks := &keySet{current: signingKey}
	if p.previous != nil && len(p.previous.Secret) > 0 && p.previous.ID != signingKey.ID {
		ks.previous = p.previous
		ks.previousUntil = p.previousUntil
	}
	p.previous = nil
	p.keys.Store(ks)
	p.revoked.Store(&revocationSet{entries: map[string]entity.RevokedToken{}})
	return p, nil
}

// Now devuelve la hora según el reloj de la política.
func (p *Policy) Now() time.Time { return p.now() }

// TokenTTL duración de los tokens emitidos.
func (p *Policy) TokenTTL() time.Duration { return p.cfg.TTL }

// MaxSessionAge tope de vida de una sesión desde el login; 0 = sin tope.
func (p *Policy) MaxSessionAge() time.Duration { return p.cfg.MaxSessionAge }

// RecoveryTTL duración de los tokens de recuperación de contraseña.
func (p *Policy) RecoveryTTL() time.Duration { return p.cfg.RecoveryTTL }

// RevocationEnabled informa si el validador debe consultar el conjunto de revocación.
func (p *Policy) RevocationEnabled() bool { return p.cfg.RevocationEnabled }

// CurrentSigningKey clave con la que se firman los tokens nuevos.
func (p *Policy) CurrentSigningKey() jwt.Key {
	return p.keys.Load().current
}

// TrustedVerificationKeys claves aceptadas ahora: la actual y, dentro de la ventana
// de gracia, la inmediatamente anterior.
func (p *Policy) TrustedVerificationKeys() []jwt.Key {
	return p.TrustedVerificationKeysAt(p.now())
}

// TrustedVerificationKeysAt igual que TrustedVerificationKeys evaluado en t.
func (p *Policy) TrustedVerificationKeysAt(t time.Time) []jwt.Key {
	ks := p.keys.Load()
	keys := []jwt.Key{ks.current}
	if ks.previous != nil && t.Before(ks.previousUntil) {
		keys = append(keys, *ks.previous)
	}
	return keys
}

// Rotate activa newKey. La clave saliente se acepta para verificar durante RotationGrace;
// una anterior a esa deja de aceptarse de inmediato. Rotar al kid activo es un no-op si
// el secreto coincide y ErrKeyConflict si no.
func (p *Policy) Rotate(newKey jwt.Key) error {
	if len(newKey.Secret) == 0 {
		return fmt.Errorf("session: %w", jwt.ErrNoKey)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.keys.Load()
	if old.current.ID == newKey.ID {
		if !hmac.Equal(old.current.Secret, newKey.Secret) {
			return fmt.Errorf("%w: %q", ErrKeyConflict, newKey.ID)
		}
		return nil
	}
	prev := old.current
	next := &keySet{current: newKey}
	if p.cfg.RotationGrace > 0 {
		next.previous = &prev
		next.previousUntil = p.now().Add(p.cfg.RotationGrace)
	}
	p.keys.Store(next)
	p.log.Info().Str("kid", newKey.ID).Str("previous_kid", prev.ID).
		Dur("grace", p.cfg.RotationGrace).Msg("clave de firma rotada")
	return nil
}

// IsRevoked informa si el token fue revocado antes de expirar.
func (p *Policy) IsRevoked(tokenID string) bool {
	_, ok := p.revoked.Load().entries[tokenID]
	return ok
}

// Revoke añade tokenID al conjunto de revocación; se persiste primero en el almacén
// (si hay) y luego se publica el nuevo snapshot. Devuelve true solo para la llamada que
// efectivamente lo revocó: entre llamadas concurrentes, locales o de otras instancias
// que comparten almacén, exactamente una obtiene true.
func (p *Policy) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if !p.cfg.RevocationEnabled {
		return false, domain.ErrRevocationDisabled
	}
	if tokenID == "" {
		return false, domain.ErrInvalidInput
	}
	entry := entity.RevokedToken{TokenID: tokenID, RevokedAt: p.now(), ExpiresAt: expiresAt}
	// Con almacén, su respuesta decide quién revocó primero entre instancias.
	var created, stored bool
	if p.store != nil {
		ok, err := p.store.Revoke(ctx, entry)
		if err != nil {
			return false, fmt.Errorf("persistir revocación: %w", err)
		}
		created, stored = ok, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.revoked.Load()
	if _, ok := cur.entries[tokenID]; ok {
		return created, nil
	}
	if !stored {
		created = true
	}
	next := make(map[string]entity.RevokedToken, len(cur.entries)+1)
	for k, v := range cur.entries {
		next[k] = v
	}
	next[tokenID] = entry
	p.revoked.Store(&revocationSet{entries: next})
	return created, nil
}

// Prune descarta las entradas de tokens ya expirados: el validador los rechaza por
// expiración antes de mirar la revocación. Devuelve cuántas quitó del snapshot.
func (p *Policy) Prune(ctx context.Context) (int, error) {
	now := p.now()

	p.mu.Lock()
	cur := p.revoked.Load()
	next := make(map[string]entity.RevokedToken, len(cur.entries))
	for k, v := range cur.entries {
		if !v.ExpiresAt.After(now) {
			continue
		}
		next[k] = v
	}
	removed := len(cur.entries) - len(next)
	if removed > 0 {
		p.revoked.Store(&revocationSet{entries: next})
	}
	p.mu.Unlock()

	if p.store != nil {
		if _, err := p.store.DeleteExpired(ctx, now); err != nil {
			return removed, fmt.Errorf("podar revocaciones: %w", err)
		}
	}
	return removed, nil
}

// Sync recarga el snapshot desde el almacén para ver revocaciones de otras instancias.
func (p *Policy) Sync(ctx context.Context) error {
	if p.store == nil || !p.cfg.RevocationEnabled {
		return nil
	}
	now := p.now()
	list, err := p.store.ListActive(ctx, now)
	if err != nil {
		return fmt.Errorf("sincronizar revocaciones: %w", err)
	}
	next := make(map[string]entity.RevokedToken, len(list))
	for _, e := range list {
		next[e.TokenID] = e
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Las revocaciones locales aún no visibles en el almacén se conservan.
	for k, v := range p.revoked.Load().entries {
		if _, ok := next[k]; !ok && v.ExpiresAt.After(now) {
			next[k] = v
		}
	}
	p.revoked.Store(&revocationSet{entries: next})
	return nil
}

// Run sincroniza y poda cada interval hasta que ctx termine.
func (p *Policy) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !p.cfg.RevocationEnabled {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.log.Warn().Err(err).Msg("sync de revocaciones")
			}
			if n, err := p.Prune(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.log.Warn().Err(err).Msg("poda de revocaciones")
			} else if n > 0 {
				p.log.Debug().Int("removed", n).Msg("revocaciones podadas")
			}
		}
	}
}

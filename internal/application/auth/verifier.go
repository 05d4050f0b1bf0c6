package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
	"github.com/rs/zerolog"
)

// DefaultStoreTimeout límite de las consultas al almacén durante la verificación.
const DefaultStoreTimeout = 2 * time.Second

// Verifier comprueba (tenant, email, contraseña) contra las credenciales almacenadas.
type Verifier struct {
	tenants repository.TenantRepository
	users   repository.UserRepository
	roles   repository.RoleRepository
	hasher  PasswordHasher
	audit   AuditPublisher
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// VerifierConfig dependencias opcionales del verificador.
type VerifierConfig struct {
	Timeout time.Duration  // 0 = DefaultStoreTimeout
	Audit   AuditPublisher // nil = sin auditoría
	Clock   func() time.Time
	Logger  *zerolog.Logger
}

// NewVerifier construye el verificador de credenciales.
func NewVerifier(tenants repository.TenantRepository, users repository.UserRepository, roles repository.RoleRepository, hasher PasswordHasher, cfg VerifierConfig) *Verifier {
	v := &Verifier{
		tenants: tenants,
		users:   users,
		roles:   roles,
		hasher:  hasher,
		audit:   cfg.Audit,
		timeout: cfg.Timeout,
		now:     cfg.Clock,
		log:     zerolog.Nop(),
	}
	if v.audit == nil {
		v.audit = nopAudit{}
	}
	if v.timeout <= 0 {
		v.timeout = DefaultStoreTimeout
	}
	if v.now == nil {
		v.now = time.Now
	}
	if cfg.Logger != nil {
		v.log = *cfg.Logger
	}
	return v
}

// Verify devuelve la identidad del usuario o un *domain.AuthError.
// "Usuario inexistente" y "contraseña errónea" producen el mismo ErrInvalidCredentials.
func (v *Verifier) Verify(ctx context.Context, tenantID, email, password string) (*Identity, error) {
	email = entity.NormalizeEmail(email)
	id, err := v.verify(ctx, tenantID, email, password)
	if err != nil {
		v.reportFailure(ctx, tenantID, email, err)
		return nil, err
	}
	return id, nil
}

func (v *Verifier) verify(ctx context.Context, tenantID, email, password string) (*Identity, error) {
	if tenantID == "" || password == "" || !wellFormedEmail(email) {
		return nil, domain.ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tenant, err := v.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, unavailable(err)
	}
	if tenant == nil {
		return nil, domain.ErrTenantNotFound
	}

	user, err := v.users.FindByTenantAndEmail(ctx, tenantID, email)
	if err != nil {
		return nil, unavailable(err)
	}
	if user == nil {
		// Mismo costo que una comparación real: no revela si el email existe.
		_, _ = v.hasher.Verify(password, v.fakeHash())
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := v.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, domain.NewAuthError(domain.KindInvalidCredentials, fmt.Errorf("hash almacenado inválido: %w", err))
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.ErrAccountDisabled
	}

	role, err := v.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return nil, unavailable(err)
	}
	if role == nil {
		return nil, domain.NewAuthError(domain.KindInvalidCredentials, fmt.Errorf("rol %q inexistente", user.RoleID))
	}

	return &Identity{UserID: user.ID, TenantID: user.TenantID, Role: role.Name}, nil
}

func (v *Verifier) fakeHash() string {
	v.dummyOnce.Do(func() {
		h, err := v.hasher.Hash("voter-auth-dummy-password")
		if err == nil {
			v.dummyHash = h
		}
	})
	return v.dummyHash
}

func (v *Verifier) reportFailure(ctx context.Context, tenantID, email string, err error) {
	kind, ok := domain.AuthKind(err)
	if !ok {
		kind = domain.KindVerifierUnavailable
	}
	v.log.Warn().Str("kind", string(kind)).Str("tenant_id", tenantID).Msg("verificación de credenciales fallida")

	ev := FailureEvent{TenantID: tenantID, Email: email, Kind: kind, OccurredAt: v.now().UTC()}
	// La auditoría sobrevive a la cancelación del request, acotada por timeout.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
	defer cancel()
	if perr := v.audit.PublishFailure(actx, ev); perr != nil {
		v.log.Debug().Err(perr).Msg("publicar evento de auditoría")
	}
}

// unavailable traduce fallos del almacén (timeout incluido) a VerifierUnavailable.
func unavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAuthError(domain.KindVerifierUnavailable, fmt.Errorf("timeout del almacén: %w", err))
	}
	return domain.NewAuthError(domain.KindVerifierUnavailable, err)
}

func wellFormedEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

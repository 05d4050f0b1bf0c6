package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/pkg/jwt"
	"github.com/rs/zerolog"
)

// Issuer firma tokens de sesión para identidades ya verificadas.
type Issuer struct {
	policy SessionPolicy
	issuer string
	log    zerolog.Logger
}

// NewIssuer construye el emisor. issuer se guarda en el claim "iss".
func NewIssuer(policy SessionPolicy, issuer string, log zerolog.Logger) *Issuer {
	return &Issuer{policy: policy, issuer: issuer, log: log}
}

// Issue emite un token {jti, user, tenant, role, iat=now, exp=now+ttl} firmado con la clave activa.
// Solo debe recibir identidades devueltas por Verifier o Validator.
func (i *Issuer) Issue(id Identity) (*IssuedToken, error) {
	if id.UserID == "" || id.TenantID == "" || id.Role == "" {
		return nil, domain.ErrInvalidInput
	}
	now := i.policy.Now()
	claims := jwt.NewClaims(uuid.NewString(), id.UserID, id.TenantID, id.Role, i.issuer, now, i.policy.TokenTTL())
	return i.sign(claims)
}

// Renew emite un token para la identidad de s conservando su auth_time. Con edad
// máxima configurada, la expiración no pasa de auth_time+edad y una sesión que ya la
// alcanzó recibe ErrTokenExpired.
func (i *Issuer) Renew(s *Session) (*IssuedToken, error) {
	if s == nil || s.UserID == "" || s.TenantID == "" || s.Role == "" {
		return nil, domain.ErrInvalidInput
	}
	now := i.policy.Now()
	authTime := s.AuthTime
	if authTime.IsZero() {
		authTime = s.IssuedAt
	}
	var notAfter time.Time
	if age := i.policy.MaxSessionAge(); age > 0 {
		notAfter = authTime.Add(age)
		if !now.Before(notAfter) {
			return nil, domain.ErrTokenExpired
		}
	}
	claims := jwt.NewClaims(uuid.NewString(), s.UserID, s.TenantID, s.Role, i.issuer, now, i.policy.TokenTTL()).
		WithAuthTime(authTime, notAfter)
	return i.sign(claims)
}

// IssueRecovery emite un token de recuperación de contraseña de un solo propósito.
func (i *Issuer) IssueRecovery(userID, tenantID, email string) (*IssuedToken, error) {
	if userID == "" || tenantID == "" || email == "" {
		return nil, domain.ErrInvalidInput
	}
	now := i.policy.Now()
	claims := jwt.NewRecoveryClaims(uuid.NewString(), userID, tenantID, email, i.issuer, now, i.policy.RecoveryTTL())
	return i.sign(claims)
}

func (i *Issuer) sign(claims jwt.Claims) (*IssuedToken, error) {
	key := i.policy.CurrentSigningKey()
	signed, err := jwt.Sign(key, claims)
	if err != nil {
		return nil, fmt.Errorf("firmar token: %w", err)
	}
	out := &IssuedToken{
		Token:     signed,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	i.log.Debug().Str("jti", out.TokenID).Str("user_id", claims.UserID).Str("tenant_id", claims.TenantID).
		Str("pur", claims.Purpose).Str("kid", key.ID).Time("exp", out.ExpiresAt).Msg("token emitido")
	return out, nil
}

package auth

import (
	"errors"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/pkg/jwt"
)

// Validator autentica tokens de sesión. No autoriza por recurso: el handler compara
// tenant y rol del Session devuelto con los que exige el recurso.
type Validator struct {
	policy SessionPolicy
}

// NewValidator construye el validador sobre la política de sesión.
func NewValidator(policy SessionPolicy) *Validator {
	return &Validator{policy: policy}
}

// Validate comprueba, en orden: estructura, firma, expiración y revocación.
// Es función pura del token, la hora, las claves de confianza y el conjunto de revocación.
// Un token de recuperación no es una sesión y da ErrMalformedToken.
func (v *Validator) Validate(tokenString string) (*Session, error) {
	now := v.policy.Now()
	claims, kid, err := v.parse(tokenString, now)
	if err != nil {
		return nil, err
	}
	// Tokens sin "pur" son sesiones emitidas antes de existir el claim.
	if claims.Purpose != "" && claims.Purpose != jwt.PurposeSession {
		return nil, domain.ErrMalformedToken
	}
	if claims.Role == "" {
		return nil, domain.ErrMalformedToken
	}
	if err := v.check(claims, now); err != nil {
		return nil, err
	}

	authTime := claims.IssuedAt.Time
	if claims.AuthTime != nil {
		authTime = claims.AuthTime.Time
	}
	return &Session{
		Identity:  Identity{UserID: claims.UserID, TenantID: claims.TenantID, Role: claims.Role},
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		AuthTime:  authTime,
		KeyID:     kid,
	}, nil
}

// ValidateRecovery aplica las mismas comprobaciones a un token de recuperación.
func (v *Validator) ValidateRecovery(tokenString string) (*RecoveryGrant, error) {
	now := v.policy.Now()
	claims, _, err := v.parse(tokenString, now)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != jwt.PurposeRecovery || claims.Email == "" {
		return nil, domain.ErrMalformedToken
	}
	if err := v.check(claims, now); err != nil {
		return nil, err
	}
	return &RecoveryGrant{
		TokenID:   claims.ID,
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (v *Validator) parse(tokenString string, now time.Time) (*jwt.Claims, string, error) {
	claims, kid, err := jwt.Parse(tokenString, v.policy.TrustedVerificationKeysAt(now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrSignature):
			return nil, "", domain.NewAuthError(domain.KindInvalidSignature, err)
		default:
			return nil, "", domain.NewAuthError(domain.KindMalformedToken, err)
		}
	}
	if claims.ID == "" || claims.UserID == "" || claims.TenantID == "" ||
		claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, "", domain.ErrMalformedToken
	}
	return claims, kid, nil
}

func (v *Validator) check(claims *jwt.Claims, now time.Time) error {
	if !now.Before(claims.ExpiresAt.Time) {
		return domain.ErrTokenExpired
	}
	if v.policy.RevocationEnabled() && v.policy.IsRevoked(claims.ID) {
		return domain.ErrTokenRevoked
	}
	return nil
}

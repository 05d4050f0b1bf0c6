package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errores del codec. La capa de aplicación los traduce a la taxonomía de dominio.
var (
	ErrMalformed = errors.New("jwt: token mal formado")
	ErrSignature = errors.New("jwt: firma inválida")
	ErrNoKey     = errors.New("jwt: clave de firma vacía")
)

// Key clave HMAC identificada por kid (viaja en el header del token).
type Key struct {
	ID     string
	Secret []byte
}

// Propósitos de token (claim "pur"). Un token de recuperación nunca sirve como sesión.
const (
	PurposeSession  = "session"
	PurposeRecovery = "recovery"
)

// Claims incluye los claims estándar JWT más los campos propios del servicio.
// Role viaja en el token para que el middleware RBAC decida sin consultar la DB.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"` // "Admin" | "Usuario"
	Email    string `json:"email,omitempty"`
	Purpose  string `json:"pur"`
	// AuthTime momento del login original; las renovaciones lo conservan.
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
}

// NewClaims arma los claims de una sesión emitida en issuedAt con duración ttl.
// auth_time queda en issuedAt; para una renovación usar WithAuthTime.
func NewClaims(tokenID, userID, tenantID, role, issuer string, issuedAt time.Time, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Purpose:  PurposeSession,
		AuthTime: jwt.NewNumericDate(issuedAt),
	}
}

// NewRecoveryClaims arma los claims de un token de recuperación ligado al email.
func NewRecoveryClaims(tokenID, userID, tenantID, email, issuer string, issuedAt time.Time, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UserID:   userID,
		TenantID: tenantID,
		Email:    email,
		Purpose:  PurposeRecovery,
	}
}

// WithAuthTime fija auth_time y recorta la expiración a notAfter si es anterior.
func (c Claims) WithAuthTime(authTime, notAfter time.Time) Claims {
	c.AuthTime = jwt.NewNumericDate(authTime)
	if !notAfter.IsZero() && notAfter.Before(c.ExpiresAt.Time) {
		c.ExpiresAt = jwt.NewNumericDate(notAfter)
	}
	return c
}

// Sign firma los claims con HS256 y pone el kid de la clave en el header.
func Sign(key Key, claims Claims) (string, error) {
	if len(key.Secret) == 0 {
		return "", ErrNoKey
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if key.ID != "" {
		token.Header["kid"] = key.ID
	}
	return token.SignedString(key.Secret)
}

// Parse verifica la firma contra las claves de confianza y decodifica los claims.
// La firma se comprueba sobre el texto crudo antes de decodificar el payload: cualquier
// alteración del payload da ErrSignature. No valida expiración (lo hace el llamador con su reloj).
// Devuelve también el kid de la clave que verificó.
func Parse(tokenString string, keys []Key) (*Claims, string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, "", fmt.Errorf("%w: se esperaban 3 segmentos", ErrMalformed)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	rawHeader, err := parser.DecodeSegment(parts[0])
	if err != nil {
		return nil, "", fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, "", fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, "", fmt.Errorf("%w: firma: %v", ErrMalformed, err)
	}
	if header.Alg != jwt.SigningMethodHS256.Alg() {
		return nil, "", fmt.Errorf("%w: método de firma inesperado: %q", ErrSignature, header.Alg)
	}

	signingString := parts[0] + "." + parts[1]
	keyID, ok := verifyAny(signingString, sig, header.Kid, keys)
	if !ok {
		return nil, "", ErrSignature
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, "", fmt.Errorf("%w: claims: %v", ErrMalformed, err)
	}
	return claims, keyID, nil
}

// verifyAny prueba primero la clave indicada por kid y luego el resto.
func verifyAny(signingString string, sig []byte, kid string, keys []Key) (string, bool) {
	ordered := make([]Key, 0, len(keys))
	for _, k := range keys {
		if kid != "" && k.ID == kid {
			ordered = append([]Key{k}, ordered...)
			continue
		}
		ordered = append(ordered, k)
	}
	for _, k := range ordered {
		if len(k.Secret) == 0 {
			continue
		}
		if jwt.SigningMethodHS256.Verify(signingString, sig, k.Secret) == nil {
			return k.ID, true
		}
	}
	return "", false
}

package auth

import "time"

// Identity principal autenticado: usuario, tenant y nombre del rol.
type Identity struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// IssuedToken token firmado más sus metadatos.
type IssuedToken struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session resultado de validar un token.
type Session struct {
	Identity
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	AuthTime  time.Time // login original; se conserva al renovar
	KeyID     string    // kid de la clave que verificó la firma
}

// RecoveryGrant resultado de validar un token de recuperación.
type RecoveryGrant struct {
	TokenID   string
	UserID    string
	TenantID  string
	Email     string
	ExpiresAt time.Time
}

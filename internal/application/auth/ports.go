package auth

import (
	"context"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/pkg/jwt"
)

// SessionPolicy contrato que emisor y validador consumen de session.Policy.
type SessionPolicy interface {
	Now() time.Time
	TokenTTL() time.Duration
	MaxSessionAge() time.Duration
	RecoveryTTL() time.Duration
	CurrentSigningKey() jwt.Key
	TrustedVerificationKeysAt(t time.Time) []jwt.Key
	RevocationEnabled() bool
	IsRevoked(tokenID string) bool
	// Revoke devuelve false si el token ya estaba revocado.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
}

// FailureEvent evento de auditoría de un intento de autenticación fallido.
// Nunca incluye la contraseña ni distingue "usuario inexistente" de "contraseña errónea".
type FailureEvent struct {
	TenantID   string               `json:"tenant_id"`
	Email      string               `json:"email"`
	Kind       domain.AuthErrorKind `json:"kind"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// AuditPublisher colaborador externo que registra fallos de autenticación.
type AuditPublisher interface {
	PublishFailure(ctx context.Context, event FailureEvent) error
}

type nopAudit struct{}

func (nopAudit) PublishFailure(context.Context, FailureEvent) error { return nil }

// RecoveryMessage enlace de recuperación de contraseña listo para entregar.
type RecoveryMessage struct {
	TenantID  string
	UserID    string
	Email     string
	Name      string
	Link      string
	ExpiresAt time.Time
}

// RecoveryNotifier entrega el enlace de recuperación al usuario (correo, cola...).
type RecoveryNotifier interface {
	SendRecovery(ctx context.Context, msg RecoveryMessage) error
}

type nopNotifier struct{}

func (nopNotifier) SendRecovery(context.Context, RecoveryMessage) error { return nil }

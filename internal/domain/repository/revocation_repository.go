package repository

import (
	"context"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
)

// RevocationRepository persiste el conjunto de revocación para compartirlo entre instancias.
type RevocationRepository interface {
	// Revoke guarda la entrada. Devuelve false si el token ya estaba revocado.
	Revoke(ctx context.Context, token entity.RevokedToken) (bool, error)
	// ListActive devuelve las entradas cuyo token aún no expiró en now.
	ListActive(ctx context.Context, now time.Time) ([]entity.RevokedToken, error)
	// DeleteExpired elimina las entradas con expires_at <= now; devuelve cuántas borró.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

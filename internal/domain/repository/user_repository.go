package repository

import (
	"context"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
// Los métodos Find* devuelven (nil, nil) cuando el registro no existe.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	// FindByTenantAndEmail busca por la clave única (tenant_id, email normalizado).
	FindByTenantAndEmail(ctx context.Context, tenantID, email string) (*entity.User, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*entity.User, error)
	// UpdatePassword devuelve domain.ErrNotFound si el usuario no existe.
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}

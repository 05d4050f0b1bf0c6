package repository

import (
	"context"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
)

// TenantRepository define el puerto de persistencia para Tenant.
// La implementación vive en infrastructure.
type TenantRepository interface {
	Create(ctx context.Context, tenant *entity.Tenant) error
	FindByID(ctx context.Context, id string) (*entity.Tenant, error)
}

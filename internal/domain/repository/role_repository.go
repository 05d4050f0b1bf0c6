package repository

import (
	"context"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
)

// RoleRepository define el puerto de persistencia para Role (roles globales).
type RoleRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Role, error)
	FindByName(ctx context.Context, name string) (*entity.Role, error)
	// UpsertByName crea el rol si no existe y devuelve el registro vigente (idempotente).
	UpsertByName(ctx context.Context, name string) (*entity.Role, error)
	// Delete devuelve domain.ErrRoleInUse si algún usuario referencia el rol.
	Delete(ctx context.Context, id string) error
}

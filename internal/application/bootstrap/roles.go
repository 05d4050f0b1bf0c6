// Package bootstrap inicializa los datos canónicos del almacén al arrancar el proceso.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

// EnsureSeedRoles crea (o reutiliza) los roles Admin y Usuario. Es idempotente:
// ejecutarla en cada arranque, o desde varias instancias, deja un único registro por nombre.
func EnsureSeedRoles(ctx context.Context, roles repository.RoleRepository) (map[string]*entity.Role, error) {
	out := make(map[string]*entity.Role, len(entity.SeedRoles))
	for _, name := range entity.SeedRoles {
		r, err := roles.UpsertByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("seed rol %s: %w", name, err)
		}
		out[name] = r
	}
	return out, nil
}

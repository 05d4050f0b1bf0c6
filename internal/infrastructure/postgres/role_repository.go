package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

var _ repository.RoleRepository = (*RoleRepo)(nil)

// RoleRepo implementación de RoleRepository. Los roles son globales (sin tenant_id).
type RoleRepo struct {
	q Querier
}

// NewRoleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRoleRepository(q Querier) *RoleRepo {
	return &RoleRepo{q: q}
}

// FindByID obtiene un rol por ID.
func (r *RoleRepo) FindByID(ctx context.Context, id string) (*entity.Role, error) {
	return r.findOne(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id)
}

// FindByName obtiene un rol por nombre.
func (r *RoleRepo) FindByName(ctx context.Context, name string) (*entity.Role, error) {
	return r.findOne(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`, name)
}

// UpsertByName inserta el rol si no existe; si existe devuelve el registro actual sin modificarlo.
func (r *RoleRepo) UpsertByName(ctx context.Context, name string) (*entity.Role, error) {
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	query := `
		INSERT INTO roles (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at, updated_at`
	var role entity.Role
	err := r.q.QueryRow(ctx, query, uuid.NewString(), name, time.Now().UTC()).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert role: %w", err)
	}
	return &role, nil
}

// Delete elimina un rol. La FK users.role_id (RESTRICT) impide borrar roles en uso.
func (r *RoleRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrRoleInUse
		}
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RoleRepo) findOne(ctx context.Context, query string, arg string) (*entity.Role, error) {
	var role entity.Role
	err := r.q.QueryRow(ctx, query, arg).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

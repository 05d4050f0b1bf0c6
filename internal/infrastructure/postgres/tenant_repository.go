package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

// Asegura que TenantRepo implementa repository.TenantRepository.
var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo implementación del puerto TenantRepository sobre PostgreSQL.
type TenantRepo struct {
	q Querier
}

// NewTenantRepository construye el adaptador de persistencia para tenants.
func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

// Create persiste un nuevo tenant.
func (r *TenantRepo) Create(ctx context.Context, tenant *entity.Tenant) error {
	query := `INSERT INTO tenants (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.q.Exec(ctx, query, tenant.ID, tenant.Name, tenant.CreatedAt, tenant.UpdatedAt); err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// FindByID obtiene un tenant por ID; (nil, nil) si no existe.
func (r *TenantRepo) FindByID(ctx context.Context, id string) (*entity.Tenant, error) {
	query := `SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`
	var t entity.Tenant
	err := r.q.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

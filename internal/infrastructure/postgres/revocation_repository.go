package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

var _ repository.RevocationRepository = (*RevocationRepo)(nil)

// RevocationRepo conjunto de revocación persistido en la tabla revoked_tokens.
type RevocationRepo struct {
	q Querier
}

// NewRevocationRepository construye el adaptador.
func NewRevocationRepository(q Querier) *RevocationRepo {
	return &RevocationRepo{q: q}
}

// Revoke inserta la entrada. Revocar dos veces el mismo token no es error: la segunda
// vez devuelve false, también cuando la primera la hizo otra instancia.
func (r *RevocationRepo) Revoke(ctx context.Context, t entity.RevokedToken) (bool, error) {
	query := `
		INSERT INTO revoked_tokens (token_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_id) DO NOTHING`
	tag, err := r.q.Exec(ctx, query, t.TokenID, t.RevokedAt, t.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("insert revoked token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListActive devuelve las revocaciones con expires_at > now.
func (r *RevocationRepo) ListActive(ctx context.Context, now time.Time) ([]entity.RevokedToken, error) {
	rows, err := r.q.Query(ctx,
		`SELECT token_id, revoked_at, expires_at FROM revoked_tokens WHERE expires_at > $1`, now)
	if err != nil {
		return nil, fmt.Errorf("list revoked tokens: %w", err)
	}
	defer rows.Close()
	var list []entity.RevokedToken
	for rows.Next() {
		var t entity.RevokedToken
		if err := rows.Scan(&t.TokenID, &t.RevokedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan revoked token: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// DeleteExpired poda las revocaciones de tokens ya expirados.
func (r *RevocationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete revoked tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

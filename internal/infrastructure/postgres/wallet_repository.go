package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

var _ repository.WalletRepository = (*WalletRepo)(nil)

// WalletRepo lectura de wallets. El vínculo vive en users.wallet_id (UNIQUE).
type WalletRepo struct {
	q Querier
}

// NewWalletRepository construye el adaptador.
func NewWalletRepository(q Querier) *WalletRepo {
	return &WalletRepo{q: q}
}

// FindByUserID obtiene la wallet vinculada al usuario; (nil, nil) si no tiene.
func (r *WalletRepo) FindByUserID(ctx context.Context, userID string) (*entity.Wallet, error) {
	query := `
		SELECT w.id, u.id, w.address, w.created_at, w.updated_at
		FROM users u JOIN wallets w ON w.id = u.wallet_id
		WHERE u.id = $1`
	var w entity.Wallet
	err := r.q.QueryRow(ctx, query, userID).Scan(&w.ID, &w.UserID, &w.Address, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by user: %w", err)
	}
	return &w, nil
}

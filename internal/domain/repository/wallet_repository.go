package repository

import (
	"context"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
)

// WalletRepository define el puerto de persistencia para Wallet.
type WalletRepository interface {
	FindByUserID(ctx context.Context, userID string) (*entity.Wallet, error)
}

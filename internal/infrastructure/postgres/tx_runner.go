package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/voter-auth-api/internal/application/auth"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
)

// Ensure TxRunner implements auth.SignUpTxRunner.
var _ auth.SignUpTxRunner = (*TxRunner)(nil)

// Beginner abre transacciones; lo satisfacen *pgxpool.Pool y pgxmock.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	db Beginner
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(db Beginner) *TxRunner {
	return &TxRunner{db: db}
}

// RunSignUp inicia una transacción, ejecuta fn con repos de tenant y usuario atados a la tx
// y hace Commit o Rollback.
func (r *TxRunner) RunSignUp(ctx context.Context, fn func(
	tenants repository.TenantRepository,
	users repository.UserRepository,
) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewTenantRepository(tx), NewUserRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

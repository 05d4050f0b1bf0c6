package entity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Estados válidos para User.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User representa un votante o administrador (pertenece a exactamente un Tenant y un Role).
type User struct {
	ID           string
	TenantID     string
	Email        string // siempre normalizado con NormalizeEmail
	PasswordHash string // bcrypt (incluye la sal), nunca texto plano
	Name         string
	RoleID       string
	Status       string  // active, disabled
	WalletID     *string // nil = sin wallet vinculada
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// IsActive informa si la cuenta puede iniciar sesión.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// NormalizeEmail aplica trim y case folding Unicode; la unicidad se evalúa sobre este valor.
// El Caser no es seguro entre goroutines, por eso se crea en cada llamada.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

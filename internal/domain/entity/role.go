package entity

import "time"

// Roles semilla, creados al iniciar el almacén. Son globales a todos los tenants.
const (
	RoleAdmin   = "Admin"
	RoleUsuario = "Usuario"
)

// SeedRoles lista los roles canónicos en orden de creación.
var SeedRoles = []string{RoleAdmin, RoleUsuario}

// Role clase de permisos referenciada por nombre desde los tokens.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

package entity

import "time"

// Tenant frontera de aislamiento: ninguna decisión de autorización cruza tenants.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

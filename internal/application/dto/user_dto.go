package dto

import "time"

// SignUpRequest entrada para registro: crea un tenant nuevo y su primer usuario.
type SignUpRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	TenantName string `json:"tenant_name" validate:"omitempty,max=200"`
}

// ResetPasswordRequest entrada del cambio de contraseña con token de recuperación.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserResponse salida de un usuario (sin password).
type UserResponse struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// SignUpResponse salida del registro: token de sesión y usuario creado.
type SignUpResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// MeResponse identidad de la sesión actual.
type MeResponse struct {
	UserID        string    `json:"user_id"`
	TenantID      string    `json:"tenant_id"`
	Role          string    `json:"role"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// UserListResponse página de usuarios de un tenant.
type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

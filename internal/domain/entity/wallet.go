package entity

import "time"

// Wallet vínculo opcional con una identidad externa (dirección blockchain).
// Pertenece a lo sumo a un User.
type Wallet struct {
	ID        string
	UserID    string
	Address   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// RevokedToken entrada del conjunto de revocación (logout antes de expirar).
type RevokedToken struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time
}

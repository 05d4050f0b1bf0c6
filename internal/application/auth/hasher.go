package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashea y verifica contraseñas.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify devuelve (true, nil) si coincide, (false, nil) si no, o error si el hash es inválido.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implementa PasswordHasher con bcrypt (sal aleatoria embebida en el hash,
// comparación en tiempo constante).
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher construye el hasher; cost <= 0 usa bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash genera el hash bcrypt de la contraseña.
func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compara la contraseña con el hash almacenado.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

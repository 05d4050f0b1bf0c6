package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrRoleInUse          = errors.New("el rol está asignado a usuarios")
	ErrRevocationDisabled = errors.New("la revocación de tokens está deshabilitada")
)

// AuthErrorKind identifica la causa precisa de un fallo de autenticación.
// El valor se usa en logs y métricas; nunca se expone al cliente.
type AuthErrorKind string

const (
	KindInvalidCredentials  AuthErrorKind = "INVALID_CREDENTIALS"
	KindTenantNotFound      AuthErrorKind = "TENANT_NOT_FOUND"
	KindAccountDisabled     AuthErrorKind = "ACCOUNT_DISABLED"
	KindMalformedToken      AuthErrorKind = "MALFORMED_TOKEN"
	KindInvalidSignature    AuthErrorKind = "INVALID_SIGNATURE"
	KindTokenExpired        AuthErrorKind = "TOKEN_EXPIRED"
	KindTokenRevoked        AuthErrorKind = "TOKEN_REVOKED"
	KindVerifierUnavailable AuthErrorKind = "VERIFIER_UNAVAILABLE"
)

// Retryable indica si el cliente puede reintentar (con backoff) la misma petición.
// Solo la indisponibilidad del almacén es transitoria.
func (k AuthErrorKind) Retryable() bool {
	return k == KindVerifierUnavailable
}

// AuthError fallo tipado del verificador o del validador.
type AuthError struct {
	Kind AuthErrorKind
	Err  error // causa interna opcional (p. ej. error de la DB)
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is compara por Kind, de modo que errors.Is(err, ErrTokenExpired) funciona
// aunque el error lleve una causa envuelta.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// Sentinelas por tipo de fallo, para usar con errors.Is.
var (
	ErrInvalidCredentials  = &AuthError{Kind: KindInvalidCredentials}
	ErrTenantNotFound      = &AuthError{Kind: KindTenantNotFound}
	ErrAccountDisabled     = &AuthError{Kind: KindAccountDisabled}
	ErrMalformedToken      = &AuthError{Kind: KindMalformedToken}
	ErrInvalidSignature    = &AuthError{Kind: KindInvalidSignature}
	ErrTokenExpired        = &AuthError{Kind: KindTokenExpired}
	ErrTokenRevoked        = &AuthError{Kind: KindTokenRevoked}
	ErrVerifierUnavailable = &AuthError{Kind: KindVerifierUnavailable}
)

// NewAuthError construye un AuthError con causa.
func NewAuthError(kind AuthErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Err: cause}
}

// AuthKind extrae el Kind de un error de autenticación (ok=false si no lo es).
func AuthKind(err error) (AuthErrorKind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

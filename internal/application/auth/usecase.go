package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/voter-auth-api/internal/application/dto"
	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
	"github.com/rs/zerolog"
)

// SignUpTxRunner ejecuta el alta de tenant + usuario en una sola transacción.
type SignUpTxRunner interface {
	RunSignUp(ctx context.Context, fn func(tenants repository.TenantRepository, users repository.UserRepository) error) error
}

// AuthUseCase casos de uso de autenticación: login, registro, logout, renovación y perfil.
type AuthUseCase struct {
	verifier  *Verifier
	issuer    *Issuer
	validator *Validator
	policy    SessionPolicy
	hasher    PasswordHasher
	tx        SignUpTxRunner
	users     repository.UserRepository
	roles     repository.RoleRepository
	wallets   repository.WalletRepository
	notifier  RecoveryNotifier
	linkBase  string
	log       zerolog.Logger
}

// AuthDeps dependencias del caso de uso.
type AuthDeps struct {
	Verifier    *Verifier
	Issuer      *Issuer
	Validator   *Validator
	Policy      SessionPolicy
	Hasher      PasswordHasher
	Tx          SignUpTxRunner
	Users       repository.UserRepository
	Roles       repository.RoleRepository
	Wallets     repository.WalletRepository
	// Notifier entrega los enlaces de recuperación; nil los descarta.
	Notifier    RecoveryNotifier
	// LinkBaseURL prefijo del enlace de recuperación, p.ej. https://app.example.
	LinkBaseURL string
	Log         zerolog.Logger
}

// RecoveryPath ruta del frontend a la que apunta el enlace de recuperación.
const RecoveryPath = "/auth/reset-password/"

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(d AuthDeps) *AuthUseCase {
	notifier := d.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &AuthUseCase{
		verifier:  d.Verifier,
		issuer:    d.Issuer,
		validator: d.Validator,
		policy:    d.Policy,
		hasher:    d.Hasher,
		tx:        d.Tx,
		users:     d.Users,
		roles:     d.Roles,
		wallets:   d.Wallets,
		notifier:  notifier,
		linkBase:  strings.TrimRight(d.LinkBaseURL, "/"),
		log:       d.Log,
	}
}

// Validator expone el validador para el middleware HTTP.
func (uc *AuthUseCase) Validator() *Validator { return uc.validator }

// SignIn verifica credenciales y emite un token de sesión.
func (uc *AuthUseCase) SignIn(ctx context.Context, tenantID, email, password string) (*IssuedToken, error) {
	id, err := uc.verifier.Verify(ctx, tenantID, email, password)
	if err != nil {
		return nil, err
	}
	return uc.issuer.Issue(*id)
}

// SignUp crea un tenant nuevo y su usuario con rol Usuario, y devuelve un token.
// Devuelve ErrEmailAlreadyExists si el email ya existe en ese tenant.
func (uc *AuthUseCase) SignUp(ctx context.Context, in dto.SignUpRequest) (*dto.SignUpResponse, error) {
	email := entity.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	role, err := uc.roles.FindByName(ctx, entity.RoleUsuario)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("rol %q no inicializado: %w", entity.RoleUsuario, domain.ErrNotFound)
	}
	hash, err := uc.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email
	}
	tenantName := strings.TrimSpace(in.TenantName)
	if tenantName == "" {
		tenantName = name
	}
	tenant := &entity.Tenant{ID: uuid.NewString(), Name: tenantName, CreatedAt: now}
	user := &entity.User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		RoleID:       role.ID,
		Status:       entity.UserStatusActive,
		CreatedAt:    now,
	}

	err = uc.tx.RunSignUp(ctx, func(tenants repository.TenantRepository, users repository.UserRepository) error {
		if err := tenants.Create(ctx, tenant); err != nil {
			return err
		}
		return users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	tok, err := uc.issuer.Issue(Identity{UserID: user.ID, TenantID: tenant.ID, Role: role.Name})
	if err != nil {
		return nil, err
	}
	return &dto.SignUpResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
		User:      *toUserResponse(user, role.Name),
	}, nil
}

// SignOut revoca el token de la sesión. Con revocación deshabilitada no hace nada:
// el cliente descarta el token y éste expira por TTL.
func (uc *AuthUseCase) SignOut(ctx context.Context, s *Session) error {
	_, err := uc.policy.Revoke(ctx, s.TokenID, s.ExpiresAt)
	if errors.Is(err, domain.ErrRevocationDisabled) {
		return nil
	}
	return err
}

// Renew emite un token nuevo para la misma identidad. Con revocación habilitada el
// anterior se revoca antes de emitir: de dos renovaciones concurrentes del mismo token
// solo una obtiene token nuevo, la otra recibe ErrTokenRevoked.
func (uc *AuthUseCase) Renew(ctx context.Context, s *Session) (*IssuedToken, error) {
	if uc.policy.RevocationEnabled() {
		created, err := uc.policy.Revoke(ctx, s.TokenID, s.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if !created {
			return nil, domain.ErrTokenRevoked
		}
	}
	return uc.issuer.Renew(s)
}

// SendRecoveryLink emite un token de recuperación para el email y lo entrega por el
// notificador. Si el usuario no existe o no está activo no hace nada y no lo indica:
// la respuesta es la misma en ambos casos.
func (uc *AuthUseCase) SendRecoveryLink(ctx context.Context, tenantID, email string) error {
	email = entity.NormalizeEmail(email)
	if tenantID == "" || email == "" {
		return domain.ErrInvalidInput
	}
	user, err := uc.users.FindByTenantAndEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return domain.NewAuthError(domain.KindVerifierUnavailable, err)
	}
	if user == nil || !user.IsActive() {
		return nil
	}
	tok, err := uc.issuer.IssueRecovery(user.ID, user.TenantID, user.Email)
	if err != nil {
		return err
	}
	msg := RecoveryMessage{
		TenantID:  user.TenantID,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Link:      uc.linkBase + RecoveryPath + tok.Token,
		ExpiresAt: tok.ExpiresAt,
	}
	if err := uc.notifier.SendRecovery(ctx, msg); err != nil {
		uc.log.Warn().Err(err).Str("tenant_id", user.TenantID).Str("user_id", user.ID).
			Msg("enlace de recuperación no entregado")
	}
	return nil
}

// ResetPassword cambia la contraseña del usuario del token de recuperación. Con
// revocación habilitada el token es de un solo uso.
func (uc *AuthUseCase) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return domain.ErrInvalidInput
	}
	grant, err := uc.validator.ValidateRecovery(token)
	if err != nil {
		return err
	}
	user, err := uc.users.FindByID(ctx, grant.UserID)
	if err != nil {
		return domain.NewAuthError(domain.KindVerifierUnavailable, err)
	}
	// El token deja de valer si el email cambió o el usuario ya no está activo.
	if user == nil || user.TenantID != grant.TenantID || user.Email != grant.Email || !user.IsActive() {
		return domain.ErrMalformedToken
	}
	if uc.policy.RevocationEnabled() {
		created, err := uc.policy.Revoke(ctx, grant.TokenID, grant.ExpiresAt)
		if err != nil {
			return err
		}
		if !created {
			return domain.ErrTokenRevoked
		}
	}
	hash, err := uc.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return uc.users.UpdatePassword(ctx, user.ID, hash, uc.policy.Now().UTC())
}

// Me devuelve los datos del usuario de la sesión, con la wallet vinculada si existe.
func (uc *AuthUseCase) Me(ctx context.Context, s *Session) (*dto.MeResponse, error) {
	user, err := uc.users.FindByID(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.TenantID != s.TenantID {
		return nil, domain.ErrNotFound
	}
	out := &dto.MeResponse{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Role:      s.Role,
		Email:     user.Email,
		Name:      user.Name,
		ExpiresAt: s.ExpiresAt,
	}
	wallet, err := uc.wallets.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		out.WalletAddress = wallet.Address
	}
	return out, nil
}

// ListTenantUsers lista los usuarios de un tenant con paginación.
func (uc *AuthUseCase) ListTenantUsers(ctx context.Context, tenantID string, page dto.PageRequest) (*dto.UserListResponse, error) {
	page.DefaultPage()
	users, err := uc.users.ListByTenant(ctx, tenantID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	roleNames := map[string]string{}
	out := &dto.UserListResponse{
		Items: make([]dto.UserResponse, 0, len(users)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, u := range users {
		name, ok := roleNames[u.RoleID]
		if !ok {
			role, err := uc.roles.FindByID(ctx, u.RoleID)
			if err != nil {
				return nil, err
			}
			if role != nil {
				name = role.Name
			}
			roleNames[u.RoleID] = name
		}
		out.Items = append(out.Items, *toUserResponse(u, name))
	}
	return out, nil
}

func toUserResponse(u *entity.User, role string) *dto.UserResponse {
	if u == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:        u.ID,
		TenantID:  u.TenantID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

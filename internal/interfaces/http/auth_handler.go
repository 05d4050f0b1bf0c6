package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/voter-auth-api/internal/application/auth"
	"github.com/jhoicas/voter-auth-api/internal/application/dto"
	"github.com/jhoicas/voter-auth-api/internal/domain"
	"github.com/rs/zerolog"
)

// HeaderTenantID alternativa al query param "tenant" en sign-in.
const HeaderTenantID = "X-Tenant-ID"

// retryAfterSeconds sugerido cuando el almacén de credenciales no responde.
const retryAfterSeconds = "5"

// AuthService casos de uso que consume el handler; lo implementa *auth.AuthUseCase.
type AuthService interface {
	SignIn(ctx context.Context, tenantID, email, password string) (*auth.IssuedToken, error)
	SignUp(ctx context.Context, in dto.SignUpRequest) (*dto.SignUpResponse, error)
	SignOut(ctx context.Context, s *auth.Session) error
	Renew(ctx context.Context, s *auth.Session) (*auth.IssuedToken, error)
	Me(ctx context.Context, s *auth.Session) (*dto.MeResponse, error)
	SendRecoveryLink(ctx context.Context, tenantID, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler maneja sign-in, sign-up, sign-out, refresh, perfil y recuperación de contraseña.
type AuthHandler struct {
	uc      AuthService
	metrics *Metrics
	log     zerolog.Logger
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc AuthService, metrics *Metrics, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, metrics: metrics, log: log}
}

// SignIn godoc
// @Summary      Iniciar sesión
// @Tags         auth
// @Produce      plain
// @Param        email   query   string  true   "email"
// @Param        senha   query   string  true   "contraseña"
// @Param        tenant  query   string  false  "tenant (o header X-Tenant-ID)"
// @Success      200     {string}  string  "token"
// @Failure      401     {object}  dto.ErrorResponse
// @Failure      503     {object}  dto.ErrorResponse
// @Router       /api/auth/sign-in [post]
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	email := c.Query("email")
	password := c.Query("senha")
	if password == "" {
		password = c.Query("password")
	}
	tenantID := strings.TrimSpace(c.Query("tenant"))
	if tenantID == "" {
		tenantID = strings.TrimSpace(c.Get(HeaderTenantID))
	}

	tok, err := h.uc.SignIn(c.UserContext(), tenantID, email, password)
	if err != nil {
		kind, ok := domain.AuthKind(err)
		if !ok {
			h.log.Error().Err(err).Msg("sign-in")
			return internalError(c)
		}
		h.metrics.signInFailed(string(kind))
		if kind.Retryable() {
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "servicio de autenticación no disponible, intente más tarde"})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	}
	h.metrics.signInOK()
	return sendToken(c, tok.Token)
}

// SignUp godoc
// @Summary      Registrar cuenta (tenant + usuario)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SignUpRequest  true  "name, email, password, tenant_name"
// @Success      201   {object}  dto.SignUpResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/auth/sign-up [post]
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var in dto.SignUpRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "email y password son requeridos"})
	}
	if len(in.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "password debe tener al menos 8 caracteres"})
	}
	out, err := h.uc.SignUp(c.UserContext(), in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailAlreadyExists):
			h.metrics.signUp("conflict")
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "EMAIL_EXISTS", Message: "el email ya está registrado"})
		case errors.Is(err, domain.ErrInvalidInput):
			h.metrics.signUp("invalid")
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos de registro inválidos"})
		}
		h.metrics.signUp("error")
		h.log.Error().Err(err).Msg("sign-up")
		return internalError(c)
	}
	h.metrics.signUp("ok")
	return c.Status(fiber.StatusCreated).JSON(out)
}

// SignOut godoc
// @Summary      Cerrar sesión (revoca el token)
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/sign-out [post]
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	s := GetSession(c)
	if s == nil {
		return invalidToken(c)
	}
	if err := h.uc.SignOut(c.UserContext(), s); err != nil {
		h.log.Error().Err(err).Str("tenant_id", s.TenantID).Msg("sign-out")
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "no se pudo revocar el token"})
	}
	h.metrics.revoked()
	return c.SendStatus(fiber.StatusNoContent)
}

// SendRecoveryLink godoc
// @Summary      Enviar enlace de recuperación de contraseña
// @Description  Responde 202 exista o no la cuenta.
// @Tags         auth
// @Param        email   query   string  true   "email"
// @Param        tenant  query   string  false  "tenant (o header X-Tenant-ID)"
// @Success      202
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      503     {object}  dto.ErrorResponse
// @Router       /api/auth/send-recovery-link [post]
func (h *AuthHandler) SendRecoveryLink(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	tenantID := strings.TrimSpace(c.Query("tenant"))
	if tenantID == "" {
		tenantID = strings.TrimSpace(c.Get(HeaderTenantID))
	}
	if email == "" || tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "email y tenant son requeridos"})
	}
	if err := h.uc.SendRecoveryLink(c.UserContext(), tenantID, email); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "email y tenant son requeridos"})
		}
		h.metrics.recovery("send", "error")
		h.log.Error().Err(err).Str("tenant_id", tenantID).Msg("send-recovery-link")
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "servicio no disponible, intente más tarde"})
	}
	h.metrics.recovery("send", "accepted")
	return c.SendStatus(fiber.StatusAccepted)
}

// ResetPassword godoc
// @Summary      Cambiar contraseña con token de recuperación
// @Tags         auth
// @Accept       json
// @Param        body  body  dto.ResetPasswordRequest  true  "token, password"
// @Success      204
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var in dto.ResetPasswordRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Token == "" || len(in.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "token y password de al menos 8 caracteres son requeridos"})
	}
	if err := h.uc.ResetPassword(c.UserContext(), in.Token, in.Password); err != nil {
		if kind, ok := domain.AuthKind(err); ok && !kind.Retryable() {
			h.metrics.recovery("reset", "rejected")
			return invalidToken(c)
		}
		h.metrics.recovery("reset", "error")
		h.log.Error().Err(err).Msg("reset-password")
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "no se pudo cambiar la contraseña"})
	}
	h.metrics.recovery("reset", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh godoc
// @Summary      Renovar token
// @Tags         auth
// @Security     BearerAuth
// @Produce      plain
// @Success      200   {string}  string  "token"
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	s := GetSession(c)
	if s == nil {
		return invalidToken(c)
	}
	tok, err := h.uc.Renew(c.UserContext(), s)
	if err != nil {
		// Ya renovado por otra petición o fuera de la edad máxima de sesión.
		if kind, ok := domain.AuthKind(err); ok && !kind.Retryable() {
			h.metrics.tokenRejection(string(kind))
			return invalidToken(c)
		}
		h.log.Error().Err(err).Str("tenant_id", s.TenantID).Msg("refresh")
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "no se pudo renovar el token"})
	}
	h.metrics.refreshed()
	return sendToken(c, tok.Token)
}

// Me godoc
// @Summary      Identidad de la sesión
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200   {object}  dto.MeResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	s := GetSession(c)
	if s == nil {
		return invalidToken(c)
	}
	out, err := h.uc.Me(c.UserContext(), s)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "usuario no encontrado"})
		}
		h.log.Error().Err(err).Msg("me")
		return internalError(c)
	}
	return c.JSON(out)
}

func sendToken(c *fiber.Ctx, token string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(token)
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/voter-auth-api/internal/application/auth"
	"github.com/jhoicas/voter-auth-api/internal/application/dto"
	"github.com/jhoicas/voter-auth-api/internal/domain"
)

// Locals keys para la identidad de la sesión en Fiber.
const (
	LocalUserID   = "user_id"
	LocalTenantID = "tenant_id"
	LocalRole     = "role"
	LocalSession  = "session"
)

// TokenValidator lo implementa *auth.Validator.
type TokenValidator interface {
	Validate(token string) (*auth.Session, error)
}

// AuthMiddleware valida el Bearer Token y carga user_id, tenant_id, role y la sesión en c.Locals.
// Todo rechazo responde el mismo 401; el motivo preciso solo va a métricas.
func AuthMiddleware(v TokenValidator, m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			m.tokenRejection(string(domain.KindMalformedToken))
			return invalidToken(c)
		}
		session, err := v.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			kind, ok := domain.AuthKind(err)
			if !ok {
				kind = domain.KindMalformedToken
			}
			m.tokenRejection(string(kind))
			return invalidToken(c)
		}
		c.Locals(LocalUserID, session.UserID)
		c.Locals(LocalTenantID, session.TenantID)
		c.Locals(LocalRole, session.Role)
		c.Locals(LocalSession, session)
		return c.Next()
	}
}

func invalidToken(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
}

// RequireRole autoriza solo los roles indicados. Usar DESPUÉS de AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "el token no contiene rol"})
		}
		if _, ok := allowed[role]; !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para este recurso"})
		}
		return c.Next()
	}
}

// RequireTenant exige que el parámetro de ruta param coincida con el tenant del token.
func RequireTenant(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := GetTenantID(c)
		if tenantID == "" || c.Params(param) != tenantID {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "el recurso pertenece a otro tenant"})
		}
		return c.Next()
	}
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string { return localString(c, LocalUserID) }

// GetTenantID devuelve el TenantID del contexto.
func GetTenantID(c *fiber.Ctx) string { return localString(c, LocalTenantID) }

// GetRole devuelve el rol del contexto.
func GetRole(c *fiber.Ctx) string { return localString(c, LocalRole) }

// GetSession devuelve la sesión validada, o nil.
func GetSession(c *fiber.Ctx) *auth.Session {
	s, _ := c.Locals(LocalSession).(*auth.Session)
	return s
}

func localString(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

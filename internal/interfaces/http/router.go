package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/rs/zerolog"
)

// Service lo que el router necesita de la capa de aplicación; lo implementa *auth.AuthUseCase.
type Service interface {
	AuthService
	TenantUserLister
}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Auth      Service
	Validator TokenValidator
	Metrics   *Metrics
	Health    fiber.Handler // nil = siempre ok
	Logger    zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	health := deps.Health
	if health == nil {
		health = func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) }
	}
	app.Get("/health", health)
	if deps.Metrics != nil {
		app.Get("/metrics", deps.Metrics.Handler())
	}

	api := app.Group("/api")
	authHandler := NewAuthHandler(deps.Auth, deps.Metrics, deps.Logger)
	requireAuth := AuthMiddleware(deps.Validator, deps.Metrics)

	// Auth (público)
	authGroup := api.Group("/auth")
	authGroup.Post("/sign-in", authHandler.SignIn)
	authGroup.Post("/sign-up", authHandler.SignUp)
	authGroup.Post("/send-recovery-link", authHandler.SendRecoveryLink)
	authGroup.Post("/reset-password", authHandler.ResetPassword)

	// Auth (requiere Bearer Token)
	authGroup.Post("/sign-out", requireAuth, authHandler.SignOut)
	authGroup.Post("/refresh", requireAuth, authHandler.Refresh)
	authGroup.Get("/me", requireAuth, authHandler.Me)

	// Tenants: solo Admin del mismo tenant
	tenantHandler := NewTenantHandler(deps.Auth, deps.Logger)
	api.Get("/tenants/:tenant_id/users",
		requireAuth, RequireRole(entity.RoleAdmin), RequireTenant("tenant_id"),
		tenantHandler.ListUsers,
	)
}

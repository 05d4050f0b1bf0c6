package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/voter-auth-api/internal/application/dto"
	"github.com/rs/zerolog"
)

// TenantUserLister lo implementa *auth.AuthUseCase.
type TenantUserLister interface {
	ListTenantUsers(ctx context.Context, tenantID string, page dto.PageRequest) (*dto.UserListResponse, error)
}

// TenantHandler endpoints administrativos de un tenant.
type TenantHandler struct {
	uc  TenantUserLister
	log zerolog.Logger
}

// NewTenantHandler construye el handler.
func NewTenantHandler(uc TenantUserLister, log zerolog.Logger) *TenantHandler {
	return &TenantHandler{uc: uc, log: log}
}

// ListUsers godoc
// @Summary      Listar usuarios del tenant
// @Tags         tenants
// @Security     BearerAuth
// @Produce      json
// @Param        tenant_id  path   string  true   "tenant"
// @Param        limit      query  int     false  "límite (máx 100)"
// @Param        offset     query  int     false  "desplazamiento"
// @Success      200   {object}  dto.UserListResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/tenants/{tenant_id}/users [get]
func (h *TenantHandler) ListUsers(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros de paginación inválidos"})
	}
	out, err := h.uc.ListTenantUsers(c.UserContext(), c.Params("tenant_id"), page)
	if err != nil {
		h.log.Error().Err(err).Msg("listar usuarios del tenant")
		return internalError(c)
	}
	return c.JSON(out)
}

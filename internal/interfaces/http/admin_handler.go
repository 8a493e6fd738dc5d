package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facturas-api/internal/application/admin"
	"github.com/jhoicas/facturas-api/internal/application/dto"
)

// AdminHandler panel de administración. Todas sus rutas van detrás de
// RequireRole(admin).
type AdminHandler struct {
	uc *admin.UseCase
}

// NewAdminHandler construye el handler de administración.
func NewAdminHandler(uc *admin.UseCase) *AdminHandler {
	return &AdminHandler{uc: uc}
}

// Stats godoc
// @Summary      Agregados del panel (totales, por moneda, por mes)
// @Tags         admin
// @Produce      json
// @Success      200  {object}  repository.FacturaStats
// @Router       /api/admin/stats [get]
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.uc.Stats(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// ListUsers godoc
// @Summary      Listar usuarios
// @Tags         admin
// @Produce      json
// @Success      200  {array}  entity.User
// @Router       /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.uc.ListUsers(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// SetUserRole godoc
// @Summary      Cambiar el rol de un usuario
// @Tags         admin
// @Accept       json
// @Param        id  path  string  true  "id del usuario"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/admin/users/{id}/role [put]
func (h *AdminHandler) SetUserRole(c *fiber.Ctx) error {
	var in struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.uc.SetUserRole(c.Context(), c.Params("id"), in.Role); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetUserActive godoc
// @Summary      Habilitar o deshabilitar un usuario
// @Tags         admin
// @Accept       json
// @Param        id  path  string  true  "id del usuario"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/admin/users/{id}/active [put]
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	var in struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.uc.SetUserActive(c.Context(), c.Params("id"), in.Active); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facturas-api/internal/application/dto"
	"github.com/jhoicas/facturas-api/internal/domain"
)

// respondError traduce los errores del dominio a respuestas HTTP. Los
// fallos de parseo llevan el texto crudo del modelo en Details para que el
// operador pueda diagnosticar; los duplicados llevan el id del registro ya
// existente.
func respondError(c *fiber.Ctx, err error) error {
	var parseErr *domain.ParseError
	if errors.As(err, &parseErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Code:    "EXTRACTION_PARSE",
			Message: "la respuesta del modelo no contiene JSON utilizable",
			Details: fiber.Map{"rawText": parseErr.RawText},
		})
	}
	var dup *domain.DuplicateError
	if errors.As(err, &dup) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "DUPLICATE",
			Message: "ya existe una factura con ese número",
			Details: fiber.Map{"numeroFactura": dup.NumeroFactura, "existingId": dup.ExistingID},
		})
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "EMAIL_EXISTS", Message: "el email ya está registrado"})
	case errors.Is(err, domain.ErrBatchBusy):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "BATCH_BUSY", Message: "ya hay un procesamiento en curso para esta sesión"})
	case errors.Is(err, domain.ErrInvalidItemState):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_STATE", Message: "el elemento no admite esa operación en su estado actual"})
	case errors.Is(err, domain.ErrOverlayActive):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "EDIT_ACTIVE", Message: "ya hay una edición en curso"})
	case errors.Is(err, domain.ErrNoOverlay):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NO_EDIT", Message: "no hay edición en curso"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrUpstreamIncomplete):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "UPSTREAM", Message: err.Error()})
	case errors.Is(err, domain.ErrStorage):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "STORAGE", Message: "no se pudo archivar el documento"})
	case errors.Is(err, domain.ErrPersistence):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "PERSISTENCE", Message: "no se pudo guardar el registro"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

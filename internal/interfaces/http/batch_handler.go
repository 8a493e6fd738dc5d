package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jhoicas/facturas-api/internal/application/batch"
	"github.com/jhoicas/facturas-api/internal/application/dto"
	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// BatchHandler expone la cola de procesamiento por lotes de la sesión del
// usuario autenticado. Cada usuario opera sobre su propia cola; el id de
// elemento es estable entre peticiones aunque la cola cambie de forma.
type BatchHandler struct {
	sessions *batch.Manager
}

// NewBatchHandler construye el handler de lotes.
func NewBatchHandler(sessions *batch.Manager) *BatchHandler {
	return &BatchHandler{sessions: sessions}
}

func (h *BatchHandler) queue(c *fiber.Ctx) *batch.Queue {
	return h.sessions.Acquire(GetUserID(c)).Queue
}

func (h *BatchHandler) itemID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("itemId"))
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Enqueue godoc
// @Summary      Añadir documentos a la cola de la sesión
// @Description  Valida cada archivo por separado; los válidos entran en la
// @Description  cola y los inválidos se reportan sin bloquear al resto.
// @Tags         batch
// @Accept       multipart/form-data
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/batch/items [post]
func (h *BatchHandler) Enqueue(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "formulario multipart requerido"})
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "al menos un archivo en el campo 'files'"})
	}

	inputs := make([]extraction.Input, 0, len(files))
	for _, fh := range files {
		in, err := readUpload(fh)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer " + fh.Filename})
		}
		inputs = append(inputs, in)
	}

	added, rejected := h.queue(c).Enqueue(inputs)
	return c.JSON(fiber.Map{"added": added, "rejected": rejected})
}

// Items godoc
// @Summary      Estado completo de la cola
// @Tags         batch
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /api/batch/items [get]
func (h *BatchHandler) Items(c *fiber.Ctx) error {
	q := h.queue(c)
	return c.JSON(fiber.Map{
		"items":  q.Items(),
		"cursor": q.Cursor(),
		"busy":   q.Busy(),
	})
}

// Process godoc
// @Summary      Procesar todos los elementos pendientes, en orden
// @Tags         batch
// @Produce      json
// @Success      200  {object}  batch.Summary
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/batch/process [post]
func (h *BatchHandler) Process(c *fiber.Ctx) error {
	sum, err := h.queue(c).ProcessAll(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sum)
}

// Retry godoc
// @Summary      Reencolar un elemento fallido
// @Tags         batch
// @Produce      json
// @Param        itemId  path  string  true  "id del elemento"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/batch/items/{itemId}/retry [post]
func (h *BatchHandler) Retry(c *fiber.Ctx) error {
	id, err := h.itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de elemento inválido"})
	}
	if err := h.queue(c).Retry(id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Remove godoc
// @Summary      Quitar un elemento de la cola
// @Tags         batch
// @Produce      json
// @Param        itemId  path  string  true  "id del elemento"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/batch/items/{itemId} [delete]
func (h *BatchHandler) Remove(c *fiber.Ctx) error {
	id, err := h.itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de elemento inválido"})
	}
	if err := h.queue(c).Remove(id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Validate godoc
// @Summary      Validar y persistir un elemento procesado
// @Tags         batch
// @Produce      json
// @Param        itemId  path  string  true  "id del elemento"
// @Success      201  {object}  validation.Result
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/batch/items/{itemId}/validate [post]
func (h *BatchHandler) Validate(c *fiber.Ctx) error {
	id, err := h.itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de elemento inválido"})
	}
	res, err := h.queue(c).Validate(c.Context(), id, GetEmail(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// BeginEdit godoc
// @Summary      Abrir edición sobre un elemento procesado
// @Tags         batch
// @Produce      json
// @Param        itemId  path  string  true  "id del elemento"
// @Success      200  {object}  entity.Factura
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/batch/items/{itemId}/edit [post]
func (h *BatchHandler) BeginEdit(c *fiber.Ctx) error {
	id, err := h.itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de elemento inválido"})
	}
	draft, err := h.queue(c).BeginEdit(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(draft)
}

// SaveEdit godoc
// @Summary      Confirmar la edición en curso
// @Tags         batch
// @Accept       json
// @Produce      json
// @Param        itemId  path  string          true  "id del elemento"
// @Param        body    body  entity.Factura  true  "datos editados"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/batch/items/{itemId}/edit [put]
func (h *BatchHandler) SaveEdit(c *fiber.Ctx) error {
	id, err := h.itemID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de elemento inválido"})
	}
	var edited entity.Factura
	if err := c.BodyParser(&edited); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.queue(c).SaveEdit(id, &edited); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CancelEdit godoc
// @Summary      Descartar la edición en curso
// @Tags         batch
// @Param        itemId  path  string  true  "id del elemento"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/batch/items/{itemId}/edit [delete]
func (h *BatchHandler) CancelEdit(c *fiber.Ctx) error {
	if err := h.queue(c).CancelEdit(); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Navigate godoc
// @Summary      Mover el cursor de revisión
// @Description  direction: next | prev, o itemId para salto directo.
// @Tags         batch
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /api/batch/cursor [post]
func (h *BatchHandler) Navigate(c *fiber.Ctx) error {
	var in struct {
		Direction string `json:"direction"`
		ItemID    string `json:"itemId"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	q := h.queue(c)
	switch {
	case in.ItemID != "":
		id, err := uuid.Parse(in.ItemID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "itemId inválido"})
		}
		if err := q.Select(id); err != nil {
			return respondError(c, err)
		}
	case in.Direction == "next":
		q.Next()
	case in.Direction == "prev":
		q.Prev()
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "direction debe ser next o prev, o indicar itemId"})
	}
	cur, ok := q.Current()
	if !ok {
		return c.JSON(fiber.Map{"cursor": -1})
	}
	return c.JSON(fiber.Map{"cursor": q.Cursor(), "current": cur})
}

// Clear godoc
// @Summary      Vaciar la cola de la sesión
// @Tags         batch
// @Success      204
// @Router       /api/batch/items [delete]
func (h *BatchHandler) Clear(c *fiber.Ctx) error {
	h.queue(c).Clear()
	return c.SendStatus(fiber.StatusNoContent)
}

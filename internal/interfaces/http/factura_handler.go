package http

import (
	"encoding/json"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facturas-api/internal/application/dto"
	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/application/facturas"
	"github.com/jhoicas/facturas-api/internal/application/validation"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
)

// FacturaHandler extracción de documento único, validación y CRUD de
// facturas persistidas.
type FacturaHandler struct {
	extractor *extraction.UseCase
	validator *validation.UseCase
	facturas  *facturas.UseCase
}

// NewFacturaHandler construye el handler de facturas.
func NewFacturaHandler(extractor *extraction.UseCase, validator *validation.UseCase, fuc *facturas.UseCase) *FacturaHandler {
	return &FacturaHandler{extractor: extractor, validator: validator, facturas: fuc}
}

// readUpload lee el archivo subido en memoria.
func readUpload(fh *multipart.FileHeader) (extraction.Input, error) {
	f, err := fh.Open()
	if err != nil {
		return extraction.Input{}, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return extraction.Input{}, err
	}
	return extraction.Input{
		Content:  content,
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
	}, nil
}

// Extract godoc
// @Summary      Extraer datos de un documento (PDF o imagen)
// @Tags         facturas
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "documento a extraer"
// @Success      200   {object}  entity.Factura
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/invoices/extract [post]
func (h *FacturaHandler) Extract(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "archivo requerido en el campo 'file'"})
	}
	in, err := readUpload(fh)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer el archivo"})
	}
	factura, err := h.extractor.Extract(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(factura)
}

// Validate godoc
// @Summary      Validar y persistir una factura revisada
// @Description  Recibe los datos revisados junto con el archivo original;
// @Description  archiva el archivo y guarda el registro.
// @Tags         facturas
// @Accept       multipart/form-data
// @Produce      json
// @Param        file     formData  file    true  "archivo original"
// @Param        factura  formData  string  true  "datos revisados en JSON"
// @Success      201   {object}  dto.ValidateResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/invoices/validate [post]
func (h *FacturaHandler) Validate(c *fiber.Ctx) error {
	raw := c.FormValue("factura")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "campo 'factura' requerido"})
	}
	var factura entity.Factura
	if err := json.Unmarshal([]byte(raw), &factura); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "campo 'factura' no es JSON válido"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "archivo requerido en el campo 'file'"})
	}
	in, err := readUpload(fh)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer el archivo"})
	}

	wasModified := c.FormValue("wasModified") == "true"
	file := validation.SourceFile{Content: in.Content, FileName: in.FileName, MimeType: in.MimeType}
	res, err := h.validator.Validate(c.Context(), &factura, file, GetEmail(c), wasModified)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ValidateResponse{
		Message:       "factura validada y guardada",
		ID:            res.ID,
		NumeroFactura: factura.NumeroFactura,
		S3Key:         res.S3Key,
		S3URL:         res.S3URL,
	})
}

// List godoc
// @Summary      Listar facturas persistidas
// @Tags         facturas
// @Produce      json
// @Param        numero  query  string  false  "filtro por número (parcial)"
// @Param        limit   query  int     false  "tamaño de página (máx 100)"
// @Param        skip    query  int     false  "desplazamiento"
// @Success      200  {object}  dto.FacturaListResponse
// @Router       /api/invoices [get]
func (h *FacturaHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros de paginación inválidos"})
	}
	page.DefaultPage()
	out, err := h.facturas.List(c.Context(), repository.FacturaFilter{
		Numero: c.Query("numero"),
		Limit:  page.Limit,
		Skip:   page.Skip,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FacturaListResponse{
		Data: out.Data,
		Pagination: dto.PageResponse{
			Limit:   page.Limit,
			Skip:    page.Skip,
			Total:   out.Total,
			HasMore: int64(page.Skip+len(out.Data)) < out.Total,
		},
	})
}

// Get godoc
// @Summary      Obtener una factura por id
// @Tags         facturas
// @Produce      json
// @Param        id  path  string  true  "id de la factura"
// @Success      200  {object}  entity.Factura
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [get]
func (h *FacturaHandler) Get(c *fiber.Ctx) error {
	f, err := h.facturas.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(f)
}

// Update godoc
// @Summary      Actualizar campos de una factura
// @Tags         facturas
// @Accept       json
// @Produce      json
// @Param        id    path  string          true  "id de la factura"
// @Param        body  body  map[string]any  true  "parche parcial"
// @Success      200  {object}  entity.Factura
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [put]
func (h *FacturaHandler) Update(c *fiber.Ctx) error {
	var patch map[string]any
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	f, err := h.facturas.Update(c.Context(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(f)
}

// Delete godoc
// @Summary      Eliminar una factura
// @Tags         facturas
// @Produce      json
// @Param        id  path  string  true  "id de la factura"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [delete]
func (h *FacturaHandler) Delete(c *fiber.Ctx) error {
	if err := h.facturas.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PresignedURL godoc
// @Summary      Enlace temporal de descarga del archivo archivado
// @Tags         facturas
// @Produce      json
// @Param        id  path  string  true  "id de la factura"
// @Success      200  {object}  dto.PresignedURLResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id}/download [get]
func (h *FacturaHandler) PresignedURL(c *fiber.Ctx) error {
	url, err := h.facturas.PresignedURL(c.Context(), c.Params("id"), c.QueryInt("ttl", 3600))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.PresignedURLResponse{URL: url})
}

package dto

import "github.com/jhoicas/facturas-api/internal/domain/entity"

// ValidateResponse referencia del registro persistido tras la validación.
type ValidateResponse struct {
	Message       string `json:"message"`
	ID            string `json:"id"`
	NumeroFactura string `json:"numeroFactura,omitempty"`
	S3Key         string `json:"s3Key,omitempty"`
	S3URL         string `json:"s3Url,omitempty"`
}

// FacturaListResponse listado paginado de facturas validadas.
type FacturaListResponse struct {
	Data       []*entity.Factura `json:"data"`
	Pagination PageResponse      `json:"pagination"`
}

// PresignedURLResponse URL temporal de lectura del archivo archivado.
type PresignedURLResponse struct {
	URL string `json:"url"`
}

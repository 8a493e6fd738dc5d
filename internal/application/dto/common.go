package dto

// PageRequest paginación para listados.
type PageRequest struct {
	Limit int `query:"limit" validate:"min=1,max=100"`
	Skip  int `query:"skip" validate:"min=0"`
}

// DefaultPage aplica valores por defecto si Limit/Skip son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit   int   `json:"limit"`
	Skip    int   `json:"skip"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Details transporta información adicional de diagnóstico (p.ej. el ID
	// de la factura duplicada, o los errores por archivo en una carga parcial).
	Details any `json:"details,omitempty"`
}

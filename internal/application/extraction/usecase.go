package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/facturas-api/internal/application/ports"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// MimeTypesPermitidos tipos de archivo aceptados para extracción.
var MimeTypesPermitidos = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/webp":      {},
}

// Input archivo a extraer: bytes + nombre + mime declarado.
type Input struct {
	Content  []byte
	FileName string
	MimeType string
}

// UseCase orquesta la extracción: valida la entrada, delega al colaborador
// de comprensión de documentos y recupera el JSON de la respuesta.
type UseCase struct {
	extractor    ports.DocumentExtractor
	maxFileBytes int64
	model        string
	log          *logger.Logger
}

// NewUseCase construye el caso de uso de extracción.
func NewUseCase(extractor ports.DocumentExtractor, maxFileBytes int64, model string, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{extractor: extractor, maxFileBytes: maxFileBytes, model: model, log: log}
}

// ValidateInput aplica las restricciones de entrada sin tocar la red:
// tipo permitido, tamaño dentro del techo configurado y contenido no vacío.
// Las violaciones devuelven ErrInvalidInput envuelto con el motivo.
func (uc *UseCase) ValidateInput(in Input) error {
	if strings.TrimSpace(in.FileName) == "" {
		return fmt.Errorf("%w: nombre de archivo vacío", domain.ErrInvalidInput)
	}
	if _, ok := MimeTypesPermitidos[in.MimeType]; !ok {
		return fmt.Errorf("%w: tipo de archivo no permitido: %s (debe ser PDF o imagen PNG, JPG, WEBP)", domain.ErrInvalidInput, in.MimeType)
	}
	if len(in.Content) == 0 {
		return fmt.Errorf("%w: el archivo está vacío", domain.ErrInvalidInput)
	}
	if int64(len(in.Content)) > uc.maxFileBytes {
		return fmt.Errorf("%w: archivo demasiado grande (%d bytes, máximo %d)", domain.ErrInvalidInput, len(in.Content), uc.maxFileBytes)
	}
	return nil
}

// Extract procesa un archivo y devuelve el registro estructurado con su
// metadata de procesamiento, o un error tipado.
func (uc *UseCase) Extract(ctx context.Context, in Input) (*entity.Factura, error) {
	if err := uc.ValidateInput(in); err != nil {
		return nil, err
	}

	var raw string
	var err error
	if in.MimeType == "application/pdf" {
		raw, err = uc.extractor.ExtractFromPDF(ctx, in.Content, in.FileName)
	} else {
		raw, err = uc.extractor.ExtractFromImage(ctx, in.Content, in.MimeType)
	}
	if err != nil {
		return nil, err
	}

	candidate, err := ExtractJSONObject(raw)
	if err != nil {
		// El texto crudo se registra siempre: es el único insumo para
		// ajustar el prompt cuando el formato del modelo se desvía.
		uc.log.Warn().
			Str("file", in.FileName).
			Str("raw_response", raw).
			Err(err).
			Msg("respuesta del modelo sin JSON parseable")
		return nil, err
	}

	var factura entity.Factura
	if err := json.Unmarshal(candidate, &factura); err != nil {
		// El candidato es un objeto JSON válido pero con tipos incompatibles
		// con el esquema de factura (p.ej. "total" como string).
		uc.log.Warn().
			Str("file", in.FileName).
			Str("candidate", string(candidate)).
			Err(err).
			Msg("JSON del modelo incompatible con el esquema de factura")
		return nil, &domain.ParseError{
			Kind:      domain.ErrMalformedJSON,
			RawText:   raw,
			Candidate: string(candidate),
			Err:       err,
		}
	}

	factura.Metadata = &entity.Metadata{
		FileName:    in.FileName,
		FileSize:    int64(len(in.Content)),
		MimeType:    in.MimeType,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		Model:       uc.model,
	}
	return &factura, nil
}

package facturas

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturas-api/internal/application/ports"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// UseCase operaciones de consulta y mantenimiento sobre facturas ya
// persistidas.
type UseCase struct {
	facturas repository.FacturaRepository
	storage  ports.ObjectStorage
	log      *logger.Logger
}

func NewUseCase(facturas repository.FacturaRepository, storage ports.ObjectStorage, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{facturas: facturas, storage: storage, log: log}
}

// List devuelve una página de facturas, opcionalmente filtrada por número.
func (uc *UseCase) List(ctx context.Context, filter repository.FacturaFilter) (*repository.FacturaPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	page, err := uc.facturas.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listar facturas: %w", err)
	}
	return page, nil
}

// GetByID recupera una factura por su identificador.
func (uc *UseCase) GetByID(ctx context.Context, id string) (*entity.Factura, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id requerido", domain.ErrInvalidInput)
	}
	return uc.facturas.FindByID(ctx, id)
}

// camposEditables campos de nivel superior que Update acepta; todo lo demás
// se descarta en silencio (la metadata de procesamiento nunca se edita por
// esta vía).
var camposEditables = map[string]bool{
	"numeroFactura":    true,
	"fecha":            true,
	"fechaVencimiento": true,
	"proveedor":        true,
	"cliente":          true,
	"items":            true,
	"subtotal":         true,
	"iva":              true,
	"total":            true,
	"moneda":           true,
	"formaPago":        true,
	"metodoPago":       true,
	"usoCFDI":          true,
	"observaciones":    true,
}

// Update aplica un parche parcial sobre los campos editables de una factura.
func (uc *UseCase) Update(ctx context.Context, id string, patch map[string]any) (*entity.Factura, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id requerido", domain.ErrInvalidInput)
	}
	filtered := make(map[string]any, len(patch))
	for k, v := range patch {
		if camposEditables[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: sin campos editables en el parche", domain.ErrInvalidInput)
	}
	if err := uc.facturas.Update(ctx, id, filtered); err != nil {
		return nil, err
	}
	uc.log.Info().Str("factura_id", id).Int("campos", len(filtered)).Msg("factura actualizada")
	return uc.facturas.FindByID(ctx, id)
}

// Delete elimina la factura del almacén de documentos. El archivo archivado
// se conserva: el objeto es el registro de auditoría.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id requerido", domain.ErrInvalidInput)
	}
	if err := uc.facturas.Delete(ctx, id); err != nil {
		return err
	}
	uc.log.Info().Str("factura_id", id).Msg("factura eliminada")
	return nil
}

// PresignedURL genera un enlace temporal de descarga para el archivo
// archivado de una factura.
func (uc *UseCase) PresignedURL(ctx context.Context, id string, ttlSeconds int) (string, error) {
	f, err := uc.facturas.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if f.Metadata == nil || f.Metadata.S3Key == "" {
		return "", fmt.Errorf("%w: la factura no tiene archivo archivado", domain.ErrNotFound)
	}
	if uc.storage == nil {
		return "", fmt.Errorf("%w: almacenamiento de objetos no configurado", domain.ErrStorage)
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	url, err := uc.storage.PresignedGet(ctx, f.Metadata.S3Key, ttlSeconds)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return url, nil
}

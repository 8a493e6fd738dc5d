package repository

import (
	"context"

	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// FacturaFilter criterios de búsqueda para listados.
type FacturaFilter struct {
	Numero string // búsqueda parcial por numeroFactura (case-insensitive)
	Limit  int
	Skip   int
}

// FacturaPage resultado paginado de un listado.
type FacturaPage struct {
	Data  []*entity.Factura
	Total int64
}

// FacturaStats agregados para el dashboard de administración.
type FacturaStats struct {
	TotalFacturas  int64              `json:"totalFacturas"`
	MontoTotal     float64            `json:"montoTotal"`
	PorMoneda      map[string]float64 `json:"porMoneda"` // monto acumulado por moneda
	PorMes         map[string]int64   `json:"porMes"`    // clave "YYYY-MM"
	UltimaValidada string             `json:"ultimaValidada,omitempty"` // timestamp ISO de la validación más reciente
}

// FacturaRepository define el puerto de persistencia sobre el almacén de documentos.
type FacturaRepository interface {
	// FindByNumero busca por clave de negocio exacta. Devuelve ErrNotFound si no existe.
	FindByNumero(ctx context.Context, numero string) (*entity.Factura, error)
	// Insert persiste una factura nueva y devuelve el ID generado.
	Insert(ctx context.Context, f *entity.Factura) (string, error)
	FindByID(ctx context.Context, id string) (*entity.Factura, error)
	// Update aplica un patch parcial ($set). Devuelve ErrNotFound si el ID no existe.
	Update(ctx context.Context, id string, patch map[string]any) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter FacturaFilter) (*FacturaPage, error)
	Stats(ctx context.Context) (*FacturaStats, error)
}

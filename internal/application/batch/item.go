package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// Estados del ciclo de vida de un elemento del lote.
// PENDIENTE → PROCESANDO → {PROCESADA | ERROR}; PROCESADA → validada (terminal).
// ERROR es recuperable: Retry devuelve el elemento a PENDIENTE.
const (
	EstadoPendiente  = "PENDIENTE"
	EstadoProcesando = "PROCESANDO"
	EstadoProcesada  = "PROCESADA"
	EstadoError      = "ERROR"
)

// Item un documento subido y su estado derivado. Los elementos se identifican
// por un ID opaco estable asignado al encolar, nunca por posición: una
// referencia en vuelo no se invalida si se elimina un elemento anterior.
type Item struct {
	ID       uuid.UUID
	FileName string
	MimeType string
	Content  []byte // propiedad exclusiva del Item; se libera al eliminarlo

	// previewHandle referencia transitoria al archivo para visualización.
	// Debe liberarse explícitamente al eliminar el elemento o vaciar la cola.
	previewHandle  string
	releasePreview func() error

	Estado      string
	ErrorMsg    string
	Data        *entity.Factura // nil hasta PROCESADA
	Validada    bool
	validando   bool   // validación en vuelo: a lo sumo una por elemento
	WasModified bool   // la edición del usuario reemplazó los datos extraídos
	FacturaID   string // ID del registro persistido tras validar
	AddedAt     time.Time
}

// PreviewHandle devuelve la referencia de previsualización (vacía si no hay).
func (it *Item) PreviewHandle() string { return it.previewHandle }

// Snapshot vista serializable de un elemento, sin el payload binario.
type Snapshot struct {
	ID            uuid.UUID       `json:"id"`
	FileName      string          `json:"fileName"`
	MimeType      string          `json:"mimeType"`
	FileSize      int64           `json:"fileSize"`
	PreviewHandle string          `json:"previewHandle,omitempty"`
	Estado        string          `json:"estado"`
	ErrorMsg      string          `json:"error,omitempty"`
	Data          *entity.Factura `json:"data,omitempty"`
	Validada      bool            `json:"validada"`
	WasModified   bool            `json:"wasModified"`
	FacturaID     string          `json:"facturaId,omitempty"`
	AddedAt       time.Time       `json:"addedAt"`
}

func (it *Item) snapshot() Snapshot {
	return Snapshot{
		ID:            it.ID,
		FileName:      it.FileName,
		MimeType:      it.MimeType,
		FileSize:      int64(len(it.Content)),
		PreviewHandle: it.previewHandle,
		Estado:        it.Estado,
		ErrorMsg:      it.ErrorMsg,
		Data:          it.Data,
		Validada:      it.Validada,
		WasModified:   it.WasModified,
		FacturaID:     it.FacturaID,
		AddedAt:       it.AddedAt,
	}
}

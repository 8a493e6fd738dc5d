package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/application/validation"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// Extractor contrato mínimo que la cola necesita del caso de uso de
// extracción. La interfaz local evita el acople con la implementación.
type Extractor interface {
	ValidateInput(in extraction.Input) error
	Extract(ctx context.Context, in extraction.Input) (*entity.Factura, error)
}

// Validator contrato mínimo hacia el cliente de validación/persistencia.
type Validator interface {
	Validate(ctx context.Context, f *entity.Factura, file validation.SourceFile, actor string, wasModified bool) (*validation.Result, error)
}

// FileError rechazo individual de un archivo al encolar.
type FileError struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// Summary resultado agregado de una pasada de procesamiento.
type Summary struct {
	Procesadas int `json:"procesadas"`
	Fallidas   int `json:"fallidas"`
	Omitidas   int `json:"omitidas"` // elementos que no estaban PENDIENTE
}

// Queue cola ordenada de elementos con cursor. Es el único dueño de sus
// invariantes: todas las mutaciones pasan por sus operaciones, bajo mutex,
// y el flag busy impide dos pasadas de procesamiento concurrentes (a lo
// sumo un elemento PROCESANDO en cualquier instante).
type Queue struct {
	mu     sync.Mutex
	items  []*Item
	cursor int // -1 = cola vacía
	busy   bool

	// Overlay de edición: copia profunda de los datos de UN elemento.
	// A lo sumo uno activo en toda la cola.
	overlay   *entity.Factura
	overlayID uuid.UUID

	extractor Extractor
	validator Validator
	previews  PreviewStore
	log       *logger.Logger
}

// NewQueue construye una cola vacía. previews puede ser nil (sin previsualización).
func NewQueue(extractor Extractor, validator Validator, previews PreviewStore, log *logger.Logger) *Queue {
	if previews == nil {
		previews = nopPreviewStore{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Queue{
		cursor:    -1,
		extractor: extractor,
		validator: validator,
		previews:  previews,
		log:       log,
	}
}

// Enqueue valida cada archivo de forma independiente y añade los válidos
// como elementos PENDIENTE en el orden de entrada. Los inválidos se
// reportan por archivo SIN bloquear a los válidos: el éxito parcial es el
// caso normal, no excepcional.
func (q *Queue) Enqueue(files []extraction.Input) ([]Snapshot, []FileError) {
	var added []Snapshot
	var rejected []FileError

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, f := range files {
		if err := q.extractor.ValidateInput(f); err != nil {
			rejected = append(rejected, FileError{FileName: f.FileName, Reason: err.Error()})
			continue
		}
		handle, release, err := q.previews.Create(f.Content, f.FileName)
		if err != nil {
			// La previsualización no es esencial; el elemento entra sin ella.
			q.log.Warn().Str("file", f.FileName).Err(err).Msg("previsualización no disponible")
			handle, release = "", nil
		}
		it := &Item{
			ID:             uuid.New(),
			FileName:       f.FileName,
			MimeType:       f.MimeType,
			Content:        f.Content,
			previewHandle:  handle,
			releasePreview: release,
			Estado:         EstadoPendiente,
			AddedAt:        time.Now(),
		}
		q.items = append(q.items, it)
		added = append(added, it.snapshot())
	}
	if q.cursor == -1 && len(q.items) > 0 {
		q.cursor = 0
	}
	return added, rejected
}

// ProcessAll recorre los elementos en orden de cola, saltando los que no
// están PENDIENTE, y extrae uno a la vez: el elemento N+1 no arranca hasta
// que el N alcanza su transición terminal. No hay reintentos automáticos y
// el fallo de un elemento nunca aborta la pasada. Una segunda invocación
// mientras hay una en curso devuelve ErrBatchBusy.
//
// La cancelación del contexto detiene la pasada entre elementos; el
// elemento en vuelo cuya llamada externa fue cancelada queda en ERROR y
// puede reintentarse.
func (q *Queue) ProcessAll(ctx context.Context) (Summary, error) {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return Summary{}, domain.ErrBatchBusy
	}
	q.busy = true
	var pending []uuid.UUID
	for _, it := range q.items {
		if it.Estado == EstadoPendiente {
			pending = append(pending, it.ID)
		}
	}
	total := len(q.items)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()
	}()

	var sum Summary
	sum.Omitidas = total - len(pending)

	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		q.mu.Lock()
		it := q.find(id)
		if it == nil || it.Estado != EstadoPendiente {
			// eliminado o reencolado por el usuario durante la pasada
			q.mu.Unlock()
			continue
		}
		it.Estado = EstadoProcesando
		in := extraction.Input{Content: it.Content, FileName: it.FileName, MimeType: it.MimeType}
		q.mu.Unlock()

		data, err := q.extractor.Extract(ctx, in)

		q.mu.Lock()
		it = q.find(id)
		if it == nil {
			// eliminado mientras se procesaba; el resultado se descarta
			q.mu.Unlock()
			continue
		}
		if err != nil {
			it.Estado = EstadoError
			it.ErrorMsg = err.Error()
			sum.Fallidas++
			q.log.Warn().Str("file", it.FileName).Err(err).Msg("extracción fallida")
		} else {
			it.Estado = EstadoProcesada
			it.Data = data
			it.ErrorMsg = ""
			sum.Procesadas++
		}
		q.mu.Unlock()
	}

	q.log.Info().
		Int("procesadas", sum.Procesadas).
		Int("fallidas", sum.Fallidas).
		Int("omitidas", sum.Omitidas).
		Msg("pasada de procesamiento completada")
	return sum, nil
}

// Retry limpia el error de un elemento en ERROR y lo devuelve a PENDIENTE
// para una futura pasada. Cualquier otro estado es inválido.
func (q *Queue) Retry(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it := q.find(id)
	if it == nil {
		return domain.ErrItemNotFound
	}
	if it.Estado != EstadoError {
		return domain.ErrInvalidItemState
	}
	it.Estado = EstadoPendiente
	it.ErrorMsg = ""
	return nil
}

// Remove libera la previsualización del elemento y lo quita de la secuencia.
// Si la posición eliminada precede al cursor, el cursor se decrementa para
// seguir apuntando al mismo elemento lógico; si la cola queda vacía, el
// cursor vuelve al centinela de vacío.
func (q *Queue) Remove(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i, it := range q.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.ErrItemNotFound
	}

	q.releaseItem(q.items[idx])
	if q.overlayID == id {
		q.overlay = nil
		q.overlayID = uuid.Nil
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)

	switch {
	case len(q.items) == 0:
		q.cursor = -1
	case idx < q.cursor:
		q.cursor--
	case q.cursor >= len(q.items):
		q.cursor = len(q.items) - 1
	}
	return nil
}

// Clear vacía la cola liberando todas las previsualizaciones.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		q.releaseItem(it)
	}
	q.items = nil
	q.cursor = -1
	q.overlay = nil
	q.overlayID = uuid.Nil
}

// releaseItem libera el recurso de previsualización (best-effort: el fallo se
// registra y no se propaga).
func (q *Queue) releaseItem(it *Item) {
	if it.releasePreview == nil {
		return
	}
	if err := it.releasePreview(); err != nil {
		q.log.Warn().Str("file", it.FileName).Err(err).Msg("liberar previsualización")
	}
	it.releasePreview = nil
	it.previewHandle = ""
}

// BeginEdit crea el overlay de edición: una copia profunda de los datos del
// elemento. Solo un overlay activo a la vez en toda la cola, y solo sobre
// elementos PROCESADA no validados.
func (q *Queue) BeginEdit(id uuid.UUID) (*entity.Factura, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overlay != nil {
		return nil, domain.ErrOverlayActive
	}
	it := q.find(id)
	if it == nil {
		return nil, domain.ErrItemNotFound
	}
	if it.Estado != EstadoProcesada || it.Validada || it.Data == nil {
		return nil, domain.ErrInvalidItemState
	}
	q.overlay = it.Data.Clone()
	q.overlayID = id
	return q.overlay.Clone(), nil
}

// SaveEdit confirma la edición: los datos editados reemplazan a los
// extraídos y el overlay se descarta. El elemento queda marcado como
// modificado por el usuario.
func (q *Queue) SaveEdit(id uuid.UUID, edited *entity.Factura) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overlay == nil || q.overlayID != id {
		return domain.ErrNoOverlay
	}
	it := q.find(id)
	if it == nil {
		q.overlay = nil
		q.overlayID = uuid.Nil
		return domain.ErrItemNotFound
	}
	if edited == nil {
		edited = q.overlay
	}
	// La metadata de procesamiento pertenece al elemento, no a la edición.
	meta := it.Data.Metadata
	it.Data = edited.Clone()
	it.Data.Metadata = meta
	it.WasModified = true
	q.overlay = nil
	q.overlayID = uuid.Nil
	return nil
}

// CancelEdit descarta el overlay sin efecto sobre el elemento.
func (q *Queue) CancelEdit() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overlay == nil {
		return domain.ErrNoOverlay
	}
	q.overlay = nil
	q.overlayID = uuid.Nil
	return nil
}

// Validate delega en el cliente de validación/persistencia con los datos
// actuales del elemento (los editados, si hubo edición confirmada) y su
// archivo original. Solo es legal sobre PROCESADA no validada. Si el
// colaborador detecta un duplicado, el elemento permanece PROCESADA y el
// error se devuelve sin alterar la posición en la cola.
//
// El marcador validando garantiza a lo sumo una validación en vuelo por
// elemento: el mutex se libera durante la llamada al colaborador, y sin el
// marcador dos peticiones concurrentes pasarían ambas la guarda de Validada
// y persistirían el registro dos veces.
func (q *Queue) Validate(ctx context.Context, id uuid.UUID, actor string) (*validation.Result, error) {
	q.mu.Lock()
	it := q.find(id)
	if it == nil {
		q.mu.Unlock()
		return nil, domain.ErrItemNotFound
	}
	if it.Estado != EstadoProcesada || it.Data == nil {
		q.mu.Unlock()
		return nil, domain.ErrInvalidItemState
	}
	if it.Validada || it.validando {
		q.mu.Unlock()
		return nil, domain.ErrConflict
	}
	it.validando = true
	data := it.Data.Clone()
	file := validation.SourceFile{Content: it.Content, FileName: it.FileName, MimeType: it.MimeType}
	wasModified := it.WasModified
	q.mu.Unlock()

	// El elemento puede eliminarse mientras el colaborador trabaja: el
	// marcador se limpia re-buscando por ID, nunca sobre el puntero retenido.
	defer func() {
		q.mu.Lock()
		if it := q.find(id); it != nil {
			it.validando = false
		}
		q.mu.Unlock()
	}()

	res, err := q.validator.Validate(ctx, data, file, actor, wasModified)
	if err != nil {
		var dup *domain.DuplicateError
		if errors.As(err, &dup) {
			q.log.Warn().
				Str("numero_factura", dup.NumeroFactura).
				Str("existing_id", dup.ExistingID).
				Msg("validación rechazada por duplicado")
		}
		return nil, err
	}

	q.mu.Lock()
	if it = q.find(id); it != nil {
		it.Validada = true
		it.FacturaID = res.ID
	}
	q.mu.Unlock()
	return res, nil
}

// ── Navegación ────────────────────────────────────────────────────────────────

// Current devuelve el elemento bajo el cursor (ok=false si la cola está vacía).
func (q *Queue) Current() (Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cursor < 0 || q.cursor >= len(q.items) {
		return Snapshot{}, false
	}
	return q.items[q.cursor].snapshot(), true
}

// Select mueve el cursor al elemento indicado.
func (q *Queue) Select(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.cursor = i
			return nil
		}
	}
	return domain.ErrItemNotFound
}

// Next avanza el cursor (acotado al último elemento).
func (q *Queue) Next() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cursor >= 0 && q.cursor < len(q.items)-1 {
		q.cursor++
	}
}

// Prev retrocede el cursor (acotado al primero).
func (q *Queue) Prev() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cursor > 0 {
		q.cursor--
	}
}

// Items devuelve una vista de todos los elementos en orden de cola.
func (q *Queue) Items() []Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Snapshot, len(q.items))
	for i, it := range q.items {
		out[i] = it.snapshot()
	}
	return out
}

// Len número de elementos en la cola.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cursor posición actual (−1 si la cola está vacía).
func (q *Queue) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

// Busy indica si hay una pasada de procesamiento en curso.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

func (q *Queue) find(id uuid.UUID) *Item {
	for _, it := range q.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

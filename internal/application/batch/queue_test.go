package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/application/validation"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Stubs de colaboradores
// ──────────────────────────────────────────────────────────────────────────────

type stubExtractor struct {
	mu       sync.Mutex
	extracts []string // nombres de archivo en orden de extracción

	extractFn func(ctx context.Context, in extraction.Input) (*entity.Factura, error)
}

func (s *stubExtractor) ValidateInput(in extraction.Input) error {
	if len(in.Content) == 0 {
		return fmt.Errorf("%w: el archivo está vacío", domain.ErrInvalidInput)
	}
	if _, ok := extraction.MimeTypesPermitidos[in.MimeType]; !ok {
		return fmt.Errorf("%w: tipo de archivo no permitido: %s", domain.ErrInvalidInput, in.MimeType)
	}
	return nil
}

func (s *stubExtractor) Extract(ctx context.Context, in extraction.Input) (*entity.Factura, error) {
	s.mu.Lock()
	s.extracts = append(s.extracts, in.FileName)
	s.mu.Unlock()
	if s.extractFn != nil {
		return s.extractFn(ctx, in)
	}
	return &entity.Factura{
		NumeroFactura: "N-" + in.FileName,
		Metadata:      &entity.Metadata{FileName: in.FileName},
	}, nil
}

func (s *stubExtractor) order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.extracts...)
}

type stubValidator struct {
	mu    sync.Mutex
	err   error
	gate  chan struct{} // si no es nil, la llamada se bloquea hasta cerrarlo
	calls []*entity.Factura
}

func (s *stubValidator) Validate(_ context.Context, f *entity.Factura, _ validation.SourceFile, _ string, _ bool) (*validation.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, f)
	s.mu.Unlock()
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return &validation.Result{ID: "doc-1", S3Key: "invoices/1_x.pdf"}, nil
}

func (s *stubValidator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// trackingPreviewStore cuenta creaciones y liberaciones de previsualización.
type trackingPreviewStore struct {
	mu       sync.Mutex
	created  int
	released int
}

func (s *trackingPreviewStore) Create(_ []byte, fileName string) (string, func() error, error) {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()
	return "preview:" + fileName, func() error {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
		return nil
	}, nil
}

func (s *trackingPreviewStore) counts() (created, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created, s.released
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func pdf(name string) extraction.Input {
	return extraction.Input{Content: []byte("%PDF-1.4"), FileName: name, MimeType: "application/pdf"}
}

func newTestQueue(t *testing.T) (*Queue, *stubExtractor, *stubValidator) {
	t.Helper()
	ex := &stubExtractor{}
	val := &stubValidator{}
	return NewQueue(ex, val, nil, nil), ex, val
}

func enqueueN(t *testing.T, q *Queue, names ...string) []Snapshot {
	t.Helper()
	inputs := make([]extraction.Input, len(names))
	for i, n := range names {
		inputs[i] = pdf(n)
	}
	added, rejected := q.Enqueue(inputs)
	require.Empty(t, rejected)
	require.Len(t, added, len(names))
	return added
}

func processAll(t *testing.T, q *Queue) Summary {
	t.Helper()
	sum, err := q.ProcessAll(context.Background())
	require.NoError(t, err)
	return sum
}

// ──────────────────────────────────────────────────────────────────────────────
// Enqueue — éxito parcial
// ──────────────────────────────────────────────────────────────────────────────

func TestEnqueue_ExitoParcial(t *testing.T) {
	q, _, _ := newTestQueue(t)

	added, rejected := q.Enqueue([]extraction.Input{
		pdf("a.pdf"),
		{Content: []byte("x"), FileName: "datos.csv", MimeType: "text/csv"},
		pdf("b.pdf"),
		{Content: nil, FileName: "vacio.pdf", MimeType: "application/pdf"},
	})

	require.Len(t, added, 2, "los archivos válidos entran aunque haya inválidos en el mismo lote")
	assert.Equal(t, "a.pdf", added[0].FileName)
	assert.Equal(t, "b.pdf", added[1].FileName)
	assert.Equal(t, EstadoPendiente, added[0].Estado)

	require.Len(t, rejected, 2)
	assert.Equal(t, "datos.csv", rejected[0].FileName)
	assert.NotEmpty(t, rejected[0].Reason)
	assert.Equal(t, "vacio.pdf", rejected[1].FileName)

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 0, q.Cursor(), "el cursor apunta al primer elemento tras encolar en cola vacía")
}

func TestEnqueue_AsignaIDsEstablesYUnicos(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf", "b.pdf", "c.pdf")

	vistos := map[uuid.UUID]bool{}
	for _, s := range added {
		assert.NotEqual(t, uuid.Nil, s.ID)
		assert.False(t, vistos[s.ID], "cada elemento recibe un id distinto")
		vistos[s.ID] = true
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// ProcessAll — pasada secuencial
// ──────────────────────────────────────────────────────────────────────────────

func TestProcessAll_ProcesaEnOrdenDeCola(t *testing.T) {
	q, ex, _ := newTestQueue(t)
	enqueueN(t, q, "1.pdf", "2.pdf", "3.pdf")

	sum := processAll(t, q)

	assert.Equal(t, Summary{Procesadas: 3}, sum)
	assert.Equal(t, []string{"1.pdf", "2.pdf", "3.pdf"}, ex.order())
	for _, s := range q.Items() {
		assert.Equal(t, EstadoProcesada, s.Estado)
		require.NotNil(t, s.Data)
	}
}

func TestProcessAll_UnFalloNoAbortaLaPasada(t *testing.T) {
	q, ex, _ := newTestQueue(t)
	ex.extractFn = func(_ context.Context, in extraction.Input) (*entity.Factura, error) {
		if in.FileName == "2.pdf" {
			return nil, fmt.Errorf("%w: el modelo no respondió", domain.ErrUpstream)
		}
		return &entity.Factura{NumeroFactura: in.FileName}, nil
	}
	enqueueN(t, q, "1.pdf", "2.pdf", "3.pdf")

	sum := processAll(t, q)

	assert.Equal(t, Summary{Procesadas: 2, Fallidas: 1}, sum)
	items := q.Items()
	assert.Equal(t, EstadoProcesada, items[0].Estado)
	assert.Equal(t, EstadoError, items[1].Estado)
	assert.NotEmpty(t, items[1].ErrorMsg)
	assert.Equal(t, EstadoProcesada, items[2].Estado)
}

func TestProcessAll_SaltaLosNoPendientes(t *testing.T) {
	q, ex, _ := newTestQueue(t)
	enqueueN(t, q, "1.pdf", "2.pdf")
	processAll(t, q)

	enqueueN(t, q, "3.pdf")
	sum := processAll(t, q)

	assert.Equal(t, Summary{Procesadas: 1, Omitidas: 2}, sum,
		"una segunda pasada solo toca los PENDIENTE nuevos")
	assert.Equal(t, []string{"1.pdf", "2.pdf", "3.pdf"}, ex.order())
}

func TestProcessAll_RechazaPasadaConcurrente(t *testing.T) {
	q, ex, _ := newTestQueue(t)
	gate := make(chan struct{})
	ex.extractFn = func(_ context.Context, in extraction.Input) (*entity.Factura, error) {
		<-gate
		return &entity.Factura{NumeroFactura: in.FileName}, nil
	}
	enqueueN(t, q, "1.pdf", "2.pdf")

	done := make(chan Summary, 1)
	go func() {
		sum, _ := q.ProcessAll(context.Background())
		done <- sum
	}()

	require.Eventually(t, q.Busy, time.Second, 5*time.Millisecond)

	_, err := q.ProcessAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrBatchBusy)

	// Con la pasada en vuelo, a lo sumo un elemento está PROCESANDO.
	procesando := 0
	for _, s := range q.Items() {
		if s.Estado == EstadoProcesando {
			procesando++
		}
	}
	assert.LessOrEqual(t, procesando, 1)

	close(gate)
	sum := <-done
	assert.Equal(t, Summary{Procesadas: 2}, sum)
	assert.False(t, q.Busy())
}

func TestProcessAll_CancelacionDetieneEntreElementos(t *testing.T) {
	q, ex, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	ex.extractFn = func(ctx context.Context, in extraction.Input) (*entity.Factura, error) {
		// El primer elemento cancela la pasada y su llamada externa falla.
		cancel()
		return nil, ctx.Err()
	}
	enqueueN(t, q, "1.pdf", "2.pdf", "3.pdf")

	sum, err := q.ProcessAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Summary{Fallidas: 1}, sum)

	items := q.Items()
	assert.Equal(t, EstadoError, items[0].Estado, "el elemento en vuelo queda en ERROR y es reintentable")
	assert.Equal(t, EstadoPendiente, items[1].Estado, "los no arrancados permanecen PENDIENTE")
	assert.Equal(t, EstadoPendiente, items[2].Estado)
	assert.False(t, q.Busy(), "la cancelación libera el flag de procesamiento")
}

// ──────────────────────────────────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────────────────────────────────

func TestRetry_SoloDesdeError(t *testing.T) {
	q, ex, _ := newTestQueue(t)
	ex.extractFn = func(_ context.Context, _ extraction.Input) (*entity.Factura, error) {
		return nil, errors.New("fallo transitorio")
	}
	added := enqueueN(t, q, "1.pdf")
	processAll(t, q)

	require.NoError(t, q.Retry(added[0].ID))
	items := q.Items()
	assert.Equal(t, EstadoPendiente, items[0].Estado)
	assert.Empty(t, items[0].ErrorMsg, "el reintento limpia el error anterior")

	// Una vez PENDIENTE, reintentar de nuevo es inválido.
	assert.ErrorIs(t, q.Retry(added[0].ID), domain.ErrInvalidItemState)
}

func TestRetry_ElementoInexistente(t *testing.T) {
	q, _, _ := newTestQueue(t)
	assert.ErrorIs(t, q.Retry(uuid.New()), domain.ErrItemNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Remove — invariante del cursor y liberación de previsualización
// ──────────────────────────────────────────────────────────────────────────────

func TestRemove_AjustaCursorERetieneElementoLogico(t *testing.T) {
	previews := &trackingPreviewStore{}
	ex := &stubExtractor{}
	q := NewQueue(ex, &stubValidator{}, previews, nil)
	added := enqueueN(t, q, "a.pdf", "b.pdf", "c.pdf")

	require.NoError(t, q.Select(added[2].ID))
	require.Equal(t, 2, q.Cursor())

	// Eliminar un elemento anterior al cursor: el cursor sigue apuntando a c.pdf.
	require.NoError(t, q.Remove(added[0].ID))
	assert.Equal(t, 1, q.Cursor())
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "c.pdf", cur.FileName)

	_, released := previews.counts()
	assert.Equal(t, 1, released, "eliminar libera la previsualización del elemento")
}

func TestRemove_ElementoBajoElCursor(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf", "b.pdf")
	require.NoError(t, q.Select(added[1].ID))

	// Se elimina el último estando el cursor sobre él: el cursor se acota.
	require.NoError(t, q.Remove(added[1].ID))
	assert.Equal(t, 0, q.Cursor())
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a.pdf", cur.FileName)
}

func TestRemove_ColaVaciaDejaCursorEnCentinela(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")

	require.NoError(t, q.Remove(added[0].ID))
	assert.Equal(t, -1, q.Cursor())
	_, ok := q.Current()
	assert.False(t, ok)
}

func TestClear_LiberaTodasLasPrevisualizaciones(t *testing.T) {
	previews := &trackingPreviewStore{}
	q := NewQueue(&stubExtractor{}, &stubValidator{}, previews, nil)
	enqueueN(t, q, "a.pdf", "b.pdf", "c.pdf")

	q.Clear()

	created, released := previews.counts()
	assert.Equal(t, 3, created)
	assert.Equal(t, created, released)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, -1, q.Cursor())
}

// ──────────────────────────────────────────────────────────────────────────────
// Navegación
// ──────────────────────────────────────────────────────────────────────────────

func TestNavegacion_AcotadaEnLosExtremos(t *testing.T) {
	q, _, _ := newTestQueue(t)
	enqueueN(t, q, "a.pdf", "b.pdf")

	q.Prev() // ya en el primero
	assert.Equal(t, 0, q.Cursor())

	q.Next()
	assert.Equal(t, 1, q.Cursor())

	q.Next() // ya en el último
	assert.Equal(t, 1, q.Cursor())
}

// ──────────────────────────────────────────────────────────────────────────────
// Validate — delegación y duplicados
// ──────────────────────────────────────────────────────────────────────────────

func TestValidate_MarcaElElementoYGuardaLaReferencia(t *testing.T) {
	q, _, val := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	res, err := q.Validate(context.Background(), added[0].ID, "revisor@example.com")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", res.ID)
	require.Len(t, val.calls, 1)

	items := q.Items()
	assert.True(t, items[0].Validada)
	assert.Equal(t, "doc-1", items[0].FacturaID)
	assert.Equal(t, EstadoProcesada, items[0].Estado, "validada es un refinamiento de PROCESADA, no otro estado")
}

func TestValidate_DuplicadoDejaElElementoProcesada(t *testing.T) {
	q, _, val := newTestQueue(t)
	val.err = &domain.DuplicateError{NumeroFactura: "F-1", ExistingID: "doc-9"}
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	_, err := q.Validate(context.Background(), added[0].ID, "revisor@example.com")

	var dup *domain.DuplicateError
	require.True(t, errors.As(err, &dup))
	items := q.Items()
	assert.Equal(t, EstadoProcesada, items[0].Estado,
		"un duplicado rechazado no corrompe el estado del elemento")
	assert.False(t, items[0].Validada)
	assert.Empty(t, items[0].FacturaID)
}

func TestValidate_EstadosInvalidos(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")

	// PENDIENTE no es validable.
	_, err := q.Validate(context.Background(), added[0].ID, "a")
	assert.ErrorIs(t, err, domain.ErrInvalidItemState)

	processAll(t, q)
	_, err = q.Validate(context.Background(), added[0].ID, "a")
	require.NoError(t, err)

	// Revalidar un elemento ya validado es conflicto.
	_, err = q.Validate(context.Background(), added[0].ID, "a")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// Dos validaciones concurrentes del mismo elemento no pueden persistir el
// registro dos veces: la segunda se rechaza mientras la primera sigue en
// el colaborador, igual que el flag busy protege ProcessAll.
func TestValidate_RechazaValidacionConcurrenteDelMismoElemento(t *testing.T) {
	q, _, val := newTestQueue(t)
	val.gate = make(chan struct{})
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	done := make(chan error, 1)
	go func() {
		_, err := q.Validate(context.Background(), added[0].ID, "revisor@example.com")
		done <- err
	}()

	// La primera validación está dentro del colaborador (bloqueada en el gate).
	require.Eventually(t, func() bool { return val.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	_, err := q.Validate(context.Background(), added[0].ID, "revisor@example.com")
	assert.ErrorIs(t, err, domain.ErrConflict,
		"la segunda petición se rechaza sin llegar al colaborador")

	close(val.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 1, val.callCount(), "el colaborador de persistencia se invoca una sola vez")
	items := q.Items()
	assert.True(t, items[0].Validada)

	// Tras terminar la primera, una revalidación sigue siendo conflicto
	// (Validada, no el marcador en vuelo).
	_, err = q.Validate(context.Background(), added[0].ID, "revisor@example.com")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ──────────────────────────────────────────────────────────────────────────────
// Overlay de edición
// ──────────────────────────────────────────────────────────────────────────────

func TestEdicion_ElBorradorNoTocaElOriginalHastaGuardar(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	draft, err := q.BeginEdit(added[0].ID)
	require.NoError(t, err)

	draft.NumeroFactura = "EDITADA-1"
	items := q.Items()
	assert.Equal(t, "N-a.pdf", items[0].Data.NumeroFactura,
		"mutar el borrador no afecta los datos extraídos")
	assert.False(t, items[0].WasModified)

	require.NoError(t, q.SaveEdit(added[0].ID, draft))
	items = q.Items()
	assert.Equal(t, "EDITADA-1", items[0].Data.NumeroFactura)
	assert.True(t, items[0].WasModified)
}

func TestEdicion_GuardarConservaLaMetadataDeProcesamiento(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	draft, err := q.BeginEdit(added[0].ID)
	require.NoError(t, err)
	draft.Metadata = nil // la edición no puede pisar la metadata

	require.NoError(t, q.SaveEdit(added[0].ID, draft))
	items := q.Items()
	require.NotNil(t, items[0].Data.Metadata)
	assert.Equal(t, "a.pdf", items[0].Data.Metadata.FileName)
}

func TestEdicion_SoloUnOverlayActivo(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf", "b.pdf")
	processAll(t, q)

	_, err := q.BeginEdit(added[0].ID)
	require.NoError(t, err)

	_, err = q.BeginEdit(added[1].ID)
	assert.ErrorIs(t, err, domain.ErrOverlayActive,
		"no puede abrirse una segunda edición con otra en curso")

	require.NoError(t, q.CancelEdit())
	_, err = q.BeginEdit(added[1].ID)
	assert.NoError(t, err, "cancelar libera el overlay")
}

func TestEdicion_CancelarDescartaLosCambios(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	draft, err := q.BeginEdit(added[0].ID)
	require.NoError(t, err)
	draft.NumeroFactura = "DESCARTADA"

	require.NoError(t, q.CancelEdit())
	items := q.Items()
	assert.Equal(t, "N-a.pdf", items[0].Data.NumeroFactura)
	assert.False(t, items[0].WasModified)

	// Sin overlay, guardar o cancelar son inválidos.
	assert.ErrorIs(t, q.SaveEdit(added[0].ID, draft), domain.ErrNoOverlay)
	assert.ErrorIs(t, q.CancelEdit(), domain.ErrNoOverlay)
}

func TestEdicion_SoloSobreProcesadaNoValidada(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf", "b.pdf")

	_, err := q.BeginEdit(added[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidItemState, "PENDIENTE no es editable")

	processAll(t, q)
	_, err = q.Validate(context.Background(), added[0].ID, "a")
	require.NoError(t, err)

	_, err = q.BeginEdit(added[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidItemState, "un elemento validado es de solo lectura")
}

// La validación usa los datos editados, no los extraídos.
func TestValidate_UsaLosDatosEditados(t *testing.T) {
	q, _, val := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf")
	processAll(t, q)

	draft, err := q.BeginEdit(added[0].ID)
	require.NoError(t, err)
	draft.NumeroFactura = "CORREGIDA-7"
	require.NoError(t, q.SaveEdit(added[0].ID, draft))

	_, err = q.Validate(context.Background(), added[0].ID, "a")
	require.NoError(t, err)

	require.Len(t, val.calls, 1)
	assert.Equal(t, "CORREGIDA-7", val.calls[0].NumeroFactura)
}

// Eliminar el elemento en edición descarta también su overlay.
func TestRemove_DescartaElOverlayDelElemento(t *testing.T) {
	q, _, _ := newTestQueue(t)
	added := enqueueN(t, q, "a.pdf", "b.pdf")
	processAll(t, q)

	_, err := q.BeginEdit(added[0].ID)
	require.NoError(t, err)

	require.NoError(t, q.Remove(added[0].ID))
	_, err = q.BeginEdit(added[1].ID)
	assert.NoError(t, err, "el overlay del elemento eliminado no puede bloquear nuevas ediciones")
}

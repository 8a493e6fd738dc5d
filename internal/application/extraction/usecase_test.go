package extraction

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturas-api/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Mock del colaborador de comprensión de documentos
// ──────────────────────────────────────────────────────────────────────────────

type mockExtractor struct {
	pdfReply   string
	imageReply string
	err        error

	pdfCalls   int
	imageCalls int
}

func (m *mockExtractor) ExtractFromPDF(_ context.Context, _ []byte, _ string) (string, error) {
	m.pdfCalls++
	return m.pdfReply, m.err
}

func (m *mockExtractor) ExtractFromImage(_ context.Context, _ []byte, _ string) (string, error) {
	m.imageCalls++
	return m.imageReply, m.err
}

func newTestUseCase(m *mockExtractor) *UseCase {
	return NewUseCase(m, 1<<20, "gpt-4o", nil)
}

// ──────────────────────────────────────────────────────────────────────────────
// ValidateInput — restricciones previas a cualquier llamada externa
// ──────────────────────────────────────────────────────────────────────────────

func TestValidateInput_RechazaArchivoDemasiadoGrande(t *testing.T) {
	m := &mockExtractor{}
	uc := newTestUseCase(m)

	in := Input{
		Content:  bytes.Repeat([]byte{0x25}, 2<<20), // 2 MB, techo 1 MB
		FileName: "grande.pdf",
		MimeType: "application/pdf",
	}
	_, err := uc.Extract(context.Background(), in)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, m.pdfCalls, "un archivo sobre el techo nunca debe llegar al proveedor")
}

func TestValidateInput_RechazaMimeNoPermitido(t *testing.T) {
	uc := newTestUseCase(&mockExtractor{})
	err := uc.ValidateInput(Input{Content: []byte("x"), FileName: "doc.txt", MimeType: "text/plain"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateInput_RechazaContenidoVacio(t *testing.T) {
	uc := newTestUseCase(&mockExtractor{})
	err := uc.ValidateInput(Input{Content: nil, FileName: "doc.pdf", MimeType: "application/pdf"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateInput_RechazaNombreVacio(t *testing.T) {
	uc := newTestUseCase(&mockExtractor{})
	err := uc.ValidateInput(Input{Content: []byte("x"), FileName: "  ", MimeType: "application/pdf"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateInput_AceptaTiposPermitidos(t *testing.T) {
	uc := newTestUseCase(&mockExtractor{})
	for mime := range MimeTypesPermitidos {
		err := uc.ValidateInput(Input{Content: []byte("x"), FileName: "doc", MimeType: mime})
		assert.NoError(t, err, "el tipo %s debe aceptarse", mime)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Extract — enrutado por tipo y parseo
// ──────────────────────────────────────────────────────────────────────────────

func TestExtract_ImagenUsaVision(t *testing.T) {
	m := &mockExtractor{
		imageReply: "```json\n{\"numeroFactura\":\"F-100\",\"total\":118.0,\"subtotal\":100.0,\"iva\":18.0}\n```",
	}
	uc := newTestUseCase(m)

	in := Input{
		Content:  bytes.Repeat([]byte{0x89}, 50*1024),
		FileName: "ticket.png",
		MimeType: "image/png",
	}
	f, err := uc.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, m.imageCalls)
	assert.Zero(t, m.pdfCalls)
	assert.Equal(t, "F-100", f.NumeroFactura)
	require.NotNil(t, f.Total)
	assert.Equal(t, 118.0, *f.Total)
}

func TestExtract_PDFUsaAsistente(t *testing.T) {
	m := &mockExtractor{pdfReply: "{\"numeroFactura\":\"P-9\"}"}
	uc := newTestUseCase(m)

	in := Input{Content: []byte("%PDF-1.4"), FileName: "factura.pdf", MimeType: "application/pdf"}
	f, err := uc.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, m.pdfCalls)
	assert.Zero(t, m.imageCalls)
	assert.Equal(t, "P-9", f.NumeroFactura)
}

func TestExtract_AdjuntaMetadataDeProcesamiento(t *testing.T) {
	m := &mockExtractor{pdfReply: "{\"numeroFactura\":\"P-1\"}"}
	uc := newTestUseCase(m)

	content := []byte("%PDF-1.4 contenido")
	f, err := uc.Extract(context.Background(), Input{Content: content, FileName: "f.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)

	require.NotNil(t, f.Metadata)
	assert.Equal(t, "f.pdf", f.Metadata.FileName)
	assert.Equal(t, int64(len(content)), f.Metadata.FileSize)
	assert.Equal(t, "application/pdf", f.Metadata.MimeType)
	assert.Equal(t, "gpt-4o", f.Metadata.Model)
	assert.NotEmpty(t, f.Metadata.ProcessedAt)
}

func TestExtract_ErrorDelProveedorSePropaga(t *testing.T) {
	m := &mockExtractor{err: domain.ErrUpstream}
	uc := newTestUseCase(m)

	_, err := uc.Extract(context.Background(), Input{Content: []byte("%PDF"), FileName: "f.pdf", MimeType: "application/pdf"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestExtract_RespuestaSinJSON(t *testing.T) {
	m := &mockExtractor{imageReply: "No encuentro datos de factura en la imagen."}
	uc := newTestUseCase(m)

	_, err := uc.Extract(context.Background(), Input{Content: []byte{1}, FileName: "x.png", MimeType: "image/png"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoJSONFound)

	var parseErr *domain.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.RawText, "No encuentro")
}

// Un objeto JSON válido pero con tipos incompatibles (total como texto)
// debe reportarse como JSON malformado, conservando el candidato.
func TestExtract_TiposIncompatiblesConElEsquema(t *testing.T) {
	m := &mockExtractor{imageReply: "{\"numeroFactura\":\"F-2\",\"total\":\"ciento dieciocho\"}"}
	uc := newTestUseCase(m)

	_, err := uc.Extract(context.Background(), Input{Content: []byte{1}, FileName: "x.png", MimeType: "image/png"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedJSON)

	var parseErr *domain.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.NotEmpty(t, parseErr.Candidate)
}

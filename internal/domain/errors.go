package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")

	// Extracción: fallos del colaborador de comprensión de documentos.
	ErrUpstream           = errors.New("colaborador de extracción no disponible")
	ErrUpstreamIncomplete = errors.New("el colaborador no completó el procesamiento")
	ErrNoJSONFound        = errors.New("no se encontró JSON en la respuesta del modelo")
	ErrMalformedJSON      = errors.New("el JSON de la respuesta no se pudo parsear")

	// Validación/persistencia.
	ErrDuplicate   = errors.New("ya existe una factura con este número")
	ErrStorage     = errors.New("error al archivar el archivo en el almacén de objetos")
	ErrPersistence = errors.New("error al guardar la factura en el almacén de documentos")

	// Cola de lotes.
	ErrBatchBusy        = errors.New("el lote ya está siendo procesado")
	ErrItemNotFound     = errors.New("el elemento no existe en el lote")
	ErrInvalidItemState = errors.New("operación no válida para el estado actual del elemento")
	ErrOverlayActive    = errors.New("ya hay una edición activa en el lote")
	ErrNoOverlay        = errors.New("no hay una edición activa")
)

// ParseError transporta el texto crudo del modelo junto al error de parseo
// para diagnóstico del operador (ajuste de prompts offline).
type ParseError struct {
	Kind      error  // ErrNoJSONFound | ErrMalformedJSON
	RawText   string // respuesta completa del modelo
	Candidate string // candidato extraído (vacío si Kind == ErrNoJSONFound)
	Err       error  // error del parser subyacente, si lo hay
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *ParseError) Unwrap() error { return e.Kind }

// DuplicateError señala una colisión por clave de negocio (numeroFactura),
// transportando el ID del registro ya persistido.
type DuplicateError struct {
	NumeroFactura string
	ExistingID    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("ya existe una factura con el número %s (id %s)", e.NumeroFactura, e.ExistingID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/facturas-api/internal/application/ports"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// SourceFile archivo original que acompaña al registro validado.
type SourceFile struct {
	Content  []byte
	FileName string
	MimeType string
}

// Result referencia del registro persistido.
type Result struct {
	ID    string
	S3Key string
	S3URL string
}

// UseCase valida y persiste una factura: pre-chequeo de duplicados por clave
// de negocio, archivado del original en el almacén de objetos y alta en el
// almacén de documentos. Dos llamadas secuenciales, sin transacción
// distribuida: un fallo del almacén de documentos tras subir el archivo deja
// el objeto huérfano, que NUNCA se borra automáticamente (el costo de
// almacenamiento es secundario frente a la corrección del registro).
type UseCase struct {
	facturas repository.FacturaRepository
	storage  ports.ObjectStorage // nil = archivado deshabilitado
	log      *logger.Logger
}

// NewUseCase construye el caso de uso. storage puede ser nil si S3 no está configurado.
func NewUseCase(facturas repository.FacturaRepository, storage ports.ObjectStorage, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{facturas: facturas, storage: storage, log: log}
}

// Validate persiste el registro (posiblemente editado por el usuario) junto
// a su archivo original.
//
// Orden de operaciones (relevante para el contrato):
//  1. Validación de forma y consistencia numérica.
//  2. Pre-chequeo de duplicado por numeroFactura: si ya existe, se devuelve
//     DuplicateError SIN subir nada — evita archivos huérfanos por rechazos.
//     Si numeroFactura está vacío no hay protección de duplicados.
//  3. Subida al almacén de objetos; fallo → ErrStorage (nada persistido,
//     reintentable desde cero).
//  4. Alta en el almacén de documentos; fallo → ErrPersistence (objeto ya
//     subido queda huérfano, aceptado por diseño).
func (uc *UseCase) Validate(ctx context.Context, f *entity.Factura, file SourceFile, actor string, wasModified bool) (*Result, error) {
	if err := checkFactura(f); err != nil {
		return nil, err
	}
	if len(file.Content) == 0 || file.FileName == "" {
		return nil, fmt.Errorf("%w: archivo original requerido", domain.ErrInvalidInput)
	}

	if f.NumeroFactura != "" {
		existing, err := uc.facturas.FindByNumero(ctx, f.NumeroFactura)
		switch {
		case err == nil && existing != nil:
			return nil, &domain.DuplicateError{
				NumeroFactura: f.NumeroFactura,
				ExistingID:    existing.ID,
			}
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("%w: consultar duplicados: %v", domain.ErrPersistence, err)
		}
	}

	// checkFactura ya garantizó metadata con fileName: el registro nunca
	// llega aquí sin ella.
	record := f.Clone()

	if uc.storage != nil {
		obj, err := uc.storage.Put(ctx, file.Content, file.FileName, file.MimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		record.Metadata.S3Key = obj.Key
		record.Metadata.S3URL = obj.URL
		uc.log.Info().Str("s3_key", obj.Key).Msg("archivo original archivado")
	}

	now := time.Now().UTC()
	record.Metadata.ValidatedAt = now.Format(time.RFC3339)
	record.Metadata.ValidatedBy = actor
	record.Metadata.WasModified = wasModified
	record.CreatedAt = now
	record.UpdatedAt = now

	id, err := uc.facturas.Insert(ctx, record)
	if err != nil {
		// El objeto ya está archivado: se registra la clave para que un
		// operador pueda reconciliar, pero no se borra.
		uc.log.Error().
			Str("s3_key", record.Metadata.S3Key).
			Err(err).
			Msg("alta en el almacén de documentos falló tras archivar el original")
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	uc.log.Info().
		Str("id", id).
		Str("numero_factura", record.NumeroFactura).
		Bool("was_modified", wasModified).
		Msg("factura validada y guardada")

	return &Result{ID: id, S3Key: record.Metadata.S3Key, S3URL: record.Metadata.S3URL}, nil
}

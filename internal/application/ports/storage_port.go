package ports

import "context"

// StoredObject referencia al archivo archivado en el almacén de objetos.
type StoredObject struct {
	Key string // clave del objeto (p.ej. invoices/20240115_103000_factura.pdf)
	URL string // URL pública del objeto
}

// ObjectStorage define el puerto hacia el almacén de objetos (archivo original).
type ObjectStorage interface {
	// Put sube los bytes bajo una clave resistente a colisiones derivada
	// del nombre sugerido y devuelve la referencia del objeto.
	Put(ctx context.Context, content []byte, suggestedName, mimeType string) (*StoredObject, error)
	// PresignedGet genera una URL temporal de lectura para la clave dada.
	PresignedGet(ctx context.Context, key string, ttlSeconds int) (string, error)
}

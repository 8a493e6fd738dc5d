package ports

import "context"

// DocumentExtractor define el puerto de salida hacia el colaborador de
// comprensión de documentos. Cualquier adaptador (OpenAI, mock) debe
// implementar esta interfaz. Siguiendo el principio de inversión de
// dependencias (DIP), la aplicación solo conoce este contrato, no la
// implementación concreta.
//
// Ambos métodos devuelven la respuesta TEXTUAL cruda del modelo; el parseo
// del JSON embebido es responsabilidad del caso de uso de extracción.
type DocumentExtractor interface {
	// ExtractFromPDF sube el PDF al colaborador, crea una sesión efímera de
	// extracción, la ejecuta hasta completarse y devuelve la respuesta.
	// Los recursos remotos (archivo, asistente, hilo) se liberan SIEMPRE,
	// también en los caminos de error.
	ExtractFromPDF(ctx context.Context, content []byte, fileName string) (string, error)

	// ExtractFromImage envía la imagen codificada en base64 en una sola
	// llamada de visión. No crea recursos remotos.
	ExtractFromImage(ctx context.Context, content []byte, mimeType string) (string, error)
}

package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PreviewStore crea referencias transitorias y revocables a los archivos
// del lote para fines de visualización. La liberación es explícita: no se
// asume recolección implícita del recurso.
type PreviewStore interface {
	// Create materializa la previsualización y devuelve su handle junto a
	// la función de liberación.
	Create(content []byte, fileName string) (handle string, release func() error, err error)
}

// TempFilePreviewStore implementa PreviewStore sobre archivos temporales
// del sistema. El handle es la ruta del archivo; Release lo borra.
type TempFilePreviewStore struct {
	Dir string // vacío = directorio temporal del sistema
}

// Create escribe el contenido en un archivo temporal con la extensión original.
func (s *TempFilePreviewStore) Create(content []byte, fileName string) (string, func() error, error) {
	ext := filepath.Ext(fileName)
	name := fmt.Sprintf("preview-%s*%s", uuid.New().String(), ext)
	f, err := os.CreateTemp(s.Dir, name)
	if err != nil {
		return "", nil, fmt.Errorf("crear previsualización: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("escribir previsualización: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("cerrar previsualización: %w", err)
	}
	path := f.Name()
	release := func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return path, release, nil
}

// nopPreviewStore para colas que no necesitan previsualización (tests).
type nopPreviewStore struct{}

func (nopPreviewStore) Create(_ []byte, fileName string) (string, func() error, error) {
	return "nop:" + strings.TrimSpace(fileName), func() error { return nil }, nil
}

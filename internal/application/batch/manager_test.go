package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturas-api/internal/domain"
)

func newTestManager(ttl time.Duration) (*Manager, *trackingPreviewStore) {
	previews := &trackingPreviewStore{}
	m := NewManager(func() *Queue {
		return NewQueue(&stubExtractor{}, &stubValidator{}, previews, nil)
	}, ttl, nil)
	return m, previews
}

func TestManager_UnaSesionPorUsuario(t *testing.T) {
	m, _ := newTestManager(time.Minute)

	s1 := m.Acquire("user-a")
	s2 := m.Acquire("user-a")
	s3 := m.Acquire("user-b")

	assert.Same(t, s1, s2, "el mismo usuario reutiliza su sesión")
	assert.NotSame(t, s1, s3, "usuarios distintos tienen colas distintas")
	assert.NotEqual(t, s1.ID, s3.ID)
}

func TestManager_GetNoCreaSesiones(t *testing.T) {
	m, _ := newTestManager(time.Minute)

	_, err := m.Get("desconocido")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m.Acquire("user-a")
	s, err := m.Get("user-a")
	require.NoError(t, err)
	assert.Equal(t, "user-a", s.UserID)
}

func TestManager_ReleaseLiberaLosRecursosDeLaCola(t *testing.T) {
	m, previews := newTestManager(time.Minute)

	s := m.Acquire("user-a")
	enqueueN(t, s.Queue, "a.pdf", "b.pdf")

	m.Release("user-a")

	created, released := previews.counts()
	assert.Equal(t, 2, created)
	assert.Equal(t, created, released, "cerrar la sesión libera todas las previsualizaciones")

	_, err := m.Get("user-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_SweepDescartaSoloLasVencidas(t *testing.T) {
	m, _ := newTestManager(10 * time.Millisecond)

	m.Acquire("viejo")
	time.Sleep(25 * time.Millisecond)
	m.Acquire("reciente")

	expiradas := m.Sweep()
	assert.Equal(t, 1, expiradas)

	_, err := m.Get("viejo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = m.Get("reciente")
	assert.NoError(t, err)
}

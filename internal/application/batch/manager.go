package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// Session una cola de lote ligada a un usuario, con marca de último acceso
// para la expiración.
type Session struct {
	ID       uuid.UUID
	UserID   string
	Queue    *Queue
	lastUsed time.Time
}

// Manager registro de sesiones de lote. Cada usuario tiene a lo sumo una
// sesión activa; las sesiones sin actividad más allá del TTL se descartan
// liberando sus previsualizaciones.
type Manager struct {
	mu       sync.Mutex
	byUser   map[string]*Session
	ttl      time.Duration
	newQueue func() *Queue
	log      *logger.Logger
}

// NewManager construye el registro. newQueue fabrica colas ya cableadas con
// sus colaboradores.
func NewManager(newQueue func() *Queue, ttl time.Duration, log *logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		byUser:   make(map[string]*Session),
		ttl:      ttl,
		newQueue: newQueue,
		log:      log,
	}
}

// Acquire devuelve la sesión del usuario, creándola si no existe, y
// refresca su marca de actividad.
func (m *Manager) Acquire(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	if !ok {
		s = &Session{ID: uuid.New(), UserID: userID, Queue: m.newQueue()}
		m.byUser[userID] = s
		m.log.Info().Str("user_id", userID).Str("session_id", s.ID.String()).Msg("sesión de lote creada")
	}
	s.lastUsed = time.Now()
	return s
}

// Get devuelve la sesión del usuario sin crearla.
func (m *Manager) Get(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.lastUsed = time.Now()
	return s, nil
}

// Release cierra la sesión del usuario y libera los recursos de su cola.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	s, ok := m.byUser[userID]
	if ok {
		delete(m.byUser, userID)
	}
	m.mu.Unlock()
	if ok {
		s.Queue.Clear()
	}
}

// Sweep descarta las sesiones vencidas. Pensado para invocarse de forma
// periódica desde el arranque del servicio.
func (m *Manager) Sweep() int {
	now := time.Now()
	m.mu.Lock()
	var expired []*Session
	for uid, s := range m.byUser {
		if now.Sub(s.lastUsed) > m.ttl {
			expired = append(expired, s)
			delete(m.byUser, uid)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Queue.Clear()
		m.log.Info().Str("user_id", s.UserID).Str("session_id", s.ID.String()).Msg("sesión de lote expirada")
	}
	return len(expired)
}

// StartSweeper lanza el barrido periódico hasta que stop se cierre.
func (m *Manager) StartSweeper(stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(m.ttl / 2)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				m.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

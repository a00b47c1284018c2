package roster

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// Registry hands out one Store per doctor, created lazily.
type Registry struct {
	backend     Backend
	loc         *time.Location
	minInterval time.Duration
	publisher   websocket.EventPublisher
	logger      zerolog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(b Backend, loc *time.Location, minInterval time.Duration,
	publisher websocket.EventPublisher, logger zerolog.Logger) *Registry {
	return &Registry{
		backend:     b,
		loc:         loc,
		minInterval: minInterval,
		publisher:   publisher,
		logger:      logger,
		stores:      make(map[string]*Store),
	}
}

// For returns the doctor's store, creating it on first use.
func (r *Registry) For(doctorID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[doctorID]; ok {
		return s
	}
	s := NewStore(r.backend, doctorID, r.loc, r.minInterval, r.publisher, r.logger)
	r.stores[doctorID] = s
	return s
}

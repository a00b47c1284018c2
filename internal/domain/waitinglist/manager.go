package waitinglist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// Manager runs one Synchronizer per active clinic. A clinic's synchronizer
// starts on first demand and lives until Release or shutdown. Subscriptions
// are bound to baseCtx, not to the request that first demanded them.
type Manager struct {
	baseCtx   context.Context
	store     docstore.Store
	shapes    ShapeStore
	publisher websocket.EventPublisher
	loc       *time.Location
	minSignal time.Duration
	logger    zerolog.Logger

	mu    sync.Mutex
	syncs map[string]*Synchronizer
}

func NewManager(baseCtx context.Context, store docstore.Store, shapes ShapeStore,
	publisher websocket.EventPublisher, loc *time.Location, minSignal time.Duration,
	logger zerolog.Logger) *Manager {
	return &Manager{
		baseCtx:   baseCtx,
		store:     store,
		shapes:    shapes,
		publisher: publisher,
		loc:       loc,
		minSignal: minSignal,
		logger:    logger,
		syncs:     make(map[string]*Synchronizer),
	}
}

// Ensure returns the clinic's synchronizer, starting one when none is
// running yet.
func (m *Manager) Ensure(clinicID string) (*Synchronizer, error) {
	m.mu.Lock()
	if existing, ok := m.syncs[clinicID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	s := NewSynchronizer(m.store, m.shapes, m.publisher, m.loc, m.minSignal, m.logger)
	m.syncs[clinicID] = s
	m.mu.Unlock()

	if err := s.Start(m.baseCtx, clinicID); err != nil {
		m.mu.Lock()
		delete(m.syncs, clinicID)
		m.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Release tears down the clinic's synchronizer.
func (m *Manager) Release(clinicID string) {
	m.mu.Lock()
	s, ok := m.syncs[clinicID]
	delete(m.syncs, clinicID)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// Shutdown stops every running synchronizer.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	syncs := make([]*Synchronizer, 0, len(m.syncs))
	for _, s := range m.syncs {
		syncs = append(syncs, s)
	}
	m.syncs = make(map[string]*Synchronizer)
	m.mu.Unlock()

	for _, s := range syncs {
		s.Stop()
	}
}

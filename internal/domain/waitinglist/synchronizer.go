package waitinglist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// Synchronizer keeps one clinic's waiting-list roster for one local day in
// sync with the document store. It is bound to its (clinic, date) pair at
// Start; there is no midnight migration, a new day means a new Start.
type Synchronizer struct {
	store     docstore.Store
	shapes    ShapeStore
	publisher websocket.EventPublisher
	loc       *time.Location
	now       func() time.Time
	minSignal time.Duration
	logger    zerolog.Logger

	mu       sync.RWMutex
	clinicID string
	dateKey  string
	roster   []Entry
	cancel   context.CancelFunc
	done     chan struct{}

	sigMu      sync.Mutex
	lastSignal time.Time
	sigTimer   *time.Timer
	changed    chan struct{}
}

func NewSynchronizer(store docstore.Store, shapes ShapeStore, publisher websocket.EventPublisher,
	loc *time.Location, minSignal time.Duration, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		store:     store,
		shapes:    shapes,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
		minSignal: minSignal,
		logger:    logger.With().Str("component", "waitinglist").Logger(),
		changed:   make(chan struct{}, 1),
	}
}

// Changed delivers a debounced signal whenever the roster was replaced.
// Bursts of snapshots within the debounce window coalesce into one signal.
func (s *Synchronizer) Changed() <-chan struct{} { return s.changed }

// Roster returns a copy of the current roster.
func (s *Synchronizer) Roster() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.roster))
	copy(out, s.roster)
	return out
}

// Start binds the synchronizer to clinicID and today's local date, resolves
// the storage shape, and opens the live subscription. A previous binding is
// torn down first. When the subscription cannot be opened the roster degrades
// to a one-shot fetch, and when even shape probing fails the roster is left
// empty with no open subscription: stale or empty but displayable, never a
// crash.
func (s *Synchronizer) Start(ctx context.Context, clinicID string) error {
	s.Stop()

	dateKey := visit.LocalDate(s.now(), s.loc)
	shape, err := resolveShape(ctx, s.store, s.shapes, clinicID, dateKey)
	if err != nil {
		s.logger.Error().Err(err).Str("clinic_id", clinicID).Msg("shape resolution failed")
		s.replaceRoster(clinicID, nil)
		return nil
	}
	collection := shape.Collection(clinicID, dateKey)
	filter := docstore.Filter{Field: "status", Op: "==", Value: StatusWaiting}

	watchCtx, cancel := context.WithCancel(ctx)
	snapshots, err := s.store.Watch(watchCtx, collection, filter)
	if err != nil {
		cancel()
		s.logger.Warn().Err(err).Str("collection", collection).
			Msg("subscription failed, degrading to one-shot fetch")
		s.fetchOnce(ctx, clinicID, collection, filter)
		return nil
	}

	s.mu.Lock()
	s.clinicID = clinicID
	s.dateKey = dateKey
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info().Str("clinic_id", clinicID).Str("date", dateKey).
		Str("shape", string(shape)).Msg("waiting list subscription open")

	go func() {
		defer close(done)
		for snap := range snapshots {
			s.applySnapshot(clinicID, snap.Docs)
		}
		if watchCtx.Err() == nil {
			s.logger.Warn().Str("clinic_id", clinicID).
				Msg("subscription closed, degrading to one-shot fetch")
			s.fetchOnce(ctx, clinicID, collection, filter)
		}
	}()
	return nil
}

// Stop tears down the active subscription, if any.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Synchronizer) fetchOnce(ctx context.Context, clinicID, collection string, filter docstore.Filter) {
	docs, err := s.store.Query(ctx, collection, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("one-shot fetch failed")
		s.replaceRoster(clinicID, nil)
		return
	}
	s.applySnapshot(clinicID, docs)
}

// applySnapshot reduces raw documents to the new roster and publishes it.
func (s *Synchronizer) applySnapshot(clinicID string, docs []docstore.Document) {
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e := entryFromDoc(doc, s.loc)
		if e.Status != StatusWaiting {
			continue
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	s.replaceRoster(clinicID, entries)
}

// replaceRoster swaps the roster atomically, broadcasts it, and raises the
// debounced changed signal.
func (s *Synchronizer) replaceRoster(clinicID string, entries []Entry) {
	s.mu.Lock()
	s.roster = entries
	s.mu.Unlock()

	if s.publisher != nil {
		event := websocket.NewEvent("roster", websocket.WaitingListTopic(clinicID), entries)
		if err := s.publisher.Publish(context.Background(), event); err != nil {
			s.logger.Warn().Err(err).Msg("roster broadcast failed")
		}
	}
	s.signalChanged()
}

func (s *Synchronizer) signalChanged() {
	s.sigMu.Lock()
	defer s.sigMu.Unlock()

	now := s.now()
	elapsed := now.Sub(s.lastSignal)
	if elapsed >= s.minSignal {
		s.lastSignal = now
		s.fire()
		return
	}
	if s.sigTimer == nil {
		s.sigTimer = time.AfterFunc(s.minSignal-elapsed, func() {
			s.sigMu.Lock()
			s.lastSignal = s.now()
			s.sigTimer = nil
			s.sigMu.Unlock()
			s.fire()
		})
	}
}

func (s *Synchronizer) fire() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Package roster holds the authoritative patient list for a doctor, fetched
// from the backend and re-sorted client-side, with a filterable visible
// projection and debounced refresh.
package roster

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// Backend is the slice of the REST client this store needs.
type Backend interface {
	ListPatients(ctx context.Context, q backend.PatientQuery) ([]backend.Patient, error)
	GetPatient(ctx context.Context, id int64) (*backend.Patient, error)
}

// Filter is the visible-projection filter: substring match plus optional
// date-range bounds on the patient's activity instant.
type Filter struct {
	Search   string
	FromDate string
	ToDate   string
}

// Store is one doctor's roster. The base list is replaced wholesale on every
// fetch; the visible projection is recomputed from it on demand.
type Store struct {
	backend     Backend
	doctorID    string
	loc         *time.Location
	minInterval time.Duration
	now         func() time.Time
	publisher   websocket.EventPublisher
	logger      zerolog.Logger

	mu         sync.RWMutex
	patients   []backend.Patient
	filter     Filter
	selectedID int64
	lastErr    error

	refreshMu    sync.Mutex
	lastFetch    time.Time
	refreshTimer *time.Timer

	watchMu sync.Mutex
	watched map[<-chan struct{}]struct{}
}

func NewStore(b Backend, doctorID string, loc *time.Location, minInterval time.Duration,
	publisher websocket.EventPublisher, logger zerolog.Logger) *Store {
	return &Store{
		backend:     b,
		doctorID:    doctorID,
		loc:         loc,
		minInterval: minInterval,
		now:         time.Now,
		publisher:   publisher,
		logger:      logger.With().Str("component", "roster").Str("doctor_id", doctorID).Logger(),
	}
}

// Refresh fetches the doctor's patients now and replaces the base list. On
// error the base list empties rather than keeping stale data; downstream
// consumers always get a usable (possibly empty) slice.
func (s *Store) Refresh(ctx context.Context) error {
	patients, err := s.backend.ListPatients(ctx, backend.PatientQuery{DoctorID: s.doctorID})
	if err != nil {
		s.logger.Error().Err(err).Msg("patient fetch failed")
		s.mu.Lock()
		s.patients = nil
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	visit.SortPatients(patients, s.loc)

	s.mu.Lock()
	s.patients = patients
	s.lastErr = nil
	selectedID := s.selectedID
	s.mu.Unlock()

	if selectedID != 0 {
		s.refreshSelected(patients, selectedID)
	}
	if s.publisher != nil {
		event := websocket.NewEvent("changed", websocket.RosterTopic(s.doctorID),
			map[string]int{"count": len(patients)})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("roster event publish failed")
		}
	}
	return nil
}

// refreshSelected keeps an open detail view fresh: when the selected patient
// is present in the refetched set its receipts are re-sorted most recent
// first in place.
func (s *Store) refreshSelected(patients []backend.Patient, selectedID int64) {
	for i := range patients {
		if patients[i].ID != selectedID {
			continue
		}
		for j := range patients[i].Visits {
			visit.SortReceipts(patients[i].Visits[j].Receipts, s.loc)
		}
		visit.SortReceipts(patients[i].Receipts, s.loc)
		return
	}
}

// RequestRefresh schedules a refresh, coalescing bursts: at most one fetch
// per minInterval. Rapid waiting-list changes may fold into a single,
// possibly slightly stale, refetch.
func (s *Store) RequestRefresh(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	elapsed := s.now().Sub(s.lastFetch)
	if elapsed >= s.minInterval {
		s.lastFetch = s.now()
		go s.refreshLogged(ctx)
		return
	}
	if s.refreshTimer == nil {
		s.refreshTimer = time.AfterFunc(s.minInterval-elapsed, func() {
			s.refreshMu.Lock()
			s.lastFetch = s.now()
			s.refreshTimer = nil
			s.refreshMu.Unlock()
			s.refreshLogged(ctx)
		})
	}
}

func (s *Store) refreshLogged(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("scheduled refresh failed")
	}
}

// Watch refreshes the roster whenever the waiting list signals a change,
// until ctx ends. Watching an already-watched channel is a no-op, so callers
// may wire the bridge on every request without stacking goroutines; once the
// watch ends the channel may be watched again.
func (s *Store) Watch(ctx context.Context, changed <-chan struct{}) {
	s.watchMu.Lock()
	if s.watched == nil {
		s.watched = make(map[<-chan struct{}]struct{})
	}
	if _, ok := s.watched[changed]; ok {
		s.watchMu.Unlock()
		return
	}
	s.watched[changed] = struct{}{}
	s.watchMu.Unlock()

	go func() {
		defer func() {
			s.watchMu.Lock()
			delete(s.watched, changed)
			s.watchMu.Unlock()
		}()
		for {
			select {
			case _, ok := <-changed:
				if !ok {
					return
				}
				s.RequestRefresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// SetFilter replaces the visible-projection filter.
func (s *Store) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Select marks a patient as the open detail view.
func (s *Store) Select(id int64) {
	s.mu.Lock()
	s.selectedID = id
	s.mu.Unlock()
}

// Err returns the last fetch error, nil after a successful refresh.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// All returns a copy of the full base list.
func (s *Store) All() []backend.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Patient, len(s.patients))
	copy(out, s.patients)
	return out
}

// Visible returns the filtered projection of the base list, preserving the
// base sort order.
func (s *Store) Visible() []backend.Patient {
	s.mu.RLock()
	patients := s.patients
	f := s.filter
	s.mu.RUnlock()

	out := make([]backend.Patient, 0, len(patients))
	for _, p := range patients {
		if s.matches(p, f) {
			out = append(out, p)
		}
	}
	return out
}

// VisibleFiltered applies an ad hoc filter without touching the stored one.
func (s *Store) VisibleFiltered(f Filter) []backend.Patient {
	s.mu.RLock()
	patients := s.patients
	s.mu.RUnlock()

	out := make([]backend.Patient, 0, len(patients))
	for _, p := range patients {
		if s.matches(p, f) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) matches(p backend.Patient, f Filter) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(p.Phone, f.Search) &&
			!strings.Contains(strings.ToLower(p.Address), needle) {
			return false
		}
	}
	if f.FromDate == "" && f.ToDate == "" {
		return true
	}

	at := visit.ActivityInstant(&p, s.loc)
	if !at.Valid {
		return false
	}
	if f.FromDate != "" {
		if from, ok := visit.ParseInstant(f.FromDate, "", s.loc); ok && at.At.Before(from) {
			return false
		}
	}
	if f.ToDate != "" {
		if to, ok := visit.ParseInstant(f.ToDate, "", s.loc); ok {
			if at.At.After(to.AddDate(0, 0, 1).Add(-time.Nanosecond)) {
				return false
			}
		}
	}
	return true
}

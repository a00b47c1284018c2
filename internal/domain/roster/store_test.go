package roster

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

var cairo = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		panic(err)
	}
	return loc
}()

type mockBackend struct {
	patients []backend.Patient
	err      error
	fetches  atomic.Int32
}

func (m *mockBackend) ListPatients(ctx context.Context, q backend.PatientQuery) ([]backend.Patient, error) {
	m.fetches.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]backend.Patient, len(m.patients))
	copy(out, m.patients)
	return out, nil
}

func (m *mockBackend) GetPatient(ctx context.Context, id int64) (*backend.Patient, error) {
	for i := range m.patients {
		if m.patients[i].ID == id {
			return &m.patients[i], nil
		}
	}
	return nil, errors.New("not found")
}

func TestRefresh_SortsByActivityDescending(t *testing.T) {
	mock := &mockBackend{patients: []backend.Patient{
		{ID: 1, Name: "No Visits", RegisteredDate: "2024-01-01"},
		{ID: 2, Name: "January", Visits: []backend.Visit{{Date: "2024-01-01"}}},
		{ID: 3, Name: "June", Visits: []backend.Visit{{Date: "2024-06-01"}}},
	}}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	got := s.All()
	want := []int64{3, 2, 1}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: patient %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestRefresh_ErrorEmptiesList(t *testing.T) {
	mock := &mockBackend{patients: []backend.Patient{{ID: 1, Name: "A"}}}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	mock.err = errors.New("backend down")
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := s.Visible(); len(got) != 0 {
		t.Errorf("visible after failed fetch = %+v, want empty", got)
	}
	if s.Err() == nil {
		t.Error("Err() should surface the failure")
	}
}

func TestVisible_FilterBySearchAndDateRange(t *testing.T) {
	mock := &mockBackend{patients: []backend.Patient{
		{ID: 1, Name: "أحمد علي", Phone: "0100000001", Visits: []backend.Visit{{Date: "2024-05-01"}}},
		{ID: 2, Name: "Sara Adel", Phone: "0100000002", Visits: []backend.Visit{{Date: "2024-06-15"}}},
		{ID: 3, Name: "Omar", Address: "Giza", Visits: []backend.Visit{{Date: "2024-06-20"}}},
	}}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := s.VisibleFiltered(Filter{Search: "أحمد"}); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("arabic name search = %+v", got)
	}
	if got := s.VisibleFiltered(Filter{Search: "0100000002"}); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("phone search = %+v", got)
	}
	if got := s.VisibleFiltered(Filter{Search: "giza"}); len(got) != 1 || got[0].ID != 3 {
		t.Errorf("address search = %+v", got)
	}
	if got := s.VisibleFiltered(Filter{FromDate: "2024-06-01", ToDate: "2024-06-16"}); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("date range = %+v", got)
	}
}

func TestRequestRefresh_CoalescesBursts(t *testing.T) {
	mock := &mockBackend{}
	s := NewStore(mock, "d1", cairo, 50*time.Millisecond, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.RequestRefresh(ctx)
	}
	time.Sleep(150 * time.Millisecond)

	// One immediate fetch plus at most one trailing coalesced fetch.
	if n := mock.fetches.Load(); n > 2 {
		t.Errorf("burst of 10 requests caused %d fetches", n)
	}
	if n := mock.fetches.Load(); n == 0 {
		t.Error("no fetch happened at all")
	}
}

func TestWatch_RefreshesOnSignal(t *testing.T) {
	mock := &mockBackend{}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	s.Watch(ctx, changed)
	changed <- struct{}{}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mock.fetches.Load() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("waiting-list signal did not trigger a refresh")
}

func TestWatch_SameChannelWatchedOnce(t *testing.T) {
	mock := &mockBackend{}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	s.Watch(ctx, changed)
	s.Watch(ctx, changed)

	s.watchMu.Lock()
	n := len(s.watched)
	s.watchMu.Unlock()
	if n != 1 {
		t.Errorf("watched channels = %d, want 1", n)
	}
}

func TestWatch_ChannelRewatchableAfterCancel(t *testing.T) {
	mock := &mockBackend{}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())

	changed := make(chan struct{}, 1)
	firstCtx, firstCancel := context.WithCancel(context.Background())
	s.Watch(firstCtx, changed)
	firstCancel()

	// The dead watch must release its claim on the channel.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.watchMu.Lock()
		n := len(s.watched)
		s.watchMu.Unlock()
		if n == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Watch(ctx, changed)
	changed <- struct{}{}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mock.fetches.Load() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("re-wired watch did not trigger a refresh")
}

func TestRefreshSelected_ReceiptsResorted(t *testing.T) {
	mock := &mockBackend{patients: []backend.Patient{
		{ID: 1, Visits: []backend.Visit{{
			ID:   10,
			Date: "2024-06-01",
			Receipts: []backend.Receipt{
				{ID: 1, CreatedAt: "2024-06-01"},
				{ID: 2, CreatedAt: "2024-06-03"},
				{ID: 3, CreatedAt: "2024-06-02"},
			},
		}}},
	}}
	s := NewStore(mock, "d1", cairo, time.Millisecond, nil, zerolog.Nop())
	s.Select(1)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	receipts := s.All()[0].Visits[0].Receipts
	want := []int64{2, 3, 1}
	for i, id := range want {
		if receipts[i].ID != id {
			t.Fatalf("receipt position %d: got %d, want %d", i, receipts[i].ID, id)
		}
	}
}

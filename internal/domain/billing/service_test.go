package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/session"
)

var cairo = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		panic(err)
	}
	return loc
}()

type mockBackend struct {
	created *backend.Bill
	billErr error
}

func (m *mockBackend) CreateBill(ctx context.Context, bill *backend.Bill) (*backend.Bill, error) {
	if m.billErr != nil {
		return nil, m.billErr
	}
	created := *bill
	created.ID = 100
	m.created = &created
	return &created, nil
}

func (m *mockBackend) ListBillsByVisit(ctx context.Context, visitID int64) ([]backend.Bill, error) {
	return nil, nil
}

func (m *mockBackend) ListServices(ctx context.Context, external bool) ([]backend.ServiceItem, error) {
	return nil, nil
}

func (m *mockBackend) CreateService(ctx context.Context, external bool, item *backend.ServiceItem) (*backend.ServiceItem, error) {
	return item, nil
}

func (m *mockBackend) UpdateService(ctx context.Context, external bool, item *backend.ServiceItem) error {
	return nil
}

func (m *mockBackend) DeleteService(ctx context.Context, external bool, id int64) error {
	return nil
}

// failingLedger refuses every write.
type failingLedger struct{ Ledger }

func (f *failingLedger) RecordBill(context.Context, *FeeRecord, string, interface{}) error {
	return errors.New("ledger down")
}

var testSession = session.Session{AssistantID: "a1", DoctorID: "d1", ClinicID: "c1"}

func testService(b Backend, l Ledger) *Service {
	s := NewService(b, l, cairo, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, cairo) }
	return s
}

func TestCreateBill_QueuesNotificationWithLocalDate(t *testing.T) {
	ledger := NewMemLedger()
	svc := testService(&mockBackend{}, ledger)

	result, err := svc.CreateBill(context.Background(), testSession, BillInput{
		PatientID:     7,
		Services:      []backend.BillService{{Name: "كشف", Amount: 300}, {Name: "أشعة", Amount: 200}},
		Discount:      50,
		PaymentStatus: "paid",
	})
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if result.Warning != "" {
		t.Errorf("unexpected warning %q", result.Warning)
	}
	if result.Bill.Total != 450 {
		t.Errorf("total = %v, want 450", result.Bill.Total)
	}

	events, err := ledger.PendingEvents(context.Background(), 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("pending events = %v, err %v", events, err)
	}
	// The notification date key follows the unpadded waiting-list convention.
	if want := `"date":"2024-6-1"`; !contains(events[0].Payload, want) {
		t.Errorf("payload %s lacks %s", events[0].Payload, want)
	}
}

func TestCreateBill_NotificationFailureIsSoft(t *testing.T) {
	svc := testService(&mockBackend{}, &failingLedger{})

	result, err := svc.CreateBill(context.Background(), testSession, BillInput{
		PatientID:     7,
		Services:      []backend.BillService{{Name: "كشف", Amount: 300}},
		PaymentStatus: "paid",
	})
	if err != nil {
		t.Fatalf("bill must commit despite ledger failure: %v", err)
	}
	if result.Warning == "" {
		t.Error("expected a soft warning")
	}
	if result.Bill == nil || result.Bill.ID != 100 {
		t.Errorf("bill = %+v", result.Bill)
	}
}

func TestCreateBill_Validation(t *testing.T) {
	svc := testService(&mockBackend{}, NewMemLedger())

	if _, err := svc.CreateBill(context.Background(), testSession, BillInput{PatientID: 7}); !errors.Is(err, ErrNoServices) {
		t.Errorf("empty services err = %v", err)
	}
	_, err := svc.CreateBill(context.Background(), testSession, BillInput{
		PatientID: 7,
		Services:  []backend.BillService{{Name: "كشف", Amount: 100}},
		Discount:  150,
	})
	if !errors.Is(err, ErrDiscountTooHigh) {
		t.Errorf("excess discount err = %v", err)
	}
}

func TestRecordConsultationFee_IdempotentWithinDay(t *testing.T) {
	svc := testService(&mockBackend{}, NewMemLedger())
	ctx := context.Background()

	first, err := svc.RecordConsultationFee(ctx, testSession, 7, 300)
	if err != nil || !first {
		t.Fatalf("first recording = %v, err %v", first, err)
	}
	second, err := svc.RecordConsultationFee(ctx, testSession, 7, 300)
	if err != nil {
		t.Fatalf("second recording: %v", err)
	}
	if second {
		t.Error("re-recording the same day must be a no-op")
	}

	other, err := svc.RecordConsultationFee(ctx, testSession, 8, 300)
	if err != nil || !other {
		t.Errorf("different patient = %v, err %v", other, err)
	}
}

func TestDispatcher_DeliversAndParks(t *testing.T) {
	ledger := NewMemLedger()
	store := docstore.NewMemory()
	ctx := context.Background()

	if err := ledger.Enqueue(ctx, notificationCollection, map[string]interface{}{
		"type": "bill", "doctor_id": "d1", "patient_id": float64(7),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d := NewDispatcher(ledger, store, nil, time.Second, 3, zerolog.Nop())
	d.DispatchPending(ctx)

	docs, err := store.Query(ctx, notificationCollection)
	if err != nil || len(docs) != 1 {
		t.Fatalf("delivered docs = %v, err %v", docs, err)
	}
	pending, _ := ledger.PendingEvents(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("event still pending after delivery")
	}
}

func TestDispatcher_BoundedRetries(t *testing.T) {
	ledger := NewMemLedger()
	ctx := context.Background()
	if err := ledger.Enqueue(ctx, notificationCollection, map[string]interface{}{"type": "bill"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	events, _ := ledger.PendingEvents(ctx, 1)
	id := events[0].ID

	d := NewDispatcher(ledger, &refusingStore{}, nil, time.Second, 2, zerolog.Nop())
	d.DispatchPending(ctx)
	if status := ledger.eventStatus(id); status != StatusPending {
		t.Fatalf("status after first failure = %s, want pending", status)
	}
	d.DispatchPending(ctx)
	if status := ledger.eventStatus(id); status != StatusDead {
		t.Errorf("status after max attempts = %s, want dead", status)
	}
}

// refusingStore fails every write.
type refusingStore struct {
	docstore.Store
}

func (r *refusingStore) Add(context.Context, string, map[string]interface{}) (string, error) {
	return "", errors.New("store down")
}

func contains(payload []byte, needle string) bool {
	return strings.Contains(string(payload), needle)
}

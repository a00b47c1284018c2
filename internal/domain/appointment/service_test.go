package appointment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

func testService(store docstore.Store, ledger billing.Ledger) *Service {
	s := NewService(store, ledger, time.UTC, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	svc := testService(docstore.NewMemory(), billing.NewMemLedger())

	created, err := svc.Create(ctx, "d1", Appointment{
		PatientID:   "p1",
		PatientName: "أحمد",
		Date:        "2024-6-10",
		Time:        "10:00",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}

	appts, err := svc.List(ctx, "d1")
	if err != nil || len(appts) != 1 {
		t.Fatalf("List = %v, err %v", appts, err)
	}

	if err := svc.Delete(ctx, "d1", created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	appts, _ = svc.List(ctx, "d1")
	if len(appts) != 0 {
		t.Errorf("appointments after delete = %v", appts)
	}
}

func TestCreate_RejectsUnparsableDate(t *testing.T) {
	svc := testService(docstore.NewMemory(), billing.NewMemLedger())
	_, err := svc.Create(context.Background(), "d1", Appointment{PatientName: "X", Date: "next tuesday"})
	if err == nil {
		t.Fatal("expected error for unparsable date")
	}
}

func TestUpcoming_FiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	svc := testService(docstore.NewMemory(), billing.NewMemLedger())

	for _, a := range []Appointment{
		{PatientName: "Past", Date: "2024-05-20"},
		{PatientName: "Later", Date: "2024-06-15"},
		{PatientName: "Sooner", Date: "2024-06-03"},
		{PatientName: "Today", Date: "2024-06-01", Time: "09:00"},
	} {
		if _, err := svc.Create(ctx, "d1", a); err != nil {
			t.Fatalf("Create %s: %v", a.PatientName, err)
		}
	}

	upcoming, err := svc.Upcoming(ctx, "d1")
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	var names []string
	for _, a := range upcoming {
		names = append(names, a.PatientName)
	}
	want := []string{"Today", "Sooner", "Later"}
	for i, n := range want {
		if i >= len(names) || names[i] != n {
			t.Fatalf("upcoming order = %v, want %v", names, want)
		}
	}
}

func TestUpdate_MissingAppointment(t *testing.T) {
	svc := testService(docstore.NewMemory(), billing.NewMemLedger())
	err := svc.Update(context.Background(), "d1", Appointment{ID: "ghost", Date: "2024-6-5"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSendReminder_RendersStoredTemplate(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	ledger := billing.NewMemLedger()
	svc := testService(store, ledger)

	if err := store.Set(ctx, templateCollection+"/d1", map[string]interface{}{
		"appointment_reminder": "موعد {name} يوم {date} الساعة {time}",
	}); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	created, err := svc.Create(ctx, "d1", Appointment{
		PatientID: "p1", PatientName: "سارة", Date: "2024-6-10", Time: "10:30",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SendReminder(ctx, "d1", "c1", created.ID); err != nil {
		t.Fatalf("SendReminder: %v", err)
	}

	events, err := ledger.PendingEvents(ctx, 1)
	if err != nil || len(events) != 1 {
		t.Fatalf("events = %v, err %v", events, err)
	}
	payload := string(events[0].Payload)
	if !strings.Contains(payload, "موعد سارة يوم 2024-6-10 الساعة 10:30") {
		t.Errorf("rendered message missing from payload: %s", payload)
	}
}

func TestSendReminder_FallsBackToDefaultTemplate(t *testing.T) {
	ctx := context.Background()
	ledger := billing.NewMemLedger()
	svc := testService(docstore.NewMemory(), ledger)

	created, err := svc.Create(ctx, "d1", Appointment{PatientName: "عمر", Date: "2024-6-10"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.SendReminder(ctx, "d1", "c1", created.ID); err != nil {
		t.Fatalf("SendReminder: %v", err)
	}

	events, _ := ledger.PendingEvents(ctx, 1)
	if len(events) != 1 || !strings.Contains(string(events[0].Payload), "عمر") {
		t.Errorf("default template not rendered: %v", events)
	}
}

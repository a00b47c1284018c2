package report

import (
	"strings"
	"testing"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/waitinglist"
	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(time.UTC)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestPrescription_RendersDrugsRTL(t *testing.T) {
	r := newRenderer(t)
	page, err := r.Prescription(PrescriptionData{
		Settings: &backend.DoctorSettings{ClinicName: "عيادة النور", FooterText: "للحجز: 0100000000"},
		Patient:  &backend.Patient{Name: "أحمد علي", Age: 34},
		Visit:    &backend.Visit{Date: "2024-06-01"},
		Receipt: &backend.Receipt{Drugs: []backend.Drug{
			{Drug: "Amoxicillin", Frequency: "يومياً", Period: "3 يوم", Timing: "بعد الأكل"},
		}},
	})
	if err != nil {
		t.Fatalf("Prescription: %v", err)
	}

	html := string(page)
	for _, want := range []string{`dir="rtl"`, "عيادة النور", "أحمد علي", "Amoxicillin", "بعد الأكل", "للحجز"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDaySheet_RendersEntries(t *testing.T) {
	r := newRenderer(t)
	pos := 1
	page, err := r.DaySheet(DaySheetData{
		ClinicName: "عيادة النور",
		Date:       "2024-6-1",
		Entries: []waitinglist.Entry{
			{Name: "سارة", Position: &pos, VisitType: "كشف", Time: "09:00"},
			{Name: "عمر", VisitType: "استشارة"},
		},
	})
	if err != nil {
		t.Fatalf("DaySheet: %v", err)
	}

	html := string(page)
	for _, want := range []string{"2024-6-1", "سارة", "عمر", "استشارة"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRevenue_TotalsRow(t *testing.T) {
	r := newRenderer(t)
	page, err := r.Revenue(RevenueData{
		ClinicName: "عيادة النور",
		From:       "2024-06-01",
		To:         "2024-06-30",
		Rows: []backend.RevenueRow{
			{Date: "2024-06-01", BillCount: 3, GrossTotal: 900, Discounts: 50, NetTotal: 850},
			{Date: "2024-06-02", BillCount: 2, GrossTotal: 600, Discounts: 0, NetTotal: 600},
		},
	})
	if err != nil {
		t.Fatalf("Revenue: %v", err)
	}

	html := string(page)
	for _, want := range []string{"1500.00", "1450.00", "50.00"} {
		if !strings.Contains(html, want) {
			t.Errorf("totals missing %q", want)
		}
	}
}

func TestSumRevenue(t *testing.T) {
	totals := SumRevenue([]backend.RevenueRow{
		{BillCount: 1, GrossTotal: 100, Discounts: 10, NetTotal: 90},
		{BillCount: 4, GrossTotal: 400, Discounts: 0, NetTotal: 400},
	})
	if totals.Bills != 5 || totals.Gross != 500 || totals.Discounts != 10 || totals.Net != 490 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestRevenueXLSX_Builds(t *testing.T) {
	buf, err := RevenueXLSX("عيادة النور", "2024-06-01", "2024-06-30", []backend.RevenueRow{
		{Date: "2024-06-01", BillCount: 3, GrossTotal: 900, Discounts: 50, NetTotal: 850},
	})
	if err != nil {
		t.Fatalf("RevenueXLSX: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook")
	}
	// XLSX files are zip archives.
	if got := string(buf.Bytes()[:2]); got != "PK" {
		t.Errorf("magic = %q, want PK", got)
	}
}

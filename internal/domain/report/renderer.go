// Package report renders print-ready HTML documents (right-to-left, inline
// CSS, meant for the browser print dialog) and the XLSX revenue export.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/waitinglist"
	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds the parsed print templates.
type Renderer struct {
	templates *template.Template
	loc       *time.Location
}

func NewRenderer(loc *time.Location) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse print templates: %w", err)
	}
	return &Renderer{templates: tmpl, loc: loc}, nil
}

// PrescriptionData feeds the prescription print page.
type PrescriptionData struct {
	Settings *backend.DoctorSettings
	Patient  *backend.Patient
	Visit    *backend.Visit
	Receipt  *backend.Receipt
	Printed  string
}

// Prescription renders the receipt print page for one receipt.
func (r *Renderer) Prescription(data PrescriptionData) ([]byte, error) {
	data.Printed = time.Now().In(r.loc).Format("2006-01-02 15:04")
	return r.render("prescription.html", data)
}

// DaySheetData feeds the waiting-list day sheet.
type DaySheetData struct {
	ClinicName string
	Date       string
	Entries    []waitinglist.Entry
}

// DaySheet renders the printable waiting-list roster for one day.
func (r *Renderer) DaySheet(data DaySheetData) ([]byte, error) {
	return r.render("daysheet.html", data)
}

// RevenueData feeds the revenue summary page.
type RevenueData struct {
	ClinicName string
	From       string
	To         string
	Rows       []backend.RevenueRow
	Totals     RevenueTotals
}

// RevenueTotals aggregates the rollup rows.
type RevenueTotals struct {
	Bills     int
	Gross     float64
	Discounts float64
	Net       float64
}

// SumRevenue computes the footer totals for a rollup.
func SumRevenue(rows []backend.RevenueRow) RevenueTotals {
	var t RevenueTotals
	for _, row := range rows {
		t.Bills += row.BillCount
		t.Gross += row.GrossTotal
		t.Discounts += row.Discounts
		t.Net += row.NetTotal
	}
	return t
}

// Revenue renders the revenue summary print page.
func (r *Renderer) Revenue(data RevenueData) ([]byte, error) {
	data.Totals = SumRevenue(data.Rows)
	return r.render("revenue.html", data)
}

func (r *Renderer) render(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

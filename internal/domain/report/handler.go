package report

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/domain/waitinglist"
	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/session"
)

// Backend is the slice of the REST client this domain needs.
type Backend interface {
	GetPatient(ctx context.Context, id int64) (*backend.Patient, error)
	GetDoctorSettings(ctx context.Context, doctorID string) (*backend.DoctorSettings, error)
	RevenueRollup(ctx context.Context, doctorID, from, to string) ([]backend.RevenueRow, error)
}

type Handler struct {
	renderer *Renderer
	backend  Backend
	waiting  *waitinglist.Manager
	loc      *time.Location
}

func NewHandler(renderer *Renderer, b Backend, waiting *waitinglist.Manager, loc *time.Location) *Handler {
	return &Handler{renderer: renderer, backend: b, waiting: waiting, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/print/prescription", h.PrintPrescription)
	api.GET("/print/day-sheet", h.PrintDaySheet)
	api.GET("/reports/revenue", h.Revenue)
}

// PrintPrescription renders one receipt as a print page. The receipt is
// addressed by patient, visit and receipt id; a missing receipt id picks the
// visit's newest receipt.
func (h *Handler) PrintPrescription(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	patientID, err := strconv.ParseInt(c.QueryParam("patient_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	visitID, err := strconv.ParseInt(c.QueryParam("visit_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit_id")
	}

	patient, err := h.backend.GetPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	var target *backend.Visit
	for i := range patient.Visits {
		if patient.Visits[i].ID == visitID {
			target = &patient.Visits[i]
			break
		}
	}
	if target == nil || len(target.Receipts) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no receipt to print")
	}

	receipt := &target.Receipts[len(target.Receipts)-1]
	if rid := c.QueryParam("receipt_id"); rid != "" {
		receiptID, err := strconv.ParseInt(rid, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid receipt_id")
		}
		receipt = nil
		for i := range target.Receipts {
			if target.Receipts[i].ID == receiptID {
				receipt = &target.Receipts[i]
				break
			}
		}
		if receipt == nil {
			return echo.NewHTTPError(http.StatusNotFound, "receipt not found")
		}
	}

	settings, err := h.backend.GetDoctorSettings(c.Request().Context(), sess.DoctorID)
	if err != nil {
		settings = &backend.DoctorSettings{DoctorID: sess.DoctorID}
	}

	page, err := h.renderer.Prescription(PrescriptionData{
		Settings: settings,
		Patient:  patient,
		Visit:    target,
		Receipt:  receipt,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, page)
}

// PrintDaySheet renders the active clinic's current waiting list.
func (h *Handler) PrintDaySheet(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	sync, err := h.waiting.Ensure(sess.ClinicID)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "waiting list unavailable")
	}

	settings, err := h.backend.GetDoctorSettings(c.Request().Context(), sess.DoctorID)
	clinicName := ""
	if err == nil {
		clinicName = settings.ClinicName
	}

	page, err := h.renderer.DaySheet(DaySheetData{
		ClinicName: clinicName,
		Date:       visit.LocalDate(time.Now(), h.loc),
		Entries:    sync.Roster(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, page)
}

// Revenue serves the rollup as a print page or, with format=xlsx, as a
// spreadsheet download.
func (h *Handler) Revenue(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	from := c.QueryParam("from")
	to := c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}

	rows, err := h.backend.RevenueRollup(c.Request().Context(), sess.DoctorID, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	settings, err := h.backend.GetDoctorSettings(c.Request().Context(), sess.DoctorID)
	clinicName := ""
	if err == nil {
		clinicName = settings.ClinicName
	}

	if c.QueryParam("format") == "xlsx" {
		buf, err := RevenueXLSX(clinicName, from, to, rows)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			`attachment; filename="revenue_`+from+`_`+to+`.xlsx"`)
		return c.Blob(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}

	page, err := h.renderer.Revenue(RevenueData{
		ClinicName: clinicName,
		From:       from,
		To:         to,
		Rows:       rows,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, page)
}

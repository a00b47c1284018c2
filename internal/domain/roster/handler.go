package roster

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/session"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.POST("/patients/refresh", h.ForceRefresh)
}

// ListPatients serves the visible projection of the doctor's roster. The
// first request for a doctor populates the store synchronously; later
// requests serve from memory, refreshed by waiting-list signals.
func (h *Handler) ListPatients(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	store := h.registry.For(sess.DoctorID)
	if len(store.All()) == 0 && store.Err() == nil {
		if err := store.Refresh(c.Request().Context()); err != nil {
			return c.JSON(http.StatusOK, pagination.NewResponse([]backend.Patient{}, 0, 0, 0))
		}
	}

	visible := store.VisibleFiltered(Filter{
		Search:   c.QueryParam("search"),
		FromDate: c.QueryParam("from"),
		ToDate:   c.QueryParam("to"),
	})

	params := pagination.FromContext(c)
	total := len(visible)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visible[start:end], total, params.Limit, params.Offset))
}

// GetPatient returns one patient with fresh sub-resources and marks it as
// the selected detail view.
func (h *Handler) GetPatient(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	store := h.registry.For(sess.DoctorID)
	store.Select(id)

	patient, err := store.backend.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, patient)
}

// ForceRefresh triggers an immediate refetch, bypassing the debounce.
func (h *Handler) ForceRefresh(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	store := h.registry.For(sess.DoctorID)
	if err := store.Refresh(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

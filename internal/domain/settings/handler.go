package settings

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/session"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/settings", h.Get)
	api.PUT("/settings", h.Save)
	api.GET("/medical-history/templates", h.Templates)
	api.POST("/medical-history/records", h.RecordHistory)
}

func (h *Handler) Get(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	settings, err := h.service.Get(c.Request().Context(), sess.DoctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *Handler) Save(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var settings backend.DoctorSettings
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	settings.DoctorID = sess.DoctorID

	if err := h.service.Save(c.Request().Context(), &settings); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *Handler) Templates(c echo.Context) error {
	templates, err := h.service.Templates(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, templates)
}

func (h *Handler) RecordHistory(c echo.Context) error {
	var record backend.HistoryRecord
	if err := c.Bind(&record); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if record.PatientID == 0 || record.TemplateID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and template_id are required")
	}

	created, err := h.service.RecordHistory(c.Request().Context(), &record)
	if err != nil {
		if errors.Is(err, ErrNoTemplate) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

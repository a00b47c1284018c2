package appointment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/session"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.List)
	api.POST("/appointments", h.Create)
	api.PUT("/appointments/:id", h.Update)
	api.DELETE("/appointments/:id", h.Delete)
	api.POST("/appointments/:id/remind", h.SendReminder)
}

func (h *Handler) List(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var (
		appts []Appointment
		err   error
	)
	if c.QueryParam("upcoming") == "true" {
		appts, err = h.service.Upcoming(c.Request().Context(), sess.DoctorID)
	} else {
		appts, err = h.service.List(c.Request().Context(), sess.DoctorID)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) Create(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if a.PatientName == "" || a.Date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_name and date are required")
	}

	created, err := h.service.Create(c.Request().Context(), sess.DoctorID, a)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Update(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = c.Param("id")

	if err := h.service.Update(c.Request().Context(), sess.DoctorID, a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	if err := h.service.Delete(c.Request().Context(), sess.DoctorID, c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SendReminder(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	err := h.service.SendReminder(c.Request().Context(), sess.DoctorID, sess.ClinicID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

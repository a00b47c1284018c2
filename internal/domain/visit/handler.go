package visit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions", h.AddPrescription)
	api.PUT("/visits/:id/type", h.SetVisitType)
}

func (h *Handler) AddPrescription(c echo.Context) error {
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.PatientID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	visit, err := h.service.AddPrescription(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrNoDrugs) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return echo.NewHTTPError(apiErr.Status, apiErr.Message)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, visit)
}

type visitTypeRequest struct {
	VisitType string `json:"visit_type"`
}

func (h *Handler) SetVisitType(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var req visitTypeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.VisitType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_type is required")
	}

	if err := h.service.SetType(c.Request().Context(), id, req.VisitType); err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return echo.NewHTTPError(apiErr.Status, apiErr.Message)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

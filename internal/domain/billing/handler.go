package billing

import (
	"errors"
	"net/http"
	"strconv"

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
	api.POST("/bills", h.CreateBill)
	api.GET("/visits/:id/bills", h.BillsByVisit)
	api.POST("/consultation-fees", h.RecordConsultationFee)

	api.GET("/services", h.ListServices)
	api.POST("/services", h.CreateService)
	api.PUT("/services/:id", h.UpdateService)
	api.DELETE("/services/:id", h.DeleteService)
}

func (h *Handler) CreateBill(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var in BillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.PatientID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	result, err := h.service.CreateBill(c.Request().Context(), sess, in)
	if err != nil {
		if errors.Is(err, ErrNoServices) || errors.Is(err, ErrDiscountTooHigh) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return echo.NewHTTPError(apiErr.Status, apiErr.Message)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) BillsByVisit(c echo.Context) error {
	visitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	bills, err := h.service.BillsByVisit(c.Request().Context(), visitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, bills)
}

type feeRequest struct {
	PatientID int64   `json:"patient_id"`
	Amount    float64 `json:"amount"`
}

func (h *Handler) RecordConsultationFee(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var req feeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	recorded, err := h.service.RecordConsultationFee(c.Request().Context(), sess, req.PatientID, req.Amount)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"recorded": recorded})
}

func external(c echo.Context) bool {
	return c.QueryParam("external") == "true"
}

func (h *Handler) ListServices(c echo.Context) error {
	items, err := h.service.backend.ListServices(c.Request().Context(), external(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateService(c echo.Context) error {
	var item backend.ServiceItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if item.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	created, err := h.service.backend.CreateService(c.Request().Context(), external(c), &item)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid service id")
	}
	var item backend.ServiceItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.ID = id
	if err := h.service.backend.UpdateService(c.Request().Context(), external(c), &item); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteService(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid service id")
	}
	if err := h.service.backend.DeleteService(c.Request().Context(), external(c), id); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

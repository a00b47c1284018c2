package clinic

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/session"
)

type Handler struct {
	resolver *Resolver
	sessions *session.Service
}

func NewHandler(resolver *Resolver, sessions *session.Service) *Handler {
	return &Handler{resolver: resolver, sessions: sessions}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clinics", h.ListClinics)
	api.POST("/clinics/select", h.SelectClinic)
}

// ListClinics resolves the clinics the session's user may act on, plus the
// deterministic active selection.
func (h *Handler) ListClinics(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	clinics := h.resolver.Resolve(c.Request().Context(), sess.AssistantID)
	if len(clinics) == 0 && sess.DoctorID != sess.AssistantID {
		clinics = h.resolver.Resolve(c.Request().Context(), sess.DoctorID)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"clinics": clinics,
		"active":  SelectActive(clinics, sess.ClinicID),
	})
}

type selectRequest struct {
	ClinicID string `json:"clinic_id"`
}

// SelectClinic validates the requested clinic against the resolved set and
// re-issues the session token with it.
func (h *Handler) SelectClinic(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClinicID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "clinic_id is required")
	}

	clinics := h.resolver.Resolve(c.Request().Context(), sess.AssistantID)
	if len(clinics) == 0 && sess.DoctorID != sess.AssistantID {
		clinics = h.resolver.Resolve(c.Request().Context(), sess.DoctorID)
	}

	allowed := false
	for _, cl := range clinics {
		if cl.ID == req.ClinicID {
			allowed = true
			break
		}
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "clinic not available to this user")
	}

	token, newSess, err := h.sessions.SelectClinic(sess, req.ClinicID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":   token,
		"session": newSess,
	})
}

package waitinglist

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/domain/roster"
	"github.com/clinicdesk/clinicdesk/internal/session"
)

type Handler struct {
	manager *Manager
	rosters *roster.Registry
	baseCtx context.Context
}

// NewHandler wires the waiting list to the roster layer. baseCtx bounds the
// roster watch goroutines, which must outlive individual requests.
func NewHandler(baseCtx context.Context, manager *Manager, rosters *roster.Registry) *Handler {
	return &Handler{manager: manager, rosters: rosters, baseCtx: baseCtx}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/waiting-list", h.GetRoster)
}

// GetRoster returns the live roster for the session's active clinic,
// starting the clinic's subscription when this is its first reader. Live
// updates flow over the websocket topic; this endpoint serves the initial
// state.
func (h *Handler) GetRoster(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	sync, err := h.manager.Ensure(sess.ClinicID)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "waiting list unavailable")
	}

	// Waiting-list churn implies new visits, so the doctor's patient roster
	// refreshes off the same signal.
	if h.rosters != nil {
		h.rosters.For(sess.DoctorID).Watch(h.baseCtx, sync.Changed())
	}

	entries := sync.Roster()
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"clinic_id": sess.ClinicID,
		"entries":   entries,
	})
}

package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the unauthenticated login endpoint on the public
// group and the current-session endpoint on the authenticated group.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/login", h.Login)
	api.GET("/session", h.Current)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	token, sess, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) || errors.Is(err, ErrNoDoctorMapping) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, loginResponse{Token: token, Session: sess})
}

func (h *Handler) Current(c echo.Context) error {
	sess, ok := FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	return c.JSON(http.StatusOK, sess)
}

package blobstore

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/session"
)

// Handler exposes upload, download, listing and deletion of patient report
// images.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reports/images", h.Upload)
	api.GET("/reports/images", h.List)
	api.GET("/files/*", h.Download)
	api.DELETE("/files/*", h.Delete)
}

// Upload accepts a multipart report image for a patient identified by phone
// number and returns the stored object with its download URL.
func (h *Handler) Upload(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	phone := c.FormValue("phone")
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "open uploaded file")
	}
	defer src.Close()

	key := ReportKey(sess.DoctorID, phone, file.Filename, time.Now())
	obj, err := h.store.Put(c.Request().Context(), key, file.Filename,
		file.Header.Get("Content-Type"), src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrInvalidContentType):
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, obj)
}

// List returns a patient's report images for the session's doctor.
func (h *Handler) List(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	phone := c.QueryParam("phone")
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}

	objects, err := h.store.List(c.Request().Context(), ReportPrefix(sess.DoctorID, phone))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if objects == nil {
		objects = []*Object{}
	}
	return c.JSON(http.StatusOK, objects)
}

func (h *Handler) Download(c echo.Context) error {
	key := c.Param("*")
	rc, obj, err := h.store.Open(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`inline; filename="%s"`, obj.FileName))
	return c.Stream(http.StatusOK, obj.ContentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("*")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

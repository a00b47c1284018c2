package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}
}

func TestRequestID_PreservesIncoming(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := rec.Header().Get("X-Request-ID"); got != "rid-123" {
		t.Errorf("expected rid-123, got %s", got)
	}
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("boom")
	})

	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRequestTimeout_Expires(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestTimeout(10 * time.Millisecond)(func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
		case <-time.After(time.Second):
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestRequestTimeout_SkipsWebSocket(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestTimeout(time.Nanosecond)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline on websocket path")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

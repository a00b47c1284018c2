package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(t *testing.T, query string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"explicit", "limit=10&offset=30", 10, 30},
		{"capped", "limit=9999", MaxLimit, 0},
		{"negative offset", "offset=-5", DefaultLimit, 0},
		{"garbage", "limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromContext(newContext(t, tt.query))
			if p.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	resp := NewResponse(nil, 100, 25, 50)
	if !resp.HasMore {
		t.Error("expected HasMore with 25 remaining")
	}

	resp = NewResponse(nil, 100, 25, 75)
	if resp.HasMore {
		t.Error("expected no more past the last page")
	}
}

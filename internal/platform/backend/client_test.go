package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop())
}

func TestListPatients_QueryParams(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"doctor_id": r.URL.Query().Get("doctor_id"),
			"search":    r.URL.Query().Get("search"),
			"from":      r.URL.Query().Get("from"),
			"limit":     r.URL.Query().Get("limit"),
		}
		json.NewEncoder(w).Encode([]Patient{
			{ID: 1, Name: "أحمد"},
			{ID: 2, Name: "سارة"},
		})
	})

	patients, err := c.ListPatients(context.Background(), PatientQuery{
		DoctorID: "doc-1",
		Search:   "أحمد",
		FromDate: "2024-01-01",
		Limit:    50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(patients))
	}
	if gotQuery["doctor_id"] != "doc-1" || gotQuery["search"] != "أحمد" {
		t.Errorf("query params not forwarded: %v", gotQuery)
	}
	if gotQuery["limit"] != "50" {
		t.Errorf("limit not forwarded: %v", gotQuery)
	}
}

func TestCreateBill_DecodesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "discount exceeds total"})
	})

	_, err := c.CreateBill(context.Background(), &Bill{PatientID: 7})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Message != "discount exceeds total" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCreateVisit_PostsToPatientPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var v Visit
		json.NewDecoder(r.Body).Decode(&v)
		v.ID = 99
		json.NewEncoder(w).Encode(v)
	})

	created, err := c.CreateVisit(context.Background(), 42, &Visit{Date: "2024-06-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/patients/42/visits" {
		t.Errorf("path = %s", gotPath)
	}
	if created.ID != 99 {
		t.Errorf("id = %d", created.ID)
	}
}

func TestGetDoctorSettings_ErrorWithoutMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetDoctorSettings(context.Background(), "doc-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message == "" {
		t.Error("expected fallback message from HTTP status")
	}
}

func TestRevenueRollup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("doctor_id") != "doc-1" {
			t.Errorf("doctor_id = %q", r.URL.Query().Get("doctor_id"))
		}
		json.NewEncoder(w).Encode([]RevenueRow{
			{Date: "2024-06-01", BillCount: 3, NetTotal: 900},
		})
	})

	rows, err := c.RevenueRollup(context.Background(), "doc-1", "2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].NetTotal != 900 {
		t.Errorf("rows = %+v", rows)
	}
}

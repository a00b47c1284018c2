package clinic

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

func seedClinic(t *testing.T, store *docstore.MemoryStore, id string, data map[string]interface{}) {
	t.Helper()
	if err := store.Set(context.Background(), "clinics/"+id, data); err != nil {
		t.Fatalf("seed clinic: %v", err)
	}
}

func seedJoin(t *testing.T, store *docstore.MemoryStore, id string, data map[string]interface{}) {
	t.Helper()
	if err := store.Set(context.Background(), "doctor_clinic_assistant/"+id, data); err != nil {
		t.Fatalf("seed join: %v", err)
	}
}

func TestResolve_DeduplicatesAcrossShapes(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	// Clinic c1 is reachable both directly and through the join table.
	seedClinic(t, store, "c1", map[string]interface{}{
		"name":    "Main Clinic",
		"doctors": []interface{}{"d1"},
	})
	seedClinic(t, store, "c2", map[string]interface{}{"name": "Branch Clinic"})
	seedJoin(t, store, "r1", map[string]interface{}{"doctor_id": "d1", "clinic_id": "c1"})
	seedJoin(t, store, "r2", map[string]interface{}{"assistant_id": "d1", "clinic_id": "c2"})

	r := NewResolver(store, zerolog.Nop())
	clinics := r.Resolve(ctx, "d1")

	if len(clinics) != 2 {
		t.Fatalf("expected 2 clinics, got %d: %+v", len(clinics), clinics)
	}
	seen := map[string]int{}
	for _, c := range clinics {
		seen[c.ID]++
	}
	if seen["c1"] != 1 || seen["c2"] != 1 {
		t.Errorf("expected each clinic exactly once, got %v", seen)
	}
}

func TestResolve_DisplayNamePriority(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{
			"localized wins over name",
			map[string]interface{}{"location_ar": "عيادة النور", "name": "Al Nour"},
			"عيادة النور",
		},
		{
			"name over clinic_name",
			map[string]interface{}{"name": "Al Nour", "clinic_name": "Other"},
			"Al Nour",
		},
		{
			"title over location",
			map[string]interface{}{"title": "Clinic T", "location": "Downtown"},
			"Clinic T",
		},
		{
			"sentinel when nothing set",
			map[string]interface{}{"address": "1 Main St"},
			UnnamedClinic,
		},
		{
			"empty strings skipped",
			map[string]interface{}{"location_ar": "", "name": "Al Nour"},
			"Al Nour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.data); got != tt.want {
				t.Errorf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_JoinRowWithMissingClinicSkipped(t *testing.T) {
	store := docstore.NewMemory()
	seedJoin(t, store, "r1", map[string]interface{}{"doctor_id": "d1", "clinic_id": "ghost"})

	r := NewResolver(store, zerolog.Nop())
	clinics := r.Resolve(context.Background(), "d1")
	if len(clinics) != 0 {
		t.Errorf("expected no clinics, got %+v", clinics)
	}
}

func TestSelectActive(t *testing.T) {
	clinics := []Clinic{{ID: "c1"}, {ID: "c2"}}

	if got := SelectActive(clinics, "c2"); got != "c2" {
		t.Errorf("kept selection = %q", got)
	}
	if got := SelectActive(clinics, "gone"); got != "c1" {
		t.Errorf("fallback selection = %q", got)
	}
	if got := SelectActive(nil, "c1"); got != "" {
		t.Errorf("empty set selection = %q", got)
	}
}

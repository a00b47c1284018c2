// Package clinic resolves which clinics a signed-in user may act on and
// tracks the active clinic selection.
package clinic

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	clinicsCollection = "clinics"
	joinCollection    = "doctor_clinic_assistant"
)

// Resolver finds the clinics reachable by a user through either relationship
// shape: the clinic document's own doctors array, or rows in the
// doctor/clinic/assistant join collection.
type Resolver struct {
	store  docstore.Store
	logger zerolog.Logger
}

func NewResolver(store docstore.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With().Str("component", "clinic").Logger(),
	}
}

// Resolve returns the deduplicated union of clinics reachable by userID.
// Lookup failures degrade to an empty list: "no clinic" is a valid,
// displayable state, never a crash.
func (r *Resolver) Resolve(ctx context.Context, userID string) []Clinic {
	seen := make(map[string]bool)
	var clinics []Clinic

	add := func(id string, data map[string]interface{}) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		clinics = append(clinics, Clinic{
			ID:      id,
			Name:    displayName(data),
			Address: stringField(data, "address"),
			Phone:   stringField(data, "phone"),
		})
	}

	// Direct shape: clinics listing the user in their doctors array.
	direct, err := r.store.Query(ctx, clinicsCollection,
		docstore.Filter{Field: "doctors", Op: "array-contains", Value: userID})
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("direct clinic lookup failed")
		return nil
	}
	for _, doc := range direct {
		add(doc.ID, doc.Data)
	}

	// Indirect shape: join rows on either role field.
	for _, roleField := range []string{"doctor_id", "assistant_id"} {
		rels, err := r.store.Query(ctx, joinCollection,
			docstore.Filter{Field: roleField, Op: "==", Value: userID})
		if err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID).Str("role", roleField).
				Msg("join clinic lookup failed")
			return nil
		}
		for _, rel := range rels {
			clinicID := rel.GetString("clinic_id")
			if clinicID == "" || seen[clinicID] {
				continue
			}
			doc, err := r.store.Get(ctx, clinicsCollection+"/"+clinicID)
			if err != nil {
				if err == docstore.ErrNotFound {
					continue
				}
				r.logger.Warn().Err(err).Str("clinic_id", clinicID).Msg("clinic fetch failed")
				return nil
			}
			add(doc.ID, doc.Data)
		}
	}

	return clinics
}

// SelectActive picks the active clinic: the previously chosen id when it is
// still in the resolved set, otherwise the first resolved clinic. Returns ""
// when no clinic resolved.
func SelectActive(clinics []Clinic, previousID string) string {
	if len(clinics) == 0 {
		return ""
	}
	for _, c := range clinics {
		if c.ID == previousID {
			return previousID
		}
	}
	return clinics[0].ID
}

func stringField(data map[string]interface{}, field string) string {
	v, _ := data[field].(string)
	return v
}

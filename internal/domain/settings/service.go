// Package settings serves the per-doctor print/receipt customization
// document and the medical-history intake templates.
package settings

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

// Backend is the slice of the REST client this domain needs.
type Backend interface {
	GetDoctorSettings(ctx context.Context, doctorID string) (*backend.DoctorSettings, error)
	PutDoctorSettings(ctx context.Context, settings *backend.DoctorSettings) error
	ListHistoryTemplates(ctx context.Context) ([]backend.HistoryTemplate, error)
	CreateHistoryRecord(ctx context.Context, record *backend.HistoryRecord) (*backend.HistoryRecord, error)
}

var ErrNoTemplate = errors.New("history template not found")

type Service struct {
	backend Backend
	logger  zerolog.Logger
}

func NewService(b Backend, logger zerolog.Logger) *Service {
	return &Service{
		backend: b,
		logger:  logger.With().Str("component", "settings").Logger(),
	}
}

// Get loads the doctor's settings. A doctor with no stored settings yet gets
// an empty document rather than an error.
func (s *Service) Get(ctx context.Context, doctorID string) (*backend.DoctorSettings, error) {
	settings, err := s.backend.GetDoctorSettings(ctx, doctorID)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return &backend.DoctorSettings{DoctorID: doctorID}, nil
		}
		return nil, err
	}
	return settings, nil
}

// Save writes the settings document on explicit save.
func (s *Service) Save(ctx context.Context, settings *backend.DoctorSettings) error {
	return s.backend.PutDoctorSettings(ctx, settings)
}

// Templates lists the available medical-history intake forms.
func (s *Service) Templates(ctx context.Context) ([]backend.HistoryTemplate, error) {
	return s.backend.ListHistoryTemplates(ctx)
}

// RecordHistory validates the record against its template fields and stores
// it.
func (s *Service) RecordHistory(ctx context.Context, record *backend.HistoryRecord) (*backend.HistoryRecord, error) {
	templates, err := s.backend.ListHistoryTemplates(ctx)
	if err != nil {
		return nil, err
	}
	var tmpl *backend.HistoryTemplate
	for i := range templates {
		if templates[i].ID == record.TemplateID {
			tmpl = &templates[i]
			break
		}
	}
	if tmpl == nil {
		return nil, ErrNoTemplate
	}

	// Values outside the template's field set are dropped, not rejected.
	allowed := make(map[string]bool, len(tmpl.Fields))
	for _, f := range tmpl.Fields {
		allowed[f] = true
	}
	for key := range record.Values {
		if !allowed[key] {
			delete(record.Values, key)
		}
	}
	return s.backend.CreateHistoryRecord(ctx, record)
}

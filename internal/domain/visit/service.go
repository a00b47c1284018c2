package visit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

// Backend is the slice of the REST client this domain needs.
type Backend interface {
	GetPatient(ctx context.Context, id int64) (*backend.Patient, error)
	CreateVisit(ctx context.Context, patientID int64, visit *backend.Visit) (*backend.Visit, error)
	AppendReceipt(ctx context.Context, visitID int64, receipt *backend.Receipt) (*backend.Receipt, error)
	SetVisitType(ctx context.Context, visitID int64, visitType string) error
}

var ErrNoDrugs = errors.New("prescription has no drugs")

// Clock abstracts now() for tests.
type Clock func() time.Time

// Service owns prescription writes: a prescription lands on today's visit
// when one exists, otherwise a new visit is opened to hold it.
type Service struct {
	backend Backend
	loc     *time.Location
	now     Clock
	logger  zerolog.Logger
}

func NewService(b Backend, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		backend: b,
		loc:     loc,
		now:     time.Now,
		logger:  logger.With().Str("component", "visit").Logger(),
	}
}

// WithClock replaces the time source. Test hook.
func (s *Service) WithClock(now Clock) *Service {
	s.now = now
	return s
}

// PrescriptionInput is one prescription to record against a patient.
type PrescriptionInput struct {
	PatientID int64          `json:"patient_id"`
	Drugs     []backend.Drug `json:"drugs"`
	Notes     string         `json:"notes,omitempty"`
	Complaint string         `json:"complaint,omitempty"`
	Diagnosis string         `json:"diagnosis,omitempty"`
	VisitType string         `json:"visit_type,omitempty"`
}

// AddPrescription records a prescription. When the patient already has a
// visit today the receipt is appended to it; otherwise a new visit is created
// carrying the receipt. Returns the visit the receipt landed on.
func (s *Service) AddPrescription(ctx context.Context, in PrescriptionInput) (*backend.Visit, error) {
	if len(in.Drugs) == 0 {
		return nil, ErrNoDrugs
	}

	patient, err := s.backend.GetPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := s.todaysVisit(patient, now)
	if today != nil {
		receipt := &backend.Receipt{
			VisitID: today.ID,
			Drugs:   in.Drugs,
			Notes:   in.Notes,
		}
		created, err := s.backend.AppendReceipt(ctx, today.ID, receipt)
		if err != nil {
			return nil, err
		}
		today.Receipts = append(today.Receipts, *created)
		s.logger.Info().Int64("patient_id", in.PatientID).Int64("visit_id", today.ID).
			Msg("receipt appended to today's visit")
		return today, nil
	}

	visit := &backend.Visit{
		PatientID: in.PatientID,
		Date:      now.In(s.loc).Format("2006-01-02"),
		Time:      now.In(s.loc).Format("15:04"),
		VisitType: in.VisitType,
		Complaint: in.Complaint,
		Diagnosis: in.Diagnosis,
		Receipts: []backend.Receipt{{
			Drugs: in.Drugs,
			Notes: in.Notes,
		}},
	}
	created, err := s.backend.CreateVisit(ctx, in.PatientID, visit)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", in.PatientID).Int64("visit_id", created.ID).
		Msg("visit created for prescription")
	return created, nil
}

// todaysVisit finds a visit of the patient that falls on the same
// clinic-local day as now. Visits with unparsable dates never match.
func (s *Service) todaysVisit(p *backend.Patient, now time.Time) *backend.Visit {
	for i := range p.Visits {
		at, ok := ParseInstant(p.Visits[i].Date, p.Visits[i].Time, s.loc)
		if ok && SameLocalDay(at, now, s.loc) {
			return &p.Visits[i]
		}
	}
	return nil
}

// SetType relabels a visit (e.g. consultation vs follow-up).
func (s *Service) SetType(ctx context.Context, visitID int64, visitType string) error {
	return s.backend.SetVisitType(ctx, visitID, visitType)
}

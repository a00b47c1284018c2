// Package appointment manages next-visit reminders: per-doctor appointment
// documents plus reminder notifications rendered from stored templates.
package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const templateCollection = "notification_templates"

// defaultReminder is used when no template document exists for the doctor.
const defaultReminder = "عزيزي {name}، نذكركم بموعدكم يوم {date}"

var ErrNotFound = errors.New("appointment not found")

// Appointment is one scheduled next visit.
type Appointment struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Phone       string `json:"phone,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Service stores appointments under nextVisits/{doctorID}/appointments.
type Service struct {
	store  docstore.Store
	ledger billing.Ledger
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(store docstore.Store, ledger billing.Ledger, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "appointment").Logger(),
	}
}

func collection(doctorID string) string {
	return "nextVisits/" + doctorID + "/appointments"
}

func (a Appointment) toDoc() map[string]interface{} {
	return map[string]interface{}{
		"patient_id":   a.PatientID,
		"patient_name": a.PatientName,
		"phone":        a.Phone,
		"date":         a.Date,
		"time":         a.Time,
		"notes":        a.Notes,
	}
}

func fromDoc(doc docstore.Document) Appointment {
	return Appointment{
		ID:          doc.ID,
		PatientID:   doc.GetString("patient_id"),
		PatientName: doc.GetString("patient_name"),
		Phone:       doc.GetString("phone"),
		Date:        doc.GetString("date"),
		Time:        doc.GetString("time"),
		Notes:       doc.GetString("notes"),
	}
}

// Create stores a new appointment and returns it with its generated id.
func (s *Service) Create(ctx context.Context, doctorID string, a Appointment) (*Appointment, error) {
	if _, ok := visit.ParseInstant(a.Date, a.Time, s.loc); !ok {
		return nil, errors.New("appointment date is not parseable")
	}
	id, err := s.store.Add(ctx, collection(doctorID), a.toDoc())
	if err != nil {
		return nil, err
	}
	a.ID = id
	return &a, nil
}

// Update overwrites an existing appointment.
func (s *Service) Update(ctx context.Context, doctorID string, a Appointment) error {
	if a.ID == "" {
		return ErrNotFound
	}
	path := collection(doctorID) + "/" + a.ID
	if _, err := s.store.Get(ctx, path); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.store.Set(ctx, path, a.toDoc())
}

// Delete removes an appointment. Deleting a missing one is a no-op.
func (s *Service) Delete(ctx context.Context, doctorID, id string) error {
	return s.store.Delete(ctx, collection(doctorID)+"/"+id)
}

// List returns all of the doctor's appointments.
func (s *Service) List(ctx context.Context, doctorID string) ([]Appointment, error) {
	docs, err := s.store.Query(ctx, collection(doctorID))
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out, nil
}

// Upcoming returns appointments from today onward, soonest first.
func (s *Service) Upcoming(ctx context.Context, doctorID string) ([]Appointment, error) {
	all, err := s.List(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	type dated struct {
		at   time.Time
		appt Appointment
	}
	var upcoming []dated
	for _, a := range all {
		at, ok := visit.ParseInstant(a.Date, a.Time, s.loc)
		if !ok || at.Before(today) {
			continue
		}
		upcoming = append(upcoming, dated{at: at, appt: a})
	}
	for i := 1; i < len(upcoming); i++ {
		for j := i; j > 0 && upcoming[j].at.Before(upcoming[j-1].at); j-- {
			upcoming[j], upcoming[j-1] = upcoming[j-1], upcoming[j]
		}
	}

	out := make([]Appointment, len(upcoming))
	for i, d := range upcoming {
		out[i] = d.appt
	}
	return out, nil
}

// SendReminder renders the doctor's reminder template for an appointment and
// queues it for delivery through the notification outbox.
func (s *Service) SendReminder(ctx context.Context, doctorID, clinicID, appointmentID string) error {
	doc, err := s.store.Get(ctx, collection(doctorID)+"/"+appointmentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	appt := fromDoc(*doc)

	message := s.reminderTemplate(ctx, doctorID)
	message = renderTemplate(message, map[string]string{
		"name": appt.PatientName,
		"date": appt.Date,
		"time": appt.Time,
	})

	return s.ledger.Enqueue(ctx, "doctor_assistant_notifications", map[string]interface{}{
		"type":       "appointment_reminder",
		"doctor_id":  doctorID,
		"clinic_id":  clinicID,
		"patient_id": appt.PatientID,
		"phone":      appt.Phone,
		"message":    message,
		"date":       appt.Date,
	})
}

// reminderTemplate loads the doctor's template, falling back to the default.
func (s *Service) reminderTemplate(ctx context.Context, doctorID string) string {
	doc, err := s.store.Get(ctx, templateCollection+"/"+doctorID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("template lookup failed")
		}
		return defaultReminder
	}
	if body := doc.GetString("appointment_reminder"); body != "" {
		return body
	}
	return defaultReminder
}

// renderTemplate substitutes {key} placeholders.
func renderTemplate(body string, vars map[string]string) string {
	for key, value := range vars {
		body = strings.ReplaceAll(body, "{"+key+"}", value)
	}
	return body
}

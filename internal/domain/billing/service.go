package billing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/session"
)

// Backend is the slice of the REST client this domain needs.
type Backend interface {
	CreateBill(ctx context.Context, bill *backend.Bill) (*backend.Bill, error)
	ListBillsByVisit(ctx context.Context, visitID int64) ([]backend.Bill, error)
	ListServices(ctx context.Context, external bool) ([]backend.ServiceItem, error)
	CreateService(ctx context.Context, external bool, item *backend.ServiceItem) (*backend.ServiceItem, error)
	UpdateService(ctx context.Context, external bool, item *backend.ServiceItem) error
	DeleteService(ctx context.Context, external bool, id int64) error
}

var (
	ErrNoServices      = errors.New("bill has no services")
	ErrDiscountTooHigh = errors.New("discount exceeds services total")
)

// Service composes bills and their notification side effects.
type Service struct {
	backend Backend
	ledger  Ledger
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(b Backend, ledger Ledger, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		backend: b,
		ledger:  ledger,
		loc:     loc,
		now:     time.Now,
		logger:  logger.With().Str("component", "billing").Logger(),
	}
}

// BillInput is one bill to finalize.
type BillInput struct {
	PatientID       int64                 `json:"patient_id"`
	PatientName     string                `json:"patient_name,omitempty"`
	VisitID         int64                 `json:"visit_id,omitempty"`
	Services        []backend.BillService `json:"services"`
	Discount        float64               `json:"discount,omitempty"`
	PaymentStatus   string                `json:"payment_status"`
	PaymentMethod   string                `json:"payment_method,omitempty"`
	ConsultationFee float64               `json:"consultation_fee,omitempty"`
}

// BillResult carries the committed bill plus a soft warning when the
// notification side effect could not be queued. The bill is already
// committed in that case; callers surface the warning, never a failure.
type BillResult struct {
	Bill    *backend.Bill `json:"bill"`
	Warning string        `json:"warning,omitempty"`
}

// CreateBill validates and POSTs the bill, then records the consultation fee
// and the assistant-notification event together in the local ledger. The
// notification write never rolls back the committed bill.
func (s *Service) CreateBill(ctx context.Context, sess session.Session, in BillInput) (*BillResult, error) {
	if len(in.Services) == 0 {
		return nil, ErrNoServices
	}
	var total float64
	for _, svc := range in.Services {
		total += svc.Amount
	}
	if in.Discount > total {
		return nil, ErrDiscountTooHigh
	}

	bill := &backend.Bill{
		PatientID:     in.PatientID,
		VisitID:       in.VisitID,
		Services:      in.Services,
		Discount:      in.Discount,
		Total:         total - in.Discount,
		PaymentStatus: in.PaymentStatus,
		PaymentMethod: in.PaymentMethod,
	}
	created, err := s.backend.CreateBill(ctx, bill)
	if err != nil {
		return nil, err
	}

	localDate := visit.LocalDate(s.now(), s.loc)
	var fee *FeeRecord
	if in.ConsultationFee > 0 {
		fee = &FeeRecord{
			ClinicID:  sess.ClinicID,
			PatientID: strconv.FormatInt(in.PatientID, 10),
			FeeDate:   localDate,
			Amount:    in.ConsultationFee,
		}
	}

	payload := map[string]interface{}{
		"type":         "bill",
		"bill_id":      created.ID,
		"patient_id":   in.PatientID,
		"patient_name": in.PatientName,
		"doctor_id":    sess.DoctorID,
		"clinic_id":    sess.ClinicID,
		"date":         localDate,
		"total":        created.Total,
		"services":     len(in.Services),
	}

	result := &BillResult{Bill: created}
	if err := s.ledger.RecordBill(ctx, fee, notificationCollection, payload); err != nil {
		s.logger.Warn().Err(err).Int64("bill_id", created.ID).
			Msg("bill committed but notification could not be queued")
		result.Warning = "bill created but notification failed"
	}
	return result, nil
}

// RecordConsultationFee records today's consultation fee for a patient.
// Returns false when it was already recorded today (no-op, not an error).
func (s *Service) RecordConsultationFee(ctx context.Context, sess session.Session, patientID int64, amount float64) (bool, error) {
	return s.ledger.RecordFee(ctx, FeeRecord{
		ClinicID:  sess.ClinicID,
		PatientID: strconv.FormatInt(patientID, 10),
		FeeDate:   visit.LocalDate(s.now(), s.loc),
		Amount:    amount,
	})
}

// BillsByVisit lists the committed bills attached to a visit.
func (s *Service) BillsByVisit(ctx context.Context, visitID int64) ([]backend.Bill, error) {
	return s.backend.ListBillsByVisit(ctx, visitID)
}

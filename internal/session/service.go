package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	accountsCollection = "assistant_accounts"
	joinCollection     = "doctor_clinic_assistant"
)

var (
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrNoDoctorMapping = errors.New("account is not linked to a doctor")
)

// Service performs sign-in: credentials are verified against the account
// document, then the assistant id is resolved to a doctor id through the
// doctor/clinic/assistant join collection. A missing mapping blocks login;
// no partial session is created.
type Service struct {
	store  docstore.Store
	mgr    *Manager
	logger zerolog.Logger
}

func NewService(store docstore.Store, mgr *Manager, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		mgr:    mgr,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Login verifies the credentials and returns a signed session token along
// with the session it carries.
func (s *Service) Login(ctx context.Context, email, password string) (string, Session, error) {
	accounts, err := s.store.Query(ctx, accountsCollection,
		docstore.Filter{Field: "email", Op: "==", Value: email})
	if err != nil {
		return "", Session{}, fmt.Errorf("look up account: %w", err)
	}
	if len(accounts) == 0 {
		return "", Session{}, ErrBadCredentials
	}

	account := accounts[0]
	hash := account.GetString("password_hash")
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", Session{}, ErrBadCredentials
	}

	// The signed-in user id is an assistant id; the doctor it works for
	// comes from the join collection. Doctors signing in directly appear
	// there as their own assistant.
	doctorID, err := s.resolveDoctor(ctx, account.ID)
	if err != nil {
		return "", Session{}, err
	}

	sess := Session{AssistantID: account.ID, DoctorID: doctorID}
	token, err := s.mgr.Issue(sess)
	if err != nil {
		return "", Session{}, err
	}

	s.logger.Info().
		Str("assistant_id", sess.AssistantID).
		Str("doctor_id", sess.DoctorID).
		Msg("login")
	return token, sess, nil
}

// SelectClinic re-issues the session token with the given active clinic.
func (s *Service) SelectClinic(sess Session, clinicID string) (string, Session, error) {
	sess.ClinicID = clinicID
	token, err := s.mgr.Issue(sess)
	if err != nil {
		return "", Session{}, err
	}
	return token, sess, nil
}

func (s *Service) resolveDoctor(ctx context.Context, assistantID string) (string, error) {
	rels, err := s.store.Query(ctx, joinCollection,
		docstore.Filter{Field: "assistant_id", Op: "==", Value: assistantID})
	if err != nil {
		return "", fmt.Errorf("resolve doctor: %w", err)
	}
	for _, rel := range rels {
		if doctorID := rel.GetString("doctor_id"); doctorID != "" {
			return doctorID, nil
		}
	}

	// The account may itself be a doctor with its own clinics.
	rels, err = s.store.Query(ctx, joinCollection,
		docstore.Filter{Field: "doctor_id", Op: "==", Value: assistantID})
	if err != nil {
		return "", fmt.Errorf("resolve doctor: %w", err)
	}
	if len(rels) > 0 {
		return assistantID, nil
	}

	return "", ErrNoDoctorMapping
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

func newManager() *Manager {
	return NewManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
}

func TestManager_IssueParseRoundTrip(t *testing.T) {
	mgr := newManager()

	token, err := mgr.Issue(Session{AssistantID: "a1", DoctorID: "d1", ClinicID: "c1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sess, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sess.AssistantID != "a1" || sess.DoctorID != "d1" || sess.ClinicID != "c1" {
		t.Errorf("session = %+v", sess)
	}
}

func TestManager_RejectsForeignToken(t *testing.T) {
	mgr := newManager()
	other := NewManager([]byte("ffffffffffffffffffffffffffffffff"), time.Hour)

	token, err := other.Issue(Session{AssistantID: "a1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Parse(token); err == nil {
		t.Error("expected parse failure for token signed with another key")
	}
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	mgr := NewManager([]byte("0123456789abcdef0123456789abcdef"), -time.Minute)

	token, err := mgr.Issue(Session{AssistantID: "a1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Parse(token); err == nil {
		t.Error("expected parse failure for expired token")
	}
}

func seedAccount(t *testing.T, store *docstore.MemoryStore, id, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Set(context.Background(), "assistant_accounts/"+id, map[string]interface{}{
		"email":         email,
		"password_hash": string(hash),
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestLogin_ResolvesDoctorThroughJoin(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedAccount(t, store, "a1", "reception@clinic.example", "secret")
	store.Set(ctx, "doctor_clinic_assistant/r1", map[string]interface{}{
		"assistant_id": "a1",
		"doctor_id":    "d9",
		"clinic_id":    "c1",
	})

	svc := NewService(store, newManager(), zerolog.Nop())
	token, sess, err := svc.Login(ctx, "reception@clinic.example", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Error("expected token")
	}
	if sess.DoctorID != "d9" {
		t.Errorf("doctor_id = %q", sess.DoctorID)
	}
	if sess.ClinicID != "" {
		t.Errorf("clinic should not be selected at login, got %q", sess.ClinicID)
	}
}

func TestLogin_DoctorOwnAccount(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedAccount(t, store, "d1", "doctor@clinic.example", "secret")
	store.Set(ctx, "doctor_clinic_assistant/r1", map[string]interface{}{
		"doctor_id": "d1",
		"clinic_id": "c1",
	})

	svc := NewService(store, newManager(), zerolog.Nop())
	_, sess, err := svc.Login(ctx, "doctor@clinic.example", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.DoctorID != "d1" {
		t.Errorf("doctor_id = %q", sess.DoctorID)
	}
}

func TestLogin_BadPassword(t *testing.T) {
	store := docstore.NewMemory()
	seedAccount(t, store, "a1", "reception@clinic.example", "secret")

	svc := NewService(store, newManager(), zerolog.Nop())
	_, _, err := svc.Login(context.Background(), "reception@clinic.example", "wrong")
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
}

func TestLogin_MissingDoctorMappingBlocksLogin(t *testing.T) {
	store := docstore.NewMemory()
	seedAccount(t, store, "a1", "reception@clinic.example", "secret")

	svc := NewService(store, newManager(), zerolog.Nop())
	_, _, err := svc.Login(context.Background(), "reception@clinic.example", "secret")
	if !errors.Is(err, ErrNoDoctorMapping) {
		t.Errorf("expected ErrNoDoctorMapping, got %v", err)
	}
}

func TestSelectClinic_ReissuesToken(t *testing.T) {
	store := docstore.NewMemory()
	mgr := newManager()
	svc := NewService(store, mgr, zerolog.Nop())

	token, sess, err := svc.SelectClinic(Session{AssistantID: "a1", DoctorID: "d1"}, "c7")
	if err != nil {
		t.Fatalf("select clinic: %v", err)
	}
	if sess.ClinicID != "c7" {
		t.Errorf("clinic_id = %q", sess.ClinicID)
	}

	parsed, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ClinicID != "c7" {
		t.Errorf("token clinic_id = %q", parsed.ClinicID)
	}
}

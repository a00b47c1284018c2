// Package session owns sign-in and the session token. The original system
// kept doctor/clinic/assistant ids in ambient client storage; here they are
// explicit claims on a signed token, threaded through request context.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const sessionKey contextKey = "clinic_session"

// Session is the identity context every clinic-scoped operation runs under.
type Session struct {
	AssistantID string `json:"assistant_id"`
	DoctorID    string `json:"doctor_id"`
	ClinicID    string `json:"clinic_id,omitempty"`
}

// Claims is the JWT shape of a Session.
type Claims struct {
	jwt.RegisteredClaims
	DoctorID string `json:"doctor_id"`
	ClinicID string `json:"clinic_id,omitempty"`
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey []byte, ttl time.Duration) *Manager {
	return &Manager{signingKey: signingKey, ttl: ttl}
}

// Issue mints a signed token carrying the session.
func (m *Manager) Issue(s Session) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.AssistantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		DoctorID: s.DoctorID,
		ClinicID: s.ClinicID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the session it carries.
func (m *Manager) Parse(tokenStr string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Session{}, fmt.Errorf("invalid session token")
	}

	return Session{
		AssistantID: claims.Subject,
		DoctorID:    claims.DoctorID,
		ClinicID:    claims.ClinicID,
	}, nil
}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session on the context. The second return is false
// outside an authenticated request.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// Package billing composes billing records, records consultation fees, and
// delivers assistant notifications for committed bills through a persistent
// outbox.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox event statuses.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusDead      = "dead"
)

// OutboxEvent is one undelivered notification, written in the same local
// transaction scope as the business write it announces.
type OutboxEvent struct {
	ID       string
	Topic    string
	Payload  json.RawMessage
	Attempts int
}

// FeeRecord keys one consultation fee: idempotent per clinic, patient and
// clinic-local day.
type FeeRecord struct {
	ClinicID  string
	PatientID string
	FeeDate   string
	Amount    float64
}

// Ledger is the service-local persistence for fees and the notification
// outbox.
type Ledger interface {
	// RecordBill stores the fee (when non-nil) and the outbox event together.
	RecordBill(ctx context.Context, fee *FeeRecord, topic string, payload interface{}) error

	// RecordFee inserts a consultation fee. Returns false when the fee for
	// that (clinic, patient, day) was already recorded.
	RecordFee(ctx context.Context, fee FeeRecord) (bool, error)

	// Enqueue adds a standalone outbox event.
	Enqueue(ctx context.Context, topic string, payload interface{}) error

	// PendingEvents returns up to limit undelivered events, oldest first.
	PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkDelivered finalizes a delivered event.
	MarkDelivered(ctx context.Context, id string) error

	// MarkFailed bumps the attempt counter; events reaching maxAttempts are
	// parked as dead.
	MarkFailed(ctx context.Context, id, reason string, maxAttempts int) error
}

// PGLedger is the Postgres Ledger.
type PGLedger struct {
	pool *pgxpool.Pool
}

func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

func (l *PGLedger) RecordBill(ctx context.Context, fee *FeeRecord, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if fee != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO consultation_fees (clinic_id, patient_id, fee_date, amount)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (clinic_id, patient_id, fee_date) DO NOTHING`,
			fee.ClinicID, fee.PatientID, fee.FeeDate, fee.Amount)
		if err != nil {
			return fmt.Errorf("record fee: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO notification_outbox (id, topic, payload) VALUES ($1, $2, $3)`,
		uuid.New(), topic, data)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return tx.Commit(ctx)
}

func (l *PGLedger) RecordFee(ctx context.Context, fee FeeRecord) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO consultation_fees (clinic_id, patient_id, fee_date, amount)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (clinic_id, patient_id, fee_date) DO NOTHING`,
		fee.ClinicID, fee.PatientID, fee.FeeDate, fee.Amount)
	if err != nil {
		return false, fmt.Errorf("record fee: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (l *PGLedger) Enqueue(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO notification_outbox (id, topic, payload) VALUES ($1, $2, $3)`,
		uuid.New(), topic, data)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (l *PGLedger) PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, topic, payload, attempts FROM notification_outbox
		 WHERE status = $1 ORDER BY created_at LIMIT $2`,
		StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (l *PGLedger) MarkDelivered(ctx context.Context, id string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = $1, dispatched_at = $2 WHERE id = $3`,
		StatusDelivered, time.Now().UTC(), id)
	return err
}

func (l *PGLedger) MarkFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET attempts = attempts + 1,
		     last_error = $1,
		     status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		 WHERE id = $4`,
		reason, maxAttempts, StatusDead, id)
	return err
}

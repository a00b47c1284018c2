package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemLedger is the in-memory Ledger for tests and database-less runs.
type MemLedger struct {
	mu     sync.Mutex
	fees   map[string]struct{}
	events []memEvent
}

type memEvent struct {
	OutboxEvent
	status    string
	lastError string
}

func NewMemLedger() *MemLedger {
	return &MemLedger{fees: make(map[string]struct{})}
}

func feeKey(fee FeeRecord) string {
	return fee.ClinicID + "|" + fee.PatientID + "|" + fee.FeeDate
}

func (l *MemLedger) RecordBill(ctx context.Context, fee *FeeRecord, topic string, payload interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fee != nil {
		l.fees[feeKey(*fee)] = struct{}{}
	}
	return l.enqueueLocked(topic, payload)
}

func (l *MemLedger) RecordFee(_ context.Context, fee FeeRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := feeKey(fee)
	if _, ok := l.fees[key]; ok {
		return false, nil
	}
	l.fees[key] = struct{}{}
	return true, nil
}

func (l *MemLedger) Enqueue(_ context.Context, topic string, payload interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enqueueLocked(topic, payload)
}

func (l *MemLedger) enqueueLocked(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	l.events = append(l.events, memEvent{
		OutboxEvent: OutboxEvent{ID: uuid.New().String(), Topic: topic, Payload: data},
		status:      StatusPending,
	})
	return nil
}

func (l *MemLedger) PendingEvents(_ context.Context, limit int) ([]OutboxEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []OutboxEvent
	for _, e := range l.events {
		if e.status != StatusPending {
			continue
		}
		out = append(out, e.OutboxEvent)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *MemLedger) MarkDelivered(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.events {
		if l.events[i].ID == id {
			l.events[i].status = StatusDelivered
		}
	}
	return nil
}

func (l *MemLedger) MarkFailed(_ context.Context, id, reason string, maxAttempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.events {
		if l.events[i].ID != id {
			continue
		}
		l.events[i].Attempts++
		l.events[i].lastError = reason
		if l.events[i].Attempts >= maxAttempts {
			l.events[i].status = StatusDead
		}
	}
	return nil
}

// eventStatus is a test helper.
func (l *MemLedger) eventStatus(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.ID == id {
			return e.status
		}
	}
	return ""
}

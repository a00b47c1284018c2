package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// notificationCollection is the docstore collection the assistant mobile app
// consumes.
const notificationCollection = "doctor_assistant_notifications"

const dispatchBatchSize = 25

// Dispatcher drains the outbox: each pending event becomes a document in the
// notification collection plus a best-effort websocket push. Failed
// deliveries retry on the next poll until maxAttempts, then park as dead.
type Dispatcher struct {
	ledger      Ledger
	store       docstore.Store
	publisher   websocket.EventPublisher
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

func NewDispatcher(ledger Ledger, store docstore.Store, publisher websocket.EventPublisher,
	interval time.Duration, maxAttempts int, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		ledger:      ledger,
		store:       store,
		publisher:   publisher,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run polls until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchPending(ctx)
		}
	}
}

// DispatchPending delivers one batch of pending events.
func (d *Dispatcher) DispatchPending(ctx context.Context) {
	events, err := d.ledger.PendingEvents(ctx, dispatchBatchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("outbox poll failed")
		return
	}

	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			d.logger.Warn().Err(err).Str("event_id", event.ID).
				Int("attempts", event.Attempts+1).Msg("notification delivery failed")
			if err := d.ledger.MarkFailed(ctx, event.ID, err.Error(), d.maxAttempts); err != nil {
				d.logger.Error().Err(err).Str("event_id", event.ID).Msg("mark failed errored")
			}
			continue
		}
		if err := d.ledger.MarkDelivered(ctx, event.ID); err != nil {
			d.logger.Error().Err(err).Str("event_id", event.ID).Msg("mark delivered errored")
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event OutboxEvent) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	payload["delivered_at"] = time.Now().UTC()

	if _, err := d.store.Add(ctx, notificationCollection, payload); err != nil {
		return err
	}

	if d.publisher != nil {
		if doctorID, _ := payload["doctor_id"].(string); doctorID != "" {
			ev := websocket.NewEvent("notification", websocket.NotificationTopic(doctorID), payload)
			if err := d.publisher.Publish(ctx, ev); err != nil {
				d.logger.Warn().Err(err).Msg("notification push failed")
			}
		}
	}
	return nil
}

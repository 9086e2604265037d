package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

const (
	// EventTypeSyncCompleted is the event_type of sync completion envelopes.
	EventTypeSyncCompleted = "quickbooks.sync.completed"
	envelopeVersion        = "1.0.0"
)

// Notifier announces completed syncs to downstream consumers.
type Notifier interface {
	PublishSyncCompleted(ctx context.Context, evt model.SyncCompletedEvent) error
	Healthy() bool
	Close() error
}

// NewEnvelope wraps payload in the canonical envelope.
func NewEnvelope(topic, eventType, realmID string, payload any) (*model.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		RealmID:       realmID,
		Topic:         topic,
		EventType:     eventType,
		Version:       envelopeVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}

// Nop discards events. Used when EVENTS_BACKEND is "none".
type Nop struct{}

func (Nop) PublishSyncCompleted(context.Context, model.SyncCompletedEvent) error { return nil }
func (Nop) Healthy() bool                                                       { return true }
func (Nop) Close() error                                                        { return nil }

var (
	_ Notifier = (*NATSPublisher)(nil)
	_ Notifier = (*RabbitPublisher)(nil)
	_ Notifier = Nop{}
)

package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/metrics"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// jetStream is the subset of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes envelopes to a JetStream subject.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	service string
	logger  *zap.Logger
}

// NewNATS creates a JetStream publisher on nc.
func NewNATS(nc *nats.Conn, subject, service string, logger *zap.Logger) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, subject: subject, service: service, logger: logger}, nil
}

// PublishEnvelope serializes env and publishes it with routing headers.
func (p *NATSPublisher) PublishEnvelope(ctx context.Context, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed", zap.String("event_type", env.EventType), zap.Error(err))
		return err
	}

	subject := env.Topic
	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"realm_id":       []string{env.RealmID},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("realm_id", env.RealmID),
			zap.Error(err))
		metrics.IncEventPublishError(subject)
		return err
	}

	p.logger.Info("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", env.EventType),
		zap.String("realm_id", env.RealmID),
		zap.Duration("latency", time.Since(start)))
	return nil
}

// PublishSyncCompleted emits a sync completion envelope on the configured subject.
func (p *NATSPublisher) PublishSyncCompleted(ctx context.Context, evt model.SyncCompletedEvent) error {
	env, err := NewEnvelope(p.subject, EventTypeSyncCompleted, evt.RealmID, evt)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, env)
}

func (p *NATSPublisher) Healthy() bool {
	return p.nc == nil || p.nc.IsConnected()
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

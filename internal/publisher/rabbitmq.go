package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/metrics"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes envelopes to the default exchange, routed by queue name.
type RabbitPublisher struct {
	conn       *amqp.Connection
	channel    amqpChannel
	routingKey string
	service    string
	logger     *zap.Logger
}

// NewRabbit dials url and opens a channel.
func NewRabbit(url, routingKey, service string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &RabbitPublisher{
		conn:       conn,
		channel:    channel,
		routingKey: routingKey,
		service:    service,
		logger:     logger,
	}, nil
}

// PublishSyncCompleted emits a sync completion envelope.
func (p *RabbitPublisher) PublishSyncCompleted(ctx context.Context, evt model.SyncCompletedEvent) error {
	env, err := NewEnvelope(p.routingKey, EventTypeSyncCompleted, evt.RealmID, evt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(
		ctx,
		"",           // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.ID.String(),
			CorrelationId: env.CorrelationID.String(),
			Type:          env.EventType,
			AppId:         p.service,
			Timestamp:     env.Timestamp,
			Body:          body,
		},
	)
	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("routing_key", p.routingKey),
			zap.String("realm_id", evt.RealmID),
			zap.Error(err))
		metrics.IncEventPublishError(p.routingKey)
		return err
	}

	p.logger.Info("publisher.publish_success",
		zap.String("routing_key", p.routingKey),
		zap.String("realm_id", evt.RealmID))
	return nil
}

func (p *RabbitPublisher) Healthy() bool {
	return p.conn == nil || !p.conn.IsClosed()
}

// Close closes the channel and connection.
func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingQuizCompleted     = "quiz.completed"
	RoutingCertificateIssued = "certificate.issued"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends learner events to a topic exchange, routed by event type.
// With an empty URL it is disabled and only logs what it would have sent.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	pub      channel
	exchange string
	enabled  bool
	log      logger.Log

	mu sync.Mutex
}

func NewPublisher(url, exchange string, log logger.Log) (*Publisher, error) {
	if url == "" {
		log.Warn("rabbitmq url is empty, event publishing is disabled")
		return &Publisher{exchange: exchange, log: log}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Info("event publisher ready", "exchange", exchange)
	return &Publisher{conn: conn, ch: ch, pub: ch, exchange: exchange, enabled: true, log: log}, nil
}

func (p *Publisher) QuizCompleted(ctx context.Context, event domain.QuizCompletedEvent) error {
	return p.publish(ctx, RoutingQuizCompleted, event.UserID, event)
}

func (p *Publisher) CertificateIssued(ctx context.Context, event domain.CertificateIssuedEvent) error {
	return p.publish(ctx, RoutingCertificateIssued, event.UserID, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey, userID string, event interface{}) error {
	if !p.enabled {
		p.log.Debug("event publishing disabled, skipping event", "event_type", routingKey, "user_id", userID)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.pub.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers: amqp.Table{
			"event_type": routingKey,
			"user_id":    userID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", routingKey, err)
	}
	p.log.Debug("published event", "event_type", routingKey, "user_id", userID)
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.log.ErrorErr("close rabbitmq channel", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

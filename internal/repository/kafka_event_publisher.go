package repository

import (
	"context"
	"fmt"
	"time"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	pkgkafka "TradeMynd/pkg/kafka"
	applogger "TradeMynd/pkg/logger"
)

// KafkaEventPublisher emits pipeline events to the outbound topic the
// messaging layer consumes. Events are keyed by user so each user's replies
// stay ordered.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	logger   *applogger.Logger
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string, logger *applogger.Logger) domrepo.EventSink {
	return &KafkaEventPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaEventPublisher) Emit(ctx context.Context, e *models.Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(e.UserID), e); err != nil {
		return fmt.Errorf("emit %s: %w", e.Type, err)
	}
	p.logger.Debug("event emitted",
		applogger.String("type", string(e.Type)),
		applogger.String("user_id", e.UserID))
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	pkgkafka "TradeMynd/pkg/kafka"
)

// KafkaMessagesHandler consumes inbound chat messages from the broker and
// runs them through the ingestion pipeline. Used when the chat layer
// publishes to Kafka instead of (or in addition to) the gateway WebSocket.
type KafkaMessagesHandler struct {
	topic    string
	ingestor *Ingestor
	metrics  domrepo.Metrics
}

func NewKafkaMessagesHandler(topic string, ingestor *Ingestor, metrics domrepo.Metrics) *KafkaMessagesHandler {
	return &KafkaMessagesHandler{topic: topic, ingestor: ingestor, metrics: metrics}
}

func (h *KafkaMessagesHandler) Topic() string { return h.topic }

func (h *KafkaMessagesHandler) Handle(ctx context.Context, b []byte) error {
	var msg models.InboundMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	// queue-to-pipeline latency
	h.metrics.RecordLatency("inbound_lag_seconds", time.Since(msg.ReceivedAt).Seconds())

	if _, err := h.ingestor.ProcessMessage(ctx, &msg); err != nil {
		h.metrics.RecordError("consumer_ingest")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaMessagesHandler)(nil)

package usecase

import (
	"context"

	"TradeMynd/internal/domain/models"
	drepo "TradeMynd/internal/domain/repository"
	mid "TradeMynd/internal/middleware"
	applogger "TradeMynd/pkg/logger"
)

// MessageCollector reads inbound chat messages off the gateway stream and
// submits them to the ingest pipeline. Each message is an independent unit
// of work; a failed one never blocks the next.
type MessageCollector struct {
	stream  drepo.MessageStream
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewMessageCollector(stream drepo.MessageStream, pipe *mid.IngestPipeline, metrics drepo.Metrics, logger *applogger.Logger) *MessageCollector {
	return &MessageCollector{stream: stream, pipe: pipe, metrics: metrics, logger: logger}
}

// IsConnected returns true if the gateway stream is connected.
func (c *MessageCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *MessageCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	msgCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, msgCh, errCh)
	return nil
}

func (c *MessageCollector) consume(ctx context.Context, msgCh <-chan *models.InboundMessage, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					c.logger.Error("gateway reconnect failed", applogger.Error(rerr))
				} else {
					msgCh, errCh = c.stream.Read(ctx)
				}
			}
		case msg := <-msgCh:
			if msg == nil {
				continue
			}
			if err := c.pipe.Submit(msg); err != nil {
				c.metrics.RecordError("ingest_submit")
				c.logger.Warn("message rejected at intake",
					applogger.String("user_id", msg.UserID),
					applogger.String("external_id", msg.ExternalID),
					applogger.Error(err))
			}
		}
	}
}

func (c *MessageCollector) Stop() error {
	c.pipe.Stop()
	return c.stream.Close()
}

package repository

import (
	"context"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	applogger "TradeMynd/pkg/logger"
)

// LogEventSink writes events to the log only. Used in development when no
// broker is configured.
type LogEventSink struct {
	logger *applogger.Logger
}

func NewLogEventSink(logger *applogger.Logger) domrepo.EventSink {
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) Emit(_ context.Context, e *models.Event) error {
	s.logger.Info("event",
		applogger.String("type", string(e.Type)),
		applogger.String("user_id", e.UserID),
		applogger.String("session_id", e.SessionID),
		applogger.String("trade_id", e.TradeID),
		applogger.String("summary", e.Summary),
		applogger.String("reason", e.Reason))
	return nil
}

func (s *LogEventSink) Close() error { return nil }

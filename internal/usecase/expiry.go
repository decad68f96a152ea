package usecase

import (
	"context"
	"errors"
	"time"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	applogger "TradeMynd/pkg/logger"
)

// ExpirySweeper walks overdue PENDING sessions on an interval and moves
// them to EXPIRED. The compare-and-swap means a confirm that lands between
// the scan and the sweep simply wins; the sweeper skips it.
type ExpirySweeper struct {
	sessions domrepo.SessionStore
	sink     domrepo.EventSink
	metrics  domrepo.Metrics
	interval time.Duration
	logger   *applogger.Logger
	now      func() time.Time
}

func NewExpirySweeper(sessions domrepo.SessionStore, sink domrepo.EventSink, metrics domrepo.Metrics, interval time.Duration, logger *applogger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		sessions: sessions,
		sink:     sink,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *ExpirySweeper) WithClock(now func() time.Time) *ExpirySweeper {
	s.now = now
	return s
}

// Run blocks until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue pending session once. Exposed for tests and
// for a final pass during shutdown.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	due, err := s.sessions.PendingBefore(ctx, s.now())
	if err != nil {
		s.metrics.RecordError("expiry_scan")
		s.logger.Error("expiry scan failed", applogger.Error(err))
		return
	}

	for _, sess := range due {
		_, err := s.sessions.CompareAndSwap(ctx, sess.ID, models.SessionPending, models.SessionExpired, nil)
		if err != nil {
			var stateErr *models.SessionStateError
			if errors.As(err, &stateErr) || errors.Is(err, models.ErrSessionNotFound) {
				// a user action beat the sweeper to it
				continue
			}
			s.metrics.RecordError("expiry_cas")
			s.logger.Error("session expiry failed",
				applogger.String("session_id", sess.ID), applogger.Error(err))
			continue
		}
		s.metrics.RecordSessionTransition(string(models.SessionExpired))

		ev := &models.Event{
			Type:       models.EventSessionExpired,
			UserID:     sess.UserID,
			SessionID:  sess.ID,
			ExternalID: sess.Candidate.RawInputRef,
			Reason:     "confirmation window elapsed",
			OccurredAt: s.now(),
		}
		if err := s.sink.Emit(ctx, ev); err != nil {
			s.metrics.RecordError("event_emit")
			s.logger.Error("event emit failed",
				applogger.String("type", string(ev.Type)), applogger.Error(err))
		}
	}
}

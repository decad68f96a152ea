package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	"TradeMynd/internal/service/extract"
	"TradeMynd/internal/service/media"
	"TradeMynd/internal/service/quota"
	applogger "TradeMynd/pkg/logger"
)

type IngestConfig struct {
	AutoAcceptThreshold float64
	SessionTTL          time.Duration
}

// Ingestor runs the per-message pipeline: charge the attempt budget,
// normalize, extract, then either auto-commit or open a confirmation
// session.
// Every outcome, success or failure, maps to exactly one outbound event.
type Ingestor struct {
	normalizer *media.Normalizer
	governor   *quota.Governor
	engine     *extract.Engine
	sessions   domrepo.SessionStore
	committer  *Committer
	sink       domrepo.EventSink
	metrics    domrepo.Metrics
	cfg        IngestConfig
	logger     *applogger.Logger
	now        func() time.Time
}

func NewIngestor(
	normalizer *media.Normalizer,
	governor *quota.Governor,
	engine *extract.Engine,
	sessions domrepo.SessionStore,
	committer *Committer,
	sink domrepo.EventSink,
	metrics domrepo.Metrics,
	cfg IngestConfig,
	logger *applogger.Logger,
) *Ingestor {
	return &Ingestor{
		normalizer: normalizer,
		governor:   governor,
		engine:     engine,
		sessions:   sessions,
		committer:  committer,
		sink:       sink,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

// ProcessMessage handles one inbound message end to end and returns the
// event that was emitted for it. A non-nil error means an infrastructure
// failure, not a user-facing rejection.
func (i *Ingestor) ProcessMessage(ctx context.Context, msg *models.InboundMessage) (*models.Event, error) {
	start := i.now()
	defer func() {
		i.metrics.RecordLatency("process_message", i.now().Sub(start).Seconds())
	}()

	// the governor admits first; a capped user's media is never decoded
	if err := i.governor.CheckAttempt(ctx, msg.UserID); err != nil {
		var qe *models.QuotaExceededError
		if errors.As(err, &qe) {
			return i.finish(ctx, msg, eventForError(msg, err, i.now()), err)
		}
		return nil, err
	}

	in, err := i.normalizer.Normalize(msg)
	if err != nil {
		return i.finish(ctx, msg, eventForError(msg, err, i.now()), err)
	}

	cand, err := i.engine.Extract(ctx, msg, in)
	if err != nil {
		return i.finish(ctx, msg, eventForError(msg, err, i.now()), err)
	}

	if cand.Confidence >= i.cfg.AutoAcceptThreshold {
		return i.autoCommit(ctx, msg, cand)
	}
	return i.openSession(ctx, msg, cand)
}

func (i *Ingestor) autoCommit(ctx context.Context, msg *models.InboundMessage, cand *models.TradeCandidate) (*models.Event, error) {
	trade, err := i.committer.Commit(ctx, msg.UserID, cand, CommitSourceAuto)
	if err != nil {
		ev := eventForError(msg, err, i.now())
		if ev == nil {
			return nil, err
		}
		return i.finish(ctx, msg, ev, err)
	}

	ev := &models.Event{
		Type:       models.EventTradeCommitted,
		UserID:     msg.UserID,
		TradeID:    trade.ID,
		ExternalID: msg.ExternalID,
		Summary:    cand.Summary(),
		OccurredAt: i.now(),
	}
	return i.finish(ctx, msg, ev, nil)
}

func (i *Ingestor) openSession(ctx context.Context, msg *models.InboundMessage, cand *models.TradeCandidate) (*models.Event, error) {
	now := i.now()
	sess := &models.ConfirmationSession{
		ID:        uuid.NewString(),
		UserID:    msg.UserID,
		Candidate: cand,
		Status:    models.SessionPending,
		CreatedAt: now,
		ExpiresAt: now.Add(i.cfg.SessionTTL),
	}
	if err := i.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	i.metrics.RecordSessionTransition(string(models.SessionPending))

	ev := &models.Event{
		Type:       models.EventConfirmationRequested,
		UserID:     msg.UserID,
		SessionID:  sess.ID,
		ExternalID: msg.ExternalID,
		Summary:    cand.Summary(),
		OccurredAt: now,
	}
	return i.finish(ctx, msg, ev, nil)
}

// finish emits the event. A sink failure is logged, never surfaced: the
// pipeline outcome stands regardless of delivery.
func (i *Ingestor) finish(ctx context.Context, msg *models.InboundMessage, ev *models.Event, cause error) (*models.Event, error) {
	if cause != nil {
		i.logger.Info("message rejected",
			applogger.String("user_id", msg.UserID),
			applogger.String("external_id", msg.ExternalID),
			applogger.String("event", string(ev.Type)),
			applogger.Error(cause))
	}
	if err := i.sink.Emit(ctx, ev); err != nil {
		i.metrics.RecordError("event_emit")
		i.logger.Error("event emit failed",
			applogger.String("type", string(ev.Type)), applogger.Error(err))
	}
	return ev, nil
}

// eventForError maps a typed pipeline error to its outbound event. Returns
// nil for errors that are not user-facing outcomes.
func eventForError(msg *models.InboundMessage, err error, now time.Time) *models.Event {
	base := models.Event{
		UserID:     msg.UserID,
		ExternalID: msg.ExternalID,
		OccurredAt: now,
	}

	var qe *models.QuotaExceededError
	if errors.As(err, &qe) {
		base.Type = models.EventQuotaExceeded
		base.Reason = fmt.Sprintf("%s plan allows %d (%s). %s", qe.Plan, qe.Cap, qe.Limit, qe.UpgradeHint)
		return &base
	}

	var (
		unsupported *models.UnsupportedMediaKindError
		tooLarge    *models.MediaTooLargeError
		transcribe  *models.TranscriptionUnavailableError
		extraction  *models.ExtractionFailedError
		invalid     *models.InvalidTradeDataError
	)
	switch {
	case errors.As(err, &unsupported),
		errors.As(err, &tooLarge),
		errors.As(err, &transcribe),
		errors.As(err, &extraction),
		errors.As(err, &invalid):
		base.Type = models.EventExtractionFailed
		base.Reason = err.Error()
		return &base
	}
	return nil
}

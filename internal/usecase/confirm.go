package usecase

import (
	"context"
	"errors"
	"time"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	applogger "TradeMynd/pkg/logger"
)

// Confirmer resolves pending confirmation sessions: confirm as-is, confirm
// with corrections, or reject. All transitions go through the store's
// compare-and-swap, so a user action racing the expiry sweeper settles on
// whichever writer lands first.
type Confirmer struct {
	sessions  domrepo.SessionStore
	committer *Committer
	sink      domrepo.EventSink
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	now       func() time.Time
}

func NewConfirmer(sessions domrepo.SessionStore, committer *Committer, sink domrepo.EventSink, metrics domrepo.Metrics, logger *applogger.Logger) *Confirmer {
	return &Confirmer{
		sessions:  sessions,
		committer: committer,
		sink:      sink,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (c *Confirmer) WithClock(now func() time.Time) *Confirmer {
	c.now = now
	return c
}

// Confirm commits the held candidate as-is.
func (c *Confirmer) Confirm(ctx context.Context, sessionID string) (*models.Event, error) {
	return c.resolve(ctx, sessionID, nil)
}

// Edit applies corrections and commits the merged candidate in one step.
// No second confirmation round: a user who typed corrections has already
// looked at every field.
func (c *Confirmer) Edit(ctx context.Context, sessionID string, overrides *models.CandidateOverrides) (*models.Event, error) {
	return c.resolve(ctx, sessionID, overrides)
}

func (c *Confirmer) resolve(ctx context.Context, sessionID string, overrides *models.CandidateOverrides) (*models.Event, error) {
	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if expired, ev := c.expireIfDue(ctx, sess); expired {
		return ev, nil
	}

	cand := sess.Candidate
	if !overrides.Empty() {
		cand = sess.Candidate.Merge(overrides)
		sess, err = c.sessions.CompareAndSwap(ctx, sessionID, models.SessionPending, models.SessionEdited, cand)
		if err != nil {
			return nil, err
		}
		c.metrics.RecordSessionTransition(string(models.SessionEdited))

		sess, err = c.sessions.CompareAndSwap(ctx, sessionID, models.SessionEdited, models.SessionConfirmed, nil)
	} else {
		sess, err = c.sessions.CompareAndSwap(ctx, sessionID, models.SessionPending, models.SessionConfirmed, nil)
	}
	if err != nil {
		return nil, err
	}
	c.metrics.RecordSessionTransition(string(models.SessionConfirmed))

	trade, err := c.committer.Commit(ctx, sess.UserID, cand, CommitSourceConfirm)
	if err != nil {
		msg := &models.InboundMessage{UserID: sess.UserID, ExternalID: cand.RawInputRef}
		if ev := eventForError(msg, err, c.now()); ev != nil {
			ev.SessionID = sessionID
			c.emit(ctx, ev)
			return ev, nil
		}
		return nil, err
	}

	ev := &models.Event{
		Type:       models.EventTradeCommitted,
		UserID:     sess.UserID,
		SessionID:  sessionID,
		TradeID:    trade.ID,
		ExternalID: cand.RawInputRef,
		Summary:    cand.Summary(),
		OccurredAt: c.now(),
	}
	c.emit(ctx, ev)
	return ev, nil
}

// Reject discards the candidate. Nothing is committed.
func (c *Confirmer) Reject(ctx context.Context, sessionID string) (*models.Event, error) {
	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if expired, ev := c.expireIfDue(ctx, sess); expired {
		return ev, nil
	}

	sess, err = c.sessions.CompareAndSwap(ctx, sessionID, models.SessionPending, models.SessionRejected, nil)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordSessionTransition(string(models.SessionRejected))

	ev := &models.Event{
		Type:       models.EventTradeRejected,
		UserID:     sess.UserID,
		SessionID:  sessionID,
		ExternalID: sess.Candidate.RawInputRef,
		OccurredAt: c.now(),
	}
	c.emit(ctx, ev)
	return ev, nil
}

// Get returns the current session state for status queries.
func (c *Confirmer) Get(ctx context.Context, sessionID string) (*models.ConfirmationSession, error) {
	return c.sessions.Get(ctx, sessionID)
}

// expireIfDue handles a user action arriving after the TTL but before the
// sweeper got to the session: the session expires now and the action is
// refused.
func (c *Confirmer) expireIfDue(ctx context.Context, sess *models.ConfirmationSession) (bool, *models.Event) {
	if sess.Status != models.SessionPending || !sess.ExpiredAt(c.now()) {
		return false, nil
	}

	_, err := c.sessions.CompareAndSwap(ctx, sess.ID, models.SessionPending, models.SessionExpired, nil)
	if err != nil {
		// someone else already moved it, the caller re-reads on retry
		var stateErr *models.SessionStateError
		if !errors.As(err, &stateErr) {
			c.logger.Error("session expiry failed",
				applogger.String("session_id", sess.ID), applogger.Error(err))
		}
		return false, nil
	}
	c.metrics.RecordSessionTransition(string(models.SessionExpired))

	ev := &models.Event{
		Type:       models.EventSessionExpired,
		UserID:     sess.UserID,
		SessionID:  sess.ID,
		ExternalID: sess.Candidate.RawInputRef,
		Reason:     "confirmation window elapsed",
		OccurredAt: c.now(),
	}
	c.emit(ctx, ev)
	return true, ev
}

func (c *Confirmer) emit(ctx context.Context, ev *models.Event) {
	if err := c.sink.Emit(ctx, ev); err != nil {
		c.metrics.RecordError("event_emit")
		c.logger.Error("event emit failed",
			applogger.String("type", string(ev.Type)), applogger.Error(err))
	}
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeMynd/internal/domain/models"
)

func newSession(id string, status models.SessionStatus, expiresAt time.Time) *models.ConfirmationSession {
	return &models.ConfirmationSession{
		ID:     id,
		UserID: "u1",
		Candidate: &models.TradeCandidate{
			Instrument: "XAUUSD",
			Direction:  models.DirectionLong,
			Confidence: 0.6,
		},
		Status:    status,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStoreCreateGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess := newSession("s1", models.SessionPending, time.Now().Add(15*time.Minute))
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.SessionPending || got.Candidate.Instrument != "XAUUSD" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess := newSession("s1", models.SessionPending, time.Now().Add(15*time.Minute))
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.CompareAndSwap(ctx, "s1", models.SessionPending, models.SessionConfirmed, nil)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if got.Status != models.SessionConfirmed {
		t.Fatalf("got status %s", got.Status)
	}

	// a duplicate confirm loses the race and sees the real status
	_, err = s.CompareAndSwap(ctx, "s1", models.SessionPending, models.SessionConfirmed, nil)
	var stateErr *models.SessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
	if stateErr.From != models.SessionConfirmed {
		t.Fatalf("expected actual status CONFIRMED, got %s", stateErr.From)
	}
}

func TestMemoryStoreCASReplacesCandidate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, newSession("s1", models.SessionPending, time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("create: %v", err)
	}

	merged := &models.TradeCandidate{Instrument: "BTCUSD", Direction: models.DirectionShort, Confidence: 1.0}
	got, err := s.CompareAndSwap(ctx, "s1", models.SessionPending, models.SessionEdited, merged)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if got.Candidate.Instrument != "BTCUSD" || got.Candidate.Confidence != 1.0 {
		t.Fatalf("candidate not replaced: %+v", got.Candidate)
	}
}

func TestMemoryStorePendingBefore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if err := s.Create(ctx, newSession("expired", models.SessionPending, now.Add(-time.Minute))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, newSession("live", models.SessionPending, now.Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, newSession("done", models.SessionConfirmed, now.Add(-time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := s.PendingBefore(ctx, now)
	if err != nil {
		t.Fatalf("pending before: %v", err)
	}
	if len(due) != 1 || due[0].ID != "expired" {
		t.Fatalf("expected only the expired pending session, got %+v", due)
	}
}

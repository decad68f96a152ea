package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeMynd/internal/domain/models"
	"TradeMynd/internal/service/ratelimit"
	applogger "TradeMynd/pkg/logger"
)

type staticPlans struct {
	plan models.Plan
}

func (s *staticPlans) GetPlan(context.Context, string) (models.Plan, error) {
	return s.plan, nil
}

type fakeTradeStore struct {
	trades []time.Time
}

func (f *fakeTradeStore) Init(context.Context) error { return nil }
func (f *fakeTradeStore) CreateTrade(_ context.Context, t *models.Trade) (*models.Trade, error) {
	f.trades = append(f.trades, t.CreatedAt)
	return t, nil
}
func (f *fakeTradeStore) CountSince(_ context.Context, _ string, since time.Time) (int, error) {
	n := 0
	for _, ts := range f.trades {
		if !ts.Before(since) {
			n++
		}
	}
	return n, nil
}
func (f *fakeTradeStore) Health(context.Context) error { return nil }
func (f *fakeTradeStore) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordExtraction(string, string) {}
func (nopMetrics) RecordCommit(string)             {}
func (nopMetrics) RecordQuotaRejection(string)     {}
func (nopMetrics) RecordSessionTransition(string)  {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}

func testGovernor(t *testing.T, plan models.Plan, store *fakeTradeStore, now *time.Time) *Governor {
	t.Helper()
	lg, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	clock := func() time.Time { return *now }
	limiter := ratelimit.NewWithClock(clock)
	g := NewGovernor(&staticPlans{plan: plan}, store, limiter, nopMetrics{}, Config{
		UpgradeHint: "Upgrade to Pro for unlimited trades",
	}, lg)
	return g.WithClock(clock)
}

func TestCheckAttemptExhaustsAndRefills(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	g := testGovernor(t, models.Plan{Name: "free", HourlyAttempts: 3, MonthlyTradeCap: 30}, &fakeTradeStore{}, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := g.CheckAttempt(ctx, "u1"); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
	}

	err := g.CheckAttempt(ctx, "u1")
	var qe *models.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Limit != models.QuotaHourlyAttempts || qe.Cap != 3 {
		t.Fatalf("unexpected rejection: %+v", qe)
	}

	// rolling refill: after 20 minutes one of three tokens is back
	now = now.Add(20 * time.Minute)
	if err := g.CheckAttempt(ctx, "u1"); err != nil {
		t.Fatalf("expected refilled token, got %v", err)
	}
	if err := g.CheckAttempt(ctx, "u1"); !errors.As(err, &qe) {
		t.Fatalf("expected rejection after consuming refill, got %v", err)
	}
}

func TestCheckAttemptIsPerUser(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	g := testGovernor(t, models.Plan{Name: "free", HourlyAttempts: 1}, &fakeTradeStore{}, &now)
	ctx := context.Background()

	if err := g.CheckAttempt(ctx, "u1"); err != nil {
		t.Fatalf("u1 first attempt: %v", err)
	}
	if err := g.CheckAttempt(ctx, "u2"); err != nil {
		t.Fatalf("u2 must have its own budget: %v", err)
	}
}

func TestCheckAttemptUnlimitedPlan(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	g := testGovernor(t, models.Plan{Name: "pro"}, &fakeTradeStore{}, &now)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := g.CheckAttempt(ctx, "u1"); err != nil {
			t.Fatalf("unlimited plan rejected at %d: %v", i, err)
		}
	}
}

func TestCheckAttemptRejectsAtMonthlyCap(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeTradeStore{trades: []time.Time{
		time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	}}
	g := testGovernor(t, models.Plan{Name: "free", HourlyAttempts: 5, MonthlyTradeCap: 1}, store, &now)
	ctx := context.Background()

	err := g.CheckAttempt(ctx, "u1")
	var qe *models.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("capped user must be rejected at admission, got %v", err)
	}
	if qe.Limit != models.QuotaMonthlyTrades {
		t.Fatalf("expected monthly limit, got %s", qe.Limit)
	}

	// the rejection must not have burned hourly tokens
	store.trades = nil
	for i := 0; i < 5; i++ {
		if err := g.CheckAttempt(ctx, "u1"); err != nil {
			t.Fatalf("attempt %d after cap lifted: %v", i+1, err)
		}
	}
}

func TestCheckCommitMonthlyCap(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeTradeStore{}
	g := testGovernor(t, models.Plan{Name: "free", MonthlyTradeCap: 2}, store, &now)
	ctx := context.Background()

	if err := g.CheckCommit(ctx, "u1"); err != nil {
		t.Fatalf("first commit check: %v", err)
	}
	store.trades = append(store.trades,
		time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	err := g.CheckCommit(ctx, "u1")
	var qe *models.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Limit != models.QuotaMonthlyTrades || qe.UpgradeHint == "" {
		t.Fatalf("unexpected rejection: %+v", qe)
	}
}

func TestCheckCommitResetsAtMonthBoundary(t *testing.T) {
	now := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
	store := &fakeTradeStore{trades: []time.Time{
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC),
	}}
	g := testGovernor(t, models.Plan{Name: "free", MonthlyTradeCap: 2}, store, &now)
	ctx := context.Background()

	var qe *models.QuotaExceededError
	if err := g.CheckCommit(ctx, "u1"); !errors.As(err, &qe) {
		t.Fatalf("expected rejection in June, got %v", err)
	}

	now = time.Date(2025, 7, 1, 0, 0, 1, 0, time.UTC)
	if err := g.CheckCommit(ctx, "u1"); err != nil {
		t.Fatalf("July must start a fresh budget, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeTradeStore{trades: []time.Time{
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}}
	g := testGovernor(t, models.Plan{Name: "free", HourlyAttempts: 10, MonthlyTradeCap: 30}, store, &now)
	ctx := context.Background()

	if err := g.CheckAttempt(ctx, "u1"); err != nil {
		t.Fatalf("attempt: %v", err)
	}

	state, err := g.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if state.Plan != "free" || state.MonthlyTradeCap != 30 {
		t.Fatalf("unexpected snapshot: %+v", state)
	}
	if state.HourlyAttempts != 9 {
		t.Fatalf("expected 9 attempts left, got %d", state.HourlyAttempts)
	}
	if state.MonthlyCommitted != 1 {
		t.Fatalf("expected 1 committed this month, got %d", state.MonthlyCommitted)
	}
}

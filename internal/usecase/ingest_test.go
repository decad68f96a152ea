package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeMynd/internal/domain/models"
	"TradeMynd/internal/domain/repository"
	domsvc "TradeMynd/internal/domain/service"
	"TradeMynd/internal/service/extract"
	"TradeMynd/internal/service/media"
	"TradeMynd/internal/service/quota"
	"TradeMynd/internal/service/ratelimit"
	"TradeMynd/internal/service/session"
	"TradeMynd/pkg/cache"
	applogger "TradeMynd/pkg/logger"
)

// --- fakes ---

type scriptedInvoker struct {
	responses []string
	calls     int
}

func (s *scriptedInvoker) Invoke(_ context.Context, _ *domsvc.ModelRequest) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type staticPlans struct {
	plan models.Plan
}

func (s *staticPlans) GetPlan(context.Context, string) (models.Plan, error) {
	return s.plan, nil
}

type fakeTradeStore struct {
	trades []*models.Trade
}

func (f *fakeTradeStore) Init(context.Context) error { return nil }
func (f *fakeTradeStore) CreateTrade(_ context.Context, t *models.Trade) (*models.Trade, error) {
	cp := *t
	cp.ID = "t-" + cp.Instrument
	f.trades = append(f.trades, &cp)
	return &cp, nil
}
func (f *fakeTradeStore) CountSince(_ context.Context, _ string, since time.Time) (int, error) {
	n := 0
	for _, t := range f.trades {
		if !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
func (f *fakeTradeStore) Health(context.Context) error { return nil }
func (f *fakeTradeStore) Close() error                 { return nil }

type captureSink struct {
	events []*models.Event
}

func (c *captureSink) Emit(_ context.Context, e *models.Event) error {
	c.events = append(c.events, e)
	return nil
}
func (c *captureSink) Close() error { return nil }

func (c *captureSink) last(t *testing.T) *models.Event {
	t.Helper()
	if len(c.events) == 0 {
		t.Fatal("no events emitted")
	}
	return c.events[len(c.events)-1]
}

type nopLog struct{}

func (nopLog) Append(*repository.AuditEntry) {}
func (nopLog) Close() error                  { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordExtraction(string, string) {}
func (nopMetrics) RecordCommit(string)             {}
func (nopMetrics) RecordQuotaRejection(string)     {}
func (nopMetrics) RecordSessionTransition(string)  {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}

// --- harness ---

type pipelineEnv struct {
	ingestor  *Ingestor
	confirmer *Confirmer
	sweeper   *ExpirySweeper
	invoker   *scriptedInvoker
	store     *fakeTradeStore
	sessions  *session.MemoryStore
	sink      *captureSink
	advance   func(time.Duration)
}

func newPipelineEnv(t *testing.T, plan models.Plan, responses ...string) *pipelineEnv {
	t.Helper()
	lg, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	invoker := &scriptedInvoker{responses: responses}
	store := &fakeTradeStore{}
	sessions := session.NewMemoryStore()
	sink := &captureSink{}

	normalizer := media.NewNormalizer(media.Config{MaxBytes: 8 << 20, MaxImageEdge: 1024, JPEGQuality: 85}, lg)
	engine := extract.NewEngine(invoker, &fakeTranscriber{text: "sold eur at 1.09"},
		cache.NewMemoryCache(), nopLog{}, nopMetrics{}, extract.Config{
			CacheTTL:            time.Hour,
			AutoAcceptThreshold: 0.8,
		}, lg)
	governor := quota.NewGovernor(&staticPlans{plan: plan}, store,
		ratelimit.NewWithClock(clock), nopMetrics{}, quota.Config{UpgradeHint: "Upgrade to Pro"}, lg).
		WithClock(clock)
	committer := NewCommitter(store, governor, nopMetrics{}, lg).WithClock(clock)

	env := &pipelineEnv{
		invoker:  invoker,
		store:    store,
		sessions: sessions,
		sink:     sink,
		advance:  func(d time.Duration) { now = now.Add(d) },
	}
	env.ingestor = NewIngestor(normalizer, governor, engine, sessions, committer, sink, nopMetrics{},
		IngestConfig{AutoAcceptThreshold: 0.8, SessionTTL: 15 * time.Minute}, lg).
		WithClock(clock)
	env.confirmer = NewConfirmer(sessions, committer, sink, nopMetrics{}, lg).WithClock(clock)
	env.sweeper = NewExpirySweeper(sessions, sink, nopMetrics{}, 30*time.Second, lg).WithClock(clock)
	return env
}

func textMessage(id, text string) *models.InboundMessage {
	return &models.InboundMessage{
		UserID:     "u1",
		InputType:  models.InputText,
		Text:       text,
		ExternalID: id,
		ReceivedAt: time.Now(),
	}
}

const highConfJSON = `{"instrument":"XAUUSD","direction":"LONG","entry_price":2301.5,"exit_price":2310.0,"stop_loss":2295.0,"take_profit":2312.0,"result":"WIN","r_multiple":1.7,"emotion":"calm","mistakes":null,"notes":null,"confidence":0.95}`
const lowConfJSON = `{"instrument":"XAUUSD","direction":"LONG","entry_price":2301.5,"exit_price":null,"stop_loss":null,"take_profit":null,"result":null,"r_multiple":null,"emotion":null,"mistakes":null,"notes":null,"confidence":0.55}`

// --- tests ---

func TestHighConfidenceAutoCommits(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, highConfJSON)

	ev, err := env.ingestor.ProcessMessage(context.Background(), textMessage("m1", "long gold 2301.5 out 2310, 1.7R win"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ev.Type != models.EventTradeCommitted {
		t.Fatalf("expected TRADE_COMMITTED, got %s", ev.Type)
	}
	if len(env.store.trades) != 1 {
		t.Fatalf("expected 1 stored trade, got %d", len(env.store.trades))
	}
	trade := env.store.trades[0]
	if trade.Instrument != "XAUUSD" || trade.Direction != models.DirectionLong {
		t.Fatalf("unexpected trade: %+v", trade)
	}
	if ev.Summary == "" || ev.TradeID == "" {
		t.Fatalf("event missing summary or trade id: %+v", ev)
	}
}

func TestLowConfidenceOpensSession(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, lowConfJSON)

	ev, err := env.ingestor.ProcessMessage(context.Background(), textMessage("m1", "think I went long gold"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ev.Type != models.EventConfirmationRequested {
		t.Fatalf("expected CONFIRMATION_REQUESTED, got %s", ev.Type)
	}
	if len(env.store.trades) != 0 {
		t.Fatal("nothing may be committed before confirmation")
	}

	sess, err := env.sessions.Get(context.Background(), ev.SessionID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.Status != models.SessionPending {
		t.Fatalf("expected PENDING session, got %s", sess.Status)
	}
	if !sess.ExpiresAt.Equal(sess.CreatedAt.Add(15 * time.Minute)) {
		t.Fatalf("unexpected TTL: created %v expires %v", sess.CreatedAt, sess.ExpiresAt)
	}
}

func TestConfirmCommitsHeldCandidate(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, lowConfJSON)
	ctx := context.Background()

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "think I went long gold"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	cev, err := env.confirmer.Confirm(ctx, ev.SessionID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if cev.Type != models.EventTradeCommitted {
		t.Fatalf("expected TRADE_COMMITTED, got %s", cev.Type)
	}
	if len(env.store.trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(env.store.trades))
	}

	// duplicate confirm is refused, no double commit
	_, err = env.confirmer.Confirm(ctx, ev.SessionID)
	var stateErr *models.SessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
	if len(env.store.trades) != 1 {
		t.Fatal("duplicate confirm must not commit twice")
	}
}

func TestEditMergesAndCommits(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, lowConfJSON)
	ctx := context.Background()

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "think I went long gold"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	dir := models.DirectionShort
	res := models.ResultLoss
	cev, err := env.confirmer.Edit(ctx, ev.SessionID, &models.CandidateOverrides{
		Direction: &dir,
		Result:    &res,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if cev.Type != models.EventTradeCommitted {
		t.Fatalf("expected TRADE_COMMITTED, got %s", cev.Type)
	}

	trade := env.store.trades[0]
	if trade.Direction != models.DirectionShort || trade.Result != models.ResultLoss {
		t.Fatalf("overrides not applied: %+v", trade)
	}
	// extracted fields the user left alone survive the merge
	if trade.Instrument != "XAUUSD" || trade.EntryPrice == nil || trade.EntryPrice.String() != "2301.5" {
		t.Fatalf("extracted fields lost in merge: %+v", trade)
	}

	sess, _ := env.sessions.Get(ctx, ev.SessionID)
	if sess.Status != models.SessionConfirmed {
		t.Fatalf("expected CONFIRMED after edit, got %s", sess.Status)
	}
	if sess.Candidate.Confidence != 1.0 {
		t.Fatalf("edited candidate must be human-verified, confidence %v", sess.Candidate.Confidence)
	}
}

func TestRejectDiscardsCandidate(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, lowConfJSON)
	ctx := context.Background()

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "think I went long gold"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	rev, err := env.confirmer.Reject(ctx, ev.SessionID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rev.Type != models.EventTradeRejected {
		t.Fatalf("expected TRADE_REJECTED, got %s", rev.Type)
	}
	if len(env.store.trades) != 0 {
		t.Fatal("rejected candidate must not be committed")
	}
}

func TestLateConfirmAfterTTLExpires(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, lowConfJSON)
	ctx := context.Background()

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "think I went long gold"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	env.advance(16 * time.Minute)

	cev, err := env.confirmer.Confirm(ctx, ev.SessionID)
	if err != nil {
		t.Fatalf("late confirm: %v", err)
	}
	if cev.Type != models.EventSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED, got %s", cev.Type)
	}
	if len(env.store.trades) != 0 {
		t.Fatal("late confirm must not commit")
	}

	sess, _ := env.sessions.Get(ctx, ev.SessionID)
	if sess.Status != models.SessionExpired {
		t.Fatalf("expected EXPIRED, got %s", sess.Status)
	}
}

func TestSweeperExpiresOverdueSessions(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10}, lowConfJSON)
	ctx := context.Background()

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "think I went long gold"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	env.advance(16 * time.Minute)
	env.sweeper.Sweep(ctx)

	sess, _ := env.sessions.Get(ctx, ev.SessionID)
	if sess.Status != models.SessionExpired {
		t.Fatalf("expected EXPIRED after sweep, got %s", sess.Status)
	}
	last := env.sink.last(t)
	if last.Type != models.EventSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED event, got %s", last.Type)
	}
}

func TestHourlyAttemptQuotaBlocksBeforeModel(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 1},
		highConfJSON, highConfJSON)
	ctx := context.Background()

	if _, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "long gold 2301.5 win")); err != nil {
		t.Fatalf("first message: %v", err)
	}

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m2", "short euro 1.09 loss"))
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if ev.Type != models.EventQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %s", ev.Type)
	}
	if env.invoker.calls != 1 {
		t.Fatalf("model must not be called past the attempt budget, got %d calls", env.invoker.calls)
	}
}

func TestMonthlyCapBlocksBeforeModelCall(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 1, HourlyAttempts: 10},
		highConfJSON)
	ctx := context.Background()

	env.store.trades = append(env.store.trades, &models.Trade{
		UserID:    "u1",
		CreatedAt: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	})

	ev, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "long gold 2301.5 win"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ev.Type != models.EventQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %s", ev.Type)
	}
	if ev.Reason == "" {
		t.Fatal("quota rejection must carry the upgrade hint")
	}
	if env.invoker.calls != 0 {
		t.Fatalf("model must not be invoked once the monthly cap is hit, got %d calls", env.invoker.calls)
	}
	if len(env.store.trades) != 1 {
		t.Fatal("capped user must not get a new trade")
	}
}

func TestQuotaRejectionPrecedesMediaChecks(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 1, HourlyAttempts: 10})
	ctx := context.Background()

	env.store.trades = append(env.store.trades, &models.Trade{
		UserID:    "u1",
		CreatedAt: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	})

	// garbage image bytes: a capped user is rejected by the governor
	// before the normalizer would have failed on them
	ev, err := env.ingestor.ProcessMessage(ctx, &models.InboundMessage{
		UserID:       "u1",
		InputType:    models.InputScreenshot,
		Payload:      []byte("not an image"),
		DeclaredMIME: "image/png",
		ExternalID:   "m1",
		ReceivedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ev.Type != models.EventQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED ahead of media handling, got %s", ev.Type)
	}
}

func TestEveryOutcomeEmitsExactlyOneEvent(t *testing.T) {
	env := newPipelineEnv(t, models.Plan{Name: "free", MonthlyTradeCap: 30, HourlyAttempts: 10},
		highConfJSON, "garbage", "still garbage")
	ctx := context.Background()

	if _, err := env.ingestor.ProcessMessage(ctx, textMessage("m1", "long gold 2301.5 win")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := env.ingestor.ProcessMessage(ctx, textMessage("m2", "???")); err != nil {
		t.Fatalf("second: %v", err)
	}

	if len(env.sink.events) != 2 {
		t.Fatalf("expected exactly 2 events, got %d", len(env.sink.events))
	}
	if env.sink.events[0].Type != models.EventTradeCommitted ||
		env.sink.events[1].Type != models.EventExtractionFailed {
		t.Fatalf("unexpected event sequence: %s, %s",
			env.sink.events[0].Type, env.sink.events[1].Type)
	}
}

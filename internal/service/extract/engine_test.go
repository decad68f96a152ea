package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeMynd/internal/domain/models"
	"TradeMynd/internal/domain/repository"
	domsvc "TradeMynd/internal/domain/service"
	"TradeMynd/internal/service/media"
	"TradeMynd/internal/service/model"
	"TradeMynd/pkg/cache"
	applogger "TradeMynd/pkg/logger"
)

type scriptedInvoker struct {
	responses []string
	errs      []error
	requests  []*domsvc.ModelRequest
}

func (s *scriptedInvoker) Invoke(_ context.Context, req *domsvc.ModelRequest) (string, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type captureLog struct {
	entries []*repository.AuditEntry
}

func (c *captureLog) Append(e *repository.AuditEntry) { c.entries = append(c.entries, e) }
func (c *captureLog) Close() error                   { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordExtraction(string, string) {}
func (nopMetrics) RecordCommit(string)             {}
func (nopMetrics) RecordQuotaRejection(string)     {}
func (nopMetrics) RecordSessionTransition(string)  {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}

func testEngine(t *testing.T, inv domsvc.ModelInvoker, tr domsvc.Transcriber) (*Engine, *captureLog) {
	t.Helper()
	lg, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	audit := &captureLog{}
	eng := NewEngine(inv, tr, cache.NewMemoryCache(), audit, nopMetrics{}, Config{
		CacheTTL:            time.Hour,
		AutoAcceptThreshold: 0.8,
	}, lg)
	return eng, audit
}

func textMsg(text string) (*models.InboundMessage, *media.NormalizedInput) {
	return &models.InboundMessage{
			UserID:     "u1",
			InputType:  models.InputText,
			Text:       text,
			ExternalID: "msg-1",
			ReceivedAt: time.Now(),
		}, &media.NormalizedInput{
			Kind: media.KindText,
			Text: text,
			MIME: "text/plain",
		}
}

const goodJSON = `{"instrument":"xauusd","direction":"LONG","entry_price":2301.5,"exit_price":2310.0,"stop_loss":null,"take_profit":null,"result":"WIN","r_multiple":1.7,"emotion":null,"mistakes":null,"notes":null,"confidence":0.93}`

func TestExtractHappyPath(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{goodJSON}}
	eng, audit := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("long gold 2301.5 out 2310 win 1.7R")
	cand, err := eng.Extract(context.Background(), msg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Instrument != "XAUUSD" {
		t.Fatalf("expected upper-cased instrument, got %q", cand.Instrument)
	}
	if cand.Direction != models.DirectionLong || cand.Result != models.ResultWin {
		t.Fatalf("got direction=%s result=%s", cand.Direction, cand.Result)
	}
	if cand.EntryPrice == nil || cand.EntryPrice.String() != "2301.5" {
		t.Fatalf("got entry price %v", cand.EntryPrice)
	}
	if cand.Confidence != 0.93 {
		t.Fatalf("got confidence %v", cand.Confidence)
	}
	if cand.CacheDerived {
		t.Fatal("fresh extraction must not be cache derived")
	}
	if len(audit.entries) != 1 || audit.entries[0].Attempt != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"```json\n" + goodJSON + "\n```"}}
	eng, _ := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("long gold")
	cand, err := eng.Extract(context.Background(), msg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Instrument != "XAUUSD" {
		t.Fatalf("got %q", cand.Instrument)
	}
}

func TestExtractRetriesOnceOnMalformed(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"sure, here is the trade!", goodJSON}}
	eng, audit := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("long gold")
	cand, err := eng.Extract(context.Background(), msg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Instrument != "XAUUSD" {
		t.Fatalf("got %q", cand.Instrument)
	}
	if len(inv.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(inv.requests))
	}
	if inv.requests[1].PromptID != model.PromptStrictRetry {
		t.Fatalf("second call should use strict prompt, got %s", inv.requests[1].PromptID)
	}
	if len(audit.entries) != 2 || audit.entries[1].Attempt != 2 {
		t.Fatalf("expected 2 audit entries with attempts recorded")
	}
}

func TestExtractFailsAfterSecondMalformed(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"not json", "still not json"}}
	eng, _ := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("long gold")
	_, err := eng.Extract(context.Background(), msg, in)
	var ef *models.ExtractionFailedError
	if !errors.As(err, &ef) {
		t.Fatalf("expected ExtractionFailedError, got %v", err)
	}
	if len(inv.requests) != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", len(inv.requests))
	}
}

func TestExtractMissingInstrumentFails(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"instrument":null,"direction":"LONG","entry_price":null,"exit_price":null,"stop_loss":null,"take_profit":null,"result":null,"r_multiple":null,"emotion":null,"mistakes":null,"notes":null,"confidence":0.9}`}}
	eng, _ := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("went long, felt great")
	_, err := eng.Extract(context.Background(), msg, in)
	var ef *models.ExtractionFailedError
	if !errors.As(err, &ef) {
		t.Fatalf("expected ExtractionFailedError, got %v", err)
	}
}

func TestExtractMissingDirectionFloorsConfidence(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"instrument":"BTCUSD","direction":null,"entry_price":67000,"exit_price":null,"stop_loss":null,"take_profit":null,"result":null,"r_multiple":null,"emotion":null,"mistakes":null,"notes":null,"confidence":0.97}`}}
	eng, _ := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("took btc at 67k")
	cand, err := eng.Extract(context.Background(), msg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Confidence >= 0.8 {
		t.Fatalf("confidence %v must stay below the auto-accept threshold", cand.Confidence)
	}
	if cand.Confidence != 0.75 {
		t.Fatalf("expected floored confidence 0.75, got %v", cand.Confidence)
	}
}

func TestExtractConfidenceClamped(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"instrument":"EURUSD","direction":"SHORT","entry_price":null,"exit_price":null,"stop_loss":null,"take_profit":null,"result":null,"r_multiple":null,"emotion":null,"mistakes":null,"notes":null,"confidence":1.7}`}}
	eng, _ := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("short euro")
	cand, err := eng.Extract(context.Background(), msg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Confidence != 1.0 {
		t.Fatalf("expected clamped confidence 1.0, got %v", cand.Confidence)
	}
}

func TestExtractCacheHitSkipsModel(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{goodJSON}}
	eng, _ := testEngine(t, inv, &fakeTranscriber{})

	msg, in := textMsg("long gold 2301.5")
	if _, err := eng.Extract(context.Background(), msg, in); err != nil {
		t.Fatalf("first extract: %v", err)
	}

	msg2 := *msg
	msg2.ExternalID = "msg-2"
	cand, err := eng.Extract(context.Background(), &msg2, in)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if !cand.CacheDerived {
		t.Fatal("expected cache-derived candidate")
	}
	if cand.RawInputRef != "msg-2" {
		t.Fatalf("cache hit must carry the new input ref, got %q", cand.RawInputRef)
	}
	if len(inv.requests) != 1 {
		t.Fatalf("model must not be called on cache hit, got %d calls", len(inv.requests))
	}
}

func TestExtractTranscriptionFailureSurfaces(t *testing.T) {
	inv := &scriptedInvoker{}
	eng, _ := testEngine(t, inv, &fakeTranscriber{err: &models.TranscriptionUnavailableError{Err: errors.New("service down")}})

	msg := &models.InboundMessage{
		UserID:     "u1",
		InputType:  models.InputVoice,
		ExternalID: "msg-3",
	}
	in := &media.NormalizedInput{Kind: media.KindAudio, Data: []byte{1, 2, 3}, MIME: "audio/ogg"}

	_, err := eng.Extract(context.Background(), msg, in)
	var te *models.TranscriptionUnavailableError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionUnavailableError, got %v", err)
	}
	if len(inv.requests) != 0 {
		t.Fatal("model must not be called when transcription fails")
	}
}

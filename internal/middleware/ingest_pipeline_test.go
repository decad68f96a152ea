package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"TradeMynd/internal/domain/models"
)

type stubProc struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
}

func (p *stubProc) ProcessMessage(_ context.Context, m *models.InboundMessage) (*models.Event, error) {
	p.mu.Lock()
	p.seen = append(p.seen, m.ExternalID)
	p.mu.Unlock()
	select {
	case p.done <- struct{}{}:
	default:
	}
	return &models.Event{}, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordExtraction(string, string) {}
func (nopMetrics) RecordCommit(string)             {}
func (nopMetrics) RecordQuotaRejection(string)     {}
func (nopMetrics) RecordSessionTransition(string)  {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}

func msg(user, ext string) *models.InboundMessage {
	return &models.InboundMessage{UserID: user, ExternalID: ext, InputType: models.InputText}
}

func TestPipelineDeliversToProcessor(t *testing.T) {
	proc := &stubProc{done: make(chan struct{}, 1)}
	p := NewIngestPipeline(proc, nopMetrics{}, WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if err := p.Submit(msg("u1", "m1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached processor")
	}
	if proc.seen[0] != "m1" {
		t.Fatalf("processed %q, want m1", proc.seen[0])
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	p := NewIngestPipeline(&stubProc{done: make(chan struct{}, 1)}, nopMetrics{})

	if err := p.Submit(nil); err == nil {
		t.Fatal("nil message must be rejected")
	}
	if err := p.Submit(&models.InboundMessage{InputType: models.InputText}); err == nil {
		t.Fatal("empty user id must be rejected")
	}
	if err := p.Submit(&models.InboundMessage{UserID: "u1", InputType: "SMOKE_SIGNAL"}); err == nil {
		t.Fatal("invalid input type must be rejected")
	}
}

func TestPipelineThrottlesPerUser(t *testing.T) {
	proc := &stubProc{done: make(chan struct{}, 1)}
	p := NewIngestPipeline(proc, nopMetrics{}, WithMaxRPS(1), WithBufferSize(10))

	if err := p.Submit(msg("u1", "m1")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// immediately after: inside the per-user window, silently dropped
	if err := p.Submit(msg("u1", "m2")); err != nil {
		t.Fatalf("throttled submit must not error: %v", err)
	}
	// another user is not affected
	if err := p.Submit(msg("u2", "m3")); err != nil {
		t.Fatalf("other user submit: %v", err)
	}
	if n := len(p.bufCh); n != 2 {
		t.Fatalf("buffered %d messages, want 2", n)
	}
}

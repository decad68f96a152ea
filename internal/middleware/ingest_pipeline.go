package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessMessage(ctx context.Context, m *models.InboundMessage) (*models.Event, error)
}

// IngestPipeline sits between the gateway stream and the ingestion entry
// point. It validates, throttles per user, and buffers messages behind a
// fixed worker pool so a burst on the stream never spawns unbounded work.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	workers  int
	bufCh    chan *models.InboundMessage
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-user last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max messages per second per user.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the buffer between the stream and the workers.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithWorkers sets the number of concurrent pipeline workers.
func WithWorkers(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   5,    // default throttle per user
		bufSize:  1000, // default buffer
		workers:  8,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.InboundMessage, p.bufSize)
	return p
}

// Start launches the worker pool draining the buffer.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for w := 0; w < p.workers; w++ {
		go func() {
			for {
				select {
				case <-p.stopCh:
					return
				case m := <-p.bufCh:
					if m == nil {
						continue
					}
					start := time.Now()
					if _, err := p.proc.ProcessMessage(ctx, m); err != nil {
						p.metrics.RecordError("pipeline_process")
					}
					p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
				}
			}
		}()
	}
}

// Stop stops the worker pool. Buffered messages are dropped.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Submit validates and enqueues a message. Throttled or overflowing
// messages are dropped with a metric; the stream reader never blocks.
func (p *IngestPipeline) Submit(m *models.InboundMessage) error {
	if err := validateInbound(m); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(m.UserID, time.Now()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	select {
	case p.bufCh <- m:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
	return nil
}

func validateInbound(m *models.InboundMessage) error {
	if m == nil {
		return fmt.Errorf("message nil")
	}
	if m.UserID == "" {
		return fmt.Errorf("user id empty")
	}
	if !m.InputType.Valid() {
		return fmt.Errorf("input type %q invalid", m.InputType)
	}
	return nil
}

func (p *IngestPipeline) allow(userID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[userID]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[userID] = now
		return true
	}
	return false
}

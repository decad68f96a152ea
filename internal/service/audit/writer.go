package audit

import (
	"context"
	"sync"
	"time"

	"TradeMynd/internal/domain/repository"
	pkgch "TradeMynd/pkg/clickhouse"
	applogger "TradeMynd/pkg/logger"
)

const insertEntrySQL = `INSERT INTO trademynd.processing_log
(raw_input_ref, user_id, input_type, prompt_id, response, attempt, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type Config struct {
	BufferSize    int
	FlushInterval time.Duration
}

// Writer is the append-only processing log. Append never blocks the
// extraction path: entries go through a buffered channel to a background
// flusher, and are dropped with a warning when the buffer is full.
type Writer struct {
	ch      *pkgch.Client
	metrics repository.Metrics
	logger  *applogger.Logger

	entries chan *repository.AuditEntry
	done    chan struct{}
	wg      sync.WaitGroup
	closed  sync.Once
	flush   time.Duration
}

func NewWriter(ch *pkgch.Client, metrics repository.Metrics, cfg Config, logger *applogger.Logger) *Writer {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	w := &Writer{
		ch:      ch,
		metrics: metrics,
		logger:  logger,
		entries: make(chan *repository.AuditEntry, cfg.BufferSize),
		done:    make(chan struct{}),
		flush:   cfg.FlushInterval,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Append queues one entry. Drops silently under sustained backpressure
// rather than slowing extraction down.
func (w *Writer) Append(entry *repository.AuditEntry) {
	select {
	case w.entries <- entry:
	default:
		w.metrics.RecordError("audit_buffer_full")
		w.logger.Warn("processing log buffer full, dropping entry",
			applogger.String("user_id", entry.UserID),
			applogger.String("ref", entry.RawInputRef))
	}
}

func (w *Writer) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flush)
	defer ticker.Stop()

	batch := make([]*repository.AuditEntry, 0, 64)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.write(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.entries:
			batch = append(batch, e)
			if len(batch) >= cap(batch) {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			// drain what is already queued
			for {
				select {
				case e := <-w.entries:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) write(batch []*repository.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := w.ch.DB().BeginTx(ctx, nil)
	if err != nil {
		w.metrics.RecordError("audit_write")
		w.logger.Error("processing log begin tx failed", applogger.Error(err))
		return
	}
	stmt, err := tx.PrepareContext(ctx, insertEntrySQL)
	if err != nil {
		w.metrics.RecordError("audit_write")
		w.logger.Error("processing log prepare failed", applogger.Error(err))
		_ = tx.Rollback()
		return
	}
	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx,
			e.RawInputRef, e.UserID, string(e.InputType), e.PromptID,
			e.Response, e.Attempt, e.Error, e.CreatedAt,
		); err != nil {
			w.metrics.RecordError("audit_write")
			w.logger.Error("processing log insert failed", applogger.Error(err))
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		w.metrics.RecordError("audit_write")
		w.logger.Error("processing log commit failed", applogger.Error(err))
	}
}

func (w *Writer) Close() error {
	w.closed.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
	return nil
}

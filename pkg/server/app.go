package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"TradeMynd/internal/domain/repository"
	"TradeMynd/internal/usecase"
	pkgch "TradeMynd/pkg/clickhouse"
	"TradeMynd/pkg/config"
	xhttp "TradeMynd/pkg/http"
	pkgkafka "TradeMynd/pkg/kafka"
	applogger "TradeMynd/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	collector   *usecase.MessageCollector
	sweeper     *usecase.ExpirySweeper
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	trades      repository.TradeStore
	audit       repository.ProcessingLog
	sink        repository.EventSink
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.MessageCollector,
	sweeper *usecase.ExpirySweeper,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	trades repository.TradeStore,
	audit repository.ProcessingLog,
	sink repository.EventSink,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		sweeper:   sweeper,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		trades:    trades,
		audit:     audit,
		sink:      sink,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	// Bootstrap storage schema before anything can write to it
	if a.trades != nil {
		if err := a.trades.Init(ctx); err != nil {
			l.Error("storage init error", applogger.Error(err))
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the gateway collector if configured
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("gateway collector started", applogger.String("url", a.cfg.ChatGate.WebSocketURL))
	}

	// Expiry sweeper runs for the life of the process
	go a.sweeper.Run(ctx)
	l.Info("expiry sweeper started", applogger.Duration("interval", a.cfg.Confirmation.SweepInterval))

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	// Stop the inbound stream first so no new work enters the pipeline
	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Flush the processing log before the ClickHouse pool goes away
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			l.Warn("processing log close error", applogger.Error(err))
		}
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			l.Warn("event sink close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}

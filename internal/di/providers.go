package di

import (
	"fmt"

	"TradeMynd/internal/domain/models"
	domrepo "TradeMynd/internal/domain/repository"
	domsvc "TradeMynd/internal/domain/service"
	"TradeMynd/internal/handler/api"
	mid "TradeMynd/internal/middleware"
	internalrepo "TradeMynd/internal/repository"
	"TradeMynd/internal/service/audit"
	"TradeMynd/internal/service/chatgate"
	"TradeMynd/internal/service/entitlement"
	"TradeMynd/internal/service/extract"
	"TradeMynd/internal/service/media"
	"TradeMynd/internal/service/model"
	"TradeMynd/internal/service/quota"
	"TradeMynd/internal/service/ratelimit"
	"TradeMynd/internal/service/session"
	"TradeMynd/internal/service/transcribe"
	"TradeMynd/internal/usecase"
	"TradeMynd/pkg/cache"
	pkgch "TradeMynd/pkg/clickhouse"
	"TradeMynd/pkg/config"
	pkgkafka "TradeMynd/pkg/kafka"
	applogger "TradeMynd/pkg/logger"
	"TradeMynd/pkg/metrics"
	"TradeMynd/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client. Schema bootstrap
// happens through TradeStore.Init at startup.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the Redis client, or nil when Redis is disabled
// and everything runs on in-process fallbacks.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService picks the extraction/plan cache backend: memory over
// Redis when Redis is available, plain memory otherwise.
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

// ProvideSessionStore picks the confirmation session backend.
func ProvideSessionStore(rc *cache.RedisCache, logger *applogger.Logger) domrepo.SessionStore {
	if rc == nil {
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(rc.Client(), logger)
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventSink publishes outcome events to Kafka, or to the log when no
// broker is configured.
func ProvideEventSink(producer *pkgkafka.Producer, cfg *config.Config, logger *applogger.Logger) domrepo.EventSink {
	if producer == nil {
		return internalrepo.NewLogEventSink(logger)
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic, logger)
}

// ProvideKafkaConsumer creates the inbound message consumer, nil when Kafka
// ingestion is not configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.InboundTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideTradeStore creates the ClickHouse trade store.
func ProvideTradeStore(chClient *pkgch.Client, logger *applogger.Logger) domrepo.TradeStore {
	return internalrepo.NewClickHouseTradeStore(chClient, logger)
}

// ProvideProcessingLog creates the buffered audit writer.
func ProvideProcessingLog(chClient *pkgch.Client, m domrepo.Metrics, cfg *config.Config, logger *applogger.Logger) domrepo.ProcessingLog {
	return audit.NewWriter(chClient, m, audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		FlushInterval: cfg.Audit.FlushInterval,
	}, logger)
}

// ProvideModelInvoker creates the model gateway client.
func ProvideModelInvoker(cfg *config.Config) domsvc.ModelInvoker {
	return model.NewClient(cfg)
}

// ProvideTranscriber creates the speech-to-text client.
func ProvideTranscriber(cfg *config.Config) domsvc.Transcriber {
	return transcribe.NewClient(cfg)
}

// ProvidePlanProvider resolves entitlements from the billing service, or
// pins everyone to the free tier when none is configured.
func ProvidePlanProvider(cfg *config.Config, cacheSvc cache.Service, logger *applogger.Logger) domsvc.PlanProvider {
	if cfg.Entitlement.URL == "" {
		return &entitlement.StaticProvider{Plan: models.Plan{
			Name:            "free",
			MonthlyTradeCap: cfg.Quota.FreeMonthlyTradeCap,
			HourlyAttempts:  cfg.Quota.FreeHourlyAttempts,
		}}
	}
	return entitlement.NewHTTPProvider(cfg, cacheSvc, logger)
}

// ProvideLimiter creates the in-process attempt limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideGovernor creates the quota governor.
func ProvideGovernor(plans domsvc.PlanProvider, trades domrepo.TradeStore, limiter *ratelimit.Limiter, m domrepo.Metrics, cfg *config.Config, logger *applogger.Logger) *quota.Governor {
	return quota.NewGovernor(plans, trades, limiter, m, quota.Config{
		UpgradeHint: cfg.Quota.UpgradeHint,
	}, logger)
}

// ProvideNormalizer creates the media normalizer.
func ProvideNormalizer(cfg *config.Config, logger *applogger.Logger) *media.Normalizer {
	return media.NewNormalizer(media.Config{
		MaxBytes:     cfg.Media.MaxBytes,
		MaxImageEdge: cfg.Media.MaxImageEdge,
		JPEGQuality:  cfg.Media.JPEGQuality,
	}, logger)
}

// ProvideExtractionEngine creates the extraction engine.
func ProvideExtractionEngine(invoker domsvc.ModelInvoker, transcriber domsvc.Transcriber, cacheSvc cache.Service, log domrepo.ProcessingLog, m domrepo.Metrics, cfg *config.Config, logger *applogger.Logger) *extract.Engine {
	return extract.NewEngine(invoker, transcriber, cacheSvc, log, m, extract.Config{
		CacheTTL:            cfg.Extraction.CacheTTL,
		AutoAcceptThreshold: cfg.Confirmation.AutoAcceptThreshold,
	}, logger)
}

// ProvideCommitter creates the trade committer.
func ProvideCommitter(trades domrepo.TradeStore, governor *quota.Governor, m domrepo.Metrics, logger *applogger.Logger) *usecase.Committer {
	return usecase.NewCommitter(trades, governor, m, logger)
}

// ProvideIngestor creates the ingestion pipeline.
func ProvideIngestor(
	normalizer *media.Normalizer,
	governor *quota.Governor,
	engine *extract.Engine,
	sessions domrepo.SessionStore,
	committer *usecase.Committer,
	sink domrepo.EventSink,
	m domrepo.Metrics,
	cfg *config.Config,
	logger *applogger.Logger,
) *usecase.Ingestor {
	return usecase.NewIngestor(normalizer, governor, engine, sessions, committer, sink, m, usecase.IngestConfig{
		AutoAcceptThreshold: cfg.Confirmation.AutoAcceptThreshold,
		SessionTTL:          cfg.Confirmation.SessionTTL,
	}, logger)
}

// ProvideConfirmer creates the confirmation action resolver.
func ProvideConfirmer(sessions domrepo.SessionStore, committer *usecase.Committer, sink domrepo.EventSink, m domrepo.Metrics, logger *applogger.Logger) *usecase.Confirmer {
	return usecase.NewConfirmer(sessions, committer, sink, m, logger)
}

// ProvideExpirySweeper creates the session expiry sweeper.
func ProvideExpirySweeper(sessions domrepo.SessionStore, sink domrepo.EventSink, m domrepo.Metrics, cfg *config.Config, logger *applogger.Logger) *usecase.ExpirySweeper {
	return usecase.NewExpirySweeper(sessions, sink, m, cfg.Confirmation.SweepInterval, logger)
}

// ProvideMessageStream creates the chat gateway WebSocket stream, nil when
// ingestion happens over HTTP or Kafka only.
func ProvideMessageStream(cfg *config.Config, logger *applogger.Logger) domrepo.MessageStream {
	if !cfg.ChatGate.Enabled {
		return nil
	}
	return chatgate.New(
		cfg.ChatGate.WebSocketURL,
		cfg.ChatGate.Token,
		cfg.ChatGate.ReconnectDelay,
		cfg.ChatGate.PingInterval,
		logger,
	)
}

// ProvideMessageCollector creates the gateway consumption loop. A buffered
// pipeline with a per-user throttle sits between the stream and the
// ingestor so gateway bursts never spawn unbounded work.
func ProvideMessageCollector(stream domrepo.MessageStream, ingestor *usecase.Ingestor, m domrepo.Metrics, logger *applogger.Logger) *usecase.MessageCollector {
	if stream == nil {
		return nil
	}
	pipe := mid.NewIngestPipeline(ingestor, m,
		mid.WithMaxRPS(5),
		mid.WithBufferSize(2000),
		mid.WithWorkers(8),
	)
	return usecase.NewMessageCollector(stream, pipe, m, logger)
}

// ProvideTradeQuery creates the journal read model.
func ProvideTradeQuery(chClient *pkgch.Client, logger *applogger.Logger) domrepo.TradeQuery {
	return internalrepo.NewCHTradeQuery(chClient, logger)
}

// ProvideTradeHistory creates the trade history use case.
func ProvideTradeHistory(query domrepo.TradeQuery) *usecase.TradeHistory {
	return usecase.NewTradeHistory(query)
}

// ProvideKafkaMessagesHandler registers the handler for the inbound topic.
func ProvideKafkaMessagesHandler(ingestor *usecase.Ingestor, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaMessagesHandler {
	return usecase.NewKafkaMessagesHandler(cfg.Kafka.InboundTopic, ingestor, m)
}

// ProvideHTTPHandler creates the Echo API handler.
func ProvideHTTPHandler(logger *applogger.Logger, ingestor *usecase.Ingestor, confirmer *usecase.Confirmer, governor *quota.Governor, history *usecase.TradeHistory, trades domrepo.TradeStore) *api.IngestEchoHandler {
	return api.NewIngestEchoHandler(logger, ingestor, confirmer, governor, history, trades)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.MessageCollector,
	sweeper *usecase.ExpirySweeper,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaMessagesHandler,
	chClient *pkgch.Client,
	trades domrepo.TradeStore,
	log domrepo.ProcessingLog,
	sink domrepo.EventSink,
	httpHandler *api.IngestEchoHandler,
) *server.App {
	var handler pkgkafka.MessageHandler
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
		handler = kh
	}
	app := server.New(cfg, collector, sweeper, consumer, handler, chClient, trades, log, sink)
	app.SetHTTPHandler(httpHandler)
	return app
}

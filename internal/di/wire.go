//go:build wireinject
// +build wireinject

package di

import (
	"TradeMynd/pkg/config"
	"TradeMynd/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideTradeStore,
		ProvideTradeQuery,
		ProvideProcessingLog,
		ProvideEventSink,
		ProvideSessionStore,

		// Domain services
		ProvideModelInvoker,
		ProvideTranscriber,
		ProvidePlanProvider,
		ProvideLimiter,
		ProvideGovernor,
		ProvideNormalizer,
		ProvideExtractionEngine,

		// Use cases
		ProvideCommitter,
		ProvideIngestor,
		ProvideConfirmer,
		ProvideExpirySweeper,
		ProvideMessageStream,
		ProvideMessageCollector,
		ProvideKafkaMessagesHandler,
		ProvideTradeHistory,

		// Transport
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

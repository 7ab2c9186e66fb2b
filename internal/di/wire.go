//go:build wireinject
// +build wireinject

package di

import (
	"SignalPull/pkg/config"
	"SignalPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Foundation
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCacheService,
		ProvideRedisClient,

		// Repositories
		ProvideCandleStore,
		ProvidePredictionLog,
		ProvideModelStore,
		ProvideOutcomePublisher,

		// Market data
		ProvideBinanceStream,
		ProvideHistoryClient,

		// Engine and use cases
		ProvideBacktestEngine,
		ProvideEngineUseCase,
		ProvideObservationProcessor,
		ProvideObservationCollector,
		ProvideKafkaOutcomesHandler,
		ProvideJobQueues,
		ProvideBacktestRunner,
		ProvideCandlesUseCase,

		// HTTP
		ProvidePredictionsHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

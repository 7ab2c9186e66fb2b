package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/backprop"
	"SignalPull/internal/engine/backtest"
	"SignalPull/internal/engine/scheduler"
	"SignalPull/internal/handler/api"
	mid "SignalPull/internal/middleware"
	icache "SignalPull/internal/service/cache"
	internalrepo "SignalPull/internal/repository"
	"SignalPull/internal/service/binance"
	"SignalPull/internal/usecase"
	pkgcache "SignalPull/pkg/cache"
	pkgch "SignalPull/pkg/clickhouse"
	"SignalPull/pkg/config"
	pkgkafka "SignalPull/pkg/kafka"
	applogger "SignalPull/pkg/logger"
	"SignalPull/pkg/metrics"
	"SignalPull/pkg/queue"
	"SignalPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
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

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	schema := []string{
		"CREATE DATABASE IF NOT EXISTS signalpull",
		"CREATE TABLE IF NOT EXISTS signalpull.predictions (id String, symbol String, created_at DateTime64(3), class String, confidence Float64, price Float64, source String) ENGINE=MergeTree ORDER BY (symbol, created_at)",
	}
	for _, tf := range []repository.Timeframe{repository.TF1m, repository.TF5m, repository.TF15m, repository.TF1h, repository.TF4h, repository.TF1d} {
		schema = append(schema, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS signalpull.rt_candles_%s (bucket DateTime, symbol String, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, bucket)", tf))
	}
	if err := client.InitSchema(ctx, schema); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
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

// ProvideKafkaConsumer creates a Kafka consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCacheService creates the Redis-backed cache service.
func ProvideCacheService(cfg *config.Config) (*pkgcache.RedisCache, error) {
	host, port := splitRedisAddr(cfg.Redis.Addr)
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideRedisClient exposes the raw Redis client behind the cache.
func ProvideRedisClient(c *pkgcache.RedisCache) *redis.Client {
	return c.Client()
}

// ProvideModelStore creates the Redis-backed model snapshot store.
func ProvideModelStore(client *redis.Client) repository.ModelStore {
	return internalrepo.NewRedisModelStore(client)
}

// ProvideCandleStore creates the ClickHouse candle repository.
func ProvideCandleStore(chClient *pkgch.Client, l *applogger.Logger) *internalrepo.CHCandleStore {
	store := internalrepo.NewCHCandleStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvidePredictionLog creates the ClickHouse prediction log.
func ProvidePredictionLog(chClient *pkgch.Client, cfg *config.Config) *internalrepo.CHPredictionLog {
	return internalrepo.NewCHPredictionLog(chClient.DB(), cfg.ClickHouse.Database+".predictions")
}

// ProvideOutcomePublisher creates the Kafka outcome publisher, or nil when
// Kafka is disabled.
func ProvideOutcomePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.OutcomePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomeTopic)
}

// ProvideBacktestEngine creates the walk-forward backtest engine.
func ProvideBacktestEngine(l *applogger.Logger, m repository.Metrics) *backtest.Engine {
	return backtest.NewEngine(l, m)
}

// ProvideEngineUseCase builds the engine facade from configuration.
func ProvideEngineUseCase(
	cfg *config.Config,
	candles *internalrepo.CHCandleStore,
	preds *internalrepo.CHPredictionLog,
	modelStore repository.ModelStore,
	bt *backtest.Engine,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.EngineUseCase {
	return usecase.NewEngineUseCase(usecase.EngineConfig{
		Architecture:        models.ParseArchitecture(cfg.Engine.Architecture),
		HiddenSizes:         cfg.Engine.HiddenSizes,
		LearningRate:        cfg.Engine.LearningRate,
		BatchSize:           cfg.Engine.BatchSize,
		BufferCapacity:      cfg.Engine.BufferCapacity,
		Loss:                backprop.LossKind(cfg.Engine.Loss),
		MaxStepsPerEpoch:    cfg.Engine.MaxStepsPerEpoch,
		GradientClip:        cfg.Engine.GradientClip,
		ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
		ModelVersion:        cfg.Engine.ModelVersion,
		Scheduler: scheduler.Config{
			Interval:          cfg.Scheduler.Interval,
			AccuracyThreshold: cfg.Scheduler.AccuracyThreshold,
			MinSamples:        cfg.Scheduler.MinSamples,
			HistoryLimit:      cfg.Scheduler.HistoryLimit,
		},
	}, candles, preds, modelStore, bt, m, l)
}

// ProvideBinanceStream creates the Binance WebSocket kline stream.
func ProvideBinanceStream(cfg *config.Config) repository.MarketStream {
	return binance.New(
		cfg.Binance.WebSocketURL,
		cfg.Engine.Symbols,
		cfg.Binance.Interval,
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
	)
}

// ProvideHistoryClient creates the Binance REST backfill client.
func ProvideHistoryClient(cfg *config.Config) *binance.HistoryClient {
	return binance.NewHistoryClient(cfg.Binance.RESTBaseURL, cfg.Binance.RESTTimeout)
}

// ProvideObservationProcessor creates the per-candle learning processor.
func ProvideObservationProcessor(
	engine *usecase.EngineUseCase,
	writer *internalrepo.CHCandleStore,
	outcomes repository.OutcomePublisher,
	cfg *config.Config,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ObservationProcessor {
	tf := repository.NormalizeTimeframe(cfg.Binance.Interval)
	return usecase.NewObservationProcessor(engine, writer, outcomes, tf, m, l)
}

// ProvideObservationCollector creates the stream collector with the
// validating pipeline in front of the processor.
func ProvideObservationCollector(
	stream repository.MarketStream,
	processor *usecase.ObservationProcessor,
	m repository.Metrics,
) *usecase.ObservationCollector {
	pipe := mid.NewCandlePipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewObservationCollector(stream, processor, m, pipe)
}

// ProvideKafkaOutcomesHandler registers the handler for the outcomes topic.
func ProvideKafkaOutcomesHandler(engine *usecase.EngineUseCase, m repository.Metrics, cfg *config.Config) *usecase.KafkaOutcomesHandler {
	return usecase.NewKafkaOutcomesHandler(cfg.Kafka.OutcomeTopic, engine, m)
}

// JobQueues groups the publisher and consumer ends of the Redis job queue.
type JobQueues struct {
	Publisher *queue.RedisQueue
	Consumer  *queue.RedisQueue
}

// ProvideJobQueues creates both ends of the Redis-backed job queue. The
// consumer runs backtest jobs.
func ProvideJobQueues(
	l *applogger.Logger,
	client *redis.Client,
	engine *usecase.EngineUseCase,
	cache *pkgcache.RedisCache,
) *JobQueues {
	jobs := []queue.Job{usecase.NewBacktestJob(engine, cache, l)}
	consumer := queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    2,
		QueueSize:  100,
		RetryLimit: 3,
		RetryDelay: 5 * time.Second,
	}, client, jobs)
	return &JobQueues{
		Publisher: queue.NewRedisPublisher(l, client),
		Consumer:  consumer,
	}
}

// ProvideBacktestRunner creates the async backtest front end.
func ProvideBacktestRunner(
	engine *usecase.EngineUseCase,
	queues *JobQueues,
	cache *pkgcache.RedisCache,
	l *applogger.Logger,
) *usecase.BacktestRunner {
	return usecase.NewBacktestRunner(engine, queues.Publisher, cache, l)
}

// ProvideCandlesUseCase creates the candle query use case.
func ProvideCandlesUseCase(store *internalrepo.CHCandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvidePredictionsHandler creates the cached net/http prediction handler.
func ProvidePredictionsHandler(engine *usecase.EngineUseCase, cfg *config.Config, l *applogger.Logger) *api.PredictionsHandler {
	h := api.NewPredictionsHandler(engine)
	h.SetLogger(l)
	if cfg.Redis.Addr != "" {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideHTTPHandler creates the Echo API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	engine *usecase.EngineUseCase,
	candles *usecase.CandlesUseCase,
	runner *usecase.BacktestRunner,
	predictions *api.PredictionsHandler,
) *api.EngineEchoHandler {
	return api.NewEngineEchoHandler(l, engine, candles, runner, predictions)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	engine *usecase.EngineUseCase,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaOutcomesHandler,
	queues *JobQueues,
	history *binance.HistoryClient,
	writer *internalrepo.CHCandleStore,
	chClient *pkgch.Client,
	handler *api.EngineEchoHandler,
) *server.App {
	var mh pkgkafka.MessageHandler
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
		mh = kh
	}
	app := server.New(cfg, engine, collector, consumer, mh, queues.Consumer, history, writer, chClient)
	app.ObsProc = collector.Processor()
	app.SetHTTPHandler(handler)
	return app
}

func splitRedisAddr(addr string) (string, int) {
	if addr == "" {
		return "localhost", 6379
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

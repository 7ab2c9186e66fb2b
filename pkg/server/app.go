package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	drepo "SignalPull/internal/domain/repository"
	"SignalPull/internal/service/binance"
	"SignalPull/internal/usecase"
	pkgch "SignalPull/pkg/clickhouse"
	"SignalPull/pkg/config"
	xhttp "SignalPull/pkg/http"
	pkgkafka "SignalPull/pkg/kafka"
	applogger "SignalPull/pkg/logger"
	"SignalPull/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	engine      *usecase.EngineUseCase
	collector   *usecase.ObservationCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	jobQueue    *queue.RedisQueue
	history     *binance.HistoryClient
	writer      drepo.CandleWriter
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	ObsProc     *usecase.ObservationProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	engine *usecase.EngineUseCase,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	jobQueue *queue.RedisQueue,
	history *binance.HistoryClient,
	writer drepo.CandleWriter,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		engine:    engine,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		jobQueue:  jobQueue,
		history:   history,
		writer:    writer,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init app logger (console info by default)
	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Backfill recent history so predictions work before the stream warms up
	if a.history != nil && a.writer != nil {
		tf := drepo.NormalizeTimeframe(a.cfg.Binance.Interval)
		if err := a.history.Backfill(ctx, a.writer, a.cfg.Engine.Symbols, tf, a.cfg.Binance.BackfillBars); err != nil {
			l.Warn("history backfill failed", applogger.Error(err))
		} else {
			l.Info("history backfill complete", applogger.Strings("symbols", a.cfg.Engine.Symbols))
		}
	}

	// Restore persisted models, falling back to fresh networks
	for _, sym := range a.cfg.Engine.Symbols {
		if err := a.engine.Bootstrap(ctx, sym); err != nil {
			l.Error("network init error", applogger.String("symbol", sym), applogger.Error(err))
		}
	}

	// Start collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector started", applogger.Strings("symbols", a.cfg.Engine.Symbols))

	// Start continuous learning if enabled
	if a.cfg.Scheduler.Enabled {
		for _, sym := range a.cfg.Engine.Symbols {
			a.engine.StartScheduler(ctx, sym)
		}
		l.Info("schedulers started", applogger.Any("interval", a.cfg.Scheduler.Interval))
	}

	// Start Kafka consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start Redis job queue consumer if configured
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Error("job queue start error", applogger.Error(err))
		} else {
			l.Info("job queue started")
		}
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

	// Stop schedulers before the stream so no cycle races a closing buffer
	a.engine.Shutdown()

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
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

	// Stop job queue
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Close observation processor resources (outcome publisher)
	if a.ObsProc != nil {
		a.ObsProc.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}

package api

import (
	"time"

	models "SignalPull/internal/domain/models"
	domrepo "SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/scheduler"
	"SignalPull/internal/usecase"
	xhttp "SignalPull/pkg/http"
	xlogger "SignalPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EngineEchoHandler exposes the learning engine over HTTP.
type EngineEchoHandler struct {
	logger      *xlogger.Logger
	engine      *usecase.EngineUseCase
	candles     *usecase.CandlesUseCase
	backtest    *usecase.BacktestRunner
	predictions *PredictionsHandler
}

func NewEngineEchoHandler(
	logger *xlogger.Logger,
	engine *usecase.EngineUseCase,
	candles *usecase.CandlesUseCase,
	backtest *usecase.BacktestRunner,
	predictions *PredictionsHandler,
) *EngineEchoHandler {
	return &EngineEchoHandler{
		logger:      logger,
		engine:      engine,
		candles:     candles,
		backtest:    backtest,
		predictions: predictions,
	}
}

func (h *EngineEchoHandler) RegisterRoutes(e *echo.Echo) {
	// cached, rate limited variants for high-frequency pollers
	if h.predictions != nil {
		e.GET("/v1/predict", echo.WrapHandler(h.predictions.Predict()))
		e.GET("/v1/accuracy", echo.WrapHandler(h.predictions.Accuracy()))
	}

	g := e.Group("/api")
	g.POST("/model/initialize", h.Initialize)
	g.POST("/model/train", h.Train)
	g.GET("/model/status", h.TrainingStatus)
	g.POST("/model/save", h.SaveModel)
	g.POST("/model/load", h.LoadModel)
	g.GET("/predict", h.Predict)
	g.GET("/accuracy", h.Accuracy)
	g.POST("/backtest", h.Backtest)
	g.GET("/backtest/:id", h.BacktestResult)
	g.POST("/scheduler/start", h.SchedulerStart)
	g.POST("/scheduler/stop", h.SchedulerStop)
	g.POST("/scheduler/config", h.SchedulerConfig)
	g.GET("/scheduler/status", h.SchedulerStatus)
	g.GET("/candles", h.Candles)
}

func (h *EngineEchoHandler) Initialize(c echo.Context) error {
	req := &models.InitializeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var override *models.NetworkConfig
	if req.Rebuild {
		override = &models.NetworkConfig{
			Architecture: models.ParseArchitecture(req.Architecture),
			HiddenSizes:  req.HiddenSizes,
			OutputSize:   req.OutputSize,
		}
	}
	if err := h.engine.Initialize(c.Request().Context(), req.Symbol, override); err != nil {
		h.logger.Error("initialize usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.engine.TrainingStatus(req.Symbol))
}

func (h *EngineEchoHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	if req.Epoch {
		steps, err := h.engine.TrainEpoch(ctx, req.Symbol)
		if err != nil {
			h.logger.Error("train epoch usecase error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, map[string]interface{}{
			"symbol": req.Symbol,
			"steps":  steps,
		})
	}
	step, err := h.engine.TrainStep(ctx, req.Symbol)
	if err != nil {
		h.logger.Error("train step usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, step)
}

func (h *EngineEchoHandler) TrainingStatus(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, map[string]string{"symbol": "required"})
	}
	return xhttp.SuccessResponse(c, h.engine.TrainingStatus(symbol))
}

func (h *EngineEchoHandler) SaveModel(c echo.Context) error {
	req := &models.SchedulerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.engine.SaveModel(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("save model usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"model_id": snap.ModelID,
		"version":  snap.Version,
		"saved_at": snap.SavedAt,
	})
}

func (h *EngineEchoHandler) LoadModel(c echo.Context) error {
	req := &models.SchedulerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.engine.LoadModel(c.Request().Context(), req.Symbol); err != nil {
		h.logger.Error("load model usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.engine.TrainingStatus(req.Symbol))
}

func (h *EngineEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.engine.Predict(c.Request().Context(), req.Symbol, tf, req.N)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineEchoHandler) Accuracy(c echo.Context) error {
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	lookback := time.Duration(req.LookbackHours) * time.Hour

	report, err := h.engine.Accuracy(c.Request().Context(), req.Symbol, tf, lookback)
	if err != nil {
		h.logger.Error("accuracy usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *EngineEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.Async && h.backtest != nil {
		id, err := h.backtest.Enqueue(ctx, req.Symbol, req.TF, req.Bars, req.Config())
		if err != nil {
			h.logger.Error("backtest enqueue error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, map[string]string{"id": id, "status": "queued"})
	}

	tf := domrepo.NormalizeTimeframe(req.TF)
	res, err := h.engine.Backtest(ctx, req.Symbol, tf, req.Bars, req.Config())
	if err != nil {
		h.logger.Error("backtest usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineEchoHandler) BacktestResult(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, map[string]string{"id": "required"})
	}
	if h.backtest == nil {
		return xhttp.NotFoundResponse(c, map[string]string{"id": id})
	}
	status, err := h.backtest.Result(c.Request().Context(), id)
	if err != nil {
		return xhttp.NotFoundResponse(c, map[string]string{"id": id})
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *EngineEchoHandler) SchedulerStart(c echo.Context) error {
	req := &models.SchedulerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.engine.StartScheduler(c.Request().Context(), req.Symbol)
	return xhttp.SuccessResponse(c, h.engine.SchedulerStatus(req.Symbol))
}

func (h *EngineEchoHandler) SchedulerStop(c echo.Context) error {
	req := &models.SchedulerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.engine.StopScheduler(req.Symbol)
	return xhttp.SuccessResponse(c, h.engine.SchedulerStatus(req.Symbol))
}

func (h *EngineEchoHandler) SchedulerConfig(c echo.Context) error {
	req := &models.SchedulerConfigRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.engine.ConfigureScheduler(req.Symbol, scheduler.Config{
		Interval:          time.Duration(req.IntervalSeconds) * time.Second,
		AccuracyThreshold: req.AccuracyThreshold,
		MinSamples:        req.MinSamples,
		HistoryLimit:      req.HistoryLimit,
	})
	return xhttp.SuccessResponse(c, h.engine.SchedulerStatus(req.Symbol))
}

func (h *EngineEchoHandler) SchedulerStatus(c echo.Context) error {
	req := &models.SchedulerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.engine.SchedulerStatus(req.Symbol))
}

func (h *EngineEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: tf,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

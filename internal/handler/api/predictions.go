package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	domrepo "SignalPull/internal/domain/repository"
	icache "SignalPull/internal/service/cache"
	"SignalPull/internal/service/metrics"
	"SignalPull/internal/service/ratelimit"
	"SignalPull/internal/usecase"
	applogger "SignalPull/pkg/logger"
)

// PredictionsHandler serves read-heavy prediction endpoints over plain
// net/http with byte-level caching and per-client rate limiting. The Echo
// handler covers the full API; this path exists for high-frequency pollers.
type PredictionsHandler struct {
	engine *usecase.EngineUseCase
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
	l      *applogger.Logger
}

func NewPredictionsHandler(engine *usecase.EngineUseCase) *PredictionsHandler {
	metrics.Register()
	return &PredictionsHandler{engine: engine, rl: ratelimit.New()}
}

func (h *PredictionsHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *PredictionsHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *PredictionsHandler) Predict() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "predict"
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("predictions.predict missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		n := parseInt(r.URL.Query().Get("n"), 120)
		tf := domrepo.NormalizeTimeframe(r.URL.Query().Get("tf"))
		if !h.rl.Allow(r.RemoteAddr+":predict", 5, 2) {
			if h.l != nil {
				h.l.Warn("predictions.predict rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		cacheKey := "predict:" + symbol + ":" + string(tf)
		if h.cache != nil {
			if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
				if h.l != nil {
					h.l.Warn("predictions.predict cache_get_error", applogger.Error(err))
				}
			} else if ok {
				w.Header().Set("Content-Type", "application/json")
				if h.l != nil {
					h.l.Debug("predictions.predict cache_hit", applogger.String("key", cacheKey))
				}
				if _, err := w.Write(b); err != nil && h.l != nil {
					h.l.Warn("predictions.predict write_error", applogger.Error(err))
				}
				return
			}
			if h.l != nil {
				h.l.Debug("predictions.predict cache_miss", applogger.String("key", cacheKey))
			}
		}
		res, err := h.engine.Predict(r.Context(), symbol, tf, n)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("predictions.predict error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		b, err := json.Marshal(res)
		if err != nil {
			if h.l != nil {
				h.l.Error("predictions.predict marshal_error", applogger.Error(err))
			}
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		if h.cache != nil {
			if err := h.cache.SetBytes(cacheKey, b, 5*time.Second); err != nil && h.l != nil {
				h.l.Warn("predictions.predict cache_set_error", applogger.Error(err))
			}
		}
		if _, err := w.Write(b); err != nil && h.l != nil {
			h.l.Warn("predictions.predict write_error", applogger.Error(err))
		}
	}
}

func (h *PredictionsHandler) Accuracy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "accuracy"
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("predictions.accuracy missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		hours := parseInt(r.URL.Query().Get("lookback_hours"), 24)
		tf := domrepo.NormalizeTimeframe(r.URL.Query().Get("tf"))
		if !h.rl.Allow(r.RemoteAddr+":accuracy", 5, 2) {
			if h.l != nil {
				h.l.Warn("predictions.accuracy rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		cacheKey := "accuracy:" + symbol + ":" + string(tf)
		if h.cache != nil {
			if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
				if h.l != nil {
					h.l.Warn("predictions.accuracy cache_get_error", applogger.Error(err))
				}
			} else if ok {
				w.Header().Set("Content-Type", "application/json")
				if _, err := w.Write(b); err != nil && h.l != nil {
					h.l.Warn("predictions.accuracy write_error", applogger.Error(err))
				}
				return
			}
		}
		report, err := h.engine.Accuracy(r.Context(), symbol, tf, time.Duration(hours)*time.Hour)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("predictions.accuracy error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		b, err := json.Marshal(report)
		if err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		if h.cache != nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil && h.l != nil {
				h.l.Warn("predictions.accuracy cache_set_error", applogger.Error(err))
			}
		}
		if _, err := w.Write(b); err != nil && h.l != nil {
			h.l.Warn("predictions.accuracy write_error", applogger.Error(err))
		}
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"SignalPull/internal/domain/models"
	drepo "SignalPull/internal/domain/repository"
	xhttp "SignalPull/pkg/http"
)

const (
	defaultRESTBaseURL = "https://api.binance.com"
	maxKlinesPerCall   = 1000
)

// HistoryClient fetches historical klines over the Binance REST API. Used
// to backfill candle storage before the live stream takes over.
type HistoryClient struct {
	baseURL string
	client  *xhttp.Client
}

func NewHistoryClient(baseURL string, timeout time.Duration) *HistoryClient {
	if baseURL == "" {
		baseURL = defaultRESTBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HistoryClient{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// GetKlines returns up to limit closed candles ending at the current time.
// Binance encodes each kline as a JSON array of mixed types.
func (c *HistoryClient) GetKlines(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]*models.Candle, error) {
	if limit <= 0 || limit > maxKlinesPerCall {
		limit = maxKlinesPerCall
	}

	var rows [][]interface{}
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}

	candles := make([]*models.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKlineRow(symbol, row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// Backfill loads recent history for each symbol into the candle writer.
// Symbols fetch concurrently, capped to stay inside Binance rate limits.
func (c *HistoryClient) Backfill(ctx context.Context, writer drepo.CandleWriter, symbols []string, tf drepo.Timeframe, bars int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			candles, err := c.GetKlines(gctx, sym, tf, bars)
			if err != nil {
				return fmt.Errorf("backfill %s: %w", sym, err)
			}
			if len(candles) == 0 {
				return nil
			}
			if err := writer.StoreBatch(gctx, tf, candles); err != nil {
				return fmt.Errorf("store backfill %s: %w", sym, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// row layout: [openTime, open, high, low, close, volume, closeTime, ...]
func parseKlineRow(symbol string, row []interface{}) (*models.Candle, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("kline row too short: %d fields", len(row))
	}
	openMs, ok := row[0].(float64)
	if !ok {
		return nil, fmt.Errorf("kline open time not numeric")
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return nil, fmt.Errorf("kline field %d not a string", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse kline field %d: %w", i, err)
		}
		vals[i-1] = v
	}
	return &models.Candle{
		Bucket: time.UnixMilli(int64(openMs)).UTC(),
		Symbol: symbol,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

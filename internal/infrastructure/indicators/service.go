package indicators

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

// Service computes indicator snapshots from venue candles. Each call fetches
// fresh candles; the only carried state is the previous ATR sample count per
// symbol, used to skip recomputing a series that gained no bars.
type Service struct {
	venue domain.Venue

	mu       sync.Mutex
	atrCache map[string]atrEntry
}

type atrEntry struct {
	candles  int
	lastTime int64
	series   []float64
}

func NewService(venue domain.Venue) *Service {
	return &Service{
		venue:    venue,
		atrCache: make(map[string]atrEntry),
	}
}

func (s *Service) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	candles, err := s.venue.Candles(ctx, symbol, "1m", 1)
	if err != nil {
		return 0, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("no candles for %s", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

func (s *Service) MovingAverage(ctx context.Context, symbol, timeframe string, period int) (float64, error) {
	candles, err := s.fetch(ctx, symbol, timeframe, period)
	if err != nil {
		return 0, err
	}
	v := SMA(candles, period)
	if math.IsNaN(v) {
		return 0, fmt.Errorf("not enough candles for %d-period MA on %s", period, symbol)
	}
	return v, nil
}

func (s *Service) CCI(ctx context.Context, symbol, timeframe string, period int) (float64, error) {
	candles, err := s.fetch(ctx, symbol, timeframe, period)
	if err != nil {
		return 0, err
	}
	v := CCI(candles, period)
	if math.IsNaN(v) {
		return 0, fmt.Errorf("not enough candles for %d-period CCI on %s", period, symbol)
	}
	return v, nil
}

func (s *Service) ATR(ctx context.Context, symbol, timeframe string, period int) ([]float64, error) {
	candles, err := s.fetch(ctx, symbol, timeframe, period)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s", symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A rolling window keeps the count constant; the last bar's timestamp
	// tells whether the series actually advanced.
	lastTime := candles[len(candles)-1].Time
	if cached, ok := s.atrCache[symbol]; ok &&
		cached.candles == len(candles) && cached.lastTime == lastTime {
		return append([]float64(nil), cached.series...), nil
	}

	series := ATRSeries(candles, period)
	if len(series) == 0 {
		return nil, fmt.Errorf("not enough candles for %d-period ATR on %s", period, symbol)
	}

	s.atrCache[symbol] = atrEntry{candles: len(candles), lastTime: lastTime, series: series}
	return append([]float64(nil), series...), nil
}

// fetch pulls enough history to warm the lookback window.
func (s *Service) fetch(ctx context.Context, symbol, timeframe string, period int) ([]domain.Candle, error) {
	limit := period * 3
	if limit < 50 {
		limit = 50
	}
	candles, err := s.venue.Candles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	return candles, nil
}

// SMA returns the n-period simple moving average of Close over the tail of c.
// NaN when fewer than n candles are available.
func SMA(c []domain.Candle, n int) float64 {
	if n <= 0 || len(c) < n {
		return math.NaN()
	}
	var sum float64
	for _, candle := range c[len(c)-n:] {
		sum += candle.Close
	}
	return sum / float64(n)
}

// CCI returns the n-period Commodity Channel Index over the tail of c:
// (TP - SMA(TP)) / (0.015 * mean deviation), TP = (H+L+C)/3.
func CCI(c []domain.Candle, n int) float64 {
	if n <= 0 || len(c) < n {
		return math.NaN()
	}
	window := c[len(c)-n:]

	tp := make([]float64, n)
	var sum float64
	for i, candle := range window {
		tp[i] = (candle.High + candle.Low + candle.Close) / 3
		sum += tp[i]
	}
	mean := sum / float64(n)

	var dev float64
	for _, v := range tp {
		dev += math.Abs(v - mean)
	}
	dev /= float64(n)
	if dev == 0 {
		return 0
	}
	return (tp[n-1] - mean) / (0.015 * dev)
}

// ATRSeries returns the n-period Average True Range with Wilder smoothing,
// one sample per candle starting at index n. Empty when not enough candles.
func ATRSeries(c []domain.Candle, n int) []float64 {
	if n <= 0 || len(c) <= n {
		return nil
	}

	tr := make([]float64, len(c))
	tr[0] = c[0].High - c[0].Low
	for i := 1; i < len(c); i++ {
		hl := c[i].High - c[i].Low
		hc := math.Abs(c[i].High - c[i-1].Close)
		lc := math.Abs(c[i].Low - c[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var first float64
	for i := 1; i <= n; i++ {
		first += tr[i]
	}
	first /= float64(n)

	out := make([]float64, 0, len(c)-n)
	out = append(out, first)
	prev := first
	for i := n + 1; i < len(c); i++ {
		prev = (prev*float64(n-1) + tr[i]) / float64(n)
		out = append(out, prev)
	}
	return out
}

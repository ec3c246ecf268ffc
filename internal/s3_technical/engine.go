package s3_technical

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Skip reasons reported by the engine
const (
	SkipMissingTicker  = "missing_ticker"
	SkipMissingDate    = "missing_date"
	SkipMissingPriceID = "missing_price_id"
	SkipInvalidClose   = "invalid_close"
	SkipDuplicateBar   = "duplicate_bar"
)

// Indicators is one bar with every indicator; NaN marks an undefined value
type Indicators struct {
	contracts.PriceBar
	SMA10       float64
	SMA20       float64
	EMA10       float64
	EMA20       float64
	RSI14       float64
	DailyReturn float64
	VolumeSMA10 float64
}

// Complete reports whether every indicator is defined
func (ind Indicators) Complete() bool {
	for _, v := range []float64{ind.SMA10, ind.SMA20, ind.EMA10, ind.EMA20, ind.RSI14, ind.DailyReturn, ind.VolumeSMA10} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Metrics converts to the stored record keyed by price_id
func (ind Indicators) Metrics(computedAt time.Time) contracts.TechnicalMetrics {
	return contracts.TechnicalMetrics{
		AssetPriceID: ind.PriceID,
		SMA10:        ind.SMA10,
		SMA20:        ind.SMA20,
		EMA10:        ind.EMA10,
		EMA20:        ind.EMA20,
		RSI14:        ind.RSI14,
		DailyReturn:  ind.DailyReturn,
		VolumeSMA10:  ind.VolumeSMA10,
		ComputedAt:   computedAt,
	}
}

// Series computes indicators for one ticker's bars. The input is not
// modified; a date-sorted copy is used. Every bar is returned.
func Series(bars []contracts.PriceBar) []Indicators {
	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	closes := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, b := range sorted {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	sma10 := sma(closes, SMAShort)
	sma20 := sma(closes, SMALong)
	ema10 := ema(closes, EMAShort)
	ema20 := ema(closes, EMALong)
	rsi14 := rsi(closes, RSIPeriod)
	returns := pctChange(closes)
	volSMA := sma(volumes, VolumeSMA)

	out := make([]Indicators, len(sorted))
	for i, b := range sorted {
		out[i] = Indicators{
			PriceBar:    b,
			SMA10:       sma10[i],
			SMA20:       sma20[i],
			EMA10:       ema10[i],
			EMA20:       ema20[i],
			RSI14:       rsi14[i],
			DailyReturn: returns[i],
			VolumeSMA10: volSMA[i],
		}
	}
	return out
}

// Engine computes technical metrics for many tickers
// ⭐ SSOT: 기술적 지표 계산은 여기서만
type Engine struct {
	workers int
	logger  *logger.Logger
}

// NewEngine creates an engine with a per-ticker worker limit
func NewEngine(workers int, log *logger.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{workers: workers, logger: log.WithStage(contracts.StageTechnical)}
}

// Compute partitions bars by ticker, computes indicators and keeps only
// rows where every indicator is defined. Output is ordered by ticker, then
// date, independent of the worker count.
func (e *Engine) Compute(ctx context.Context, bars []contracts.PriceBar, computedAt time.Time) ([]contracts.TechnicalMetrics, contracts.SkipReport, error) {
	groups, skips := partition(bars)

	tickers := make([]string, 0, len(groups))
	for ticker := range groups {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	results := make([][]contracts.TechnicalMetrics, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, ticker := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = completeRows(Series(groups[ticker]), computedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, skips, fmt.Errorf("compute indicators: %w", err)
	}

	var out []contracts.TechnicalMetrics
	for i, ticker := range tickers {
		e.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"bars":   len(groups[ticker]),
			"rows":   len(results[i]),
		}).Debug("Computed indicators")
		out = append(out, results[i]...)
	}

	e.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"bars":    len(bars),
		"rows":    len(out),
		"skipped": skips.Count,
	}).Info("Technical indicators computed")
	if !skips.Empty() {
		e.logger.Warnf("Skipped bars: %s", skips)
	}

	return out, skips, nil
}

func completeRows(series []Indicators, computedAt time.Time) []contracts.TechnicalMetrics {
	var out []contracts.TechnicalMetrics
	for _, ind := range series {
		if ind.Complete() {
			out = append(out, ind.Metrics(computedAt))
		}
	}
	return out
}

// partition groups valid bars by ticker; the first bar of a (ticker, date) wins
func partition(bars []contracts.PriceBar) (map[string][]contracts.PriceBar, contracts.SkipReport) {
	skips := contracts.NewSkipReport(contracts.StageTechnical)
	groups := make(map[string][]contracts.PriceBar)
	seen := make(map[contracts.TickerDate]struct{})

	for _, b := range bars {
		switch {
		case b.Ticker == "":
			skips.Add(SkipMissingTicker)
			continue
		case b.Date.IsZero():
			skips.Add(SkipMissingDate)
			continue
		case b.PriceID == 0:
			skips.Add(SkipMissingPriceID)
			continue
		case math.IsNaN(b.Close) || b.Close <= 0:
			skips.Add(SkipInvalidClose)
			continue
		}

		key := contracts.NewTickerDate(b.Ticker, b.Date)
		if _, dup := seen[key]; dup {
			skips.Add(SkipDuplicateBar)
			continue
		}
		seen[key] = struct{}{}
		groups[b.Ticker] = append(groups[b.Ticker], b)
	}
	return groups, skips
}

package yahoo

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// fetchFunc returns the daily chart bars of one symbol
type fetchFunc func(ctx context.Context, symbol string, from, to time.Time) ([]finance.ChartBar, error)

// Client fetches daily OHLCV bars from Yahoo Finance
// ⭐ SSOT: 가격 데이터 수집은 이 클라이언트에서만
type Client struct {
	fetch   fetchFunc
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewClient creates a client limited to rps chart requests per second
func NewClient(rps float64, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		fetch:   fetchChart,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.WithField("source", "yahoo"),
	}
}

// FetchPrices returns date-ordered bars per ticker, tickers in the given
// order. A ticker that fails is logged and skipped; the call fails only
// when every ticker fails.
func (c *Client) FetchPrices(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	var (
		out      []contracts.PriceBar
		failures int
		lastErr  error
	)

	for _, ticker := range tickers {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		raw, err := c.fetch(ctx, ticker, from, to)
		if err != nil {
			failures++
			lastErr = err
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to fetch chart")
			continue
		}

		converted := 0
		for _, bar := range raw {
			pb, ok := ToPriceBar(ticker, bar)
			if !ok {
				continue
			}
			out = append(out, pb)
			converted++
		}

		c.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"bars":   converted,
			"raw":    len(raw),
		}).Debug("Fetched chart")
	}

	if len(tickers) > 0 && failures == len(tickers) {
		return nil, fmt.Errorf("failed to fetch prices for all %d tickers: %w", failures, lastErr)
	}
	return out, nil
}

// ToPriceBar converts a chart bar. Bars without a positive close (holidays,
// halted sessions) are rejected.
func ToPriceBar(ticker string, bar finance.ChartBar) (contracts.PriceBar, bool) {
	closePrice := toFloat(bar.Close)
	if closePrice <= 0 || bar.Timestamp <= 0 {
		return contracts.PriceBar{}, false
	}
	return contracts.PriceBar{
		Ticker: ticker,
		Date:   contracts.DateOf(time.Unix(int64(bar.Timestamp), 0).UTC()),
		Open:   toFloat(bar.Open),
		Close:  closePrice,
		High:   toFloat(bar.High),
		Low:    toFloat(bar.Low),
		Volume: int64(bar.Volume),
	}, true
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(6).Float64()
	return f
}

func fetchChart(ctx context.Context, symbol string, from, to time.Time) ([]finance.ChartBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []finance.ChartBar
	for iter.Next() {
		bars = append(bars, *iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get chart for %s: %w", symbol, err)
	}
	return bars, nil
}

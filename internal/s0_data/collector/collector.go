package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/s0_data/quality"
	"github.com/wonny/newsquant/pkg/logger"
)

// Collector fans daily bar collection out over a worker pool
// ⭐ SSOT: 가격 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	source contracts.PriceSource
	store  contracts.PriceStore
	gate   *quality.QualityGate
	logger *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent workers
}

// NewCollector creates a new Collector instance
func NewCollector(
	source contracts.PriceSource,
	store contracts.PriceStore,
	gate *quality.QualityGate,
	log *logger.Logger,
) *Collector {
	if gate == nil {
		gate = quality.NewQualityGate(quality.DefaultConfig())
	}
	return &Collector{
		source: source,
		store:  store,
		gate:   gate,
		logger: log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of a fetch operation for one ticker
type FetchResult struct {
	Ticker     string
	PriceCount int
	Inserted   int
	Bars       []contracts.PriceBar
	Skips      contracts.SkipReport
	Error      error
}

// Report aggregates one collection run
type Report struct {
	Results  []FetchResult
	Fetched  int
	Inserted int
	Failed   int
	Skips    contracts.SkipReport
	Quality  *quality.Snapshot
}

// Collect fetches, validates and stores bars for every ticker.
// Per-ticker failures are logged and reported; the run only errors when every ticker failed.
func (c *Collector) Collect(ctx context.Context, tickers []string, from, to time.Time, cfg Config) (*Report, error) {
	results, err := c.FetchAllPrices(ctx, tickers, from, to, cfg)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Results: results,
		Skips:   contracts.NewSkipReport(contracts.StagePrices),
	}
	var bars []contracts.PriceBar
	for _, r := range results {
		if r.Error != nil {
			report.Failed++
		}
		report.Fetched += r.PriceCount
		report.Inserted += r.Inserted
		report.Skips.Merge(r.Skips)
		bars = append(bars, r.Bars...)
	}

	_, report.Quality = c.gate.Check(tickers, bars)
	report.Quality.Skips = report.Skips

	if len(tickers) > 0 && report.Failed == len(tickers) {
		return report, fmt.Errorf("price collection failed for all %d tickers: %w", len(tickers), firstError(results))
	}
	return report, nil
}

func firstError(results []FetchResult) error {
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

// FetchAllPrices fetches price data for the given tickers
func (c *Collector) FetchAllPrices(ctx context.Context, tickers []string, from, to time.Time, cfg Config) ([]FetchResult, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker_count": len(tickers),
		"from":         from.Format(contracts.DateLayout),
		"to":           to.Format(contracts.DateLayout),
		"workers":      workers,
	}).Info("Starting price collection")

	// Create worker pool
	results := make([]FetchResult, 0, len(tickers))
	resultCh := make(chan FetchResult, len(tickers))

	var wg sync.WaitGroup
	tickerCh := make(chan string, len(tickers))

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.priceWorker(ctx, workerID, tickerCh, resultCh, from, to)
		}(i)
	}

	// Send tickers to workers
	for _, ticker := range tickers {
		tickerCh <- ticker
	}
	close(tickerCh)

	// Wait for all workers to complete
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collect results
	successCount := 0
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		} else {
			successCount++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success": successCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Price collection completed")

	return results, nil
}

// priceWorker processes price fetching for tickers
func (c *Collector) priceWorker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- FetchResult, from, to time.Time) {
	for ticker := range tickerCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{
				Ticker: ticker,
				Error:  ctx.Err(),
			}
			continue
		default:
		}

		log := c.logger.WithTicker(ticker).WithField("worker", workerID)

		bars, err := c.source.FetchPrices(ctx, []string{ticker}, from, to)
		if err != nil {
			log.WithError(err).Error("Failed to fetch prices")
			resultCh <- FetchResult{
				Ticker: ticker,
				Error:  err,
			}
			continue
		}

		valid, skips := c.gate.Filter(bars)
		if !skips.Empty() {
			log.WithFields(map[string]interface{}{
				"skipped": skips.Count,
				"reasons": skips.String(),
			}).Warn("Dropped malformed bars")
		}

		inserted, err := c.store.UpsertPrices(ctx, valid)
		if err != nil {
			log.WithError(err).Error("Failed to save prices")
			resultCh <- FetchResult{
				Ticker:     ticker,
				PriceCount: len(valid),
				Skips:      skips,
				Error:      err,
			}
			continue
		}

		log.WithFields(map[string]interface{}{
			"count":    len(valid),
			"inserted": inserted,
		}).Debug("Fetched prices")

		resultCh <- FetchResult{
			Ticker:     ticker,
			PriceCount: len(valid),
			Inserted:   inserted,
			Bars:       valid,
			Skips:      skips,
		}
	}
}

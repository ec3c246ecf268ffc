package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/s0_data/quality"
	"github.com/wonny/newsquant/pkg/logger"
)

var (
	from = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
)

type fakeSource struct {
	bars  map[string][]contracts.PriceBar
	fails map[string]error
}

func (f *fakeSource) FetchPrices(_ context.Context, tickers []string, _, _ time.Time) ([]contracts.PriceBar, error) {
	var out []contracts.PriceBar
	for _, t := range tickers {
		if err := f.fails[t]; err != nil {
			return nil, err
		}
		out = append(out, f.bars[t]...)
	}
	return out, nil
}

type fakeStore struct {
	mu   sync.Mutex
	bars []contracts.PriceBar
	err  error
}

func (s *fakeStore) UpsertPrices(_ context.Context, bars []contracts.PriceBar) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = append(s.bars, bars...)
	return len(bars), nil
}

func (s *fakeStore) ListPrices(context.Context, []string, time.Time, time.Time) ([]contracts.PriceBar, error) {
	return s.bars, nil
}

func bar(ticker string, day int, close float64) contracts.PriceBar {
	return contracts.PriceBar{
		Ticker: ticker,
		Date:   from.AddDate(0, 0, day),
		Open:   close,
		Close:  close,
		High:   close,
		Low:    close,
		Volume: 1000,
	}
}

func byTicker(results []FetchResult) map[string]FetchResult {
	out := make(map[string]FetchResult, len(results))
	for _, r := range results {
		out[r.Ticker] = r
	}
	return out
}

func TestCollector_Collect(t *testing.T) {
	source := &fakeSource{
		bars: map[string][]contracts.PriceBar{
			"AAPL": {bar("AAPL", 0, 10), bar("AAPL", 1, 11)},
			"MSFT": {bar("MSFT", 0, 20), bar("MSFT", 1, 0)},
		},
		fails: map[string]error{"TSLA": errors.New("upstream 503")},
	}
	store := &fakeStore{}
	c := NewCollector(source, store, nil, logger.Nop())

	report, err := c.Collect(context.Background(), []string{"AAPL", "MSFT", "TSLA"}, from, to, Config{Workers: 2})
	require.NoError(t, err)

	results := byTicker(report.Results)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results["AAPL"].Inserted)
	assert.Equal(t, 1, results["MSFT"].Inserted)
	assert.Equal(t, 1, results["MSFT"].Skips.Reasons[quality.SkipNonPositive])
	assert.Error(t, results["TSLA"].Error)

	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skips.Count)
	assert.Len(t, store.bars, 3)

	require.NotNil(t, report.Quality)
	assert.Equal(t, 2, report.Quality.ValidTickers)
	assert.InDelta(t, 2.0/3.0, report.Quality.Coverage["price"], 1e-9)
}

func TestCollector_Collect_AllFailed(t *testing.T) {
	source := &fakeSource{fails: map[string]error{
		"AAPL": errors.New("down"),
		"MSFT": errors.New("down"),
	}}
	c := NewCollector(source, &fakeStore{}, nil, logger.Nop())

	report, err := c.Collect(context.Background(), []string{"AAPL", "MSFT"}, from, to, Config{Workers: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 tickers")
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Failed)
}

func TestCollector_StoreFailure(t *testing.T) {
	source := &fakeSource{bars: map[string][]contracts.PriceBar{
		"AAPL": {bar("AAPL", 0, 10)},
	}}
	c := NewCollector(source, &fakeStore{err: errors.New("disk full")}, nil, logger.Nop())

	results, err := c.FetchAllPrices(context.Background(), []string{"AAPL"}, from, to, Config{Workers: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualError(t, results[0].Error, "disk full")
	assert.Equal(t, 1, results[0].PriceCount)
	assert.Zero(t, results[0].Inserted)
}

func TestCollector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{bars: map[string][]contracts.PriceBar{"AAPL": {bar("AAPL", 0, 10)}}}
	c := NewCollector(source, &fakeStore{}, nil, logger.Nop())

	results, err := c.FetchAllPrices(ctx, []string{"AAPL", "MSFT"}, from, to, Config{Workers: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)

	tickers := make([]string, 0, len(results))
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
		tickers = append(tickers, r.Ticker)
	}
	sort.Strings(tickers)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestCollector_NoTickers(t *testing.T) {
	c := NewCollector(&fakeSource{}, &fakeStore{}, nil, logger.Nop())
	report, err := c.Collect(context.Background(), nil, from, to, Config{})
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Inserted)
}

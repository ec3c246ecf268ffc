package s3_technical

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

var (
	start      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	computedAt = time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
)

func makeBars(ticker string, idBase int64, closes []float64) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.PriceBar{
			PriceID: idBase + int64(i),
			Ticker:  ticker,
			Date:    start.AddDate(0, 0, i),
			Open:    c,
			Close:   c,
			High:    c + 1,
			Low:     c - 1,
			Volume:  int64(100 * (i + 1)),
		}
	}
	return bars
}

func linear(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func wavy(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 3*math.Sin(float64(i)) + 0.25*float64(i)
	}
	return out
}

// bruteEWM evaluates the adjusted weighted mean at t directly from its definition
func bruteEWM(values []float64, from, t int, alpha float64) float64 {
	var num, den float64
	for k := from; k <= t; k++ {
		w := math.Pow(1-alpha, float64(t-k))
		num += w * values[k]
		den += w
	}
	return num / den
}

func TestSeries_LinearCloses(t *testing.T) {
	series := Series(makeBars("AAPL", 1, linear(20)))
	require.Len(t, series, 20)

	assert.True(t, math.IsNaN(series[8].SMA10))
	assert.Equal(t, 5.5, series[9].SMA10)
	assert.True(t, math.IsNaN(series[18].SMA20))
	assert.Equal(t, 10.5, series[19].SMA20)

	assert.Equal(t, 1.0, series[0].EMA10)
	assert.True(t, math.IsNaN(series[0].DailyReturn))
	assert.Equal(t, 1.0, series[1].DailyReturn)

	assert.True(t, math.IsNaN(series[13].RSI14))
	assert.Equal(t, 100.0, series[14].RSI14)
}

func TestSeries_MatchesDefinitions(t *testing.T) {
	closes := wavy(40)
	series := Series(makeBars("AAPL", 1, closes))

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gains[i] = math.Max(d, 0)
		losses[i] = math.Abs(math.Min(d, 0))
	}

	for i := range closes {
		assert.InDelta(t, bruteEWM(closes, 0, i, 2.0/11.0), series[i].EMA10, 1e-9, "ema10 at %d", i)
		assert.InDelta(t, bruteEWM(closes, 0, i, 2.0/21.0), series[i].EMA20, 1e-9, "ema20 at %d", i)

		if i < RSIPeriod {
			assert.True(t, math.IsNaN(series[i].RSI14), "rsi at %d", i)
			continue
		}
		up := bruteEWM(gains, 1, i, 1.0/14.0)
		down := bruteEWM(losses, 1, i, 1.0/14.0)
		assert.InDelta(t, 100*up/(up+down), series[i].RSI14, 1e-9, "rsi at %d", i)
		assert.GreaterOrEqual(t, series[i].RSI14, 0.0)
		assert.LessOrEqual(t, series[i].RSI14, 100.0)
	}
}

func TestSeries_SortsCopy(t *testing.T) {
	bars := makeBars("AAPL", 1, linear(20))
	reversed := make([]contracts.PriceBar, len(bars))
	for i := range bars {
		reversed[len(bars)-1-i] = bars[i]
	}
	snapshot := append([]contracts.PriceBar(nil), reversed...)

	series := Series(reversed)

	assert.Equal(t, snapshot, reversed, "input must not be reordered")
	assert.Equal(t, 5.5, series[9].SMA10)
	assert.Equal(t, int64(20), series[19].PriceID)
}

func TestEngine_Compute_LinearCloses(t *testing.T) {
	metrics, skips, err := NewEngine(2, nil).Compute(context.Background(), makeBars("AAPL", 1, linear(20)), computedAt)
	require.NoError(t, err)
	assert.True(t, skips.Empty())
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, int64(20), m.AssetPriceID)
	assert.Equal(t, 15.5, m.SMA10)
	assert.Equal(t, 10.5, m.SMA20)
	assert.Equal(t, 100.0, m.RSI14)
	assert.InDelta(t, 1.0/19.0, m.DailyReturn, 1e-12)
	assert.Equal(t, 1550.0, m.VolumeSMA10)
	assert.Equal(t, computedAt, m.ComputedAt)
}

func TestEngine_Compute_DropsWarmupAndFlatRSI(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 50
	}

	bars := append(makeBars("FLAT", 1, flat), makeBars("SHORT", 100, linear(19))...)
	metrics, _, err := NewEngine(4, nil).Compute(context.Background(), bars, computedAt)

	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestEngine_Compute_OrderIndependentOfWorkers(t *testing.T) {
	var bars []contracts.PriceBar
	bars = append(bars, makeBars("TSLA", 1000, wavy(45))...)
	bars = append(bars, makeBars("AAPL", 2000, wavy(30))...)
	bars = append(bars, makeBars("MSFT", 3000, linear(25))...)

	serial, _, err := NewEngine(1, nil).Compute(context.Background(), bars, computedAt)
	require.NoError(t, err)
	parallel, _, err := NewEngine(8, nil).Compute(context.Background(), bars, computedAt)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	require.Len(t, serial, (30-19)+(25-19)+(45-19))
	assert.Equal(t, int64(2019), serial[0].AssetPriceID)
	assert.Equal(t, int64(3019), serial[11].AssetPriceID)
	assert.Equal(t, int64(1019), serial[17].AssetPriceID)
	for _, m := range serial {
		assert.False(t, math.IsNaN(m.RSI14))
	}
}

func TestEngine_Compute_SkipsMalformedBars(t *testing.T) {
	bars := makeBars("AAPL", 1, linear(20))
	bad := []contracts.PriceBar{
		{PriceID: 90, Ticker: "", Date: start, Close: 1},
		{PriceID: 91, Ticker: "AAPL", Close: 1},
		{PriceID: 0, Ticker: "AAPL", Date: start.AddDate(1, 0, 0), Close: 1},
		{PriceID: 92, Ticker: "AAPL", Date: start.AddDate(1, 0, 0), Close: 0},
		{PriceID: 93, Ticker: "AAPL", Date: start.AddDate(1, 0, 1), Close: math.NaN()},
		{PriceID: 94, Ticker: "AAPL", Date: start, Close: 999},
	}

	metrics, skips, err := NewEngine(1, nil).Compute(context.Background(), append(bars, bad...), computedAt)
	require.NoError(t, err)

	require.Len(t, metrics, 1)
	assert.Equal(t, 15.5, metrics[0].SMA10)
	assert.Equal(t, 6, skips.Count)
	assert.Equal(t, 1, skips.Reasons[SkipMissingTicker])
	assert.Equal(t, 1, skips.Reasons[SkipMissingDate])
	assert.Equal(t, 1, skips.Reasons[SkipMissingPriceID])
	assert.Equal(t, 2, skips.Reasons[SkipInvalidClose])
	assert.Equal(t, 1, skips.Reasons[SkipDuplicateBar])
}

func TestEngine_Compute_EmptyAndCancelled(t *testing.T) {
	metrics, skips, err := NewEngine(2, nil).Compute(context.Background(), nil, computedAt)
	require.NoError(t, err)
	assert.Empty(t, metrics)
	assert.True(t, skips.Empty())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = NewEngine(2, nil).Compute(ctx, makeBars("AAPL", 1, linear(20)), computedAt)
	assert.ErrorIs(t, err, context.Canceled)
}

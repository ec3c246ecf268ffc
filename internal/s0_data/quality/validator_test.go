package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

var day = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func bar(ticker string, close float64, volume int64) contracts.PriceBar {
	return contracts.PriceBar{
		Ticker: ticker,
		Date:   day,
		Open:   close,
		Close:  close,
		High:   close + 1,
		Low:    close - 1,
		Volume: volume,
	}
}

func TestQualityGate_Filter(t *testing.T) {
	inverted := bar("AAPL", 10, 1)
	inverted.High, inverted.Low = 9, 11
	undated := bar("AAPL", 10, 1)
	undated.Date = time.Time{}

	tests := []struct {
		name   string
		bar    contracts.PriceBar
		reason string
	}{
		{"valid", bar("AAPL", 10, 5), ""},
		{"missing ticker", bar("", 10, 5), SkipMissingTicker},
		{"missing date", undated, SkipMissingDate},
		{"nan close", bar("AAPL", math.NaN(), 5), SkipNonFinite},
		{"zero close", bar("AAPL", 0, 5), SkipNonPositive},
		{"high below low", inverted, SkipHighBelowLow},
		{"negative volume", bar("AAPL", 10, -1), SkipNegativeVol},
	}

	gate := NewQualityGate(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, skips := gate.Filter([]contracts.PriceBar{tt.bar})
			if tt.reason == "" {
				assert.Len(t, out, 1)
				assert.True(t, skips.Empty())
				return
			}
			assert.Empty(t, out)
			assert.Equal(t, 1, skips.Reasons[tt.reason])
			assert.Equal(t, contracts.StagePrices, skips.Stage)
		})
	}
}

func TestQualityGate_Check(t *testing.T) {
	gate := NewQualityGate(DefaultConfig())
	bars := []contracts.PriceBar{
		bar("AAPL", 10, 100),
		bar("AAPL", 11, 100),
		bar("MSFT", 0, 100),
	}

	valid, snapshot := gate.Check([]string{"AAPL", "MSFT"}, bars)

	require.Len(t, valid, 2)
	assert.Equal(t, 2, snapshot.TotalTickers)
	assert.Equal(t, 1, snapshot.ValidTickers)
	assert.Equal(t, 0.5, snapshot.Coverage["price"])
	assert.Equal(t, 1.0, snapshot.Coverage["volume"])
	assert.InDelta(t, 0.7, snapshot.QualityScore, 1e-9)
	assert.True(t, snapshot.Passed)
	assert.Equal(t, 1, snapshot.Skips.Count)
}

func TestQualityGate_Check_Empty(t *testing.T) {
	_, snapshot := NewQualityGate(DefaultConfig()).Check([]string{"AAPL"}, nil)
	assert.Equal(t, 0.0, snapshot.QualityScore)
	assert.False(t, snapshot.Passed)
}

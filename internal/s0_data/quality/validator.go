package quality

import (
	"math"

	"github.com/wonny/newsquant/internal/contracts"
)

// Skip reasons for bars rejected before storage
const (
	SkipMissingTicker = "missing_ticker"
	SkipMissingDate   = "missing_date"
	SkipNonFinite     = "non_finite_price"
	SkipNonPositive   = "non_positive_close"
	SkipHighBelowLow  = "high_below_low"
	SkipNegativeVol   = "negative_volume"
)

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage  float64 `yaml:"min_price_coverage"`  // share of tickers with at least one bar
	MinVolumeCoverage float64 `yaml:"min_volume_coverage"` // share of bars with volume > 0
}

// DefaultConfig passes when at least one ticker produced usable bars
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:  0.5,
		MinVolumeCoverage: 0.9,
	}
}

// Snapshot summarizes one collection run
type Snapshot struct {
	TotalTickers int                  `json:"total_tickers"`
	ValidTickers int                  `json:"valid_tickers"`
	ValidBars    int                  `json:"valid_bars"`
	Coverage     map[string]float64   `json:"coverage"`
	QualityScore float64              `json:"quality_score"`
	Passed       bool                 `json:"passed"`
	Skips        contracts.SkipReport `json:"skips"`
}

// QualityGate validates collected bars
type QualityGate struct {
	config Config
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Filter drops malformed bars and reports why
// ⭐ SSOT: S0 가격 바 유효성 검증
func (g *QualityGate) Filter(bars []contracts.PriceBar) ([]contracts.PriceBar, contracts.SkipReport) {
	skips := contracts.NewSkipReport(contracts.StagePrices)
	out := make([]contracts.PriceBar, 0, len(bars))
	for _, b := range bars {
		if reason := invalidReason(b); reason != "" {
			skips.Add(reason)
			continue
		}
		out = append(out, b)
	}
	return out, skips
}

func invalidReason(b contracts.PriceBar) string {
	switch {
	case b.Ticker == "":
		return SkipMissingTicker
	case b.Date.IsZero():
		return SkipMissingDate
	}
	for _, v := range []float64{b.Open, b.Close, b.High, b.Low} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SkipNonFinite
		}
	}
	switch {
	case b.Close <= 0:
		return SkipNonPositive
	case b.High < b.Low:
		return SkipHighBelowLow
	case b.Volume < 0:
		return SkipNegativeVol
	}
	return ""
}

// Check filters bars and scores coverage against the requested tickers
func (g *QualityGate) Check(tickers []string, bars []contracts.PriceBar) ([]contracts.PriceBar, *Snapshot) {
	valid, skips := g.Filter(bars)

	snapshot := &Snapshot{
		TotalTickers: len(tickers),
		ValidBars:    len(valid),
		Coverage:     make(map[string]float64),
		Skips:        skips,
	}

	seen := make(map[string]struct{})
	withVolume := 0
	for _, b := range valid {
		seen[b.Ticker] = struct{}{}
		if b.Volume > 0 {
			withVolume++
		}
	}
	for _, t := range tickers {
		if _, ok := seen[t]; ok {
			snapshot.ValidTickers++
		}
	}

	if len(tickers) > 0 {
		snapshot.Coverage["price"] = float64(snapshot.ValidTickers) / float64(len(tickers))
	}
	if len(valid) > 0 {
		snapshot.Coverage["volume"] = float64(withVolume) / float64(len(valid))
	}

	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)
	snapshot.Passed = snapshot.Coverage["price"] >= g.config.MinPriceCoverage &&
		snapshot.Coverage["volume"] >= g.config.MinVolumeCoverage

	return valid, snapshot
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	weights := map[string]float64{
		"price":  0.6,
		"volume": 0.4,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}
	if math.IsNaN(score) {
		return 0
	}
	return score
}

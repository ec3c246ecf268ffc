package s2_sentiment

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// DefaultConfidenceThreshold discards low-confidence observations
const DefaultConfidenceThreshold = 0.8

// Skip reasons reported by the aggregator
const (
	SkipInvalidScore      = "invalid_score"
	SkipInvalidConfidence = "invalid_confidence"
	SkipMissingTicker     = "missing_ticker"
	SkipMissingDate       = "missing_published_date"
)

// Aggregator averages confident observations per (ticker, date)
// ⭐ SSOT: 감성 점수 집계는 여기서만
type Aggregator struct {
	threshold float64
	logger    *logger.Logger
}

// NewAggregator creates an aggregator. The threshold must lie in [0, 1].
func NewAggregator(threshold float64, log *logger.Logger) (*Aggregator, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("confidence threshold must be within [0, 1], got %v", threshold)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{threshold: threshold, logger: log.WithStage(contracts.StageSentiment)}, nil
}

// Aggregate returns the mean score per (ticker, date). Keys without any
// observation at or above the threshold are absent, not zero.
func (a *Aggregator) Aggregate(observations []contracts.ScoredMention) map[contracts.SentimentKey]float64 {
	out, _ := a.AggregateWithReport(observations)
	return out
}

// AggregateWithReport is Aggregate plus a report of malformed observations
func (a *Aggregator) AggregateWithReport(observations []contracts.ScoredMention) (map[contracts.SentimentKey]float64, contracts.SkipReport) {
	skips := contracts.NewSkipReport(contracts.StageSentiment)

	type acc struct {
		sum   float64
		count int
	}
	groups := make(map[contracts.SentimentKey]*acc)
	discarded := 0

	for _, obs := range observations {
		if reason := invalidReason(obs); reason != "" {
			skips.Add(reason)
			continue
		}
		if obs.Confidence < a.threshold {
			discarded++
			continue
		}

		key := contracts.NewSentimentKey(obs.Ticker, obs.PublishedDate)
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		g.sum += float64(obs.Score)
		g.count++
	}

	out := make(map[contracts.SentimentKey]float64, len(groups))
	for key, g := range groups {
		out[key] = g.sum / float64(g.count)
	}

	a.logger.WithFields(map[string]interface{}{
		"observations":   len(observations),
		"below_cutoff":   discarded,
		"groups":         len(out),
		"skipped":        skips.Count,
		"min_confidence": a.threshold,
	}).Debug("Aggregated sentiment")

	return out, skips
}

func invalidReason(obs contracts.ScoredMention) string {
	switch {
	case obs.Score < -1 || obs.Score > 1:
		return SkipInvalidScore
	case math.IsNaN(obs.Confidence) || obs.Confidence < 0 || obs.Confidence > 1:
		return SkipInvalidConfidence
	case obs.Ticker == "":
		return SkipMissingTicker
	case obs.PublishedDate.IsZero():
		return SkipMissingDate
	default:
		return ""
	}
}

// LatestRun keeps, for each mention, only the observations of its most
// recent analysis (the greatest AnalyzedAt for that MentionID), so appended
// re-analyses are not counted twice. Mentions the latest batch did not
// re-score keep their earlier observation.
func LatestRun(observations []contracts.ScoredMention) []contracts.ScoredMention {
	if len(observations) == 0 {
		return nil
	}

	latest := make(map[int64]time.Time, len(observations))
	for _, obs := range observations {
		if at, ok := latest[obs.MentionID]; !ok || obs.AnalyzedAt.After(at) {
			latest[obs.MentionID] = obs.AnalyzedAt
		}
	}

	out := make([]contracts.ScoredMention, 0, len(latest))
	for _, obs := range observations {
		if obs.AnalyzedAt.Equal(latest[obs.MentionID]) {
			out = append(out, obs)
		}
	}
	return out
}

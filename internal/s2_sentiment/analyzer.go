package s2_sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Skip reasons reported by the analyzer
const (
	SkipMissingMentionID = "missing_mention_id"
	SkipScorerError      = "scorer_error"
	SkipUnknownLabel     = "unknown_label"
)

// LabelScore maps a scorer label to -1, 0 or +1
func LabelScore(label string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case contracts.LabelPositive:
		return 1, true
	case contracts.LabelNegative:
		return -1, true
	case contracts.LabelNeutral:
		return 0, true
	default:
		return 0, false
	}
}

// Analyzer scores mention titles and produces appendable observations
type Analyzer struct {
	scorer contracts.SentimentScorer
	logger *logger.Logger
}

// NewAnalyzer creates an analyzer around a scorer
func NewAnalyzer(scorer contracts.SentimentScorer, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{scorer: scorer, logger: log.WithStage(contracts.StageSentiment)}
}

// Analyze scores every mention once. A failing or unparseable score skips
// that mention only; cancellation aborts the batch.
func (a *Analyzer) Analyze(ctx context.Context, mentions []contracts.Mention, analyzedAt time.Time) ([]contracts.SentimentObservation, contracts.SkipReport, error) {
	skips := contracts.NewSkipReport(contracts.StageSentiment)
	model := a.scorer.ModelName()
	observations := make([]contracts.SentimentObservation, 0, len(mentions))

	for _, m := range mentions {
		if err := ctx.Err(); err != nil {
			return nil, skips, fmt.Errorf("analyze mentions: %w", err)
		}
		if m.ID == 0 {
			skips.Add(SkipMissingMentionID)
			continue
		}

		result, err := a.scorer.Score(ctx, m.Title)
		if err != nil {
			a.logger.WithError(err).WithField("mention_id", m.ID).Warn("Scorer failed, skipping mention")
			skips.Add(SkipScorerError)
			continue
		}

		score, ok := LabelScore(result.Label)
		if !ok {
			skips.Add(SkipUnknownLabel)
			continue
		}
		if math.IsNaN(result.Confidence) || result.Confidence < 0 || result.Confidence > 1 {
			skips.Add(SkipInvalidConfidence)
			continue
		}

		observations = append(observations, contracts.SentimentObservation{
			MentionID:  m.ID,
			Score:      score,
			Confidence: result.Confidence,
			ModelName:  model,
			AnalyzedAt: analyzedAt,
		})
	}

	a.logger.WithFields(map[string]interface{}{
		"model":        model,
		"mentions":     len(mentions),
		"observations": len(observations),
		"skipped":      skips.Count,
	}).Info("Scored mentions")

	return observations, skips, nil
}

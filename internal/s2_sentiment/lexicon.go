package s2_sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/wonny/newsquant/internal/contracts"
)

// LexiconModelName is recorded as model_name for lexicon observations
const LexiconModelName = "lexicon-v1"

type weightedTerm struct {
	term   string
	weight float64
}

// Terms are lowercase, space separated word sequences
var bullishTerms = []weightedTerm{
	{"bullish", 0.7}, {"rally", 0.6}, {"rallies", 0.6}, {"surge", 0.7}, {"surges", 0.7},
	{"upbeat", 0.5}, {"growth", 0.4}, {"upgrade", 0.6}, {"outperform", 0.6},
	{"strong", 0.4}, {"recovery", 0.5}, {"breakout", 0.6}, {"record high", 0.7},
	{"all time high", 0.7}, {"beat", 0.5}, {"beats", 0.5}, {"exceeds", 0.5},
	{"expansion", 0.4}, {"profit", 0.3}, {"dividend", 0.4}, {"soars", 0.7},
}

var bearishTerms = []weightedTerm{
	{"bearish", 0.7}, {"crash", 0.8}, {"plunge", 0.7}, {"plunges", 0.7}, {"slump", 0.6},
	{"downgrade", 0.6}, {"underperform", 0.6}, {"weak", 0.4}, {"decline", 0.5},
	{"loss", 0.4}, {"selloff", 0.7}, {"falls", 0.4}, {"correction", 0.5},
	{"default", 0.7}, {"fraud", 0.8}, {"investigation", 0.5}, {"recall", 0.5},
	{"miss", 0.5}, {"misses", 0.5}, {"warning", 0.5}, {"lawsuit", 0.5},
}

// LexiconScorer is an offline keyword scorer used when no inference
// endpoint is configured. It is deterministic.
type LexiconScorer struct{}

// NewLexiconScorer creates a lexicon scorer
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{}
}

// ModelName implements contracts.SentimentScorer
func (s *LexiconScorer) ModelName() string {
	return LexiconModelName
}

// Score implements contracts.SentimentScorer. Text without any keyword is
// neutral with confidence 0.1 so it never survives a sensible cutoff.
func (s *LexiconScorer) Score(_ context.Context, text string) (contracts.ScoreResult, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ") + " "

	bull, bullHits := sumTerms(padded, bullishTerms)
	bear, bearHits := sumTerms(padded, bearishTerms)
	matches := bullHits + bearHits

	if matches == 0 {
		return contracts.ScoreResult{Label: contracts.LabelNeutral, Confidence: 0.1}, nil
	}

	net := (bull - bear) / (bull + bear)
	confidence := math.Min(float64(matches)*0.15+0.2, 0.95)

	label := contracts.LabelNeutral
	switch {
	case net > 0.2:
		label = contracts.LabelPositive
	case net < -0.2:
		label = contracts.LabelNegative
	}

	return contracts.ScoreResult{Label: label, Confidence: confidence}, nil
}

func sumTerms(padded string, terms []weightedTerm) (float64, int) {
	var (
		sum  float64
		hits int
	)
	for _, t := range terms {
		if strings.Contains(padded, " "+t.term+" ") {
			sum += t.weight
			hits++
		}
	}
	return sum, hits
}

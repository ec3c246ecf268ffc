package contracts

import (
	"context"
	"time"
)

// Entity is a named-entity span found in free text
type Entity struct {
	Text  string
	Label string // ORG, PERSON, GPE, ...
}

// EntityLabelOrg is the only label the extractor keeps
const EntityLabelOrg = "ORG"

// EntityRecognizer finds named entities in text (S1)
// ⭐ SSOT: S1 NER 인터페이스
type EntityRecognizer interface {
	Recognize(text string) []Entity
}

// Sentiment labels returned by scorers
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// ScoreResult is a raw scorer answer before it is mapped to -1/0/+1
type ScoreResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// SentimentScorer classifies one text (S2)
// ⭐ SSOT: S2 감성 분석 인터페이스
type SentimentScorer interface {
	Score(ctx context.Context, text string) (ScoreResult, error)
	ModelName() string
}

// ArticleSource fetches recent news articles (S1 input)
type ArticleSource interface {
	FetchArticles(ctx context.Context) ([]Article, SkipReport, error)
}

// AliasSource loads the alias → ticker mapping (S1 input)
type AliasSource interface {
	LoadAliases(ctx context.Context) (AliasSet, error)
}

// PriceSource fetches daily bars for a date range, inclusive (S0 input)
type PriceSource interface {
	FetchPrices(ctx context.Context, tickers []string, from, to time.Time) ([]PriceBar, error)
}

package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만
//
// Every Upsert* inserts with ignore-on-conflict on the record's key, runs the
// whole batch in one transaction and returns the number of rows actually
// inserted. Empty batches return 0 without touching the database.

// PriceStore persists daily bars keyed by (ticker, date)
type PriceStore interface {
	UpsertPrices(ctx context.Context, bars []PriceBar) (int, error)
	ListPrices(ctx context.Context, tickers []string, from, to time.Time) ([]PriceBar, error)
}

// MentionStore persists mentions keyed by (published_date, title, ticker)
type MentionStore interface {
	UpsertMentions(ctx context.Context, mentions []Mention) (int, error)
	ListMentions(ctx context.Context, since time.Time) ([]Mention, error)
}

// SentimentStore appends observations; it never updates them
type SentimentStore interface {
	AppendObservations(ctx context.Context, observations []SentimentObservation) (int, error)
	ListScoredMentions(ctx context.Context) ([]ScoredMention, error)
}

// TechnicalStore persists indicators keyed by asset_price_id
type TechnicalStore interface {
	UpsertTechnicalMetrics(ctx context.Context, metrics []TechnicalMetrics) (int, error)
	ListPricesWithMetrics(ctx context.Context) ([]PriceWithMetrics, error)
}

// FeatureStore persists feature rows keyed by (ticker, date)
type FeatureStore interface {
	UpsertFeatureRows(ctx context.Context, rows []FeatureRow) (int, error)
	ListFeatureRows(ctx context.Context, ticker string) ([]FeatureRow, error)
}

// Store is the full persistence boundary used by the orchestrator
type Store interface {
	PriceStore
	MentionStore
	SentimentStore
	TechnicalStore
	FeatureStore
	AliasSource
	Ping(ctx context.Context) error
	Close() error
}

package contracts

import (
	"sort"
	"time"
)

// ⭐ SSOT: record shapes shared by every stage are defined here only

// DateLayout is the canonical date format used in logs and keys
const DateLayout = "2006-01-02"

// DateOf truncates a timestamp to its calendar date (UTC midnight)
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Article is a scraped news item. Immutable once scraped.
type Article struct {
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	PublishedDate time.Time `json:"published_date"`
	Source        string    `json:"source"`
	URL           string    `json:"url"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// AliasSet maps an organization alias (name or pseudonym) to its canonical ticker
type AliasSet map[string]string

// Aliases returns the alias keys in sorted order
func (s AliasSet) Aliases() []string {
	aliases := make([]string, 0, len(s))
	for alias := range s {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Ticker returns the ticker for an alias
func (s AliasSet) Ticker(alias string) (string, bool) {
	ticker, ok := s[alias]
	return ticker, ok
}

// Tickers returns the distinct tickers referenced by the set, sorted
func (s AliasSet) Tickers() []string {
	seen := make(map[string]struct{}, len(s))
	tickers := make([]string, 0, len(s))
	for _, ticker := range s {
		if _, ok := seen[ticker]; ok {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Mention links one article to one ticker
type Mention struct {
	ID            int64     `json:"id,omitempty"`
	Ticker        string    `json:"ticker"`
	PublishedDate time.Time `json:"published_date"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// MentionKey is the uniqueness key of a stored mention
type MentionKey struct {
	PublishedDate time.Time
	Title         string
	Ticker        string
}

// Key returns the (published_date, title, ticker) key
func (m Mention) Key() MentionKey {
	return MentionKey{
		PublishedDate: DateOf(m.PublishedDate),
		Title:         m.Title,
		Ticker:        m.Ticker,
	}
}

// SentimentObservation is one scoring of one mention. Re-analysis appends.
type SentimentObservation struct {
	MentionID  int64     `json:"mention_id"`
	Score      int       `json:"sentiment_score"` // -1, 0, +1
	Confidence float64   `json:"confidence"`      // 0.0 ~ 1.0
	ModelName  string    `json:"model_name"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ScoredMention is an observation joined to its mention's ticker and date
type ScoredMention struct {
	SentimentObservation
	Ticker        string    `json:"ticker"`
	PublishedDate time.Time `json:"published_date"`
}

// TickerDate is the (ticker, calendar date) key used across stages
type TickerDate struct {
	Ticker string
	Date   time.Time
}

// NewTickerDate builds a key with the date normalized
func NewTickerDate(ticker string, date time.Time) TickerDate {
	return TickerDate{Ticker: ticker, Date: DateOf(date)}
}

// SentimentKey keys the aggregated sentiment mapping
type SentimentKey = TickerDate

// NewSentimentKey builds a sentiment key with the date normalized
func NewSentimentKey(ticker string, date time.Time) SentimentKey {
	return NewTickerDate(ticker, date)
}

// PriceBar is one daily OHLCV bar. Unique per (ticker, date).
type PriceBar struct {
	PriceID int64     `json:"price_id"`
	Ticker  string    `json:"ticker"`
	Date    time.Time `json:"date"`
	Open    float64   `json:"open"`
	Close   float64   `json:"close"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Volume  int64     `json:"volume"`
}

// TechnicalMetrics holds indicators for one price bar (1:1 by AssetPriceID)
type TechnicalMetrics struct {
	AssetPriceID int64     `json:"asset_price_id"`
	SMA10        float64   `json:"sma_10"`
	SMA20        float64   `json:"sma_20"`
	EMA10        float64   `json:"ema_10"`
	EMA20        float64   `json:"ema_20"`
	RSI14        float64   `json:"rsi_14"`
	DailyReturn  float64   `json:"daily_return"`
	VolumeSMA10  float64   `json:"volume_sma_10"`
	ComputedAt   time.Time `json:"computed_at"`
}

// PriceWithMetrics is a price bar inner-joined to its metrics
type PriceWithMetrics struct {
	PriceBar
	Metrics TechnicalMetrics `json:"metrics"`
}

// FeatureRow is one (ticker, date) row of the model feature matrix
type FeatureRow struct {
	Ticker  string    `json:"ticker"`
	Date    time.Time `json:"date"`
	PriceID int64     `json:"price_id"`

	// Carried from the price join; not part of the stored matrix
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`

	SMA10       float64 `json:"sma_10"`
	SMA20       float64 `json:"sma_20"`
	EMA10       float64 `json:"ema_10"`
	EMA20       float64 `json:"ema_20"`
	RSI14       float64 `json:"rsi_14"`
	DailyReturn float64 `json:"daily_return"`
	VolumeSMA10 float64 `json:"volume_sma_10"`

	SentimentScore float64 `json:"sentiment_score"`

	NextDayReturn float64 `json:"next_day_return"`
	NextDayUp     bool    `json:"next_day_up"`
	LabelValid    bool    `json:"label_valid"`
}

// Sequence is a fixed-length input window plus the label that follows it
type Sequence struct {
	Ticker    string      `json:"ticker"`
	Start     int         `json:"start"`
	Inputs    [][]float64 `json:"inputs"`
	Label     float64     `json:"label"`
	LabelDate time.Time   `json:"label_date"`
}

package s0_data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wonny/newsquant/internal/contracts"
)

// SQLite row models. Unique indexes mirror the PostgreSQL keys.

type priceModel struct {
	PriceID int64     `gorm:"primaryKey;autoIncrement;column:price_id"`
	Ticker  string    `gorm:"not null;uniqueIndex:idx_price_ticker_date"`
	Date    time.Time `gorm:"not null;uniqueIndex:idx_price_ticker_date"`
	Open    float64   `gorm:"not null"`
	Close   float64   `gorm:"not null"`
	High    float64   `gorm:"not null"`
	Low     float64   `gorm:"not null"`
	Volume  int64     `gorm:"not null"`
}

func (priceModel) TableName() string { return "assets_price" }

type mentionModel struct {
	ContentID     int64     `gorm:"primaryKey;autoIncrement;column:content_id"`
	Source        string    `gorm:"not null"`
	PublishedDate time.Time `gorm:"not null;uniqueIndex:idx_mention_key"`
	Title         string    `gorm:"not null;uniqueIndex:idx_mention_key"`
	Body          string    `gorm:"column:body"`
	URL           string    `gorm:"column:url"`
	ScrapedAt     time.Time `gorm:"column:scraped_at"`
	Ticker        string    `gorm:"not null;uniqueIndex:idx_mention_key"`
}

func (mentionModel) TableName() string { return "sentiment_sources" }

type observationModel struct {
	AnalysisID      int64     `gorm:"primaryKey;autoIncrement;column:analysis_id"`
	SourceID        int64     `gorm:"not null;index"`
	SentimentScore  int       `gorm:"not null;check:sentiment_score BETWEEN -1 AND 1"`
	ScoreConfidence float64   `gorm:"not null"`
	ModelName       string    `gorm:"not null"`
	AnalyzedAt      time.Time `gorm:"not null;index"`
}

func (observationModel) TableName() string { return "sentiment_analysis" }

type metricsModel struct {
	AssetPriceID int64     `gorm:"primaryKey;autoIncrement:false"`
	SMA10        float64   `gorm:"column:sma_10"`
	SMA20        float64   `gorm:"column:sma_20"`
	EMA10        float64   `gorm:"column:ema_10"`
	EMA20        float64   `gorm:"column:ema_20"`
	RSI14        float64   `gorm:"column:rsi_14"`
	DailyReturn  float64   `gorm:"column:daily_return"`
	VolumeSMA10  float64   `gorm:"column:volume_sma_10"`
	ComputedAt   time.Time `gorm:"column:computed_at"`
}

func (metricsModel) TableName() string { return "technical_analysis" }

type featureModel struct {
	Ticker         string    `gorm:"primaryKey"`
	Date           time.Time `gorm:"primaryKey"`
	PriceID        int64     `gorm:"column:price_id"`
	SMA10          float64   `gorm:"column:sma_10"`
	SMA20          float64   `gorm:"column:sma_20"`
	EMA10          float64   `gorm:"column:ema_10"`
	EMA20          float64   `gorm:"column:ema_20"`
	RSI14          float64   `gorm:"column:rsi_14"`
	DailyReturn    float64   `gorm:"column:daily_return"`
	VolumeSMA10    float64   `gorm:"column:volume_sma_10"`
	SentimentScore float64   `gorm:"column:sentiment_score"`
	NextDayReturn  float64   `gorm:"column:next_day_return"`
	NextDayUp      bool      `gorm:"column:next_day_up"`
}

func (featureModel) TableName() string { return "feature_matrix" }

// LocalRepository is an embedded SQLite store with the same semantics as
// Repository, for single-machine runs and tests
type LocalRepository struct {
	db *gorm.DB
}

var _ contracts.Store = (*LocalRepository)(nil)

// NewLocalRepository opens (creating if needed) the database file and migrates it
func NewLocalRepository(path string) (*LocalRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&Asset{}, &priceModel{}, &mentionModel{}, &observationModel{}, &metricsModel{}, &featureModel{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &LocalRepository{db: db}, nil
}

// Ping checks the connection
func (r *LocalRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database file
func (r *LocalRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// insertIgnoring creates each row with ON CONFLICT DO NOTHING inside one
// transaction and returns how many were actually inserted
func insertIgnoring[T any](ctx context.Context, db *gorm.DB, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	inserted := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadAliases maps every asset name and pseudonym to its ticker
func (r *LocalRepository) LoadAliases(ctx context.Context) (contracts.AliasSet, error) {
	var assets []Asset
	if err := r.db.WithContext(ctx).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	set := make(contracts.AliasSet, len(assets))
	for _, a := range assets {
		set[a.Name] = a.Ticker
		if a.Pseudonym != "" {
			set[a.Pseudonym] = a.Ticker
		}
	}
	return set, nil
}

// UpsertAssets registers tracked companies, ignoring existing tickers
func (r *LocalRepository) UpsertAssets(ctx context.Context, assets []Asset) (int, error) {
	n, err := insertIgnoring(ctx, r.db, assets)
	if err != nil {
		return 0, fmt.Errorf("insert assets: %w", err)
	}
	return n, nil
}

// UpsertPrices inserts bars, ignoring (ticker, date) conflicts
func (r *LocalRepository) UpsertPrices(ctx context.Context, bars []contracts.PriceBar) (int, error) {
	models := make([]priceModel, len(bars))
	for i, b := range bars {
		models[i] = priceModel{
			Ticker: b.Ticker,
			Date:   contracts.DateOf(b.Date),
			Open:   b.Open,
			Close:  b.Close,
			High:   b.High,
			Low:    b.Low,
			Volume: b.Volume,
		}
	}
	n, err := insertIgnoring(ctx, r.db, models)
	if err != nil {
		return 0, fmt.Errorf("insert prices: %w", err)
	}
	return n, nil
}

// ListPrices returns bars ordered by ticker then date
func (r *LocalRepository) ListPrices(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	q := r.db.WithContext(ctx).Model(&priceModel{})
	if len(tickers) > 0 {
		q = q.Where("ticker IN ?", tickers)
	}
	if !from.IsZero() {
		q = q.Where("date >= ?", contracts.DateOf(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", contracts.DateOf(to))
	}

	var models []priceModel
	if err := q.Order("ticker, date").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}

	bars := make([]contracts.PriceBar, len(models))
	for i, m := range models {
		bars[i] = m.toBar()
	}
	return bars, nil
}

func (m priceModel) toBar() contracts.PriceBar {
	return contracts.PriceBar{
		PriceID: m.PriceID,
		Ticker:  m.Ticker,
		Date:    m.Date.UTC(),
		Open:    m.Open,
		Close:   m.Close,
		High:    m.High,
		Low:     m.Low,
		Volume:  m.Volume,
	}
}

// UpsertMentions inserts mentions, ignoring (published_date, title, ticker) conflicts
func (r *LocalRepository) UpsertMentions(ctx context.Context, mentions []contracts.Mention) (int, error) {
	models := make([]mentionModel, len(mentions))
	for i, m := range mentions {
		models[i] = mentionModel{
			Source:        m.Source,
			PublishedDate: contracts.DateOf(m.PublishedDate),
			Title:         m.Title,
			Body:          m.Body,
			URL:           m.URL,
			ScrapedAt:     m.ScrapedAt.UTC(),
			Ticker:        m.Ticker,
		}
	}
	n, err := insertIgnoring(ctx, r.db, models)
	if err != nil {
		return 0, fmt.Errorf("insert mentions: %w", err)
	}
	return n, nil
}

// ListMentions returns mentions published on or after since (zero means all)
func (r *LocalRepository) ListMentions(ctx context.Context, since time.Time) ([]contracts.Mention, error) {
	q := r.db.WithContext(ctx).Model(&mentionModel{})
	if !since.IsZero() {
		q = q.Where("published_date >= ?", contracts.DateOf(since))
	}

	var models []mentionModel
	if err := q.Order("published_date, content_id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}

	out := make([]contracts.Mention, len(models))
	for i, m := range models {
		out[i] = contracts.Mention{
			ID:            m.ContentID,
			Ticker:        m.Ticker,
			PublishedDate: m.PublishedDate.UTC(),
			Title:         m.Title,
			Body:          m.Body,
			URL:           m.URL,
			Source:        m.Source,
			ScrapedAt:     m.ScrapedAt.UTC(),
		}
	}
	return out, nil
}

// AppendObservations inserts every observation in one transaction
func (r *LocalRepository) AppendObservations(ctx context.Context, observations []contracts.SentimentObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	models := make([]observationModel, len(observations))
	for i, o := range observations {
		models[i] = observationModel{
			SourceID:        o.MentionID,
			SentimentScore:  o.Score,
			ScoreConfidence: o.Confidence,
			ModelName:       o.ModelName,
			AnalyzedAt:      o.AnalyzedAt.UTC(),
		}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		return 0, fmt.Errorf("insert observations: %w", err)
	}
	return len(models), nil
}

// scoredRow is the join of an observation with its mention
type scoredRow struct {
	SourceID        int64
	SentimentScore  int
	ScoreConfidence float64
	ModelName       string
	AnalyzedAt      time.Time
	Ticker          string
	PublishedDate   time.Time
}

// ListScoredMentions joins every observation to its mention's ticker and date
func (r *LocalRepository) ListScoredMentions(ctx context.Context) ([]contracts.ScoredMention, error) {
	var rows []scoredRow
	err := r.db.WithContext(ctx).
		Table("sentiment_analysis AS a").
		Select("a.source_id, a.sentiment_score, a.score_confidence, a.model_name, a.analyzed_at, s.ticker, s.published_date").
		Joins("JOIN sentiment_sources AS s ON a.source_id = s.content_id").
		Order("a.analyzed_at, a.analysis_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}

	out := make([]contracts.ScoredMention, len(rows))
	for i, row := range rows {
		out[i] = contracts.ScoredMention{
			SentimentObservation: contracts.SentimentObservation{
				MentionID:  row.SourceID,
				Score:      row.SentimentScore,
				Confidence: row.ScoreConfidence,
				ModelName:  row.ModelName,
				AnalyzedAt: row.AnalyzedAt.UTC(),
			},
			Ticker:        row.Ticker,
			PublishedDate: row.PublishedDate.UTC(),
		}
	}
	return out, nil
}

// UpsertTechnicalMetrics inserts indicators, ignoring asset_price_id conflicts
func (r *LocalRepository) UpsertTechnicalMetrics(ctx context.Context, metrics []contracts.TechnicalMetrics) (int, error) {
	models := make([]metricsModel, len(metrics))
	for i, m := range metrics {
		models[i] = metricsModel{
			AssetPriceID: m.AssetPriceID,
			SMA10:        m.SMA10,
			SMA20:        m.SMA20,
			EMA10:        m.EMA10,
			EMA20:        m.EMA20,
			RSI14:        m.RSI14,
			DailyReturn:  m.DailyReturn,
			VolumeSMA10:  m.VolumeSMA10,
			ComputedAt:   m.ComputedAt.UTC(),
		}
	}
	n, err := insertIgnoring(ctx, r.db, models)
	if err != nil {
		return 0, fmt.Errorf("insert metrics: %w", err)
	}
	return n, nil
}

// priceMetricsRow is one bar joined to its indicators
type priceMetricsRow struct {
	PriceID     int64
	Ticker      string
	Date        time.Time
	Open        float64
	Close       float64
	High        float64
	Low         float64
	Volume      int64
	SMA10       float64   `gorm:"column:sma_10"`
	SMA20       float64   `gorm:"column:sma_20"`
	EMA10       float64   `gorm:"column:ema_10"`
	EMA20       float64   `gorm:"column:ema_20"`
	RSI14       float64   `gorm:"column:rsi_14"`
	DailyReturn float64   `gorm:"column:daily_return"`
	VolumeSMA10 float64   `gorm:"column:volume_sma_10"`
	ComputedAt  time.Time `gorm:"column:computed_at"`
}

// ListPricesWithMetrics inner-joins bars to their indicators
func (r *LocalRepository) ListPricesWithMetrics(ctx context.Context) ([]contracts.PriceWithMetrics, error) {
	var rows []priceMetricsRow
	err := r.db.WithContext(ctx).
		Table("assets_price AS p").
		Select("p.price_id, p.ticker, p.date, p.open, p.close, p.high, p.low, p.volume, " +
			"t.sma_10, t.sma_20, t.ema_10, t.ema_20, t.rsi_14, t.daily_return, t.volume_sma_10, t.computed_at").
		Joins("JOIN technical_analysis AS t ON t.asset_price_id = p.price_id").
		Order("p.ticker, p.date").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query prices with metrics: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]contracts.PriceWithMetrics, len(rows))
	for i, row := range rows {
		out[i] = contracts.PriceWithMetrics{
			PriceBar: contracts.PriceBar{
				PriceID: row.PriceID,
				Ticker:  row.Ticker,
				Date:    row.Date.UTC(),
				Open:    row.Open,
				Close:   row.Close,
				High:    row.High,
				Low:     row.Low,
				Volume:  row.Volume,
			},
			Metrics: contracts.TechnicalMetrics{
				AssetPriceID: row.PriceID,
				SMA10:        row.SMA10,
				SMA20:        row.SMA20,
				EMA10:        row.EMA10,
				EMA20:        row.EMA20,
				RSI14:        row.RSI14,
				DailyReturn:  row.DailyReturn,
				VolumeSMA10:  row.VolumeSMA10,
				ComputedAt:   row.ComputedAt.UTC(),
			},
		}
	}
	return out, nil
}

// UpsertFeatureRows inserts labelled rows, ignoring (ticker, date) conflicts
func (r *LocalRepository) UpsertFeatureRows(ctx context.Context, rows []contracts.FeatureRow) (int, error) {
	models := make([]featureModel, len(rows))
	for i, f := range rows {
		models[i] = featureModel{
			Ticker:         f.Ticker,
			Date:           contracts.DateOf(f.Date),
			PriceID:        f.PriceID,
			SMA10:          f.SMA10,
			SMA20:          f.SMA20,
			EMA10:          f.EMA10,
			EMA20:          f.EMA20,
			RSI14:          f.RSI14,
			DailyReturn:    f.DailyReturn,
			VolumeSMA10:    f.VolumeSMA10,
			SentimentScore: f.SentimentScore,
			NextDayReturn:  f.NextDayReturn,
			NextDayUp:      f.NextDayUp,
		}
	}
	n, err := insertIgnoring(ctx, r.db, models)
	if err != nil {
		return 0, fmt.Errorf("insert feature rows: %w", err)
	}
	return n, nil
}

// featurePriceRow is one feature row with the OHLCV of its bar
type featurePriceRow struct {
	featureModel
	Open   float64
	Close  float64
	High   float64
	Low    float64
	Volume int64
}

// ListFeatureRows returns stored rows with their OHLCV, ordered by ticker then date
func (r *LocalRepository) ListFeatureRows(ctx context.Context, ticker string) ([]contracts.FeatureRow, error) {
	q := r.db.WithContext(ctx).
		Table("feature_matrix AS m").
		Select("m.*, COALESCE(p.open, 0) AS open, COALESCE(p.close, 0) AS close, " +
			"COALESCE(p.high, 0) AS high, COALESCE(p.low, 0) AS low, COALESCE(p.volume, 0) AS volume").
		Joins("LEFT JOIN assets_price AS p ON p.price_id = m.price_id")
	if ticker != "" {
		q = q.Where("m.ticker = ?", ticker)
	}

	var rows []featurePriceRow
	if err := q.Order("m.ticker, m.date").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query feature rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]contracts.FeatureRow, len(rows))
	for i, row := range rows {
		m := row.featureModel
		out[i] = contracts.FeatureRow{
			Ticker:         m.Ticker,
			Date:           m.Date.UTC(),
			PriceID:        m.PriceID,
			Open:           row.Open,
			Close:          row.Close,
			High:           row.High,
			Low:            row.Low,
			Volume:         row.Volume,
			SMA10:          m.SMA10,
			SMA20:          m.SMA20,
			EMA10:          m.EMA10,
			EMA20:          m.EMA20,
			RSI14:          m.RSI14,
			DailyReturn:    m.DailyReturn,
			VolumeSMA10:    m.VolumeSMA10,
			SentimentScore: m.SentimentScore,
			NextDayReturn:  m.NextDayReturn,
			NextDayUp:      m.NextDayUp,
			LabelValid:     true,
		}
	}
	return out, nil
}

package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
)

// Repository is the PostgreSQL store for every pipeline stage
// ⭐ SSOT: 파이프라인 데이터 저장소는 여기서만
type Repository struct {
	db *pgxpool.Pool
}

var _ contracts.Store = (*Repository)(nil)

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close releases the pool
func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

// EnsureSchema creates missing tables and keys
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// inTx runs fn in one transaction; any error rolls the whole batch back
func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) (int, error)) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := fn(tx)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return n, nil
}

// LoadAliases maps every asset name and pseudonym to its ticker
func (r *Repository) LoadAliases(ctx context.Context) (contracts.AliasSet, error) {
	query := `SELECT name, pseudonym, ticker FROM analytics.assets`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	set := make(contracts.AliasSet)
	for rows.Next() {
		var name, ticker string
		var pseudonym *string
		if err := rows.Scan(&name, &pseudonym, &ticker); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		set[name] = ticker
		if pseudonym != nil && *pseudonym != "" {
			set[*pseudonym] = ticker
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

// UpsertAssets registers tracked companies, ignoring existing tickers
func (r *Repository) UpsertAssets(ctx context.Context, assets []Asset) (int, error) {
	if len(assets) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analytics.assets (ticker, name, pseudonym)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (ticker) DO NOTHING
	`

	return r.inTx(ctx, func(tx pgx.Tx) (int, error) {
		inserted := 0
		for _, a := range assets {
			tag, err := tx.Exec(ctx, query, a.Ticker, a.Name, a.Pseudonym)
			if err != nil {
				return 0, fmt.Errorf("insert asset %s: %w", a.Ticker, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return inserted, nil
	})
}

// UpsertPrices inserts bars, ignoring (ticker, date) conflicts
func (r *Repository) UpsertPrices(ctx context.Context, bars []contracts.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analytics.assets_price (ticker, date, open, close, high, low, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, date) DO NOTHING
	`

	return r.inTx(ctx, func(tx pgx.Tx) (int, error) {
		inserted := 0
		for _, b := range bars {
			tag, err := tx.Exec(ctx, query,
				b.Ticker, contracts.DateOf(b.Date), b.Open, b.Close, b.High, b.Low, b.Volume,
			)
			if err != nil {
				return 0, fmt.Errorf("insert price for %s: %w", b.Ticker, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return inserted, nil
	})
}

// ListPrices returns bars ordered by ticker then date. An empty ticker list
// means every ticker; zero from/to leave that side open.
func (r *Repository) ListPrices(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	query := `
		SELECT price_id, ticker, date, open, close, high, low, volume
		FROM analytics.assets_price
		WHERE (cardinality($1::text[]) = 0 OR ticker = ANY($1))
		  AND ($2::date IS NULL OR date >= $2)
		  AND ($3::date IS NULL OR date <= $3)
		ORDER BY ticker, date
	`

	if tickers == nil {
		tickers = []string{}
	}
	rows, err := r.db.Query(ctx, query, tickers, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.PriceID, &b.Ticker, &b.Date, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// UpsertMentions inserts mentions, ignoring (published_date, title, ticker) conflicts
func (r *Repository) UpsertMentions(ctx context.Context, mentions []contracts.Mention) (int, error) {
	if len(mentions) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analytics.sentiment_sources (source, published_date, title, body, url, scraped_at, ticker)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (published_date, title, ticker) DO NOTHING
	`

	return r.inTx(ctx, func(tx pgx.Tx) (int, error) {
		inserted := 0
		for _, m := range mentions {
			tag, err := tx.Exec(ctx, query,
				m.Source, contracts.DateOf(m.PublishedDate), m.Title, m.Body, m.URL, m.ScrapedAt, m.Ticker,
			)
			if err != nil {
				return 0, fmt.Errorf("insert mention for %s: %w", m.Ticker, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return inserted, nil
	})
}

// ListMentions returns mentions published on or after since (zero means all)
func (r *Repository) ListMentions(ctx context.Context, since time.Time) ([]contracts.Mention, error) {
	query := `
		SELECT content_id, ticker, published_date, title, body, url, source, scraped_at
		FROM analytics.sentiment_sources
		WHERE ($1::date IS NULL OR published_date >= $1)
		ORDER BY published_date, content_id
	`

	rows, err := r.db.Query(ctx, query, nullableDate(since))
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []contracts.Mention
	for rows.Next() {
		var m contracts.Mention
		if err := rows.Scan(&m.ID, &m.Ticker, &m.PublishedDate, &m.Title, &m.Body, &m.URL, &m.Source, &m.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// AppendObservations inserts every observation; re-analysis adds history
func (r *Repository) AppendObservations(ctx context.Context, observations []contracts.SentimentObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analytics.sentiment_analysis (source_id, sentiment_score, score_confidence, model_name, analyzed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	return r.inTx(ctx, func(tx pgx.Tx) (int, error) {
		for _, o := range observations {
			if _, err := tx.Exec(ctx, query, o.MentionID, o.Score, o.Confidence, o.ModelName, o.AnalyzedAt); err != nil {
				return 0, fmt.Errorf("insert observation for mention %d: %w", o.MentionID, err)
			}
		}
		return len(observations), nil
	})
}

// ListScoredMentions joins every observation to its mention's ticker and date
func (r *Repository) ListScoredMentions(ctx context.Context) ([]contracts.ScoredMention, error) {
	query := `
		SELECT a.source_id, a.sentiment_score, a.score_confidence, a.model_name, a.analyzed_at,
		       s.ticker, s.published_date
		FROM analytics.sentiment_analysis a
		JOIN analytics.sentiment_sources s ON a.source_id = s.content_id
		ORDER BY a.analyzed_at, a.analysis_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []contracts.ScoredMention
	for rows.Next() {
		var s contracts.ScoredMention
		if err := rows.Scan(
			&s.MentionID, &s.Score, &s.Confidence, &s.ModelName, &s.AnalyzedAt,
			&s.Ticker, &s.PublishedDate,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertTechnicalMetrics inserts indicators, ignoring asset_price_id conflicts
func (r *Repository) UpsertTechnicalMetrics(ctx context.Context, metrics []contracts.TechnicalMetrics) (int, error) {
	if len(metrics) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analytics.technical_analysis (
			asset_price_id, sma_10, sma_20, ema_10, ema_20, rsi_14,
			daily_return, volume_sma_10, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (asset_price_id) DO NOTHING
	`

	return r.inTx(ctx, func(tx pgx.Tx) (int, error) {
		inserted := 0
		for _, m := range metrics {
			tag, err := tx.Exec(ctx, query,
				m.AssetPriceID, m.SMA10, m.SMA20, m.EMA10, m.EMA20, m.RSI14,
				m.DailyReturn, m.VolumeSMA10, m.ComputedAt,
			)
			if err != nil {
				return 0, fmt.Errorf("insert metrics for price %d: %w", m.AssetPriceID, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return inserted, nil
	})
}

// ListPricesWithMetrics inner-joins bars to their indicators
func (r *Repository) ListPricesWithMetrics(ctx context.Context) ([]contracts.PriceWithMetrics, error) {
	query := `
		SELECT p.price_id, p.ticker, p.date, p.open, p.close, p.high, p.low, p.volume,
		       t.sma_10, t.sma_20, t.ema_10, t.ema_20, t.rsi_14, t.daily_return,
		       t.volume_sma_10, t.computed_at
		FROM analytics.assets_price p
		JOIN analytics.technical_analysis t ON p.price_id = t.asset_price_id
		ORDER BY p.ticker, p.date
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query prices with metrics: %w", err)
	}
	defer rows.Close()

	var out []contracts.PriceWithMetrics
	for rows.Next() {
		var p contracts.PriceWithMetrics
		m := &p.Metrics
		if err := rows.Scan(
			&p.PriceID, &p.Ticker, &p.Date, &p.Open, &p.Close, &p.High, &p.Low, &p.Volume,
			&m.SMA10, &m.SMA20, &m.EMA10, &m.EMA20, &m.RSI14, &m.DailyReturn,
			&m.VolumeSMA10, &m.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan price with metrics: %w", err)
		}
		m.AssetPriceID = p.PriceID
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertFeatureRows inserts labelled rows, ignoring (ticker, date) conflicts
func (r *Repository) UpsertFeatureRows(ctx context.Context, rows []contracts.FeatureRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analytics.feature_matrix (
			ticker, date, price_id, sma_10, sma_20, ema_10, ema_20, rsi_14,
			daily_return, volume_sma_10, sentiment_score, next_day_return, next_day_up
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ticker, date) DO NOTHING
	`

	return r.inTx(ctx, func(tx pgx.Tx) (int, error) {
		inserted := 0
		for _, f := range rows {
			tag, err := tx.Exec(ctx, query,
				f.Ticker, contracts.DateOf(f.Date), f.PriceID, f.SMA10, f.SMA20, f.EMA10, f.EMA20, f.RSI14,
				f.DailyReturn, f.VolumeSMA10, f.SentimentScore, f.NextDayReturn, f.NextDayUp,
			)
			if err != nil {
				return 0, fmt.Errorf("insert feature row for %s: %w", f.Ticker, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return inserted, nil
	})
}

// ListFeatureRows returns stored rows with their OHLCV, ordered by ticker then
// date. An empty ticker returns every ticker.
func (r *Repository) ListFeatureRows(ctx context.Context, ticker string) ([]contracts.FeatureRow, error) {
	query := `
		SELECT m.ticker, m.date, m.price_id,
		       COALESCE(p.open, 0), COALESCE(p.close, 0), COALESCE(p.high, 0), COALESCE(p.low, 0), COALESCE(p.volume, 0),
		       m.sma_10, m.sma_20, m.ema_10, m.ema_20, m.rsi_14, m.daily_return, m.volume_sma_10,
		       m.sentiment_score, m.next_day_return, m.next_day_up
		FROM analytics.feature_matrix m
		LEFT JOIN analytics.assets_price p ON m.ticker = p.ticker AND m.date = p.date
		WHERE ($1 = '' OR m.ticker = $1)
		ORDER BY m.ticker, m.date
	`

	rows, err := r.db.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query feature rows: %w", err)
	}
	defer rows.Close()

	var out []contracts.FeatureRow
	for rows.Next() {
		var f contracts.FeatureRow
		if err := rows.Scan(
			&f.Ticker, &f.Date, &f.PriceID,
			&f.Open, &f.Close, &f.High, &f.Low, &f.Volume,
			&f.SMA10, &f.SMA20, &f.EMA10, &f.EMA20, &f.RSI14, &f.DailyReturn, &f.VolumeSMA10,
			&f.SentimentScore, &f.NextDayReturn, &f.NextDayUp,
		); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		f.LabelValid = true
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := contracts.DateOf(t)
	return &d
}

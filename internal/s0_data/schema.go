package s0_data

// Schema creates the pipeline tables with the uniqueness keys the upserts
// rely on. Every statement is idempotent.
// ⭐ SSOT: 테이블/유니크 키 정의는 여기서만
var Schema = []string{
	`CREATE SCHEMA IF NOT EXISTS analytics`,
	`CREATE TABLE IF NOT EXISTS analytics.assets (
		ticker     TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		pseudonym  TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.assets_price (
		price_id  BIGSERIAL PRIMARY KEY,
		ticker    TEXT NOT NULL,
		date      DATE NOT NULL,
		open      DOUBLE PRECISION NOT NULL,
		close     DOUBLE PRECISION NOT NULL,
		high      DOUBLE PRECISION NOT NULL,
		low       DOUBLE PRECISION NOT NULL,
		volume    BIGINT NOT NULL,
		UNIQUE (ticker, date)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.sentiment_sources (
		content_id      BIGSERIAL PRIMARY KEY,
		source          TEXT NOT NULL,
		published_date  DATE NOT NULL,
		title           TEXT NOT NULL,
		body            TEXT NOT NULL DEFAULT '',
		url             TEXT NOT NULL DEFAULT '',
		scraped_at      TIMESTAMPTZ NOT NULL,
		ticker          TEXT NOT NULL,
		UNIQUE (published_date, title, ticker)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.sentiment_analysis (
		analysis_id       BIGSERIAL PRIMARY KEY,
		source_id         BIGINT NOT NULL REFERENCES analytics.sentiment_sources (content_id),
		sentiment_score   SMALLINT NOT NULL CHECK (sentiment_score BETWEEN -1 AND 1),
		score_confidence  DOUBLE PRECISION NOT NULL,
		model_name        TEXT NOT NULL,
		analyzed_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sentiment_analysis_analyzed_at ON analytics.sentiment_analysis (analyzed_at)`,
	`CREATE TABLE IF NOT EXISTS analytics.technical_analysis (
		asset_price_id  BIGINT PRIMARY KEY REFERENCES analytics.assets_price (price_id),
		sma_10          DOUBLE PRECISION NOT NULL,
		sma_20          DOUBLE PRECISION NOT NULL,
		ema_10          DOUBLE PRECISION NOT NULL,
		ema_20          DOUBLE PRECISION NOT NULL,
		rsi_14          DOUBLE PRECISION NOT NULL,
		daily_return    DOUBLE PRECISION NOT NULL,
		volume_sma_10   DOUBLE PRECISION NOT NULL,
		computed_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.feature_matrix (
		ticker           TEXT NOT NULL,
		date             DATE NOT NULL,
		price_id         BIGINT NOT NULL,
		sma_10           DOUBLE PRECISION NOT NULL,
		sma_20           DOUBLE PRECISION NOT NULL,
		ema_10           DOUBLE PRECISION NOT NULL,
		ema_20           DOUBLE PRECISION NOT NULL,
		rsi_14           DOUBLE PRECISION NOT NULL,
		daily_return     DOUBLE PRECISION NOT NULL,
		volume_sma_10    DOUBLE PRECISION NOT NULL,
		sentiment_score  DOUBLE PRECISION NOT NULL,
		next_day_return  DOUBLE PRECISION NOT NULL,
		next_day_up      BOOLEAN NOT NULL,
		PRIMARY KEY (ticker, date)
	)`,
}

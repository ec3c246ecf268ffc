package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/brain"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/external/aliases"
	"github.com/wonny/newsquant/internal/external/finbert"
	"github.com/wonny/newsquant/internal/external/rss"
	"github.com/wonny/newsquant/internal/external/yahoo"
	"github.com/wonny/newsquant/internal/metrics"
	"github.com/wonny/newsquant/internal/s0_data"
	"github.com/wonny/newsquant/internal/s0_data/collector"
	"github.com/wonny/newsquant/internal/s0_data/quality"
	"github.com/wonny/newsquant/internal/s1_mentions"
	"github.com/wonny/newsquant/internal/s2_sentiment"
	"github.com/wonny/newsquant/internal/s3_technical"
	"github.com/wonny/newsquant/internal/s4_features"
	"github.com/wonny/newsquant/internal/s5_sequences"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/database"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// app holds everything a command needs after bootstrapping
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	store        contracts.Store
	redis        *redis.Client
	metrics      *metrics.Registry
	orchestrator *brain.Orchestrator
}

// Close releases the store and the Redis connection
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// loadConfig applies the global flags, then loads configuration
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd.Flags().Changed("env") {
		if err := os.Setenv("ENV", env); err != nil {
			return nil, fmt.Errorf("set ENV: %w", err)
		}
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires config, logger, store, cache and the orchestrator
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log, metrics: metrics.NewRegistry()}

	a.store, err = openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.redis, err = redis.New(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a.orchestrator, err = buildOrchestrator(cfg, a.store, a.redis, a.metrics, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openStore selects PostgreSQL or SQLite by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (contracts.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		repo, err := s0_data.NewLocalRepository(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.Store.SQLitePath).Info("Opened sqlite store")
		return repo, nil
	default:
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		repo := s0_data.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("Connected to database")
		return repo, nil
	}
}

// aliasSource prefers the YAML alias file over the assets table
func aliasSource(cfg *config.Config, store contracts.Store) contracts.AliasSource {
	if cfg.Sources.AliasFile != "" {
		return aliases.NewSource(cfg.Sources.AliasFile)
	}
	return store
}

// buildScorer returns the lexicon scorer or the HTTP scorer behind the Redis cache
func buildScorer(cfg *config.Config, rc *redis.Client, log *logger.Logger) (contracts.SentimentScorer, error) {
	if cfg.Scorer.Kind != "http" {
		return s2_sentiment.NewLexiconScorer(), nil
	}

	client, err := finbert.NewClient(finbert.Config{
		URL:     cfg.Scorer.URL,
		Token:   cfg.Scorer.Token,
		Model:   cfg.Scorer.Model,
		Timeout: cfg.Scorer.Timeout,
	}, redis.NewRateLimiter(rc, "newsquant"), log)
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}
	return s2_sentiment.NewCachedScorer(client, redis.NewCache(rc, "newsquant"), cfg.Redis.CacheTTL), nil
}

func buildOrchestrator(cfg *config.Config, store contracts.Store, rc *redis.Client, reg *metrics.Registry, log *logger.Logger) (*brain.Orchestrator, error) {
	p := cfg.Pipeline

	resolver, err := s1_mentions.NewResolver(p.MatchThreshold)
	if err != nil {
		return nil, err
	}
	extractor := s1_mentions.NewExtractor(
		s1_mentions.NewProseRecognizer(log),
		s1_mentions.NewNormalizer(p.ExtraSuffixes...),
	)

	scorer, err := buildScorer(cfg, rc, log)
	if err != nil {
		return nil, err
	}
	aggregator, err := s2_sentiment.NewAggregator(p.ConfidenceThreshold, log)
	if err != nil {
		return nil, err
	}
	windower, err := s5_sequences.NewWindower(p.SequenceLength, nil)
	if err != nil {
		return nil, err
	}

	prices := yahoo.NewClient(cfg.Sources.YahooRPS, log)
	gate := quality.NewQualityGate(quality.DefaultConfig())

	return brain.NewOrchestrator(brain.Components{
		Store:      store,
		Collector:  collector.NewCollector(prices, store, gate, log),
		Articles:   rss.NewClient(cfg.Sources.RSSURL, cfg.Sources.RSSSourceName, cfg.Sources.Timeout, log),
		Aliases:    aliasSource(cfg, store),
		Mentions:   s1_mentions.NewBuilder(extractor, resolver, log),
		Analyzer:   s2_sentiment.NewAnalyzer(scorer, log),
		Aggregator: aggregator,
		Technical:  s3_technical.NewEngine(p.TechnicalWorkers, log),
		Assembler:  s4_features.NewAssembler(log),
		Windower:   windower,
		Metrics:    reg,
	}, brain.Settings{
		Tickers:             p.Tickers,
		PriceLookbackDays:   p.PriceLookbackDays,
		MentionLookbackDays: p.MentionLookbackDays,
		CollectorWorkers:    p.PriceWorkers,
		LatestRunOnly:       p.LatestRunOnly,
		TrainRatio:          p.TrainRatio,
		ValRatio:            p.ValRatio,
		DatasetDir:          p.DatasetDir,
	}, log), nil
}

package brain

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/metrics"
	"github.com/wonny/newsquant/internal/s0_data"
	"github.com/wonny/newsquant/internal/s0_data/collector"
	"github.com/wonny/newsquant/internal/s1_mentions"
	"github.com/wonny/newsquant/internal/s2_sentiment"
	"github.com/wonny/newsquant/internal/s3_technical"
	"github.com/wonny/newsquant/internal/s4_features"
	"github.com/wonny/newsquant/internal/s5_sequences"
	"github.com/wonny/newsquant/pkg/logger"
)

var runDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type stubPrices struct {
	calls int
}

func (s *stubPrices) FetchPrices(_ context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	s.calls++
	var bars []contracts.PriceBar
	for _, ticker := range tickers {
		i := 0
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			close := 100 + float64(i)*0.5 + float64(i%3)
			bars = append(bars, contracts.PriceBar{
				Ticker: ticker,
				Date:   d,
				Open:   close - 0.2,
				Close:  close,
				High:   close + 1,
				Low:    close - 1,
				Volume: int64(1000 + i*10),
			})
			i++
		}
	}
	return bars, nil
}

type stubArticles struct {
	articles []contracts.Article
	err      error
}

func (s *stubArticles) FetchArticles(context.Context) ([]contracts.Article, contracts.SkipReport, error) {
	return s.articles, contracts.NewSkipReport(contracts.StageMentions), s.err
}

type stubAliases contracts.AliasSet

func (s stubAliases) LoadAliases(context.Context) (contracts.AliasSet, error) {
	return contracts.AliasSet(s), nil
}

func newTestOrchestrator(t *testing.T, articles contracts.ArticleSource) (*Orchestrator, *s0_data.LocalRepository, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := s0_data.NewLocalRepository(filepath.Join(dir, "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := logger.Nop()
	resolver, err := s1_mentions.NewResolver(85)
	require.NoError(t, err)
	aggregator, err := s2_sentiment.NewAggregator(0.8, log)
	require.NoError(t, err)
	windower, err := s5_sequences.NewWindower(10, nil)
	require.NoError(t, err)

	datasetDir := filepath.Join(dir, "datasets")
	o := NewOrchestrator(Components{
		Store:      store,
		Collector:  collector.NewCollector(&stubPrices{}, store, nil, log),
		Articles:   articles,
		Aliases:    stubAliases{"Apple": "AAPL", "Microsoft": "MSFT"},
		Mentions:   s1_mentions.NewBuilder(s1_mentions.NewExtractor(nil, nil), resolver, log),
		Analyzer:   s2_sentiment.NewAnalyzer(s2_sentiment.NewLexiconScorer(), log),
		Aggregator: aggregator,
		Technical:  s3_technical.NewEngine(2, log),
		Assembler:  s4_features.NewAssembler(log),
		Windower:   windower,
		Metrics:    metrics.NewRegistry(),
	}, Settings{
		Tickers:             []string{"AAPL"},
		PriceLookbackDays:   60,
		MentionLookbackDays: 30,
		CollectorWorkers:    2,
		LatestRunOnly:       true,
		TrainRatio:          0.70,
		ValRatio:            0.15,
		DatasetDir:          datasetDir,
	}, log)
	o.now = func() time.Time { return runDate.Add(22 * time.Hour) }
	return o, store, datasetDir
}

func bullishArticle() contracts.Article {
	return contracts.Article{
		Title:         "Apple shares surge on strong growth as profit beats",
		Body:          "Analysts were upbeat.",
		PublishedDate: runDate.AddDate(0, 0, -5),
		Source:        "test",
		URL:           "https://example.com/apple",
		ScrapedAt:     runDate,
	}
}

func TestOrchestrator_RunAll(t *testing.T) {
	o, store, datasetDir := newTestOrchestrator(t, &stubArticles{articles: []contracts.Article{bullishArticle()}})

	result, err := o.Run(context.Background(), RunConfig{Date: runDate, RunID: "run-1"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Len(t, result.CompletedStages, 6)

	// 61 daily bars, 19 warm-up rows, 1 horizon row
	prices, ok := result.Result(contracts.StagePrices)
	require.True(t, ok)
	assert.Equal(t, 61, prices.OutputCount)
	assert.Equal(t, 61, prices.Stored)

	mentions, _ := result.Result(contracts.StageMentions)
	assert.Equal(t, 1, mentions.OutputCount)

	sentiment, _ := result.Result(contracts.StageSentiment)
	assert.Equal(t, 1, sentiment.OutputCount)

	technical, _ := result.Result(contracts.StageTechnical)
	assert.Equal(t, 42, technical.OutputCount)

	features, _ := result.Result(contracts.StageFeatures)
	assert.Equal(t, 41, features.OutputCount)
	assert.Equal(t, 1, features.Metadata["horizon_dropped"])
	assert.Equal(t, 1, features.Metadata["sentiment_matched"])
	assert.Equal(t, 41, features.Metadata["sentiment_filled"])

	sequences, _ := result.Result(contracts.StageSequences)
	assert.Equal(t, 31, sequences.OutputCount)
	assert.Equal(t, 21, sequences.Metadata["train"])
	assert.Equal(t, 5, sequences.Metadata["validation"])
	assert.Equal(t, 5, sequences.Metadata["test"])

	assert.Equal(t, filepath.Join(datasetDir, "run-1"), result.DatasetDir)
	manifest, err := s5_sequences.LoadManifest(result.DatasetDir)
	require.NoError(t, err)
	assert.Equal(t, s5_sequences.Shape{Count: 21, Steps: 10, Features: 13}, manifest.Train)

	rows, err := store.ListFeatureRows(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, rows, 41)
	scored := 0
	for _, r := range rows {
		if r.Date.Equal(bullishArticle().PublishedDate) {
			assert.Equal(t, 1.0, r.SentimentScore)
			scored++
		} else {
			assert.Equal(t, 0.0, r.SentimentScore)
		}
	}
	assert.Equal(t, 1, scored)
}

func TestOrchestrator_Rerun(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &stubArticles{articles: []contracts.Article{bullishArticle()}})
	ctx := context.Background()

	_, err := o.Run(ctx, RunConfig{Date: runDate, RunID: "first"})
	require.NoError(t, err)

	o.now = func() time.Time { return runDate.Add(23 * time.Hour) }
	second, err := o.Run(ctx, RunConfig{Date: runDate, RunID: "second"})
	require.NoError(t, err)

	prices, _ := second.Result(contracts.StagePrices)
	assert.Equal(t, 61, prices.OutputCount)
	assert.Zero(t, prices.Stored)

	mentions, _ := second.Result(contracts.StageMentions)
	assert.Zero(t, mentions.Stored)

	// Re-analysis appends; the latest batch alone feeds the matrix
	sentiment, _ := second.Result(contracts.StageSentiment)
	assert.Equal(t, 1, sentiment.Stored)
	features, _ := second.Result(contracts.StageFeatures)
	assert.Equal(t, 1, features.Metadata["sentiment_matched"])
}

func TestOrchestrator_NoDataSkipsDependents(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &stubArticles{})

	result, err := o.Run(context.Background(), RunConfig{
		Date:   runDate,
		Stages: []contracts.Stage{contracts.StageMentions, contracts.StageSentiment},
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	mentions := result.Results[0]
	assert.True(t, mentions.NoData)
	assert.True(t, mentions.Success)

	sentiment := result.Results[1]
	assert.True(t, sentiment.Skipped)
	assert.Equal(t, contracts.StageMentions.String(), sentiment.Metadata["upstream"])
}

func TestOrchestrator_StageFailureStopsRun(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &stubArticles{err: errors.New("feed down")})

	result, err := o.Run(context.Background(), RunConfig{Date: runDate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S1 failed")
	assert.False(t, result.Success)

	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Success)
	assert.Contains(t, result.Results[1].Error, "feed down")
}

func TestOrchestrator_SelectedStagesReadStore(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &stubArticles{})
	ctx := context.Background()

	_, err := o.Run(ctx, RunConfig{Date: runDate, Stages: []contracts.Stage{contracts.StagePrices}})
	require.NoError(t, err)

	result, err := o.Run(ctx, RunConfig{Date: runDate, Stages: []contracts.Stage{contracts.StageTechnical}})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 42, result.Results[0].OutputCount)
}

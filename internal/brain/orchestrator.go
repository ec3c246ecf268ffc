package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/metrics"
	"github.com/wonny/newsquant/internal/s0_data/collector"
	"github.com/wonny/newsquant/internal/s1_mentions"
	"github.com/wonny/newsquant/internal/s2_sentiment"
	"github.com/wonny/newsquant/internal/s3_technical"
	"github.com/wonny/newsquant/internal/s4_features"
	"github.com/wonny/newsquant/internal/s5_sequences"
	"github.com/wonny/newsquant/pkg/logger"
)

// Settings holds the stage parameters the orchestrator applies
type Settings struct {
	Tickers             []string // empty: every ticker of the alias set
	PriceLookbackDays   int
	MentionLookbackDays int
	CollectorWorkers    int
	LatestRunOnly       bool
	TrainRatio          float64
	ValRatio            float64
	DatasetDir          string
}

// Components are the stage implementations the orchestrator drives
type Components struct {
	Store      contracts.Store
	Collector  *collector.Collector
	Articles   contracts.ArticleSource
	Aliases    contracts.AliasSource
	Mentions   *s1_mentions.Builder
	Analyzer   *s2_sentiment.Analyzer
	Aggregator *s2_sentiment.Aggregator
	Technical  *s3_technical.Engine
	Assembler  *s4_features.Assembler
	Windower   *s5_sequences.Windower
	Metrics    *metrics.Registry
}

// Orchestrator coordinates the six-stage pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	Components
	settings Settings
	logger   *logger.Logger
	now      func() time.Time
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Date   time.Time
	RunID  string
	Stages []contracts.Stage // empty: all stages
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string                     `json:"run_id"`
	Date            time.Time                  `json:"date"`
	Success         bool                       `json:"success"`
	Error           string                     `json:"error,omitempty"`
	CompletedStages []string                   `json:"completed_stages"`
	Results         []contracts.PipelineResult `json:"results"`
	DatasetDir      string                     `json:"dataset_dir,omitempty"`
	Duration        time.Duration              `json:"duration"`
}

// Result returns the result recorded for a stage
func (r *RunResult) Result(stage contracts.Stage) (contracts.PipelineResult, bool) {
	for _, res := range r.Results {
		if res.Stage == stage {
			return res, true
		}
	}
	return contracts.PipelineResult{}, false
}

// stageOutput is what a stage body reports back to Run
type stageOutput struct {
	input    int
	output   int
	stored   int
	skips    contracts.SkipReport
	metadata map[string]interface{}
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(components Components, settings Settings, log *logger.Logger) *Orchestrator {
	if settings.TrainRatio == 0 && settings.ValRatio == 0 {
		settings.TrainRatio = s5_sequences.DefaultTrainRatio
		settings.ValRatio = s5_sequences.DefaultValRatio
	}
	return &Orchestrator{
		Components: components,
		settings:   settings,
		logger:     log.WithField("module", "orchestrator"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the selected stages in DAG order
// S0 → S1 → S2 → S3 → S4 → S5
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := o.now()
	if config.RunID == "" {
		config.RunID = GenerateRunID()
	}
	if config.Date.IsZero() {
		config.Date = startTime
	}
	config.Date = contracts.DateOf(config.Date)

	selected := make(map[contracts.Stage]bool)
	for _, s := range config.Stages {
		selected[s] = true
	}
	runAll := len(selected) == 0

	result := &RunResult{
		RunID:           config.RunID,
		Date:            config.Date,
		CompletedStages: make([]string, 0),
	}

	runLog := o.logger.WithRun(config.RunID)
	runLog.WithFields(map[string]interface{}{
		"date":   config.Date.Format(contracts.DateLayout),
		"stages": len(config.Stages),
	}).Info("Starting pipeline run")

	// Stages that ran in this run and produced nothing (or were skipped)
	empty := make(map[contracts.Stage]bool)

	for _, stage := range contracts.AllStages() {
		if !runAll && !selected[stage] {
			continue
		}

		if blocker, blocked := upstreamBlocked(stage, empty); blocked {
			res := contracts.PipelineResult{
				Stage:    stage,
				Skipped:  true,
				Skips:    contracts.NewSkipReport(stage),
				Metadata: map[string]interface{}{"reason": "upstream produced no data", "upstream": blocker.String()},
			}
			runLog.WithStage(stage).WithField("upstream", blocker.String()).Info("Skipping stage: upstream produced no data")
			o.record(result, res)
			empty[stage] = true
			continue
		}

		res, runDir, err := o.runStage(ctx, stage, config)
		if runDir != "" {
			result.DatasetDir = runDir
		}
		o.record(result, res)

		switch {
		case err == nil:
			result.CompletedStages = append(result.CompletedStages, stage.ShortName()+":"+stage.Description())
		case errors.Is(err, contracts.ErrNoData):
			result.CompletedStages = append(result.CompletedStages, stage.ShortName()+":"+stage.Description())
			empty[stage] = true
		default:
			result.Error = fmt.Sprintf("%s failed: %v", stage.ShortName(), err)
			result.Duration = o.now().Sub(startTime)
			return result, fmt.Errorf("%s failed: %w", stage.ShortName(), err)
		}
	}

	result.Success = true
	result.Duration = o.now().Sub(startTime)
	o.Metrics.MarkRun(o.now())

	runLog.WithFields(map[string]interface{}{
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
	}).Info("Pipeline run completed successfully")

	return result, nil
}

func upstreamBlocked(stage contracts.Stage, empty map[contracts.Stage]bool) (contracts.Stage, bool) {
	for _, up := range stage.Upstream() {
		if empty[up] {
			return up, true
		}
	}
	return "", false
}

func (o *Orchestrator) record(run *RunResult, res contracts.PipelineResult) {
	run.Results = append(run.Results, res)
	o.Metrics.ObserveStage(res)
}

// runStage times one stage body and turns its output into a PipelineResult
func (o *Orchestrator) runStage(ctx context.Context, stage contracts.Stage, config RunConfig) (contracts.PipelineResult, string, error) {
	start := o.now()
	log := o.logger.WithRun(config.RunID).WithStage(stage)
	log.Infof("Running %s: %s", stage.ShortName(), stage.Description())

	var (
		out    stageOutput
		runDir string
		err    error
	)
	switch stage {
	case contracts.StagePrices:
		out, err = o.runPrices(ctx, config)
	case contracts.StageMentions:
		out, err = o.runMentions(ctx)
	case contracts.StageSentiment:
		out, err = o.runSentiment(ctx, config)
	case contracts.StageTechnical:
		out, err = o.runTechnical(ctx)
	case contracts.StageFeatures:
		out, err = o.runFeatures(ctx)
	case contracts.StageSequences:
		out, runDir, err = o.runSequences(ctx, config)
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}

	if out.skips.Stage == "" {
		out.skips.Stage = stage
	}
	res := contracts.PipelineResult{
		Stage:       stage,
		Success:     err == nil || errors.Is(err, contracts.ErrNoData),
		NoData:      errors.Is(err, contracts.ErrNoData),
		InputCount:  out.input,
		OutputCount: out.output,
		Stored:      out.stored,
		Duration:    o.now().Sub(start).Milliseconds(),
		Skips:       out.skips,
		Metadata:    out.metadata,
	}
	if err != nil && !res.NoData {
		res.Error = err.Error()
	}

	fields := map[string]interface{}{
		"input":   out.input,
		"output":  out.output,
		"stored":  out.stored,
		"skipped": out.skips.Count,
	}
	switch {
	case res.NoData:
		log.WithFields(fields).Info("Stage produced no data")
	case err != nil:
		log.WithError(err).WithFields(fields).Error("Stage failed")
	default:
		log.WithFields(fields).Infof("%s completed", stage.ShortName())
	}
	if !out.skips.Empty() {
		log.WithField("reasons", out.skips.String()).Warn("Records skipped")
	}

	return res, runDir, err
}

// runPrices executes S0: price ingestion
func (o *Orchestrator) runPrices(ctx context.Context, config RunConfig) (stageOutput, error) {
	out := stageOutput{skips: contracts.NewSkipReport(contracts.StagePrices)}
	if o.Collector == nil {
		return out, fmt.Errorf("no price collector configured")
	}

	tickers, err := o.tickers(ctx)
	if err != nil {
		return out, err
	}
	if len(tickers) == 0 {
		return out, fmt.Errorf("no tickers configured: %w", contracts.ErrNoData)
	}

	to := config.Date
	from := to.AddDate(0, 0, -o.settings.PriceLookbackDays)
	report, err := o.Collector.Collect(ctx, tickers, from, to, collector.Config{Workers: o.settings.CollectorWorkers})
	if report != nil {
		out.input = report.Fetched + report.Skips.Count
		out.output = report.Fetched
		out.stored = report.Inserted
		out.skips = report.Skips
		out.metadata = map[string]interface{}{
			"tickers":       len(tickers),
			"failed":        report.Failed,
			"quality_score": report.Quality.QualityScore,
			"quality_pass":  report.Quality.Passed,
		}
	}
	if err != nil {
		return out, fmt.Errorf("collect prices: %w", err)
	}
	if out.output == 0 {
		return out, contracts.ErrNoData
	}
	return out, nil
}

// tickers returns the configured tickers, or every ticker of the alias set
func (o *Orchestrator) tickers(ctx context.Context) ([]string, error) {
	if len(o.settings.Tickers) > 0 {
		return o.settings.Tickers, nil
	}
	aliases, err := o.aliasSource().LoadAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	return aliases.Tickers(), nil
}

func (o *Orchestrator) aliasSource() contracts.AliasSource {
	if o.Aliases != nil {
		return o.Aliases
	}
	return o.Store
}

// runMentions executes S1: article → mention resolution
func (o *Orchestrator) runMentions(ctx context.Context) (stageOutput, error) {
	out := stageOutput{skips: contracts.NewSkipReport(contracts.StageMentions)}
	if o.Articles == nil {
		return out, fmt.Errorf("no article source configured")
	}

	articles, fetchSkips, err := o.Articles.FetchArticles(ctx)
	if err != nil {
		return out, fmt.Errorf("fetch articles: %w", err)
	}
	out.skips.Merge(fetchSkips)
	out.input = len(articles) + fetchSkips.Count

	aliases, err := o.aliasSource().LoadAliases(ctx)
	if err != nil {
		return out, fmt.Errorf("load aliases: %w", err)
	}

	mentions, buildSkips := o.Mentions.Build(articles, aliases)
	out.skips.Merge(buildSkips)
	out.output = len(mentions)
	out.metadata = map[string]interface{}{
		"articles": len(articles),
		"aliases":  len(aliases),
	}
	if len(mentions) == 0 {
		return out, contracts.ErrNoData
	}

	inserted, err := o.Store.UpsertMentions(ctx, mentions)
	if err != nil {
		return out, fmt.Errorf("save mentions: %w", err)
	}
	out.stored = inserted
	return out, nil
}

// runSentiment executes S2: scoring of recent mentions
func (o *Orchestrator) runSentiment(ctx context.Context, config RunConfig) (stageOutput, error) {
	out := stageOutput{skips: contracts.NewSkipReport(contracts.StageSentiment)}

	since := config.Date.AddDate(0, 0, -o.settings.MentionLookbackDays)
	mentions, err := o.Store.ListMentions(ctx, since)
	if err != nil {
		return out, fmt.Errorf("list mentions: %w", err)
	}
	out.input = len(mentions)
	if len(mentions) == 0 {
		return out, contracts.ErrNoData
	}

	observations, skips, err := o.Analyzer.Analyze(ctx, mentions, o.now())
	out.skips.Merge(skips)
	if err != nil {
		return out, fmt.Errorf("analyze mentions: %w", err)
	}
	out.output = len(observations)
	out.metadata = map[string]interface{}{
		"since": since.Format(contracts.DateLayout),
	}
	if len(observations) == 0 {
		return out, contracts.ErrNoData
	}

	appended, err := o.Store.AppendObservations(ctx, observations)
	if err != nil {
		return out, fmt.Errorf("save observations: %w", err)
	}
	out.stored = appended
	return out, nil
}

// runTechnical executes S3: indicators over the full price history
func (o *Orchestrator) runTechnical(ctx context.Context) (stageOutput, error) {
	out := stageOutput{skips: contracts.NewSkipReport(contracts.StageTechnical)}

	bars, err := o.Store.ListPrices(ctx, nil, time.Time{}, time.Time{})
	if err != nil {
		return out, fmt.Errorf("list prices: %w", err)
	}
	out.input = len(bars)
	if len(bars) == 0 {
		return out, contracts.ErrNoData
	}

	computed, skips, err := o.Technical.Compute(ctx, bars, o.now())
	out.skips.Merge(skips)
	if err != nil {
		return out, fmt.Errorf("compute indicators: %w", err)
	}
	out.output = len(computed)
	out.metadata = map[string]interface{}{
		"warmup_dropped": len(bars) - len(computed) - skips.Count,
	}
	if len(computed) == 0 {
		return out, contracts.ErrNoData
	}

	inserted, err := o.Store.UpsertTechnicalMetrics(ctx, computed)
	if err != nil {
		return out, fmt.Errorf("save indicators: %w", err)
	}
	out.stored = inserted
	return out, nil
}

// runFeatures executes S4: price + indicator + sentiment assembly
func (o *Orchestrator) runFeatures(ctx context.Context) (stageOutput, error) {
	out := stageOutput{skips: contracts.NewSkipReport(contracts.StageFeatures)}

	rows, err := o.Store.ListPricesWithMetrics(ctx)
	if err != nil {
		return out, fmt.Errorf("list prices with metrics: %w", err)
	}
	out.input = len(rows)
	if len(rows) == 0 {
		return out, contracts.ErrNoData
	}

	scored, err := o.Store.ListScoredMentions(ctx)
	if err != nil {
		return out, fmt.Errorf("list scored mentions: %w", err)
	}
	if o.settings.LatestRunOnly {
		scored = s2_sentiment.LatestRun(scored)
	}
	sentiment, aggSkips := o.Aggregator.AggregateWithReport(scored)
	out.skips.Merge(aggSkips)

	features, report := o.Assembler.Assemble(rows, sentiment)
	out.skips.Merge(report.Skips)
	out.output = len(features)
	out.metadata = map[string]interface{}{
		"observations":      len(scored),
		"sentiment_keys":    len(sentiment),
		"horizon_dropped":   report.HorizonDropped,
		"short_groups":      report.ShortGroups,
		"sentiment_matched": report.SentimentMatched,
		"sentiment_filled":  report.SentimentFilled,
	}
	if len(features) == 0 {
		return out, contracts.ErrNoData
	}

	inserted, err := o.Store.UpsertFeatureRows(ctx, features)
	if err != nil {
		return out, fmt.Errorf("save feature rows: %w", err)
	}
	out.stored = inserted
	return out, nil
}

// runSequences executes S5: windowing, split and export
func (o *Orchestrator) runSequences(ctx context.Context, config RunConfig) (stageOutput, string, error) {
	out := stageOutput{skips: contracts.NewSkipReport(contracts.StageSequences)}

	rows, err := o.Store.ListFeatureRows(ctx, "")
	if err != nil {
		return out, "", fmt.Errorf("list feature rows: %w", err)
	}
	out.input = len(rows)

	seqs, err := o.Windower.Build(rows)
	if err != nil {
		return out, "", fmt.Errorf("build sequences: %w", err)
	}
	out.output = len(seqs)
	if len(seqs) == 0 {
		return out, "", contracts.ErrNoData
	}

	split, err := s5_sequences.SplitSequences(seqs, o.settings.TrainRatio, o.settings.ValRatio)
	if err != nil {
		return out, "", fmt.Errorf("split sequences: %w", err)
	}
	out.metadata = map[string]interface{}{
		"train":      split.Train.Len(),
		"validation": split.Validation.Len(),
		"test":       split.Test.Len(),
	}
	if o.settings.DatasetDir == "" {
		return out, "", nil
	}

	manifest, runDir, err := s5_sequences.Export(o.settings.DatasetDir, split, s5_sequences.Manifest{
		RunID:          config.RunID,
		CreatedAt:      o.now(),
		SequenceLength: o.Windower.Length,
		Columns:        o.Windower.Columns,
		TrainRatio:     o.settings.TrainRatio,
		ValRatio:       o.settings.ValRatio,
	})
	if err != nil {
		return out, "", fmt.Errorf("export datasets: %w", err)
	}
	out.stored = manifest.Train.Count + manifest.Validation.Count + manifest.Test.Count
	out.metadata["run_dir"] = runDir
	return out, runDir, nil
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return uuid.New().String()
}

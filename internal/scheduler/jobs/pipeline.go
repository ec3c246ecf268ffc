package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/newsquant/internal/brain"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Runner is the part of the orchestrator the job needs
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// PipelineJob runs the feature pipeline on a cron schedule
// ⭐ SSOT: 파이프라인 스케줄은 이 Job에서만
type PipelineJob struct {
	name     string
	schedule string
	stages   []contracts.Stage
	runner   Runner
	logger   *logger.Logger

	lastRunID string
}

// NewPipelineJob creates a job running the given stages (all when empty)
func NewPipelineJob(name, schedule string, stages []contracts.Stage, runner Runner, log *logger.Logger) *PipelineJob {
	return &PipelineJob{
		name:     name,
		schedule: schedule,
		stages:   stages,
		runner:   runner,
		logger:   log,
	}
}

// Name returns the job name
func (j *PipelineJob) Name() string {
	return j.name
}

// Schedule returns the cron schedule
func (j *PipelineJob) Schedule() string {
	return j.schedule
}

// LastRunID returns the orchestrator run id of the latest attempt
func (j *PipelineJob) LastRunID() string {
	return j.lastRunID
}

// Run executes one pipeline run dated today. Every retry gets a fresh run id.
func (j *PipelineJob) Run(ctx context.Context) error {
	runID := brain.GenerateRunID()
	j.lastRunID = runID
	j.logger.WithFields(map[string]interface{}{
		"job":    j.name,
		"run_id": runID,
	}).Info("Starting scheduled pipeline run")

	result, err := j.runner.Run(ctx, brain.RunConfig{
		RunID:  runID,
		Stages: j.stages,
	})
	if err != nil {
		return fmt.Errorf("pipeline run %s: %w", runID, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"stages":      len(result.CompletedStages),
		"dataset_dir": result.DatasetDir,
	}).Info("Scheduled pipeline run completed")

	return nil
}

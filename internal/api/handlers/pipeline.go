package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/brain"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// PipelineRunner runs the pipeline synchronously
type PipelineRunner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// PipelineHandler triggers pipeline runs over HTTP
type PipelineHandler struct {
	runner PipelineRunner
	cache  *redis.Cache
	logger *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(runner PipelineRunner, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{runner: runner, logger: log}
}

// WithCache drops cached feature responses after a run stores new feature rows
func (h *PipelineHandler) WithCache(cache *redis.Cache) *PipelineHandler {
	h.cache = cache
	return h
}

// RunRequest represents a pipeline run request
type RunRequest struct {
	Stage string `json:"stage"` // "all" or a stage name ("technical", "S3", "S3_TECHNICAL")
	Date  string `json:"date"`  // Optional: run date (YYYY-MM-DD), default today
}

// StageInfo describes one stage for GET /api/pipeline/stages
type StageInfo struct {
	Name        string   `json:"name"`
	ShortName   string   `json:"short_name"`
	Description string   `json:"description"`
	Upstream    []string `json:"upstream,omitempty"`
}

// Run executes the pipeline and returns every stage result
// POST /api/pipeline/run
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stages, err := ParseStages(req.Stage)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse(contracts.DateLayout, req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}
	}

	result, err := h.runner.Run(r.Context(), brain.RunConfig{
		RunID:  brain.GenerateRunID(),
		Date:   date,
		Stages: stages,
	})
	if err != nil {
		h.logger.WithError(err).Error("Pipeline run failed")
		if result != nil {
			respondJSON(w, http.StatusInternalServerError, result)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.invalidateFeatures(r.Context(), result)
	respondJSON(w, http.StatusOK, result)
}

func (h *PipelineHandler) invalidateFeatures(ctx context.Context, result *brain.RunResult) {
	if h.cache == nil || result == nil {
		return
	}
	features, ok := result.Result(contracts.StageFeatures)
	if !ok || features.Stored == 0 {
		return
	}

	n, err := h.cache.DeletePrefix(ctx, redis.FeaturesPrefix)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate feature cache")
		return
	}
	h.logger.WithField("keys", n).Debug("Invalidated feature cache")
}

// Stages lists the pipeline stages in execution order
// GET /api/pipeline/stages
func (h *PipelineHandler) Stages(w http.ResponseWriter, r *http.Request) {
	all := contracts.AllStages()
	infos := make([]StageInfo, 0, len(all))
	for _, s := range all {
		info := StageInfo{
			Name:        s.String(),
			ShortName:   s.ShortName(),
			Description: s.Description(),
		}
		for _, up := range s.Upstream() {
			info.Upstream = append(info.Upstream, up.String())
		}
		infos = append(infos, info)
	}
	respondJSON(w, http.StatusOK, infos)
}

// ParseStages turns "all", "" or a comma separated list into stages
func ParseStages(raw string) ([]contracts.Stage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return nil, nil
	}

	var stages []contracts.Stage
	for _, part := range strings.Split(raw, ",") {
		stage, err := contracts.ParseStage(part)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

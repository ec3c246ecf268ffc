package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/newsquant/internal/contracts"
)

// Result label values for stage durations
const (
	ResultSuccess = "success"
	ResultNoData  = "no_data"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Registry holds the pipeline metrics on its own prometheus registry
// ⭐ SSOT: 메트릭 이름은 여기서만 정의
type Registry struct {
	registry *prometheus.Registry

	StageRows     *prometheus.CounterVec
	StageSkipped  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	LastRun       prometheus.Gauge
}

// NewRegistry creates and registers all pipeline metrics
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsquant_stage_rows_total",
				Help: "Rows produced by each pipeline stage",
			},
			[]string{"stage"},
		),

		StageSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsquant_stage_skipped_total",
				Help: "Records skipped by each pipeline stage, by reason",
			},
			[]string{"stage", "reason"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsquant_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"stage", "result"},
		),

		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "newsquant_last_run_timestamp_seconds",
				Help: "Unix time of the last completed pipeline run",
			},
		),
	}

	r.registry.MustRegister(r.StageRows, r.StageSkipped, r.StageDuration, r.LastRun)
	return r
}

// Gatherer exposes the underlying registry for scraping and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics HTTP handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveStage records one stage result
func (r *Registry) ObserveStage(result contracts.PipelineResult) {
	if r == nil {
		return
	}
	stage := result.Stage.String()

	r.StageDuration.WithLabelValues(stage, resultLabel(result)).
		Observe((time.Duration(result.Duration) * time.Millisecond).Seconds())

	if result.OutputCount > 0 {
		r.StageRows.WithLabelValues(stage).Add(float64(result.OutputCount))
	}
	for reason, n := range result.Skips.Reasons {
		r.StageSkipped.WithLabelValues(stage, reason).Add(float64(n))
	}
}

// MarkRun records the completion time of a run
func (r *Registry) MarkRun(at time.Time) {
	if r == nil {
		return
	}
	r.LastRun.Set(float64(at.Unix()))
}

func resultLabel(result contracts.PipelineResult) string {
	switch {
	case result.Skipped:
		return ResultSkipped
	case result.NoData:
		return ResultNoData
	case result.Success:
		return ResultSuccess
	default:
		return ResultError
	}
}

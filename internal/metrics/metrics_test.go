package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

func TestRegistry_ObserveStage(t *testing.T) {
	r := NewRegistry()

	skips := contracts.NewSkipReport(contracts.StageFeatures)
	skips.Add("zero_close")
	skips.Add("zero_close")

	r.ObserveStage(contracts.PipelineResult{
		Stage:       contracts.StageFeatures,
		Success:     true,
		OutputCount: 12,
		Duration:    250,
		Skips:       skips,
	})
	r.ObserveStage(contracts.PipelineResult{
		Stage:   contracts.StageSequences,
		Skipped: true,
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(r.StageRows.WithLabelValues("S4_FEATURES")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.StageSkipped.WithLabelValues("S4_FEATURES", "zero_close")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.StageDuration))
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		name   string
		result contracts.PipelineResult
		want   string
	}{
		{"success", contracts.PipelineResult{Success: true}, ResultSuccess},
		{"no data", contracts.PipelineResult{Success: true, NoData: true}, ResultNoData},
		{"skipped", contracts.PipelineResult{Skipped: true}, ResultSkipped},
		{"error", contracts.PipelineResult{}, ResultError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultLabel(tt.result))
		})
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.MarkRun(time.Unix(1700000000, 0))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "newsquant_last_run_timestamp_seconds 1.7e+09")
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveStage(contracts.PipelineResult{Stage: contracts.StagePrices})
		r.MarkRun(time.Now())
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/api/handlers"
	"github.com/wonny/newsquant/internal/brain"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/metrics"
	"github.com/wonny/newsquant/internal/s0_data"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

type fakeRunner struct {
	got brain.RunConfig
	err error
}

func (f *fakeRunner) Run(_ context.Context, cfg brain.RunConfig) (*brain.RunResult, error) {
	f.got = cfg
	result := &brain.RunResult{
		RunID:   cfg.RunID,
		Success: f.err == nil,
		Results: []contracts.PipelineResult{{Stage: contracts.StageFeatures, Success: true, Stored: 3}},
	}
	return result, f.err
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestRouter(t *testing.T, runner handlers.PipelineRunner, pinger Pinger) (http.Handler, *s0_data.LocalRepository) {
	t.Helper()

	store, err := s0_data.NewLocalRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	cache := redis.NewCache(client, "newsquant")

	log := logger.Nop()
	if pinger == nil {
		pinger = store
	}
	return NewRouter(Routes{
		Data:     handlers.NewDataHandler(store, cache, log),
		Pipeline: handlers.NewPipelineHandler(runner, log).WithCache(cache),
		Metrics:  metrics.NewRegistry().Handler(),
		Health:   pinger,
	}, log), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRunner{}, nil)
	rec := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	degraded, _ := newTestRouter(t, &fakeRunner{}, downPinger{})
	rec = do(t, degraded, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRunner{}, nil)
	rec := do(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "newsquant_last_run_timestamp_seconds")
}

func TestGetFeatures(t *testing.T) {
	router, store := newTestRouter(t, &fakeRunner{}, nil)
	ctx := context.Background()
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	_, err := store.UpsertPrices(ctx, []contracts.PriceBar{
		{Ticker: "AAPL", Date: day, Open: 1, Close: 2, High: 3, Low: 1, Volume: 10},
	})
	require.NoError(t, err)
	bars, err := store.ListPrices(ctx, []string{"AAPL"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	_, err = store.UpsertFeatureRows(ctx, []contracts.FeatureRow{
		{Ticker: "AAPL", Date: day, PriceID: bars[0].PriceID, SentimentScore: 0.5, NextDayReturn: 0.01, NextDayUp: true, LabelValid: true},
	})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/api/features/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.FeaturesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Ticker)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 0.5, resp.Rows[0].SentimentScore)
	assert.Equal(t, 2.0, resp.Rows[0].Close)

	rec = do(t, router, http.MethodGet, "/api/features/MSFT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMentions(t *testing.T) {
	router, store := newTestRouter(t, &fakeRunner{}, nil)
	_, err := store.UpsertMentions(context.Background(), []contracts.Mention{
		{Ticker: "AAPL", PublishedDate: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), Title: "Apple rallies", Source: "test"},
		{Ticker: "MSFT", PublishedDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Title: "Microsoft falls", Source: "test"},
	})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/api/mentions?since=2024-05-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.MentionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-05-01", resp.Since)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "AAPL", resp.Mentions[0].Ticker)

	rec = do(t, router, http.MethodGet, "/api/mentions?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineRun(t *testing.T) {
	runner := &fakeRunner{}
	router, _ := newTestRouter(t, runner, nil)

	rec := do(t, router, http.MethodPost, "/api/pipeline/run", `{"stage":"technical,features","date":"2024-05-06"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []contracts.Stage{contracts.StageTechnical, contracts.StageFeatures}, runner.got.Stages)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), runner.got.Date)
	assert.NotEmpty(t, runner.got.RunID)

	rec = do(t, router, http.MethodPost, "/api/pipeline/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, runner.got.Stages)

	rec = do(t, router, http.MethodPost, "/api/pipeline/run", `{"stage":"trading"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing, _ := newTestRouter(t, &fakeRunner{err: errors.New("S0 failed")}, nil)
	rec = do(t, failing, http.MethodPost, "/api/pipeline/run", `{"stage":"all"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPipelineStages(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRunner{}, nil)
	rec := do(t, router, http.MethodGet, "/api/pipeline/stages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []handlers.StageInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 6)
	assert.Equal(t, "S0", infos[0].ShortName)
	assert.Equal(t, []string{"S4_FEATURES"}, infos[5].Upstream)
}

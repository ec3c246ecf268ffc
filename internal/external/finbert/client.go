package finbert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// DefaultModel is the financial sentiment model served by the endpoint
const DefaultModel = "ProsusAI/finbert"

// maxInputChars keeps requests under the model's token window
const maxInputChars = 2000

// Config holds the scorer endpoint settings
type Config struct {
	URL     string
	Token   string
	Model   string
	Timeout time.Duration
}

// prediction is one label/score pair of a text-classification response
type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Client scores text against a hosted text-classification endpoint
// ⭐ SSOT: 외부 감성 모델 호출은 이 클라이언트에서만
type Client struct {
	http   *httputil.Client
	url    string
	model  string
	logger *logger.Logger
}

// NewClient creates a scorer with retry and a circuit breaker. limiter may be
// nil; when set, requests share the redis-backed scorer budget.
func NewClient(cfg Config, limiter *redis.RateLimiter, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("scorer URL is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	hc := httputil.New(log, cfg.Timeout).
		WithRetry(2, 500*time.Millisecond).
		WithBreaker(httputil.BreakerConfig{
			Name:                "finbert",
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		})
	if cfg.Token != "" {
		hc.WithHeader("Authorization", "Bearer "+cfg.Token)
	}
	if limiter != nil {
		hc.WithRateLimiter(limiter, redis.ScorerRateLimit)
	}

	return &Client{
		http:   hc,
		url:    cfg.URL,
		model:  cfg.Model,
		logger: log.WithField("scorer", cfg.Model),
	}, nil
}

// ModelName returns the configured model id
func (c *Client) ModelName() string {
	return c.model
}

// BreakerState exposes the circuit breaker state for health checks
func (c *Client) BreakerState() string {
	return c.http.BreakerState()
}

// Score returns the top label and its probability
func (c *Client) Score(ctx context.Context, text string) (contracts.ScoreResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return contracts.ScoreResult{Label: contracts.LabelNeutral, Confidence: 0}, nil
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	resp, err := c.http.PostJSON(ctx, c.url, map[string]interface{}{"inputs": text})
	if err != nil {
		return contracts.ScoreResult{}, fmt.Errorf("scorer request failed: %w", err)
	}

	var raw json.RawMessage
	if err := httputil.DecodeJSON(resp, &raw); err != nil {
		return contracts.ScoreResult{}, fmt.Errorf("scorer response: %w", err)
	}

	preds, err := decodePredictions(raw)
	if err != nil {
		return contracts.ScoreResult{}, err
	}
	return top(preds)
}

// decodePredictions accepts both [{...}] and [[{...}]] layouts
func decodePredictions(raw json.RawMessage) ([]prediction, error) {
	var nested [][]prediction
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("empty scorer response")
		}
		return nested[0], nil
	}

	var flat []prediction
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("unexpected scorer response: %w", err)
	}
	return flat, nil
}

func top(preds []prediction) (contracts.ScoreResult, error) {
	if len(preds) == 0 {
		return contracts.ScoreResult{}, fmt.Errorf("scorer returned no labels")
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return contracts.ScoreResult{
		Label:      strings.ToLower(strings.TrimSpace(best.Label)),
		Confidence: best.Score,
	}, nil
}

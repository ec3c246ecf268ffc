package s2_sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/redis"
)

// CachedScorer memoizes scorer results in Redis by model and text digest.
// With Redis disabled it is a pass-through.
type CachedScorer struct {
	inner contracts.SentimentScorer
	cache *redis.Cache
	ttl   time.Duration
}

// NewCachedScorer wraps a scorer
func NewCachedScorer(inner contracts.SentimentScorer, cache *redis.Cache, ttl time.Duration) *CachedScorer {
	if ttl <= 0 {
		ttl = redis.TTLWeek
	}
	return &CachedScorer{inner: inner, cache: cache, ttl: ttl}
}

// ModelName implements contracts.SentimentScorer
func (s *CachedScorer) ModelName() string {
	return s.inner.ModelName()
}

// Score implements contracts.SentimentScorer
func (s *CachedScorer) Score(ctx context.Context, text string) (contracts.ScoreResult, error) {
	sum := sha256.Sum256([]byte(text))
	key := redis.SentimentKey(s.inner.ModelName(), hex.EncodeToString(sum[:]))

	var cached contracts.ScoreResult
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	result, err := s.inner.Score(ctx, text)
	if err != nil {
		return contracts.ScoreResult{}, err
	}

	// A failed write only costs a future miss
	_ = s.cache.Set(ctx, key, result, s.ttl)
	return result, nil
}

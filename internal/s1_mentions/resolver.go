package s1_mentions

import (
	"fmt"
	"strings"

	"github.com/wonny/newsquant/internal/contracts"
)

// DefaultMatchThreshold is the minimum similarity (0-100) for a match
const DefaultMatchThreshold = 85.0

// Match is a resolved candidate
type Match struct {
	Alias  string
	Ticker string
	Score  float64
}

// Resolver maps a candidate organization name to a ticker by fuzzy match
// ⭐ SSOT: 기업명 → 티커 매칭은 여기서만
type Resolver struct {
	threshold float64
}

// NewResolver creates a resolver. The threshold must lie in [0, 100].
func NewResolver(threshold float64) (*Resolver, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("match threshold must be within [0, 100], got %v", threshold)
	}
	return &Resolver{threshold: threshold}, nil
}

// Threshold returns the configured minimum score
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns the best-scoring alias and its ticker, if the score
// reaches the threshold. Ties go to the alias that sorts first.
func (r *Resolver) Resolve(candidate string, aliases contracts.AliasSet) (Match, bool) {
	return r.resolveSorted(candidate, aliases.Aliases(), aliases)
}

func (r *Resolver) resolveSorted(candidate string, sorted []string, aliases contracts.AliasSet) (Match, bool) {
	if strings.TrimSpace(candidate) == "" || len(sorted) == 0 {
		return Match{}, false
	}

	best := Match{Score: -1}
	for _, alias := range sorted {
		score := TokenSortRatio(candidate, alias)
		if score > best.Score {
			best = Match{Alias: alias, Score: score}
		}
	}

	if best.Score < r.threshold {
		return Match{}, false
	}
	best.Ticker = aliases[best.Alias]
	return best, true
}

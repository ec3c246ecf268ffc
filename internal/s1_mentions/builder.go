package s1_mentions

import (
	"sort"
	"strings"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Skip reasons reported by the builder
const (
	SkipMissingTitle         = "missing_title"
	SkipMissingPublishedDate = "missing_published_date"
)

// Builder turns scraped articles into ticker mentions
// ⭐ SSOT: S1 기사 → 멘션 변환은 여기서만
type Builder struct {
	extractor *Extractor
	resolver  *Resolver
	logger    *logger.Logger
}

// NewBuilder creates a mention builder
func NewBuilder(extractor *Extractor, resolver *Resolver, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		extractor: extractor,
		resolver:  resolver,
		logger:    log.WithStage(contracts.StageMentions),
	}
}

// Build resolves every article against the alias set. One mention is
// emitted per distinct ticker per article, tickers in sorted order.
// Mentions sharing a (published_date, title, ticker) key collapse to the first.
func (b *Builder) Build(articles []contracts.Article, aliases contracts.AliasSet) ([]contracts.Mention, contracts.SkipReport) {
	skips := contracts.NewSkipReport(contracts.StageMentions)
	sortedAliases := aliases.Aliases()

	var (
		mentions []contracts.Mention
		misses   int
	)
	seen := make(map[contracts.MentionKey]struct{})

	for _, article := range articles {
		if strings.TrimSpace(article.Title) == "" {
			skips.Add(SkipMissingTitle)
			continue
		}
		if article.PublishedDate.IsZero() {
			skips.Add(SkipMissingPublishedDate)
			continue
		}

		tickers := make(map[string]struct{})
		for _, candidate := range b.candidates(article, sortedAliases) {
			match, ok := b.resolver.resolveSorted(candidate, sortedAliases, aliases)
			if !ok {
				misses++
				continue
			}
			tickers[match.Ticker] = struct{}{}
		}

		for _, ticker := range sortedKeys(tickers) {
			m := contracts.Mention{
				Ticker:        ticker,
				PublishedDate: contracts.DateOf(article.PublishedDate),
				Title:         article.Title,
				Body:          article.Body,
				URL:           article.URL,
				Source:        article.Source,
				ScrapedAt:     article.ScrapedAt,
			}
			if _, dup := seen[m.Key()]; dup {
				continue
			}
			seen[m.Key()] = struct{}{}
			mentions = append(mentions, m)
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"articles":   len(articles),
		"mentions":   len(mentions),
		"unresolved": misses,
		"skipped":    skips.Count,
	}).Info("Built mentions")
	if !skips.Empty() {
		b.logger.Warnf("Skipped articles: %s", skips)
	}

	return mentions, skips
}

// candidates unions title and body candidates, title first
func (b *Builder) candidates(article contracts.Article, aliases []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, text := range []string{article.Title, article.Body} {
		for _, c := range b.extractor.Extract(text, aliases) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

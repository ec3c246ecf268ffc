package s1_mentions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

func newTestBuilder(t *testing.T, recognizer contracts.EntityRecognizer) *Builder {
	t.Helper()
	resolver, err := NewResolver(DefaultMatchThreshold)
	require.NoError(t, err)
	return NewBuilder(NewExtractor(recognizer, NewNormalizer("Motors")), resolver, nil)
}

func article(title, body string, published time.Time) contracts.Article {
	return contracts.Article{
		Title:         title,
		Body:          body,
		PublishedDate: published,
		Source:        "yahoo_finance",
		URL:           "https://example.com/a",
		ScrapedAt:     time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func TestBuilder_SingleMatch(t *testing.T) {
	recognizer := stubRecognizer{entities: []contracts.Entity{{Text: "Apple Inc.", Label: "ORG"}}}
	b := newTestBuilder(t, recognizer)
	published := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

	mentions, skips := b.Build(
		[]contracts.Article{article("Apple Inc. reports record revenue", "", published)},
		contracts.AliasSet{"Apple": "AAPL"},
	)

	require.Len(t, mentions, 1)
	assert.True(t, skips.Empty())
	m := mentions[0]
	assert.Equal(t, "AAPL", m.Ticker)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), m.PublishedDate)
	assert.Equal(t, "Apple Inc. reports record revenue", m.Title)
	assert.Equal(t, "yahoo_finance", m.Source)
}

func TestBuilder_TitleAndBodyUnion(t *testing.T) {
	b := newTestBuilder(t, nil)
	aliases := contracts.AliasSet{
		"Apple":     "AAPL",
		"Tesla":     "TSLA",
		"Tesla Inc": "TSLA",
		"Microsoft": "MSFT",
	}

	mentions, _ := b.Build([]contracts.Article{
		article("Apple and Tesla shares climb", "Microsoft was flat.", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}, aliases)

	tickers := make([]string, len(mentions))
	for i, m := range mentions {
		tickers[i] = m.Ticker
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, tickers)
}

func TestBuilder_NoMatchYieldsNothing(t *testing.T) {
	b := newTestBuilder(t, stubRecognizer{entities: []contracts.Entity{{Text: "Amazon", Label: "ORG"}}})

	mentions, skips := b.Build([]contracts.Article{
		article("Amazon expands logistics", "", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}, testAliases)

	assert.Empty(t, mentions)
	assert.True(t, skips.Empty())
}

func TestBuilder_SkipsMalformedArticles(t *testing.T) {
	b := newTestBuilder(t, nil)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mentions, skips := b.Build([]contracts.Article{
		article("", "Apple body", date),
		article("  ", "Apple body", date),
		article("Apple rallies", "", time.Time{}),
		article("Apple rallies", "", date),
	}, testAliases)

	require.Len(t, mentions, 1)
	assert.Equal(t, 3, skips.Count)
	assert.Equal(t, 2, skips.Reasons[SkipMissingTitle])
	assert.Equal(t, 1, skips.Reasons[SkipMissingPublishedDate])
	assert.Equal(t, contracts.StageMentions, skips.Stage)
}

func TestBuilder_DuplicateArticlesCollapse(t *testing.T) {
	b := newTestBuilder(t, nil)
	a := article("Tesla recalls vehicles", "", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	later := a
	later.PublishedDate = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

	mentions, _ := b.Build([]contracts.Article{a, a, later}, testAliases)

	require.Len(t, mentions, 1)
	assert.Equal(t, "TSLA", mentions[0].Ticker)
}

func TestBuilder_EmptyAliasSet(t *testing.T) {
	b := newTestBuilder(t, stubRecognizer{entities: []contracts.Entity{{Text: "Apple", Label: "ORG"}}})

	mentions, _ := b.Build([]contracts.Article{
		article("Apple rallies", "", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}, contracts.AliasSet{})

	assert.Empty(t, mentions)
}

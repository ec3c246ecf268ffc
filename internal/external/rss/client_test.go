package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Yahoo Finance</title>
    <item>
      <title>Apple Inc. beats estimates</title>
      <link>https://example.com/apple</link>
      <pubDate>Tue, 07 May 2024 14:30:00 +0000</pubDate>
      <description><![CDATA[<p>Apple <b>reported</b> record revenue.</p>]]></description>
    </item>
    <item>
      <title>  Tesla   recalls vehicles </title>
      <pubDate>Wed, 08 May 2024 09:00:00 GMT</pubDate>
      <description>Tesla Motors recalls cars</description>
    </item>
    <item>
      <title></title>
      <pubDate>Wed, 08 May 2024 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Undated item</title>
      <pubDate>yesterday</pubDate>
    </item>
  </channel>
</rss>`

var scrapedAt = time.Date(2024, 5, 8, 22, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	articles, skips, err := Parse([]byte(sampleFeed), "yahoo_finance", "https://feed.example.com", scrapedAt)
	require.NoError(t, err)

	require.Len(t, articles, 2)
	assert.Equal(t, "Apple Inc. beats estimates", articles[0].Title)
	assert.Equal(t, "Apple reported record revenue.", articles[0].Body)
	assert.Equal(t, "https://example.com/apple", articles[0].URL)
	assert.Equal(t, time.Date(2024, 5, 7, 14, 30, 0, 0, time.UTC), articles[0].PublishedDate.UTC())
	assert.Equal(t, "yahoo_finance", articles[0].Source)
	assert.Equal(t, scrapedAt, articles[0].ScrapedAt)

	assert.Equal(t, "Tesla recalls vehicles", articles[1].Title)
	assert.Equal(t, "https://feed.example.com", articles[1].URL)

	assert.Equal(t, 2, skips.Count)
	assert.Equal(t, 1, skips.Reasons[SkipMissingTitle])
	assert.Equal(t, 1, skips.Reasons[SkipInvalidDate])
}

func TestParse_Malformed(t *testing.T) {
	_, _, err := Parse([]byte("<rss><channel><item>"), "s", "u", scrapedAt)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"Tue, 07 May 2024 14:30:00 +0000", time.Date(2024, 5, 7, 14, 30, 0, 0, time.UTC), true},
		{"Tue, 7 May 2024 14:30:00 +0000", time.Date(2024, 5, 7, 14, 30, 0, 0, time.UTC), true},
		{"2024-05-07T14:30:00Z", time.Date(2024, 5, 7, 14, 30, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"May 7th", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "%s -> %v", tt.in, got)
		}
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", StripHTML("  plain   text "))
	assert.Equal(t, "Hello world", StripHTML("<div>Hello <i>world</i></div>"))
	assert.Equal(t, "AT&T gains", StripHTML("AT&amp;T gains"))
}

func TestClient_FetchArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := NewClient(server.URL, "yahoo_finance", time.Second, nil)
	client.now = func() time.Time { return scrapedAt }

	articles, skips, err := client.FetchArticles(context.Background())
	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.Equal(t, 2, skips.Count)
	assert.Equal(t, scrapedAt, articles[1].ScrapedAt)
}

func TestClient_FetchArticles_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "yahoo_finance", time.Second, nil)
	_, _, err := client.FetchArticles(context.Background())
	assert.Error(t, err)
}

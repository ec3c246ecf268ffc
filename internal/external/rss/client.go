package rss

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Skip reasons reported while decoding a feed
const (
	SkipMissingTitle = "missing_title"
	SkipInvalidDate  = "invalid_published_date"
)

// pubDate layouts seen in the wild, tried in order
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

type feed struct {
	Channel struct {
		Title string `xml:"title"`
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

// Client fetches news articles from an RSS 2.0 feed
// ⭐ SSOT: 뉴스 피드 수집은 이 클라이언트에서만
type Client struct {
	http    *resty.Client
	logger  *logger.Logger
	feedURL string
	source  string
	now     func() time.Time
}

// NewClient creates a feed client
func NewClient(feedURL, source string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; newsquant/1.0)")

	return &Client{
		http:    client,
		logger:  log.WithField("source", source),
		feedURL: feedURL,
		source:  source,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FetchArticles downloads and decodes the feed. Items with a missing title
// or unparseable pubDate are skipped and reported.
func (c *Client) FetchArticles(ctx context.Context) ([]contracts.Article, contracts.SkipReport, error) {
	skips := contracts.NewSkipReport(contracts.StageMentions)

	resp, err := c.http.R().SetContext(ctx).Get(c.feedURL)
	if err != nil {
		return nil, skips, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, skips, fmt.Errorf("HTTP error %d when fetching feed", resp.StatusCode())
	}

	articles, skips, err := Parse(resp.Body(), c.source, c.feedURL, c.now())
	if err != nil {
		return nil, skips, err
	}

	c.logger.WithFields(map[string]interface{}{
		"articles": len(articles),
		"skipped":  skips.Count,
	}).Info("Fetched feed")

	return articles, skips, nil
}

// Parse decodes an RSS document into articles. feedURL is used when an
// item carries no link of its own.
func Parse(data []byte, source, feedURL string, scrapedAt time.Time) ([]contracts.Article, contracts.SkipReport, error) {
	skips := contracts.NewSkipReport(contracts.StageMentions)

	var f feed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, skips, fmt.Errorf("failed to decode feed: %w", err)
	}

	articles := make([]contracts.Article, 0, len(f.Channel.Items))
	for _, it := range f.Channel.Items {
		title := collapse(it.Title)
		if title == "" {
			skips.Add(SkipMissingTitle)
			continue
		}
		published, ok := parseDate(it.PubDate)
		if !ok {
			skips.Add(SkipInvalidDate)
			continue
		}

		link := strings.TrimSpace(it.Link)
		if link == "" {
			link = feedURL
		}

		articles = append(articles, contracts.Article{
			Title:         title,
			Body:          StripHTML(it.Description),
			PublishedDate: published,
			Source:        source,
			URL:           link,
			ScrapedAt:     scrapedAt,
		})
	}
	return articles, skips, nil
}

// StripHTML returns the visible text of an HTML fragment
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

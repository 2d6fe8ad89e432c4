// Package feed implements story sources backed by RSS search feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const defaultEndpoint = "https://news.google.com/rss/search"

// GoogleNews fetches the Google News RSS search feed for a query.
type GoogleNews struct {
	endpoint string
	parser   *gofeed.Parser
	logger   *slog.Logger
}

var _ ports.StorySource = (*GoogleNews)(nil)

// NewGoogleNews wires a feed parser; an empty endpoint targets Google News.
func NewGoogleNews(endpoint string, timeout time.Duration, logger *slog.Logger) *GoogleNews {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "NewsRelay/1.0"
	return &GoogleNews{endpoint: endpoint, parser: parser, logger: logger}
}

// Fetch returns the feed items as raw candidates, in feed order.
func (g *GoogleNews) Fetch(ctx context.Context, q ports.StoryQuery) ([]domain.RawItem, error) {
	feedURL, err := g.searchURL(q)
	if err != nil {
		return nil, err
	}
	g.debug("fetch feed", "url", feedURL)

	parsed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("fetch feed: %w", err)
		}
		return nil, &domain.TransientError{Op: "fetch feed", Err: err}
	}

	items := make([]domain.RawItem, 0, len(parsed.Items))
	for i, entry := range parsed.Items {
		raw, ok := toRawItem(entry)
		if !ok {
			g.debug("skip feed entry without link or title", "index", i)
			continue
		}
		items = append(items, raw)
	}

	g.debug("feed parsed", "entries", len(parsed.Items), "items", len(items))
	return items, nil
}

func (g *GoogleNews) searchURL(q ports.StoryQuery) (string, error) {
	if strings.TrimSpace(q.Query) == "" {
		return "", fmt.Errorf("empty search query")
	}
	base, err := url.Parse(g.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse feed endpoint: %w", err)
	}

	search := strings.TrimSpace(q.Query)
	if days := int(q.Lookback / (24 * time.Hour)); days > 0 {
		search = fmt.Sprintf("%s when:%dd", search, days)
	}

	lang := strings.ToLower(strings.TrimSpace(q.Language))
	if lang == "" {
		lang = "en"
	}
	country := strings.ToUpper(strings.TrimSpace(q.Country))
	if country == "" {
		country = "US"
	}

	values := base.Query()
	values.Set("q", search)
	values.Set("hl", lang+"-"+country)
	values.Set("gl", country)
	values.Set("ceid", country+":"+lang)
	base.RawQuery = values.Encode()
	return base.String(), nil
}

func toRawItem(entry *gofeed.Item) (domain.RawItem, bool) {
	if entry == nil || strings.TrimSpace(entry.Link) == "" || strings.TrimSpace(entry.Title) == "" {
		return domain.RawItem{}, false
	}

	headline, source := splitTitle(entry.Title)
	raw := domain.RawItem{
		Headline:    headline,
		URL:         strings.TrimSpace(entry.Link),
		SourceName:  source,
		Description: plainText(entry.Description),
	}
	if entry.PublishedParsed != nil {
		raw.PublishedAt = entry.PublishedParsed.UTC()
	}
	switch {
	case len(entry.Authors) > 0 && entry.Authors[0] != nil:
		raw.Byline = entry.Authors[0].Name
	case entry.Author != nil:
		raw.Byline = entry.Author.Name
	}
	return raw, true
}

// splitTitle separates the trailing " - Source" that Google News appends.
func splitTitle(title string) (headline, source string) {
	title = strings.TrimSpace(title)
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
}

func plainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (g *GoogleNews) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

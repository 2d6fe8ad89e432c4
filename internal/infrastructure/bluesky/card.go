package bluesky

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Card is the metadata shown in an external link embed.
type Card struct {
	Title       string
	Description string
}

// CardFetcher reads Open Graph metadata from the linked page.
type CardFetcher struct {
	client *http.Client
}

// NewCardFetcher shares the publisher's HTTP client.
func NewCardFetcher(client *http.Client) *CardFetcher {
	return &CardFetcher{client: client}
}

// Fetch returns whatever metadata the page offers; failures yield an empty card.
func (f *CardFetcher) Fetch(ctx context.Context, pageURL string) Card {
	if f == nil || f.client == nil {
		return Card{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Card{}
	}
	req.Header.Set("User-Agent", "NewsRelay/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return Card{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Card{}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Card{}
	}

	card := Card{
		Title:       meta(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Description: meta(doc, `meta[property="og:description"]`, `meta[name="description"]`),
	}
	if card.Title == "" {
		card.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return card
}

func meta(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

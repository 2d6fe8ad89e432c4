// Package normalize derives comparable keys from URLs and headlines.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

var trackingParams = map[string]struct{}{
	"fbclid":      {},
	"gclid":       {},
	"msclkid":     {},
	"ref":         {},
	"source":      {},
	"campaign_id": {},
	"_ga":         {},
	"_gac":        {},
	"_gid":        {},
	"mc_cid":      {},
	"mc_eid":      {},
}

var headlineQuotes = strings.NewReplacer(
	`"`, "",
	"'", "",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
)

var videoIndicators = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"twitch.tv",
	"dailymotion.com",
	"video.",
	"/video/",
	"/watch?v=",
	"/player/",
	"/embed/",
	"stream.",
	"play.",
}

// URL strips tracking parameters and the fragment, sorts the remaining query,
// drops trailing slashes and lowercases the result.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		lk := strings.ToLower(k)
		if _, drop := trackingParams[lk]; drop || strings.HasPrefix(lk, "utm_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(query.Get(k)))
	}

	return strings.ToLower(b.String())
}

// Headline lowercases, collapses whitespace, removes quotes and trailing punctuation.
func Headline(headline string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(headline)), " ")
	normalized = headlineQuotes.Replace(normalized)
	return strings.TrimRight(normalized, ".,!?;: ")
}

// IsRedirect reports whether raw is an opaque aggregator redirect.
// Such URLs are per-item tokens and are never comparable for dedup.
func IsRedirect(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Hostname(), "news.google.com") {
		return false
	}
	return strings.Contains(u.Path, "/articles/") || strings.Contains(u.Path, "/read/")
}

// IsVideo reports whether raw points at video content.
func IsVideo(raw string) bool {
	lower := strings.ToLower(raw)
	for _, indicator := range videoIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// URLHash hashes the normalized URL; empty for blank or redirect URLs.
func URLHash(raw string) string {
	if strings.TrimSpace(raw) == "" || IsRedirect(raw) {
		return ""
	}
	return hash(URL(raw))
}

// HeadlineHash hashes the normalized headline; empty for a blank headline.
func HeadlineHash(headline string) string {
	normalized := Headline(headline)
	if normalized == "" {
		return ""
	}
	return hash(normalized)
}

// StoryID derives the stable identifier from headline and source.
func StoryID(headline, source string) string {
	sum := sha256.Sum256([]byte(Headline(headline) + "\x00" + strings.ToLower(strings.TrimSpace(source))))
	return hex.EncodeToString(sum[:16])
}

func hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

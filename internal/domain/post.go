package domain

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// Post is the rendered content handed to a publishing service.
//
// The visible text is the summary, an optional " By <byline>." suffix and the
// source label; the label is rendered as a link to URL, and the URL itself
// never counts toward the length limit.
type Post struct {
	Summary     string
	Byline      string
	SourceLabel string
	URL         string
}

// NewPost renders an item's summary, byline and source link.
func NewPost(item Item) Post {
	return Post{
		Summary:     item.Summary,
		Byline:      CleanByline(item.Byline),
		SourceLabel: item.SourceName,
		URL:         item.LinkURL(),
	}
}

// CleanByline strips a leading "By " and trailing punctuation.
func CleanByline(byline string) string {
	byline = strings.TrimSpace(byline)
	if len(byline) >= 3 && strings.EqualFold(byline[:3], "by ") {
		byline = strings.TrimSpace(byline[3:])
	}
	return strings.TrimRight(byline, ". ")
}

// BylineSuffix is the text appended after the summary for a byline.
func BylineSuffix(byline string) string {
	byline = CleanByline(byline)
	if byline == "" {
		return ""
	}
	return " By " + byline + "."
}

// LabelSuffix is the visible link label appended at the end.
func LabelSuffix(label string) string {
	if label == "" {
		return ""
	}
	return " " + label
}

// SummaryBudget is the number of characters left for the summary itself.
func SummaryBudget(maxLength int, byline, label string) int {
	return maxLength - utf8.RuneCountInString(BylineSuffix(byline)) - utf8.RuneCountInString(LabelSuffix(label))
}

// Text is the visible post body.
func (p Post) Text() string {
	return p.Summary + BylineSuffix(p.Byline) + LabelSuffix(p.SourceLabel)
}

// Length counts the characters that are subject to the limit.
func (p Post) Length() int {
	return utf8.RuneCountInString(p.Text())
}

// LinkSpan returns the byte range of the source label inside Text.
func (p Post) LinkSpan() (start, end int, ok bool) {
	if p.SourceLabel == "" || p.URL == "" {
		return 0, 0, false
	}
	text := p.Text()
	end = len(text)
	start = end - len(p.SourceLabel)
	return start, end, true
}

// Fit truncates the summary so the post respects maxLength.
func (p Post) Fit(maxLength int) Post {
	if maxLength <= 0 || p.Length() <= maxLength {
		return p
	}
	budget := SummaryBudget(maxLength, p.Byline, p.SourceLabel)
	p.Summary = Truncate(p.Summary, budget)
	return p
}

// Truncate shortens s to at most limit runes, ending on a word boundary with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string([]rune(s)[:limit])
	}
	cut := string([]rune(s)[:limit-len(ellipsis)])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,;:") + ellipsis
}

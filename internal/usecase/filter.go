package usecase

import (
	"strings"

	"NewsRelay/internal/domain"
)

// FilterRules lists the source allow-lists and banned keywords.
type FilterRules struct {
	ConfirmedSources       []string
	AcceptedSources        []string
	BannedHeadlineKeywords []string
	BannedURLKeywords      []string
}

// FilterDecision is the outcome of the source/keyword filter.
type FilterDecision struct {
	Accept bool
	Class  domain.SourceClass
	Reason string
}

// SourceFilter admits items from allowed sources without banned keywords.
type SourceFilter struct {
	confirmed       []string
	accepted        []string
	bannedHeadlines []string
	bannedURLs      []string
}

// NewSourceFilter lowercases the rules once.
func NewSourceFilter(rules FilterRules) *SourceFilter {
	return &SourceFilter{
		confirmed:       lowerAll(rules.ConfirmedSources),
		accepted:        lowerAll(rules.AcceptedSources),
		bannedHeadlines: lowerAll(rules.BannedHeadlineKeywords),
		bannedURLs:      lowerAll(rules.BannedURLKeywords),
	}
}

// Evaluate matches sources and keywords as case-insensitive substrings.
// Source checks run first, then headline keywords, then URL keywords.
func (f *SourceFilter) Evaluate(item domain.Item) FilterDecision {
	source := strings.ToLower(item.SourceName)

	class := domain.SourceUnclassified
	switch {
	case source == "":
	case firstMatch(source, f.confirmed) != "":
		class = domain.SourceConfirmed
	case firstMatch(source, f.accepted) != "":
		class = domain.SourceAccepted
	}
	if class == domain.SourceUnclassified {
		return FilterDecision{Reason: domain.ReasonSourceNotAllowed}
	}

	if kw := firstMatch(strings.ToLower(item.Headline), f.bannedHeadlines); kw != "" {
		return FilterDecision{Class: class, Reason: domain.Reason(domain.ReasonBannedKeyword, kw)}
	}

	for _, u := range []string{item.RawSourceURL, item.ResolvedURL} {
		if kw := firstMatch(strings.ToLower(u), f.bannedURLs); kw != "" {
			return FilterDecision{Class: class, Reason: domain.Reason(domain.ReasonBannedURLKeyword, kw)}
		}
	}

	reason := domain.ReasonAcceptedSource
	if class == domain.SourceConfirmed {
		reason = domain.ReasonConfirmedSource
	}
	return FilterDecision{Accept: true, Class: class, Reason: reason}
}

func firstMatch(haystack string, needles []string) string {
	if haystack == "" {
		return ""
	}
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return n
		}
	}
	return ""
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

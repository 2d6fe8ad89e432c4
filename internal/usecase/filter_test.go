package usecase

import (
	"testing"
	"time"

	"NewsRelay/internal/domain"
)

func TestSourceFilter(t *testing.T) {
	t.Parallel()

	filter := NewSourceFilter(FilterRules{
		ConfirmedSources:       []string{"Reuters"},
		AcceptedSources:        []string{"Guardian"},
		BannedHeadlineKeywords: []string{"Crypto"},
		BannedURLKeywords:      []string{"/opinion/"},
	})

	cases := []struct {
		name   string
		raw    domain.RawItem
		accept bool
		class  domain.SourceClass
		reason string
	}{
		{"confirmed", rawItem("Rates rise", "https://r.example/a", "Reuters UK"), true, domain.SourceConfirmed, domain.ReasonConfirmedSource},
		{"accepted", rawItem("Rates rise", "https://g.example/a", "The Guardian"), true, domain.SourceAccepted, domain.ReasonAcceptedSource},
		{"unknown source", rawItem("Rates rise", "https://z.example/a", "Daily Blog"), false, domain.SourceUnclassified, domain.ReasonSourceNotAllowed},
		{"banned headline", rawItem("CRYPTO crash", "https://r.example/b", "Reuters"), false, domain.SourceConfirmed, "banned_keyword:crypto"},
		{"banned url", rawItem("Rates rise", "https://g.example/opinion/x", "Guardian"), false, domain.SourceAccepted, "banned_url_keyword:/opinion/"},
	}

	for _, tc := range cases {
		got := filter.Evaluate(domain.NewItem(tc.raw, time.Now()))
		if got.Accept != tc.accept || got.Class != tc.class || got.Reason != tc.reason {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

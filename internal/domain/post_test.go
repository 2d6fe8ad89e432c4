package domain

import (
	"strings"
	"testing"
)

func TestPostText(t *testing.T) {
	t.Parallel()

	p := Post{Summary: "Rates rose.", Byline: "By Jane Doe", SourceLabel: "Reuters", URL: "https://r.example/x"}
	p.Byline = CleanByline(p.Byline)
	if got := p.Text(); got != "Rates rose. By Jane Doe. Reuters" {
		t.Fatalf("unexpected text %q", got)
	}

	start, end, ok := p.LinkSpan()
	if !ok || p.Text()[start:end] != "Reuters" {
		t.Fatalf("unexpected link span %d:%d", start, end)
	}
}

func TestSummaryBudgetExcludesURL(t *testing.T) {
	t.Parallel()

	got := SummaryBudget(300, "Jane", "Reuters")
	want := 300 - len(" By Jane.") - len(" Reuters")
	if got != want {
		t.Fatalf("budget %d, want %d", got, want)
	}
}

func TestPostFitTruncates(t *testing.T) {
	t.Parallel()

	p := Post{Summary: strings.Repeat("word ", 80), SourceLabel: "AP", URL: "https://ap.example"}
	fitted := p.Fit(100)
	if fitted.Length() > 100 {
		t.Fatalf("expected fitted length <= 100, got %d", fitted.Length())
	}
	if !strings.HasSuffix(fitted.Summary, "...") {
		t.Fatalf("expected ellipsis, got %q", fitted.Summary)
	}
}

func TestCleanByline(t *testing.T) {
	t.Parallel()

	if got := CleanByline("  by John Smith. "); got != "John Smith" {
		t.Fatalf("unexpected byline %q", got)
	}
	if BylineSuffix("") != "" {
		t.Fatal("expected empty suffix for empty byline")
	}
}

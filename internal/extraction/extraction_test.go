package extraction

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func page(t *testing.T, html string) Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return Page{URL: "https://publisher.example/story", Doc: doc}
}

func longText(sentence string, n int) string {
	return strings.TrimSpace(strings.Repeat(sentence+" ", n))
}

func TestReadableFlattensArticle(t *testing.T) {
	t.Parallel()

	body := longText("The council approved the harbour plan.", 20)
	p := page(t, `<html><body><nav>Menu</nav><article><h1>Harbour</h1><p>`+body+
		` <a href="https://x.example">details</a></p><img src="a.png"></article></body></html>`)

	got := NewReadable().Extract(p)
	if got == "" {
		t.Fatal("expected readable text")
	}
	if strings.Contains(got, "](") || strings.Contains(got, "#") || strings.Contains(got, "Menu") {
		t.Fatalf("expected plain prose, got %q", got)
	}
	if !strings.Contains(got, "details") {
		t.Fatalf("expected link text kept, got %q", got)
	}
}

func TestSelectorsSkipsShortContainers(t *testing.T) {
	t.Parallel()

	body := longText("Flooding closed the coastal road overnight.", 20)
	p := page(t, `<html><body><div class="content">short</div><div id="content"><script>x()</script>`+body+`</div></body></html>`)

	got := (Selectors{}).Extract(p)
	if !strings.HasPrefix(got, "Flooding closed") {
		t.Fatalf("expected #content text, got %q", got)
	}
	if strings.Contains(got, "x()") {
		t.Fatalf("scripts must be removed, got %q", got)
	}
}

func TestParagraphsThreshold(t *testing.T) {
	t.Parallel()

	if got := (Paragraphs{}).Extract(page(t, `<p>Too short to count as an article.</p>`)); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	body := longText("<p>A paragraph with enough words to keep.</p>", 8)
	if got := (Paragraphs{}).Extract(page(t, body)); got == "" {
		t.Fatal("expected joined paragraphs")
	}
}

func TestMetaDescription(t *testing.T) {
	t.Parallel()

	p := page(t, `<html><head><meta name="description" content="  Port   reopens after storm. "></head></html>`)
	if got := (MetaDescription{}).Extract(p); got != "Port reopens after storm." {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestRegistryChain(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()
	chain, err := reg.Chain(nil)
	if err != nil {
		t.Fatalf("default chain: %v", err)
	}
	if len(chain) != 4 || chain[0].Name() != "readable" || chain[3].Name() != "meta_description" {
		t.Fatalf("unexpected default order")
	}

	chain, err = reg.Chain([]string{"meta_description", "paragraphs"})
	if err != nil || len(chain) != 2 || chain[0].Name() != "meta_description" {
		t.Fatalf("unexpected custom chain: %v", err)
	}

	if _, err := reg.Chain([]string{"missing"}); err == nil {
		t.Fatal("expected unknown strategy error")
	}
}

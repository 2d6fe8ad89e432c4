package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Minimum text sizes, in runes, for a strategy result to count.
const (
	minArticleText   = 500
	minParagraphText = 200
)

var (
	noiseSelector   = "script, style, nav, header, footer, aside, noscript, form, iframe"
	contentSelector = []string{
		"article",
		`[role="main"]`,
		".article-content",
		".article-body",
		".post-content",
		".entry-content",
		".content",
		"#content",
		".main-content",
	}

	markdownLink  = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	markdownMarks = regexp.MustCompile("(?m)^\\s*(#{1,6}|[-*+>]|\\d+\\.)\\s+|[*_`]{1,3}")
	markdownEsc   = regexp.MustCompile(`\\([\\*_{}\[\]()#+\-.!>])`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Readable converts the main content block to markdown and flattens it to
// plain prose.
type Readable struct {
	converter *md.Converter
}

// NewReadable prepares a converter that drops media and chrome elements.
func NewReadable() *Readable {
	conv := md.NewConverter("", true, nil)
	conv.Remove("img", "figure", "picture", "video", "script", "style", "nav", "aside", "form")
	return &Readable{converter: conv}
}

func (r *Readable) Name() string { return "readable" }

func (r *Readable) Extract(page Page) string {
	if page.Doc == nil {
		return ""
	}
	for _, sel := range []string{"article", "main", `[role="main"]`} {
		node := page.Doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := FlattenMarkdown(r.converter.Convert(node))
		if utf8.RuneCountInString(text) >= minArticleText {
			return text
		}
	}
	return ""
}

// Selectors reads the first common article container with enough text.
type Selectors struct{}

func (Selectors) Name() string { return "selectors" }

func (Selectors) Extract(page Page) string {
	if page.Doc == nil {
		return ""
	}
	doc := page.Doc.Clone()
	doc.Find(noiseSelector).Remove()

	for _, sel := range contentSelector {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := Clean(node.Text())
		if utf8.RuneCountInString(text) >= minArticleText {
			return text
		}
	}
	return ""
}

// Paragraphs joins every paragraph on the page.
type Paragraphs struct{}

func (Paragraphs) Name() string { return "paragraphs" }

func (Paragraphs) Extract(page Page) string {
	if page.Doc == nil {
		return ""
	}
	var parts []string
	page.Doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := Clean(s.Text()); len(text) > 10 {
			parts = append(parts, text)
		}
	})
	text := strings.Join(parts, " ")
	if utf8.RuneCountInString(text) < minParagraphText {
		return ""
	}
	return text
}

// MetaDescription falls back to the page's social or meta description.
type MetaDescription struct{}

func (MetaDescription) Name() string { return "meta_description" }

func (MetaDescription) Extract(page Page) string {
	if page.Doc == nil {
		return ""
	}
	for _, sel := range []string{`meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`} {
		if content, ok := page.Doc.Find(sel).First().Attr("content"); ok {
			if text := Clean(content); text != "" {
				return text
			}
		}
	}
	return ""
}

// FlattenMarkdown strips markdown syntax and collapses whitespace.
func FlattenMarkdown(markdown string) string {
	text := markdownLink.ReplaceAllString(markdown, "$1")
	text = markdownEsc.ReplaceAllString(text, "$1")
	text = markdownMarks.ReplaceAllString(text, "")
	return Clean(text)
}

// Clean collapses runs of whitespace and drops non-printable runes.
func Clean(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (r < 0x20 && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

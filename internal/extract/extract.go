package extract

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/hyperifyio/goanswer/internal/fetch"
)

// Content is the readable form of one fetched page: metadata plus the
// passages the rest of the pipeline works on.
type Content struct {
	URL       string
	Title     string
	Byline    string
	Published time.Time
	Text      string
	Passages  []Passage
}

// Passage is a contiguous slice of a document's text. Index is its
// position within the document, counted over the passages that survive
// filtering, so it is stable for a given document and Options.
type Passage struct {
	DocURL string
	Index  int
	Text   string
}

// Options controls passage segmentation.
type Options struct {
	// MinPassageChars drops fragments too short to carry a claim.
	MinPassageChars int
	// TargetPassageChars is the size short neighbors are merged up to.
	TargetPassageChars int
	// MaxPassageChars hard-truncates oversized passages on a word boundary.
	MaxPassageChars int
}

const (
	DefaultMinPassageChars    = 80
	DefaultTargetPassageChars = 600
	DefaultMaxPassageChars    = 1600
)

func (o Options) withDefaults() Options {
	if o.MinPassageChars <= 0 {
		o.MinPassageChars = DefaultMinPassageChars
	}
	if o.TargetPassageChars <= 0 {
		o.TargetPassageChars = DefaultTargetPassageChars
	}
	if o.MaxPassageChars <= 0 {
		o.MaxPassageChars = DefaultMaxPassageChars
	}
	return o
}

// FromDocument extracts readable content from a fetched page. Readability
// runs first; when it fails or finds nothing, a heuristic DOM walk over the
// raw HTML takes over. Documents that failed to fetch, or whose body holds
// no text, come back with zero passages rather than an error.
func FromDocument(doc fetch.Document, opts Options) Content {
	opts = opts.withDefaults()
	c := Content{URL: doc.URL}
	if !doc.OK() || len(bytes.TrimSpace(doc.Body)) == 0 {
		return c
	}

	root, err := html.Parse(bytes.NewReader(doc.Body))
	if err != nil {
		root = nil
	}

	if art, ok := readableArticle(doc); ok {
		c.Title = strings.TrimSpace(art.Title)
		c.Byline = strings.TrimSpace(art.Byline)
		if art.PublishedTime != nil {
			c.Published = *art.PublishedTime
		}
		c.Text = textFromHTML(art.Content)
	}
	if strings.TrimSpace(c.Text) == "" && root != nil {
		c.Text = heuristicText(root)
	}
	if c.Title == "" && root != nil {
		c.Title = strings.TrimSpace(titleFrom(root))
	}
	if c.Published.IsZero() && root != nil {
		c.Published = publishedFrom(root)
	}
	if strings.TrimSpace(c.Text) == "" {
		return c
	}
	c.Passages = SplitPassages(doc.URL, c.Text, opts)
	return c
}

func readableArticle(doc fetch.Document) (readability.Article, bool) {
	pageURL, err := url.Parse(doc.URL)
	if err != nil {
		return readability.Article{}, false
	}
	art, err := readability.FromReader(bytes.NewReader(doc.Body), pageURL)
	if err != nil {
		return readability.Article{}, false
	}
	return art, true
}

// textFromHTML renders an HTML fragment to normalized plain text with
// blank lines between paragraphs.
func textFromHTML(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil || node == nil {
		return ""
	}
	var b strings.Builder
	collectText(&b, node, false)
	return normalizeWhitespace(b.String())
}

// metaDateKeys are meta tag identifiers commonly carrying the publication
// date, checked against name, property and itemprop attributes.
var metaDateKeys = map[string]struct{}{
	"article:published_time": {},
	"datepublished":          {},
	"date":                   {},
	"pubdate":                {},
	"publish-date":           {},
	"dc.date":                {},
	"dcterms.date":           {},
}

// publishedFrom scans meta tags and <time datetime> for a publication
// date. The zero time means none was found or none parsed.
func publishedFrom(root *html.Node) time.Time {
	var found time.Time
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if !found.IsZero() {
			return
		}
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "meta":
				if raw := metaDateValue(n); raw != "" {
					if t, err := dateparse.ParseAny(raw); err == nil {
						found = t
						return
					}
				}
			case "time":
				if raw := attrValue(n, "datetime"); raw != "" {
					if t, err := dateparse.ParseAny(raw); err == nil {
						found = t
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func metaDateValue(n *html.Node) string {
	var key, content string
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "name", "property", "itemprop":
			key = strings.ToLower(strings.TrimSpace(attr.Val))
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	if _, ok := metaDateKeys[key]; !ok {
		return ""
	}
	return content
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedElements never contribute text: scripts, chrome and embeds.
var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"nav":      {},
	"footer":   {},
	"aside":    {},
	"iframe":   {},
}

// heuristicText walks the parsed page directly, preferring <main> or
// <article> over the whole <body>, and keeps headings, paragraphs, list
// items and pre/code blocks while dropping obvious boilerplate.
func heuristicText(root *html.Node) string {
	content := contentRoot(root)
	if content == nil {
		return ""
	}
	var b strings.Builder
	collectText(&b, content, false)
	return normalizeWhitespace(b.String())
}

func contentRoot(root *html.Node) *html.Node {
	for _, tag := range []string{"main", "article", "body"} {
		if n := firstElement(root, tag); n != nil {
			return n
		}
	}
	return nil
}

func titleFrom(root *html.Node) string {
	head := firstElement(root, "head")
	if head == nil {
		return ""
	}
	t := firstElement(head, "title")
	if t == nil {
		return ""
	}
	var b strings.Builder
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func firstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := firstElement(c, tag); res != nil {
			return res
		}
	}
	return nil
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	switch n.Type {
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if _, skip := skippedElements[name]; skip {
			return
		}
		if isConsentContainer(n) {
			return
		}
		switch name {
		case "pre", "code":
			inPre = true
		case "br", "hr", "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "blockquote", "tr":
			// separation before block starts
			b.WriteString("\n")
		}
	case html.TextNode:
		data := n.Data
		if !inPre {
			data = strings.ReplaceAll(data, "\t", " ")
			data = strings.ReplaceAll(data, "\r", " ")
		}
		b.WriteString(data)
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			b.WriteString("\n\n")
		case "li", "tr", "pre", "code":
			b.WriteString("\n")
		}
	}
}

// isConsentContainer flags cookie/consent banners and similar overlays by
// their id, class and ARIA markers.
func isConsentContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && key != "aria-label" && key != "role" && !strings.HasPrefix(key, "data-") {
			continue
		}
		val := strings.ToLower(attr.Val)
		for _, marker := range []string{"cookie", "consent", "gdpr", "paywall"} {
			if strings.Contains(val, marker) {
				return true
			}
		}
	}
	return false
}

// normalizeWhitespace collapses internal whitespace runs and squeezes
// consecutive blank lines down to one, so paragraphs end up separated by
// exactly one empty line.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, strings.Join(strings.Fields(trimmed), " "))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

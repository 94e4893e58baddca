package prefetch

import (
	"bytes"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

const readabilityMinWords = 50

// extractContent tries go-readability first (Mozilla's Readability
// algorithm), converts the article to markdown, and falls back to a
// custom DOM walker when readability produces too little text.
func extractContent(data []byte, pageURL string) (title, content string) {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err == nil && article.Node != nil {
		md, mdErr := htmltomarkdown.ConvertNode(article.Node)
		if mdErr == nil {
			text := normalizeContent(string(md))
			if len(strings.Fields(text)) >= readabilityMinWords {
				return article.Title(), text
			}
		}
		var buf bytes.Buffer
		_ = article.RenderText(&buf)
		text := normalizeContent(buf.String())
		if len(strings.Fields(text)) >= readabilityMinWords {
			return article.Title(), text
		}
	}

	node, parseErr := html.Parse(bytes.NewReader(data))
	if parseErr != nil {
		return "", ""
	}
	return extractTitle(node), extractReadableText(node)
}

// extractPlainContent handles text/plain and text/markdown bodies,
// pulling a title from the first markdown heading if present.
func extractPlainContent(data []byte) (title, content string) {
	text := normalizeContent(string(data))
	if text == "" {
		return "", ""
	}
	for _, line := range strings.SplitN(text, "\n", 10) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# ")), text
		}
	}
	return "", text
}

func extractTitle(node *html.Node) string {
	var titleNode *html.Node
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			titleNode = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if titleNode != nil {
				return
			}
			findTitle(child)
		}
	}
	findTitle(node)
	if titleNode == nil {
		return ""
	}
	var buf strings.Builder
	var collectText func(*html.Node)
	collectText = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collectText(child)
		}
	}
	collectText(titleNode)
	return strings.TrimSpace(buf.String())
}

func extractReadableText(node *html.Node) string {
	var builder strings.Builder
	var walker func(*html.Node)
	walker = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			switch tag {
			case "script", "style", "noscript", "nav", "footer", "header", "aside", "form", "template":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				builder.WriteString("\n\n")
				builder.WriteString(strings.Repeat("#", headingLevel(tag)))
				builder.WriteString(" ")
			case "p", "div", "section", "article", "li", "pre", "blockquote":
				builder.WriteString("\n\n")
			}
			if hasAttr(n, "hidden") || attrVal(n, "aria-hidden") == "true" {
				return
			}
			role := attrVal(n, "role")
			if role == "complementary" || role == "banner" || role == "navigation" {
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				builder.WriteString(text)
				builder.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walker(child)
		}
	}
	walker(node)
	return normalizeContent(builder.String())
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	default:
		return 1
	}
}

func normalizeContent(content string) string {
	lines := strings.Split(content, "\n")
	var cleaned []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				cleaned = append(cleaned, "")
				blank = true
			}
			continue
		}
		blank = false
		cleaned = append(cleaned, trimmed)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// extractOGTitle pulls <meta property="og:title"> as a title fallback
// when <title> is absent or empty (§4.3).
func extractOGTitle(data []byte) string {
	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			if attrVal(n, "property") == "og:title" || attrVal(n, "name") == "og:title" {
				found = attrVal(n, "content")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.TrimSpace(found)
}

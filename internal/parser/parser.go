// Package parser handles HTML parsing and text extraction.
package parser

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// SearchResult is one link scraped from a search engine result page.
type SearchResult struct {
	Rank        int
	Description string
	URL         string
}

// Class names of the result blocks in the basic (no-JavaScript) result page.
var resultClasses = []string{"egMi0", "kCrYT"}

const redirectPrefix = "/url?q="

// ExtractReadableText returns the visible text under <body>, one text run per
// paragraph separated by blank lines. Script and style content is skipped.
func ExtractReadableText(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return strings.TrimSpace(htmlBody)
	}

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}

	var parts []string
	collectVisibleText(root, &parts)
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// collectVisibleText recursively traverses the HTML tree.
func collectVisibleText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectVisibleText(c, parts)
	}
}

// ExtractResultLinks returns the ranked result links of a search result page.
// Extraction stops at the first result block that holds no link.
func ExtractResultLinks(htmlBody string) []SearchResult {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var blocks []*html.Node
	collectResultBlocks(doc, &blocks)

	results := make([]SearchResult, 0, len(blocks))
	for _, block := range blocks {
		link := findElement(block, "a")
		if link == nil {
			break
		}
		results = append(results, SearchResult{
			Rank:        len(results) + 1,
			Description: getTextContent(link),
			URL:         unwrapRedirect(getAttr(link, "href")),
		})
	}
	return results
}

func collectResultBlocks(n *html.Node, blocks *[]*html.Node) {
	if n.Type == html.ElementNode && n.Data == "div" && hasClasses(n, resultClasses) {
		*blocks = append(*blocks, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectResultBlocks(c, blocks)
	}
}

// unwrapRedirect turns "/url?q=<target>&sa=..." into the unescaped target.
func unwrapRedirect(href string) string {
	if !strings.HasPrefix(href, redirectPrefix) {
		return href
	}
	target := strings.TrimPrefix(href, redirectPrefix)
	if idx := strings.Index(target, "&sa="); idx != -1 {
		target = target[:idx]
	}
	if unescaped, err := url.QueryUnescape(target); err == nil {
		return unescaped
	}
	return target
}

// Helper functions

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func hasClasses(n *html.Node, want []string) bool {
	have := strings.Fields(getAttr(n, "class"))
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func getTextContent(n *html.Node) string {
	var buf bytes.Buffer
	collectText(n, &buf)
	return buf.String()
}

func collectText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}

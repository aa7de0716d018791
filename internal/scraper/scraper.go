// Package scraper fetches an HTTPS page and its immediate child links and
// flattens them into readable text. Crawling stops at depth 1 and a visited
// set keeps link cycles from recursing.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const userAgent = "ScalarAI-WebScraperService/1.0"

// ErrNotHTTPS rejects root URLs on any scheme other than https.
var ErrNotHTTPS = errors.New("URL must be HTTPS")

// blockElements force a line break in the flattened text so the output
// keeps some document structure.
var blockElements = map[string]bool{
	"article": true, "section": true, "nav": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "footer": true, "address": true, "p": true, "hr": true,
	"pre": true, "blockquote": true, "ol": true, "ul": true, "li": true,
	"dl": true, "dt": true, "dd": true, "figure": true, "figcaption": true,
	"main": true, "div": true, "table": true, "thead": true, "tbody": true,
	"tfoot": true, "tr": true, "td": true, "th": true, "caption": true,
	"form": true, "fieldset": true, "legend": true, "details": true,
	"summary": true,
}

// skipElements are removed entirely, subtree included.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "canvas": true,
}

var whitespace = regexp.MustCompile(`\s+`)

type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

func New(timeout time.Duration, logger *slog.Logger) *Scraper {
	return NewWithClient(&http.Client{Timeout: timeout}, logger)
}

// NewWithClient builds a scraper around a caller-supplied HTTP client.
func NewWithClient(client *http.Client, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{client: client, logger: logger}
}

type pageEntry struct {
	url  string
	text string
}

// Scrape fetches the root page and, one level deep, every HTTPS link on
// it. Pages that fail to fetch are skipped silently. Entries are formatted
// as "URL: <url>\nCONTENT:\n<text>" and joined by blank lines.
func (s *Scraper) Scrape(ctx context.Context, rawURL string, maxDepth int) (string, error) {
	root, err := url.Parse(rawURL)
	if err != nil || root.Scheme != "https" {
		return "", ErrNotHTTPS
	}

	visited := map[string]bool{}
	var results []pageEntry
	s.crawl(ctx, root, 0, maxDepth, visited, &results)

	entries := make([]string, 0, len(results))
	for _, e := range results {
		entries = append(entries, fmt.Sprintf("URL: %s\nCONTENT:\n%s", e.url, e.text))
	}
	return strings.Join(entries, "\n\n"), nil
}

func (s *Scraper) crawl(ctx context.Context, u *url.URL, depth, maxDepth int, visited map[string]bool, results *[]pageEntry) {
	key := u.String()
	if visited[key] {
		return
	}
	visited[key] = true

	body := s.fetch(ctx, key)
	if body == "" {
		return
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		s.logger.Warn("scrape parse failed", "url", key, "err", err)
		return
	}

	*results = append(*results, pageEntry{url: key, text: flattenText(doc)})

	if depth >= maxDepth {
		return
	}
	for _, child := range extractLinks(doc, u) {
		s.crawl(ctx, child, depth+1, maxDepth, visited, results)
	}
}

func (s *Scraper) fetch(ctx context.Context, u string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("scrape fetch failed", "url", u, "err", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

// flattenText walks the document collecting text nodes, inserting line
// breaks at block elements and dropping non-content subtrees.
func flattenText(doc *html.Node) string {
	var tokens []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := strings.TrimSpace(whitespace.ReplaceAllString(n.Data, " "))
			if text != "" {
				tokens = append(tokens, text)
			}
		case html.ElementNode:
			name := strings.ToLower(n.Data)
			if skipElements[name] {
				return
			}
			if blockElements[name] {
				tokens = append(tokens, "\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	combined := strings.Join(tokens, " ")
	var lines []string
	for _, line := range strings.Split(combined, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// extractLinks returns the unique HTTPS anchors on the page, resolved
// against the base URL with fragments stripped.
func extractLinks(doc *html.Node, base *url.URL) []*url.URL {
	seen := map[string]bool{}
	var out []*url.URL

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.ToLower(n.Data) == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" || attr.Val == "" {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				candidate := base.ResolveReference(ref)
				if candidate.Scheme != "https" {
					continue
				}
				candidate.Fragment = ""
				key := candidate.String()
				if !seen[key] {
					seen[key] = true
					out = append(out, candidate)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// Package scrape fetches a target website over plain HTTP and walks
// same-host links to a configured depth, producing plaintext pages for
// email extraction.
package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Page is one fetched page reduced to plaintext.
type Page struct {
	URL        string
	Title      string
	Text       string
	Depth      int
	StatusCode int
}

// Options bound a crawl.
type Options struct {
	MaxDepth int
	MaxPages int
	Timeout  time.Duration
}

// Crawler walks a site breadth-first, same host only.
type Crawler struct {
	client *http.Client
	opts   Options
}

func NewCrawler(opts Options) *Crawler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 30
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Crawler{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		opts: opts,
	}
}

// Crawl fetches startURL and follows same-host links breadth-first up
// to MaxDepth and MaxPages. Pages are fetched strictly one at a time.
// A fetch failure skips that page and continues the walk.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, eris.Errorf("scrape: invalid start url %q", startURL)
	}

	type queued struct {
		url   string
		depth int
	}
	queue := []queued{{url: start.String(), depth: 0}}
	visited := map[string]struct{}{start.String(): {}}

	var pages []Page
	for len(queue) > 0 && len(pages) < c.opts.MaxPages {
		item := queue[0]
		queue = queue[1:]

		body, status, err := c.fetch(ctx, item.url)
		if err != nil {
			zap.L().Warn("page fetch failed",
				zap.String("url", item.url),
				zap.Error(err))
			continue
		}

		pages = append(pages, Page{
			URL:        item.url,
			Title:      extractTitle(body),
			Text:       stripHTML(string(body)),
			Depth:      item.depth,
			StatusCode: status,
		})

		if item.depth >= c.opts.MaxDepth {
			continue
		}
		for _, link := range extractLinks(body, start) {
			if _, seen := visited[link]; seen {
				continue
			}
			visited[link] = struct{}{}
			queue = append(queue, queued{url: link, depth: item.depth + 1})
		}
	}

	if len(pages) == 0 {
		return nil, eris.Errorf("scrape: no pages fetched from %s", startURL)
	}
	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, targetURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; OutreachBot/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, eris.Errorf("scrape: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "scrape: read body")
	}
	return body, resp.StatusCode, nil
}

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	hrefRe  = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"'#]+)["']`)
)

func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// extractLinks resolves hrefs against base and keeps only same-host
// http(s) links.
func extractLinks(body []byte, base *url.URL) []string {
	var links []string
	for _, m := range hrefRe.FindAllSubmatch(body, -1) {
		ref, err := url.Parse(strings.TrimSpace(string(m[1])))
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			continue
		}
		resolved.Fragment = ""
		links = append(links, resolved.String())
	}
	return links
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes
// entities, and collapses whitespace.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

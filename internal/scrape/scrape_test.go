package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlFollowsSameHostLinks(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Home</title></head><body>
			<a href="/contact">Contact</a>
			<a href="%s/about">About</a>
			<a href="https://elsewhere.example/other">Other</a>
			<a href="mailto:owner@x.com">Mail</a>
		</body></html>`, srv.URL)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><title>Contact</title><body>owner@joesgym.com <a href="/deep">deeper</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><title>About</title><body>about us</body></html>`)
	})
	mux.HandleFunc("/deep", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><title>Deep</title><body>too deep</body></html>`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(Options{MaxDepth: 1, MaxPages: 10})
	pages, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	// Root plus the two same-host depth-1 links; /deep is past MaxDepth
	// and the off-host link is never followed.
	require.Len(t, pages, 3)
	assert.Equal(t, "Home", pages[0].Title)
	assert.Equal(t, 0, pages[0].Depth)
	assert.Contains(t, pages[1].Text, "owner@joesgym.com")
}

func TestCrawlMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>page</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(Options{MaxDepth: 2, MaxPages: 2})
	pages, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestCrawlSkipsFailedPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/gone">gone</a><a href="/ok">ok</a>root</body></html>`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>fine</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(Options{MaxDepth: 1, MaxPages: 10})
	pages, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[1].Text, "fine")
}

func TestCrawlInvalidURL(t *testing.T) {
	c := NewCrawler(Options{})
	_, err := c.Crawl(context.Background(), "::not a url")
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><style>body{}</style><script>var x;</script></head>
		<body><nav>menu</nav><h1>Joe&#39;s Gym</h1><p>Best &amp; cheapest</p><footer>foot</footer></body></html>`
	text := stripHTML(html)
	assert.Contains(t, text, "Joe's Gym")
	assert.Contains(t, text, "Best & cheapest")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "menu")
	assert.NotContains(t, text, "foot")
}

func TestExtractLinksResolvesRelative(t *testing.T) {
	base, _ := url.Parse("https://x.com/dir/page")
	body := []byte(`<a href="../up">u</a><a href="sub">s</a><a href="https://other.com/">o</a>`)
	links := extractLinks(body, base)
	assert.Equal(t, []string{"https://x.com/up", "https://x.com/dir/sub"}, links)
}

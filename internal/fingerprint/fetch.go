package fingerprint

import (
	"context"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// Fetcher retrieves site markup across URL variants and a fixed set of
// secondary pages.
type Fetcher struct {
	http         *http.Client
	extraHTTP    *http.Client
	extraPages   []string
	maxHTMLBytes int
}

// FetcherOptions tune timeouts and page limits.
type FetcherOptions struct {
	FetchTimeout     time.Duration
	ExtraPageTimeout time.Duration
	ExtraPages       []string
	MaxHTMLBytes     int
}

// FetchResult is the outcome of one site fetch.
type FetchResult struct {
	HTML      string
	ExtraHTML string
	FinalURL  string
	Headers   http.Header
}

// NewFetcher creates a Fetcher. Zero option fields fall back to defaults.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.ExtraPageTimeout == 0 {
		opts.ExtraPageTimeout = 5 * time.Second
	}
	if len(opts.ExtraPages) == 0 {
		opts.ExtraPages = []string{"/contato", "/sobre", "/quem-somos", "/contact", "/about", "/fale-conosco"}
	}
	if opts.MaxHTMLBytes == 0 {
		opts.MaxHTMLBytes = 500_000
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 4,
	}

	return &Fetcher{
		http:         &http.Client{Timeout: opts.FetchTimeout, Transport: transport},
		extraHTTP:    &http.Client{Timeout: opts.ExtraPageTimeout, Transport: transport},
		extraPages:   opts.ExtraPages,
		maxHTMLBytes: opts.MaxHTMLBytes,
	}
}

// urlVariants returns the candidate URLs tried in order for a bare domain.
// An input that already carries a scheme is tried as-is only.
func urlVariants(domain string) []string {
	if strings.HasPrefix(domain, "http") {
		return []string{domain}
	}
	return []string{
		"https://" + domain,
		"https://www." + domain,
		"http://" + domain,
	}
}

func browserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Referer", "https://www.google.com/")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// Fetch tries each URL variant until one returns 200. A nil result with nil
// error means the site is inaccessible on every variant.
func (f *Fetcher) Fetch(ctx context.Context, domain string) (*FetchResult, error) {
	for _, u := range urlVariants(domain) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		req.Header = browserHeaders()

		resp, err := f.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxHTMLBytes)))
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return &FetchResult{
				HTML:     string(body),
				FinalURL: resp.Request.URL.String(),
				Headers:  resp.Header,
			}, nil
		}
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotAcceptable {
			zap.L().Debug("fetch blocked by waf", zap.String("url", u), zap.Int("status", resp.StatusCode))
		}
	}
	return nil, nil
}

// FetchExtraPages retrieves the configured secondary pages concurrently and
// concatenates whatever came back. Individual page failures are ignored.
func (f *Fetcher) FetchExtraPages(ctx context.Context, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	results := make([]string, len(f.extraPages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, page := range f.extraPages {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, base+page, nil)
			if err != nil {
				return nil
			}
			req.Header = browserHeaders()

			resp, err := f.extraHTTP.Do(req)
			if err != nil {
				return nil
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return nil
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxHTMLBytes)))
			results[i] = "\n<!-- PAGE: " + page + " -->\n" + string(body)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(r)
	}
	return sb.String()
}

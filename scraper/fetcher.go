package scraper

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-goodreads/config"
)

// FetchResult is the outcome of a single page request.
type FetchResult struct {
	Body       string
	StatusCode int
	OK         bool
	Err        error
}

// Empty reports whether there is nothing to extract.
func (r FetchResult) Empty() bool {
	return !r.OK || r.Body == ""
}

// Fetcher performs one blocking GET per call through a colly collector.
type Fetcher struct {
	cfg       *config.Config
	transport http.RoundTripper
	metrics   *Metrics
}

// NewFetcher builds a fetcher using the configured user agent and timeout.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		metrics: metrics,
	}
}

// newCollector returns a fresh collector so no visited-URL state carries
// over between calls.
func (f *Fetcher) newCollector() *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(f.transport)
	collector.SetRequestTimeout(f.cfg.Timeout)
	return collector
}

// Fetch GETs target. Network failures and non-2xx responses are logged and
// reported through an empty result; they never surface as a panic or a
// second return value.
func (f *Fetcher) Fetch(target string) FetchResult {
	var result FetchResult
	collector := f.newCollector()

	collector.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		if !isSuccessStatus(r.StatusCode) {
			result.Err = classifyError(nil, r.StatusCode)
			return
		}
		result.Body = string(r.Body)
		result.OK = true
	})

	start := time.Now()
	if err := collector.Visit(target); err != nil {
		result = FetchResult{Err: classifyError(err, result.StatusCode)}
	}
	elapsed := time.Since(start)

	if result.Err != nil {
		category := errorTypeLabel(result.Err)
		f.metrics.ObserveRequest("page", "error", elapsed)
		f.metrics.IncError(category)
		slog.Error("error fetching page",
			slog.String("url", target),
			slog.Int("status", result.StatusCode),
			slog.String("category", category),
			slog.Any("error", result.Err),
		)
		return result
	}

	f.metrics.ObserveRequest("page", "ok", elapsed)
	slog.Debug("page fetched",
		slog.String("url", target),
		slog.Int("status", result.StatusCode),
		slog.Int("bytes", len(result.Body)),
		slog.Duration("elapsed", elapsed),
	)
	return result
}

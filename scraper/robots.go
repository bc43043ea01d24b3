package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-goodreads/config"
)

const robotsTxtPath = "/robots.txt"

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024

// RobotsChecker decides whether a target page may be scraped. It matches
// two literal Disallow lines against the robots.txt body; user-agent groups,
// wildcards and crawl-delay are not interpreted.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	metrics   *Metrics
}

// NewRobotsChecker builds a checker with the configured robots timeout.
func NewRobotsChecker(cfg *config.Config, metrics *Metrics) *RobotsChecker {
	return &RobotsChecker{
		client:    &http.Client{Timeout: cfg.RobotsTimeout},
		userAgent: cfg.UserAgent,
		metrics:   metrics,
	}
}

// RobotsURL returns scheme://host/robots.txt for target.
func RobotsURL(target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("robots: parse url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("robots: empty host in url %q", target)
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + parsed.Host + robotsTxtPath, nil
}

// disallowPatterns returns the lines that block target: the site root and
// the target's own path.
func disallowPatterns(target string) []string {
	patterns := []string{"Disallow: /"}
	if parsed, err := url.Parse(target); err == nil && parsed.Path != "" && parsed.Path != "/" {
		patterns = append(patterns, "Disallow: "+parsed.Path)
	}
	return patterns
}

// Allowed reports whether target may be scraped. It fails open: when
// robots.txt cannot be fetched or answers with anything but 200 the target
// is treated as allowed.
func (r *RobotsChecker) Allowed(ctx context.Context, target string) bool {
	robotsURL, err := RobotsURL(target)
	if err != nil {
		slog.Warn("cannot derive robots.txt url, assuming allowed", slog.Any("error", err))
		return true
	}

	start := time.Now()
	body, statusCode, err := r.fetch(ctx, robotsURL)
	if err != nil {
		classified := classifyError(err, 0)
		r.metrics.ObserveRequest("robots", "error", time.Since(start))
		r.metrics.IncError(errorTypeLabel(classified))
		slog.Warn("error checking robots.txt, assuming allowed",
			slog.String("url", robotsURL),
			slog.Any("error", classified),
		)
		return true
	}

	if statusCode != http.StatusOK {
		r.metrics.ObserveRequest("robots", "bad_status", time.Since(start))
		slog.Warn("robots.txt unavailable, assuming allowed",
			slog.String("url", robotsURL),
			slog.Int("status", statusCode),
		)
		return true
	}
	r.metrics.ObserveRequest("robots", "ok", time.Since(start))

	text := string(body)
	for _, pattern := range disallowPatterns(target) {
		if strings.Contains(text, pattern) {
			slog.Warn("scraping may be restricted by robots.txt",
				slog.String("url", robotsURL),
				slog.String("rule", pattern),
			)
			return false
		}
	}
	return true
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (body []byte, statusCode int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

package scraper

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/go-scrape-goodreads/config"
)

const (
	testTarget    = "http://example.test/book/popular_by_date"
	testRobotsURL = "http://example.test/robots.txt"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestScraper(t *testing.T, transport *httpmock.MockTransport) *Scraper {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.TargetURL = testTarget
	cfg.OutputDir = t.TempDir()
	cfg.Timeout = time.Second
	cfg.RobotsTimeout = time.Second

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.robots.client.Transport = transport
	s.fetcher.transport = transport
	s.now = func() time.Time { return fixedNow }
	return s
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

const permissiveRobots = "User-agent: *\nDisallow:\n"

func buildListPage(withRating ...bool) string {
	var builder strings.Builder
	builder.WriteString("<html><body><table class=\"tableList\">")
	for i, rated := range withRating {
		id := i + 1
		builder.WriteString("<tr itemscope itemtype=\"http://schema.org/Book\"><td>")
		fmt.Fprintf(&builder, "<a class=\"bookTitle\" href=\"/book/show/%d\"><span itemprop=\"name\">Book %d</span></a>", id, id)
		fmt.Fprintf(&builder, "<a class=\"authorName\" href=\"/author/show/%d\"><span itemprop=\"name\">Author %d</span></a>", id, id)
		if rated {
			fmt.Fprintf(&builder, "<span itemprop=\"ratingValue\">4.%d0</span>", id)
		}
		fmt.Fprintf(&builder, "<span itemprop=\"datePublished\">20%02d</span>", id)
		builder.WriteString("</td></tr>")
	}
	builder.WriteString("</table></body></html>")
	return builder.String()
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func assertNoOutput(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no output files, found %d", len(entries))
	}
}

func TestRunWritesCSV(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testRobotsURL, httpmock.NewStringResponder(200, permissiveRobots))
	transport.RegisterResponder("GET", testTarget, htmlResponder(buildListPage(true, false, true)))

	s := newTestScraper(t, transport)
	result := s.Run(context.Background())

	wantPath := filepath.Join(s.cfg.OutputDir, "books_data_20261017.csv")
	if result.OutputFile != wantPath {
		t.Fatalf("output file = %q, want %q", result.OutputFile, wantPath)
	}
	if !result.Permitted || !result.Fetched {
		t.Fatalf("expected permitted and fetched, got %+v", result)
	}
	if result.WrittenCount != 3 || result.EntityCount != 3 {
		t.Fatalf("written=%d entities=%d, want 3/3", result.WrittenCount, result.EntityCount)
	}

	want := [][]string{
		{"title", "author", "rating", "publication_date"},
		{"Book 1", "Author 1", "4.10", "2001"},
		{"Book 2", "Author 2", "N/A", "2002"},
		{"Book 3", "Author 3", "4.30", "2003"},
	}
	if diff := cmp.Diff(want, readCSV(t, wantPath)); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}

	if got := testutil.ToFloat64(s.Metrics.RecordsWrittenTotal); got != 3 {
		t.Fatalf("records written metric = %v, want 3", got)
	}
	if got := testutil.ToFloat64(s.Metrics.RequestsTotal.WithLabelValues("page", "ok")); got != 1 {
		t.Fatalf("page ok requests = %v, want 1", got)
	}
}

func TestRunRespectsMaxRecords(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testRobotsURL, httpmock.NewStringResponder(200, permissiveRobots))
	transport.RegisterResponder("GET", testTarget, htmlResponder(buildListPage(true, true, true, true, true)))

	s := newTestScraper(t, transport)
	s.cfg.MaxRecords = 2
	result := s.Run(context.Background())

	if len(result.Books) != 2 || result.WrittenCount != 2 {
		t.Fatalf("books=%d written=%d, want 2/2", len(result.Books), result.WrittenCount)
	}
	if result.EntityCount != 5 {
		t.Fatalf("entities=%d, want 5", result.EntityCount)
	}
}

func TestRunRobotsDisallowed(t *testing.T) {
	tests := []struct {
		name   string
		robots string
	}{
		{name: "root disallowed", robots: "User-agent: *\nDisallow: /\n"},
		{name: "endpoint disallowed", robots: "User-agent: *\nDisallow: /book/popular_by_date\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", testRobotsURL, httpmock.NewStringResponder(200, tt.robots))
			transport.RegisterResponder("GET", testTarget, htmlResponder(buildListPage(true)))

			s := newTestScraper(t, transport)
			result := s.Run(context.Background())

			if result.Permitted {
				t.Fatalf("expected run to be blocked")
			}
			if len(result.Books) != 0 {
				t.Fatalf("books=%d, want 0", len(result.Books))
			}
			if calls := transport.GetCallCountInfo()["GET "+testTarget]; calls != 0 {
				t.Fatalf("target fetched %d times, want 0", calls)
			}
			assertNoOutput(t, s.cfg.OutputDir)
		})
	}
}

func TestRunRobotsFailOpen(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{
			name:      "connection refused",
			responder: httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}),
		},
		{
			name:      "timeout",
			responder: httpmock.NewErrorResponder(context.DeadlineExceeded),
		},
		{
			name:      "not found",
			responder: httpmock.NewStringResponder(http.StatusNotFound, "Disallow: /"),
		},
		{
			name:      "server error",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, ""),
		},
		{
			name:      "partial content",
			responder: httpmock.NewStringResponder(http.StatusPartialContent, "User-agent: *\nDisallow: /\n"),
		},
		{
			name:      "no content",
			responder: httpmock.NewStringResponder(http.StatusNoContent, "Disallow: /"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", testRobotsURL, tt.responder)
			transport.RegisterResponder("GET", testTarget, htmlResponder(buildListPage(true)))

			s := newTestScraper(t, transport)
			result := s.Run(context.Background())

			if !result.Permitted {
				t.Fatalf("expected fail-open permission")
			}
			if result.WrittenCount != 1 {
				t.Fatalf("written=%d, want 1", result.WrittenCount)
			}
		})
	}
}

func TestRunPageFailures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		expected  string
	}{
		{name: "rate limited", responder: httpmock.NewStringResponder(http.StatusTooManyRequests, ""), expected: "rate_limited"},
		{name: "forbidden", responder: httpmock.NewStringResponder(http.StatusForbidden, ""), expected: "forbidden"},
		{name: "not found", responder: httpmock.NewStringResponder(http.StatusNotFound, ""), expected: "not_found"},
		{name: "server error", responder: httpmock.NewStringResponder(http.StatusBadGateway, buildListPage(true)), expected: "bad_status"},
		{name: "connection", responder: httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}), expected: "connection"},
		{name: "timeout", responder: httpmock.NewErrorResponder(context.DeadlineExceeded), expected: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", testRobotsURL, httpmock.NewStringResponder(200, permissiveRobots))
			transport.RegisterResponder("GET", testTarget, tt.responder)

			s := newTestScraper(t, transport)
			result := s.Run(context.Background())

			if result.Fetched {
				t.Fatalf("expected fetch failure")
			}
			if got := result.ErrorsByType[tt.expected]; got != 1 {
				t.Fatalf("errors by type = %v, want %q", result.ErrorsByType, tt.expected)
			}
			if got := testutil.ToFloat64(s.Metrics.ErrorsTotal.WithLabelValues(tt.expected)); got != 1 {
				t.Fatalf("error metric %q = %v, want 1", tt.expected, got)
			}
			assertNoOutput(t, s.cfg.OutputDir)
		})
	}
}

func TestRunNoEntities(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testRobotsURL, httpmock.NewStringResponder(200, permissiveRobots))
	transport.RegisterResponder("GET", testTarget, htmlResponder("<html><body><div>redesigned</div></body></html>"))

	s := newTestScraper(t, transport)
	result := s.Run(context.Background())

	if !result.Fetched {
		t.Fatalf("page should have been fetched")
	}
	if len(result.Books) != 0 || result.OutputFile != "" {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.ErrorsByType["structure_mismatch"] != 1 {
		t.Fatalf("expected structure_mismatch, got %v", result.ErrorsByType)
	}
	assertNoOutput(t, s.cfg.OutputDir)
}

func TestRunIsIdempotent(t *testing.T) {
	page := buildListPage(true, false, true)
	var outputs [][]byte

	for i := 0; i < 2; i++ {
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder("GET", testRobotsURL, httpmock.NewStringResponder(200, permissiveRobots))
		transport.RegisterResponder("GET", testTarget, htmlResponder(page))

		s := newTestScraper(t, transport)
		result := s.Run(context.Background())
		data, err := os.ReadFile(result.OutputFile)
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Fatalf("outputs differ:\n%s\n---\n%s", outputs[0], outputs[1])
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	cfg := config.DefaultConfig()
	transport := httpmock.NewMockTransport()
	var gotUA string
	transport.RegisterResponder("GET", testTarget, func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		return httpmock.NewStringResponse(200, "<html></html>"), nil
	})

	f := NewFetcher(cfg, NewMetrics())
	f.transport = transport

	result := f.Fetch(testTarget)
	if !result.OK || result.Empty() {
		t.Fatalf("expected successful fetch, got %+v", result)
	}
	if gotUA != cfg.UserAgent {
		t.Fatalf("user agent = %q, want %q", gotUA, cfg.UserAgent)
	}
}

func TestFetchCanRepeat(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testTarget, httpmock.NewStringResponder(200, "<html><body>ok</body></html>"))

	f := NewFetcher(config.DefaultConfig(), nil)
	f.transport = transport

	for i := 0; i < 2; i++ {
		if result := f.Fetch(testTarget); !result.OK {
			t.Fatalf("fetch %d failed: %v", i, result.Err)
		}
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls=%d, want 2", got)
	}
}

func TestRobotsURL(t *testing.T) {
	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{target: "https://www.goodreads.com/book/popular_by_date", want: "https://www.goodreads.com/robots.txt"},
		{target: "http://example.test:8080/a/b?c=d", want: "http://example.test:8080/robots.txt"},
		{target: "//example.test/list", want: "https://example.test/robots.txt"},
		{target: "/relative/only", wantErr: true},
		{target: "http://%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := RobotsURL(tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RobotsURL(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("RobotsURL(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestDisallowPatterns(t *testing.T) {
	if diff := cmp.Diff([]string{"Disallow: /", "Disallow: /book/popular_by_date"}, disallowPatterns(testTarget)); diff != "" {
		t.Fatalf("patterns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Disallow: /"}, disallowPatterns("http://example.test/")); diff != "" {
		t.Fatalf("patterns mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "success status", err: nil, statusCode: http.StatusOK, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusServiceUnavailable, expected: "bad_status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestMetricsWriteFile(t *testing.T) {
	m := NewMetrics()
	m.AddExtracted(3, 1)
	m.AddWritten(3)
	m.MarkFinished(fixedNow)

	path := filepath.Join(t.TempDir(), "scraper.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("write metrics: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{"scraper_records_extracted_total 3", "scraper_entities_skipped_total 1", "scraper_records_written_total 3"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("metrics file missing %q:\n%s", want, data)
		}
	}
}

// Package scraper runs one scrape of the listing page: robots check, fetch,
// extraction and persistence, in that order.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-goodreads/config"
	"github.com/aluiziolira/go-scrape-goodreads/models"
	"github.com/aluiziolira/go-scrape-goodreads/parser"
	"github.com/aluiziolira/go-scrape-goodreads/pipeline"
)

// Scraper wires the permission check, fetcher, extractor and pipeline
// together. It keeps no state between runs.
type Scraper struct {
	cfg       *config.Config
	robots    *RobotsChecker
	fetcher   *Fetcher
	extractor *parser.Extractor
	pipeline  *pipeline.Pipeline
	Metrics   *Metrics

	now func() time.Time
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	p, err := pipeline.NewPipeline(cfg.OutputFormat)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	metrics := NewMetrics()
	return &Scraper{
		cfg:       cfg,
		robots:    NewRobotsChecker(cfg, metrics),
		fetcher:   NewFetcher(cfg, metrics),
		extractor: parser.NewExtractor(),
		pipeline:  p,
		Metrics:   metrics,
		now:       time.Now,
	}, nil
}

// Run performs a single scrape. Every failure is logged and reflected in the
// result; a disallowed target, a failed fetch or a page without books all
// produce a result with no books and no output file.
func (s *Scraper) Run(ctx context.Context) *models.ScrapeResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ScrapeResult{
		StartTime:    s.now(),
		ErrorsByType: make(map[string]int),
	}
	defer func() {
		result.EndTime = s.now()
		s.Metrics.MarkFinished(result.EndTime)
	}()

	if !s.robots.Allowed(ctx, s.cfg.TargetURL) {
		slog.Error("scraping blocked by robots.txt", slog.String("url", s.cfg.TargetURL))
		return result
	}
	result.Permitted = true

	page := s.fetcher.Fetch(s.cfg.TargetURL)
	if page.Err != nil {
		result.ErrorsByType[errorTypeLabel(page.Err)]++
	}
	if page.Empty() {
		return result
	}
	result.Fetched = true

	extraction := s.extractor.Extract(page.Body, s.cfg.MaxRecords)
	result.Books = extraction.Books
	result.EntityCount = extraction.Matched
	result.SkippedCount = extraction.Skipped
	s.Metrics.AddExtracted(len(extraction.Books), extraction.Skipped)
	if extraction.Matched == 0 {
		result.ErrorsByType["structure_mismatch"]++
	}
	if extraction.Skipped > 0 {
		result.ErrorsByType["entity"] += extraction.Skipped
	}

	if len(result.Books) == 0 {
		slog.Warn("no data to save")
		return result
	}

	path := s.cfg.OutputPath(result.StartTime)
	stats, err := s.pipeline.Save(path, result.Books)
	for kind, n := range stats.ValidationErrors {
		result.ErrorsByType[kind] += n
	}
	if err != nil {
		result.ErrorsByType["persistence"]++
		s.Metrics.IncError("persistence")
		slog.Error("error saving output", slog.String("path", path), slog.Any("error", err))
		return result
	}
	if stats.Written > 0 {
		result.OutputFile = path
		result.WrittenCount = stats.Written
		s.Metrics.AddWritten(stats.Written)
		slog.Info("data saved", slog.String("path", path), slog.Int("rows", stats.Written))
	}
	return result
}

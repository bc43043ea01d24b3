// Package pipeline persists extracted books to CSV and JSON Lines files.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-goodreads/models"
	"github.com/aluiziolira/go-scrape-goodreads/parser"
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(books []models.Book) error
	Close() error
	Validate() error
}

// OpenFunc creates the writer for a destination path.
type OpenFunc func(path string) (OutputWriter, error)

// NewWriter returns an OpenFunc for format: csv, json or dual. Dual output
// writes the CSV at path and a .jsonl sibling next to it.
func NewWriter(format string) (OpenFunc, error) {
	switch format {
	case "csv":
		return func(path string) (OutputWriter, error) { return NewCSVWriter(path) }, nil
	case "json":
		return func(path string) (OutputWriter, error) { return NewJSONWriter(path) }, nil
	case "dual":
		return func(path string) (OutputWriter, error) { return NewDualWriter(path, JSONSibling(path)) }, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Stats counts what the pipeline did with the records it was handed.
type Stats struct {
	Written          int
	ValidationErrors map[string]int
}

// Pipeline hands records to an output writer. Each Save
// opens and closes its own destination; nothing is kept between calls.
type Pipeline struct {
	open OpenFunc
}

// NewPipeline builds a pipeline for the given output format.
func NewPipeline(format string) (*Pipeline, error) {
	open, err := NewWriter(format)
	if err != nil {
		return nil, err
	}
	return &Pipeline{open: open}, nil
}

// NewPipelineWithOpener builds a pipeline around a custom writer factory.
func NewPipelineWithOpener(open OpenFunc) *Pipeline {
	return &Pipeline{open: open}
}

// Save writes one row per book to path in input order. An empty input writes
// nothing. Records with blank fields are written unchanged and counted as
// incomplete. The destination is closed before Save returns, whatever the
// outcome.
func (p *Pipeline) Save(path string, books []models.Book) (stats Stats, err error) {
	stats.ValidationErrors = make(map[string]int)
	if len(books) == 0 {
		slog.Warn("no data to save")
		return stats, nil
	}

	for i := range books {
		if err := parser.ValidateBook(&books[i]); err != nil {
			stats.ValidationErrors["incomplete_record"]++
			slog.Debug("incomplete record", slog.Int("index", i), slog.Any("error", err))
		}
	}

	writer, err := p.open(path)
	if err != nil {
		return stats, fmt.Errorf("open output: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			stats.Written = 0
			err = fmt.Errorf("close output: %w", closeErr)
		}
	}()

	if err := writer.Write(books); err != nil {
		return stats, fmt.Errorf("write output: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return stats, fmt.Errorf("validate output: %w", err)
	}

	stats.Written = len(books)
	return stats, nil
}

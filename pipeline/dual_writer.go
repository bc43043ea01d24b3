package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-goodreads/models"
)

// DualWriter writes the same records to a CSV file and a JSON Lines file.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
}

// NewDualWriter opens both destinations. The CSV file is closed again when
// the JSON file cannot be created.
func NewDualWriter(csvPath, jsonPath string) (*DualWriter, error) {
	csvOut, err := NewCSVWriter(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv output: %w", err)
	}

	jsonOut, err := NewJSONWriter(jsonPath)
	if err != nil {
		_ = csvOut.Close()
		return nil, fmt.Errorf("open json output: %w", err)
	}

	return &DualWriter{csv: csvOut, json: jsonOut}, nil
}

// JSONSibling returns the JSON Lines path written next to a CSV file.
func JSONSibling(csvPath string) string {
	return strings.TrimSuffix(csvPath, ".csv") + ".jsonl"
}

// Write appends books to the CSV output, then to the JSON output.
func (dw *DualWriter) Write(books []models.Book) error {
	if err := dw.csv.Write(books); err != nil {
		return err
	}
	return dw.json.Write(books)
}

// Close closes both files and reports every failure.
func (dw *DualWriter) Close() error {
	return errors.Join(dw.csv.Close(), dw.json.Close())
}

// Validate checks that both files have content.
func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csv.Validate(), dw.json.Validate())
}

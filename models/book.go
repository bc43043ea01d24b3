// Package models defines data structures for the scraper.
package models

import "time"

// NotAvailable is the placeholder stored in a field whose node was not found.
const NotAvailable = "N/A"

// Header lists the output columns in the order they are written.
var Header = []string{"title", "author", "rating", "publication_date"}

// Book represents one book listing extracted from the page.
type Book struct {
	Title           string `csv:"title" json:"title"`
	Author          string `csv:"author" json:"author"`
	Rating          string `csv:"rating" json:"rating"`
	PublicationDate string `csv:"publication_date" json:"publication_date"`
}

// Row renders the book in Header order.
func (b Book) Row() []string {
	return []string{b.Title, b.Author, b.Rating, b.PublicationDate}
}

// Outcome is the result of processing a single entity: either a Book or the
// reason it was skipped.
type Outcome struct {
	Index  int
	Book   Book
	Reason error
}

// Skipped reports whether the entity produced no record.
func (o Outcome) Skipped() bool {
	return o.Reason != nil
}

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	Books        []Book
	StartTime    time.Time
	EndTime      time.Time
	Permitted    bool
	Fetched      bool
	EntityCount  int
	SkippedCount int
	WrittenCount int
	OutputFile   string
	ErrorsByType map[string]int
}

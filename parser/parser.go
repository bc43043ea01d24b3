package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-goodreads/models"
)

// ValidateBook reports the first blank column of the record. Missing nodes
// carry models.NotAvailable, so only present-but-empty nodes trip it.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.Author) == "" {
		return fmt.Errorf("book missing author for %s", b.Title)
	}
	if strings.TrimSpace(b.Rating) == "" {
		return fmt.Errorf("book missing rating for %s", b.Title)
	}
	if strings.TrimSpace(b.PublicationDate) == "" {
		return fmt.Errorf("book missing publication date for %s", b.Title)
	}
	return nil
}

// NormalizeText trims leading and trailing whitespace. Whitespace inside the
// text is kept.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// Package parser turns a listing page into book records.
package parser

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-goodreads/models"
)

// EntitySelector matches one table row per book on the listing.
const EntitySelector = "tr[itemscope]"

// Rule maps one output field to the node it is read from.
type Rule struct {
	Field    string
	Selector string
	Default  string
	Text     func(*goquery.Selection) string
}

// DefaultRules are the field rules for the listing page.
var DefaultRules = []Rule{
	{Field: "title", Selector: "a.bookTitle", Default: models.NotAvailable, Text: TrimmedText},
	{Field: "author", Selector: "a.authorName", Default: models.NotAvailable, Text: TrimmedText},
	{Field: "rating", Selector: `span[itemprop="ratingValue"]`, Default: models.NotAvailable, Text: TrimmedText},
	{Field: "publication_date", Selector: `span[itemprop="datePublished"]`, Default: models.NotAvailable, Text: TrimmedText},
}

// TrimmedText returns the node's text with every text fragment trimmed and
// the fragments joined without a separator.
func TrimmedText(s *goquery.Selection) string {
	var builder strings.Builder
	appendFragments(&builder, s.Contents())
	return builder.String()
}

func appendFragments(builder *strings.Builder, nodes *goquery.Selection) {
	nodes.Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			builder.WriteString(NormalizeText(node.Text()))
			return
		}
		appendFragments(builder, node.Contents())
	})
}

// lookup returns the rule's value for entity and whether the node was found.
// A node with no text yields an empty value.
func (r Rule) lookup(entity *goquery.Selection) (string, bool) {
	node := entity.Find(r.Selector).First()
	if node.Length() == 0 {
		return "", false
	}
	return r.Text(node), true
}

func (r Rule) apply(entity *goquery.Selection) string {
	if value, ok := r.lookup(entity); ok {
		return value
	}
	return r.Default
}

// Extractor applies a fixed rule set to every entity on a page.
type Extractor struct {
	entitySelector string
	rules          []Rule
}

// NewExtractor returns an extractor for the listing page layout.
func NewExtractor() *Extractor {
	return newExtractor(EntitySelector, DefaultRules)
}

func newExtractor(entitySelector string, rules []Rule) *Extractor {
	return &Extractor{
		entitySelector: entitySelector,
		rules:          rules,
	}
}

// Page is a parsed document with its entities located.
type Page struct {
	entities *goquery.Selection
	rules    []Rule
}

// Parse reads markup and locates the entities on it.
func (e *Extractor) Parse(markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{
		entities: doc.Find(e.entitySelector),
		rules:    e.rules,
	}, nil
}

// Len reports how many entities matched the entity selector.
func (p *Page) Len() int {
	return p.entities.Length()
}

// Outcomes yields one outcome for each of the first limit entities, in
// document order. Entities are processed only as the sequence is consumed.
func (p *Page) Outcomes(limit int) iter.Seq[models.Outcome] {
	return func(yield func(models.Outcome) bool) {
		n := min(limit, p.entities.Length())
		for i := 0; i < n; i++ {
			if !yield(p.outcome(i, p.entities.Eq(i))) {
				return
			}
		}
	}
}

func (p *Page) outcome(index int, entity *goquery.Selection) (out models.Outcome) {
	out.Index = index
	defer func() {
		if r := recover(); r != nil {
			out.Book = models.Book{}
			out.Reason = fmt.Errorf("entity %d: %v", index, r)
		}
	}()

	book := models.Book{
		Title:           models.NotAvailable,
		Author:          models.NotAvailable,
		Rating:          models.NotAvailable,
		PublicationDate: models.NotAvailable,
	}
	for _, rule := range p.rules {
		if err := setField(&book, rule.Field, rule.apply(entity)); err != nil {
			out.Reason = fmt.Errorf("entity %d: %w", index, err)
			return out
		}
	}
	out.Book = book
	return out
}

func setField(b *models.Book, field, value string) error {
	switch field {
	case "title":
		b.Title = value
	case "author":
		b.Author = value
	case "rating":
		b.Rating = value
	case "publication_date":
		b.PublicationDate = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// Extraction is the collected result of extracting one page.
type Extraction struct {
	Books   []models.Book
	Matched int
	Skipped int
}

// Extract parses markup and collects up to limit books. Nothing here fails
// the caller: parse errors, a page without entities and broken entities are
// logged and reflected in the returned counts.
func (e *Extractor) Extract(markup string, limit int) Extraction {
	var result Extraction
	if limit <= 0 {
		return result
	}

	page, err := e.Parse(markup)
	if err != nil {
		slog.Error("parsing page", slog.Any("error", err))
		return result
	}

	result.Matched = page.Len()
	if result.Matched == 0 {
		slog.Warn("no books found; check the entity selector or page structure",
			slog.String("selector", e.entitySelector),
		)
		return result
	}

	for outcome := range page.Outcomes(limit) {
		if outcome.Skipped() {
			result.Skipped++
			slog.Error("error processing book",
				slog.Int("index", outcome.Index),
				slog.Any("error", outcome.Reason),
			)
			continue
		}
		result.Books = append(result.Books, outcome.Book)
		slog.Info("scraped", slog.String("title", outcome.Book.Title))
	}

	slog.Info("extraction finished",
		slog.Int("books", len(result.Books)),
		slog.Int("matched", result.Matched),
		slog.Int("skipped", result.Skipped),
	)
	return result
}

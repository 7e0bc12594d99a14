package parser

import (
	"context"

	"campovivo/landworker/internal/listing"
)

// Parser is the contract every site parser implements.
type Parser interface {
	// FetchListings retrieves listings from the site's search pages
	FetchListings(ctx context.Context) ([]*listing.Listing, error)

	// Enrich fills missing fields from the listing's detail page, when the
	// site has a detail pass configured. No-op otherwise.
	Enrich(ctx context.Context, l *listing.Listing) error

	// GetName returns the parser's name for logging and identification
	GetName() string

	// GetSource returns the source tag written into produced listings
	GetSource() string

	// Close releases resources and flushes the error journal
	Close()
}

// IDExtractorFunc extracts a source-local listing ID from an advertisement URL.
// The second return is false when the URL carries no recognizable ID; the
// listing then falls back to its URL as identifier.
type IDExtractorFunc func(url string) (string, bool)

// EnrichFunc fills in detail-page fields on a listing in place.
type EnrichFunc func(ctx context.Context, p *SiteParser, l *listing.Listing) error

// Selectors contains the CSS selector chains for a site's search page.
// Each chain is tried in order; the first selector that matches wins.
// Site markup shifts often enough that a single selector is too brittle.
type Selectors struct {
	CardList   string
	Title      []string
	Link       []string
	Price      []string
	Location   []string
	Attributes []string
	Thumbnail  []string
}

// ParserConfig contains the configuration for one site parser.
type ParserConfig struct {
	URL        string
	BaseURL    string
	Source     string
	CacheKey   string
	BlockTime  int // seconds a rate-limited site stays blocked
	MaxPages   int
	UseBrowser bool

	// PageURL builds the search URL for a 1-indexed page number.
	PageURL func(page int) string

	Selectors   Selectors
	IDExtractor IDExtractorFunc
	Enricher    EnrichFunc
}

// Stats aggregates run-level counters for one parser.
type Stats struct {
	PagesProcessed int
	ListingsFound  int
	Errors         int
}

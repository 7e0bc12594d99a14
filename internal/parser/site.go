package parser

import (
	"context"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"

	"campovivo/landworker/internal/listing"
	"campovivo/landworker/internal/retry"
	"campovivo/landworker/logger"
	"campovivo/landworker/services/cache"
)

// SiteParser is a configuration-driven parser covering both plain-HTTP and
// browser-rendered sites. Per-site behavior lives entirely in ParserConfig;
// the extraction loop here is shared.
type SiteParser struct {
	BaseParser
	Selectors   Selectors
	MaxPages    int
	IDExtractor IDExtractorFunc

	pageURL   func(page int) string
	enricher  EnrichFunc
	fetchFunc func(ctx context.Context, url string) (io.Reader, error)
}

// Options carries the process-wide collaborators a site parser needs.
type Options struct {
	Cache       cache.CacheService
	Harness     *retry.Harness
	Browser     *BrowserFetcher
	DelayMin    time.Duration
	DelayMax    time.Duration
	ErrorLogDir string
}

// NewSiteParser creates a parser from its site configuration.
func NewSiteParser(cfg ParserConfig, opts Options) *SiteParser {
	p := &SiteParser{
		BaseParser: BaseParser{
			URL:         cfg.URL,
			BaseURL:     cfg.BaseURL,
			Source:      cfg.Source,
			CacheKey:    cfg.CacheKey,
			CacheSvc:    opts.Cache,
			BlockTime:   time.Duration(cfg.BlockTime) * time.Second,
			Harness:     opts.Harness,
			DelayMin:    opts.DelayMin,
			DelayMax:    opts.DelayMax,
			ErrorLogDir: opts.ErrorLogDir,
			log:         logger.ForParser(cfg.Source),
		},
		Selectors:   cfg.Selectors,
		MaxPages:    cfg.MaxPages,
		IDExtractor: cfg.IDExtractor,
		pageURL:     cfg.PageURL,
		enricher:    cfg.Enricher,
	}

	if cfg.UseBrowser && opts.Browser != nil {
		logger.Info("Using browser fetch for %s", cfg.Source)
		p.fetchFunc = func(ctx context.Context, url string) (io.Reader, error) {
			return p.fetchWithBrowser(ctx, opts.Browser, url)
		}
	} else {
		logger.Info("Using standard fetch for %s", cfg.Source)
		p.fetchFunc = p.fetchWithCache
	}

	return p
}

// GetName returns the parser's name for logging and identification.
func (p *SiteParser) GetName() string {
	return p.Source + "Parser"
}

// FetchListings walks the configured search pages and extracts listings.
// A page that fails after all retries is logged and skipped; the run
// continues with whatever the remaining pages yield.
func (p *SiteParser) FetchListings(ctx context.Context) ([]*listing.Listing, error) {
	maxPages := p.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	var all []*listing.Listing
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		url := p.URL
		if p.pageURL != nil {
			url = p.pageURL(page)
		}

		body, err := p.fetchFunc(ctx, url)
		if err != nil {
			p.addStats(0, 0, 1)
			p.log.Error().Err(err).Str("url", url).Msg("Failed to fetch search page")
			if page == 1 {
				// Nothing extracted yet; surface the failure.
				return nil, err
			}
			continue
		}

		doc, err := p.createDocument(body)
		if err != nil {
			p.addStats(0, 0, 1)
			p.log.Error().Err(err).Str("url", url).Msg("Failed to parse search page")
			continue
		}

		cards := doc.Find(p.Selectors.CardList)
		if cards.Length() == 0 {
			p.log.Warn().Str("url", url).Msg("No listing cards found, stopping pagination")
			p.addStats(1, 0, 0)
			break
		}

		pageListings := p.processCards(cards, p.processCard)
		all = append(all, pageListings...)
		p.addStats(1, len(pageListings), 0)

		p.log.Debug().
			Int("page", page).
			Int("listings", len(pageListings)).
			Msg("Processed search page")

		if page < maxPages {
			p.delay(ctx)
		}
	}

	p.logStats()
	return all, nil
}

// processCard extracts one listing from a search-result card. Cards without
// a link or title are skipped; absence there means the card is an ad slot or
// a layout artifact, not an advertisement.
func (p *SiteParser) processCard(s *goquery.Selection) *listing.Listing {
	link := p.extractLink(s)
	if link == "" {
		return nil
	}

	title := textFrom(s, p.Selectors.Title)
	if title == "" {
		return nil
	}

	l := &listing.Listing{
		URL:       link,
		Source:    p.Source,
		Title:     title,
		Location:  textFrom(s, p.Selectors.Location),
		CrawledAt: time.Now().UTC(),
		Status:    listing.StatusActive,
	}

	if p.IDExtractor != nil {
		if id, ok := p.IDExtractor(link); ok {
			l.ID = id
		}
	}

	if priceText := textFrom(s, p.Selectors.Price); priceText != "" {
		l.Price, l.PriceCurrency = ParsePrice(priceText)
	}

	if attrText := textFrom(s, p.Selectors.Attributes); attrText != "" {
		if area, unit := ParseArea(attrText); area > 0 {
			l.Area = area
			l.AreaUnit = unit
		}
	}
	// The title frequently carries the area when the attribute row does not.
	if l.Area == 0 {
		if area, unit := ParseArea(title); area > 0 {
			l.Area = area
			l.AreaUnit = unit
		}
	}

	if thumb, ok := firstMatch(s, p.Selectors.Thumbnail); ok {
		if src, exists := thumb.Attr("src"); exists && src != "" {
			l.Images = append(l.Images, src)
		} else if src, exists := thumb.Attr("data-src"); exists && src != "" {
			l.Images = append(l.Images, src)
		}
	}

	l.ComputePricePerSqm()
	return l
}

func (p *SiteParser) extractLink(s *goquery.Selection) string {
	for _, sel := range p.Selectors.Link {
		found := s.Find(sel)
		if found.Length() == 0 {
			// The card itself may be the anchor.
			if s.Is(sel) {
				found = s
			} else {
				continue
			}
		}
		if href, exists := found.First().Attr("href"); exists && href != "" {
			return p.ResolveURL(href)
		}
	}
	return ""
}

// Enrich runs the site's detail-page pass on the listing, when configured.
func (p *SiteParser) Enrich(ctx context.Context, l *listing.Listing) error {
	if p.enricher == nil {
		return nil
	}
	return p.enricher(ctx, p, l)
}

// FetchDocument fetches a page through the parser's fetch path and parses it.
// Used by detail-page enrichers.
func (p *SiteParser) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := p.fetchFunc(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.createDocument(body)
}

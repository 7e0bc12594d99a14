package parser

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"campovivo/landworker/helpers"
	"campovivo/landworker/internal/listing"
	"campovivo/landworker/internal/retry"
	"campovivo/landworker/logger"
	apperrors "campovivo/landworker/pkg/errors"
	"campovivo/landworker/services/cache"
)

// BaseParser provides the shared plumbing for all site parsers: rate-limit
// blocking through the cache service, retried fetches, document parsing, and
// run statistics.
type BaseParser struct {
	URL       string
	BaseURL   string
	Source    string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	Harness   *retry.Harness

	DelayMin    time.Duration
	DelayMax    time.Duration
	ErrorLogDir string

	log *logger.Logger

	statsMu sync.Mutex
	stats   Stats
}

// fetchWithCache fetches a URL with rate-limit blocking. A site that recently
// answered 429 is not contacted again until its block key expires.
func (p *BaseParser) fetchWithCache(ctx context.Context, url string) (io.Reader, error) {
	if p.CacheSvc != nil && p.CacheKey != "" {
		if _, err := p.CacheSvc.Get(p.CacheKey); err == nil {
			return nil, apperrors.NewRateLimit(p.Source, p.BlockTime)
		}
	}

	return retry.DoValue(ctx, p.Harness, "fetch "+url, func(ctx context.Context) (io.Reader, error) {
		body, err := helpers.FetchWithRandomHeaders(url)
		if err != nil {
			if errors.Is(err, helpers.ErrRateLimited) {
				if p.CacheSvc != nil && p.CacheKey != "" {
					p.CacheSvc.Set(p.CacheKey, []byte(strconv.Itoa(int(p.BlockTime/time.Second))), p.BlockTime)
				}
				return nil, apperrors.NewRateLimit(p.Source, p.BlockTime)
			}
			return nil, apperrors.NewNetwork(p.Source, "fetch failed", err)
		}
		return body, nil
	})
}

// createDocument creates a goquery document from a reader
func (p *BaseParser) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, apperrors.NewParsing(p.Source, "failed to parse HTML", err)
	}
	return doc, nil
}

// processCards processes listing cards in parallel using goroutines.
// Card order is not preserved; ordering guarantees live downstream in the
// duplicate filter, which iterates its input sequentially.
func (p *BaseParser) processCards(selections *goquery.Selection, processor func(*goquery.Selection) *listing.Listing) []*listing.Listing {
	resultChan := make(chan *listing.Listing, selections.Length())
	var wg sync.WaitGroup

	selections.Each(func(i int, s *goquery.Selection) {
		wg.Add(1)
		go func(s *goquery.Selection) {
			defer wg.Done()

			if l := processor(s); l != nil {
				resultChan <- l
			}
		}(s)
	})

	wg.Wait()
	close(resultChan)

	var listings []*listing.Listing
	for l := range resultChan {
		listings = append(listings, l)
	}

	return listings
}

// firstMatch walks a selector fallback chain and returns the first non-empty
// selection. Absence is an expected outcome, not an error: the boolean tells
// the caller whether anything matched.
func firstMatch(s *goquery.Selection, chain []string) (*goquery.Selection, bool) {
	for _, sel := range chain {
		found := s.Find(sel)
		if found.Length() > 0 {
			return found.First(), true
		}
	}
	return nil, false
}

// textFrom returns the trimmed text of the first selector in the chain that
// matches, or "" when none does.
func textFrom(s *goquery.Selection, chain []string) string {
	found, ok := firstMatch(s, chain)
	if !ok {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// ResolveURL resolves a possibly relative href against the site base URL.
func (p *BaseParser) ResolveURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(href, "/")
}

// delay sleeps a random interval between requests, with an occasional longer
// pause to look less mechanical.
func (p *BaseParser) delay(ctx context.Context) {
	span := p.DelayMax - p.DelayMin
	d := p.DelayMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if rand.Float64() < 0.1 {
		d += time.Duration(3+rand.Float64()*5) * time.Second
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (p *BaseParser) addStats(pages, found, errs int) {
	p.statsMu.Lock()
	p.stats.PagesProcessed += pages
	p.stats.ListingsFound += found
	p.stats.Errors += errs
	p.statsMu.Unlock()
}

// GetStats returns a snapshot of the parser's run counters.
func (p *BaseParser) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// GetSource returns the source tag written into produced listings.
func (p *BaseParser) GetSource() string {
	return p.Source
}

// Close flushes the error journal collected during the run.
func (p *BaseParser) Close() {
	if p.Harness == nil {
		return
	}
	if _, err := p.Harness.FlushJournal(p.ErrorLogDir, p.Source); err != nil {
		p.logOrDefault().Error().Err(err).Msg("Failed to flush error journal")
	}
}

func (p *BaseParser) logOrDefault() *logger.Logger {
	if p.log == nil {
		p.log = logger.ForParser(p.Source)
	}
	return p.log
}

func (p *BaseParser) logStats() {
	stats := p.GetStats()
	retries := 0
	if p.Harness != nil {
		retries = p.Harness.Retries()
	}
	p.logOrDefault().Info().
		Int("pages", stats.PagesProcessed).
		Int("listings", stats.ListingsFound).
		Int("errors", stats.Errors).
		Int("retries", retries).
		Msg("Parser run finished")
}

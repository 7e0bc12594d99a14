package parser

import (
	"fmt"
	"regexp"
)

var gallitoIDRe = regexp.MustCompile(`-(\d+)$`)

// NewGallitoParser creates a parser for gallito.com.uy fields-and-farms
// listings. The card itself is the anchor, so the link chain relies on the
// card-is-anchor fallback.
func NewGallitoParser(searchURL string, maxPages int, opts Options) *SiteParser {
	return NewSiteParser(ParserConfig{
		URL:       searchURL,
		BaseURL:   "https://www.gallito.com.uy",
		Source:    "Gallito",
		CacheKey:  "rate_limit_gallito",
		BlockTime: 300,
		MaxPages:  maxPages,
		PageURL: func(page int) string {
			return fmt.Sprintf("%s?pag=%d", searchURL, page)
		},
		Selectors: Selectors{
			CardList: `a[href*="-inmuebles-"]`,
			Title: []string{
				"h2",
				".titulo",
				"div.descripcion",
			},
			Link: []string{
				`a[href*="-inmuebles-"]`,
			},
			Price: []string{
				".precio",
				"span.moneda",
			},
			Location: []string{
				".ubicacion",
				"p.direccion",
			},
			Attributes: []string{
				".metrajes",
				".caracteristicas",
			},
			Thumbnail: []string{
				"img",
			},
		},
		IDExtractor: func(url string) (string, bool) {
			m := gallitoIDRe.FindStringSubmatch(url)
			if m == nil {
				return "", false
			}
			return "GA" + m[1], true
		},
	}, opts)
}

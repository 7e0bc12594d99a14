package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var infoCasasIDRe = regexp.MustCompile(`/(\d+)/?(?:\?.*)?$`)

// NewInfoCasasParser creates a parser for infocasas.com.uy rural land
// listings.
func NewInfoCasasParser(searchURL string, maxPages int, opts Options) *SiteParser {
	return NewSiteParser(ParserConfig{
		URL:       searchURL,
		BaseURL:   "https://www.infocasas.com.uy",
		Source:    "InfoCasas",
		CacheKey:  "rate_limit_infocasas",
		BlockTime: 300,
		MaxPages:  maxPages,
		PageURL: func(page int) string {
			if page <= 1 {
				return searchURL
			}
			return fmt.Sprintf("%s/pagina%d", strings.TrimRight(searchURL, "/"), page)
		},
		Selectors: Selectors{
			CardList: "div.listingCard, div.lc-item",
			Title: []string{
				"h2.lc-title",
				".lc-typologyTag",
				"a.lc-cardCover",
			},
			Link: []string{
				"a.lc-cardCover",
				"a.lc-data-link",
				"a[href*='/venta/']",
			},
			Price: []string{
				".lc-price",
				".main-price",
			},
			Location: []string{
				".lc-location",
			},
			Attributes: []string{
				".lc-details",
				".lc-typologyTag",
			},
			Thumbnail: []string{
				"img.lc-image",
			},
		},
		IDExtractor: func(url string) (string, bool) {
			m := infoCasasIDRe.FindStringSubmatch(url)
			if m == nil {
				return "", false
			}
			return "IC" + m[1], true
		},
	}, opts)
}

package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"campovivo/landworker/internal/listing"
)

const mercadoLibrePageSize = 48

var mluIDRe = regexp.MustCompile(`MLU-?(\d+)`)

// NewMercadoLibreParser creates a parser for mercadolibre.com.uy land
// listings. Search results are JS-rendered, so the browser fetch path is
// preferred when available.
func NewMercadoLibreParser(searchURL string, maxPages int, opts Options) *SiteParser {
	return NewSiteParser(ParserConfig{
		URL:        searchURL,
		BaseURL:    "https://www.mercadolibre.com.uy",
		Source:     "MercadoLibre",
		CacheKey:   "rate_limit_mercadolibre",
		BlockTime:  500,
		MaxPages:   maxPages,
		UseBrowser: true,
		PageURL: func(page int) string {
			if page <= 1 {
				return searchURL
			}
			offset := (page-1)*mercadoLibrePageSize + 1
			return fmt.Sprintf("%s_Desde_%d_NoIndex_True", strings.TrimRight(searchURL, "/"), offset)
		},
		Selectors: Selectors{
			CardList: "li.ui-search-layout__item, div.ui-search-result",
			Title: []string{
				"h2.ui-search-item__title",
				".ui-search-item__group--title h2",
				"a.ui-search-link",
			},
			Link: []string{
				"a.ui-search-link",
				"a.ui-search-result__content",
			},
			Price: []string{
				".ui-search-price__second-line",
				"span.price-tag-amount",
			},
			Location: []string{
				"span.ui-search-item__location-label",
				".ui-search-item__group--location span",
			},
			Attributes: []string{
				"li.ui-search-card-attributes__attribute",
				"span.ui-search-card-attributes__attribute",
			},
			Thumbnail: []string{
				"img.ui-search-result-image__element",
			},
		},
		IDExtractor: func(url string) (string, bool) {
			m := mluIDRe.FindStringSubmatch(url)
			if m == nil {
				return "", false
			}
			return "MLU" + m[1], true
		},
		Enricher: enrichMercadoLibre,
	}, opts)
}

// enrichMercadoLibre fills description, images, utilities and site-specific
// attributes from the advertisement's detail page.
func enrichMercadoLibre(ctx context.Context, p *SiteParser, l *listing.Listing) error {
	doc, err := p.FetchDocument(ctx, l.URL)
	if err != nil {
		return err
	}

	if desc := strings.TrimSpace(doc.Find(".ui-pdp-description__content").Text()); desc != "" {
		l.Description = desc
	}

	doc.Find("figure.ui-pdp-gallery__wrapper img, .ui-pdp-gallery img").Each(func(i int, s *goquery.Selection) {
		src, exists := s.Attr("data-zoom")
		if !exists {
			src, exists = s.Attr("src")
		}
		if exists && src != "" && !contains(l.Images, src) {
			l.Images = append(l.Images, src)
		}
	})

	// Technical specs table: row label in th, value in td.
	doc.Find(".andes-table__row").Each(func(i int, s *goquery.Selection) {
		key := strings.TrimSpace(s.Find("th").Text())
		value := strings.TrimSpace(s.Find("td").Text())
		if key == "" || value == "" {
			return
		}
		l.SetAttribute(key, value)

		lower := strings.ToLower(key + " " + value)
		switch {
		case strings.Contains(lower, "agua"):
			l.HasWater = boolPtr(true)
		case strings.Contains(lower, "luz"), strings.Contains(lower, "electricidad"):
			l.HasElectricity = boolPtr(true)
		case strings.Contains(lower, "internet"):
			l.HasInternet = boolPtr(true)
		}

		if l.Area == 0 && strings.Contains(strings.ToLower(key), "superficie") {
			if area, unit := ParseArea(value); area > 0 {
				l.Area = area
				l.AreaUnit = unit
			}
		}
	})

	if l.Location == "" {
		if loc := strings.TrimSpace(doc.Find(".ui-pdp-media__title").First().Text()); loc != "" {
			l.Location = loc
		}
	}

	l.ComputePricePerSqm()
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

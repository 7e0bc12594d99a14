package listing

import "time"

// Status describes the lifecycle state of an advertisement on its source site.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusUnknown Status = "unknown"
)

// Listing represents one scraped real-estate advertisement.
// A zero Price or Area means the field was not extracted.
type Listing struct {
	ID             string            `json:"id,omitempty"`
	URL            string            `json:"url"`
	Source         string            `json:"source"`
	Title          string            `json:"title,omitempty"`
	Description    string            `json:"description,omitempty"`
	Location       string            `json:"location,omitempty"`
	Price          int               `json:"price,omitempty"`
	PriceCurrency  string            `json:"price_currency,omitempty"`
	PricePerSqm    float64           `json:"price_per_sqm,omitempty"`
	Area           int               `json:"area,omitempty"`
	AreaUnit       string            `json:"area_unit,omitempty"`
	HasWater       *bool             `json:"has_water,omitempty"`
	HasElectricity *bool             `json:"has_electricity,omitempty"`
	HasInternet    *bool             `json:"has_internet,omitempty"`
	Zoning         string            `json:"zoning,omitempty"`
	Images         []string          `json:"images,omitempty"`
	CrawledAt      time.Time         `json:"crawled_at"`
	Status         Status            `json:"status,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	ContentHash    string            `json:"content_hash,omitempty"`
}

// Identifier returns the key used to track the listing at the notification
// boundary. The source-local ID is preferred; the URL is the fallback.
func (l *Listing) Identifier() string {
	if l.ID != "" {
		return l.ID
	}
	return l.URL
}

// SetAttribute records a site-specific extra on the open attributes map.
func (l *Listing) SetAttribute(key, value string) {
	if l.Attributes == nil {
		l.Attributes = make(map[string]string)
	}
	l.Attributes[key] = value
}

// ComputePricePerSqm derives the price per square meter when both price and
// area are known and the field is still unset.
func (l *Listing) ComputePricePerSqm() {
	if l.PricePerSqm != 0 || l.Price == 0 || l.Area <= 0 {
		return
	}
	l.PricePerSqm = float64(l.Price) / float64(l.Area)
}

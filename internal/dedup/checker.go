package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"campovivo/landworker/internal/listing"
	"campovivo/landworker/logger"
)

// Strategy identifies one duplicate-detection method.
type Strategy string

const (
	StrategyURL          Strategy = "url"
	StrategyContentHash  Strategy = "content_hash"
	StrategyAddressPrice Strategy = "address_price"
)

// CheckerConfig holds the construction parameters for a Checker.
type CheckerConfig struct {
	// CacheFile is the JSON persistence file path.
	CacheFile string
	// MaxAgeDays is the TTL for cache entries; <= 0 disables eviction.
	MaxAgeDays int
	// Strategies to evaluate; defaults to url + content_hash when empty.
	Strategies []Strategy
	// DisableAutoSave turns off the flush-on-mutation behavior. Auto-save is
	// on by default: durability over throughput, acceptable at scraper rates.
	DisableAutoSave bool
}

// cacheFile is the on-disk JSON layout of the duplicate cache.
type cacheFile struct {
	URLCache          []string          `json:"url_cache"`
	ContentHashCache  []string          `json:"content_hash_cache"`
	AddressPriceCache []string          `json:"address_price_cache"`
	LastSeen          map[string]string `json:"last_seen"`
}

// Checker decides whether an incoming listing has already been processed,
// using one or more configured strategies, and maintains the backing cache.
// Safe for concurrent use by multiple parser goroutines.
type Checker struct {
	cacheFile  string
	maxAgeDays int
	autoSave   bool
	strategies map[Strategy]bool

	mu                sync.Mutex
	urlCache          map[string]struct{}
	contentHashCache  map[string]struct{}
	addressPriceCache map[string]struct{}
	lastSeen          map[string]time.Time

	log *logger.Logger
}

// NewChecker creates a duplicate checker and loads any existing cache.
// A missing or unreadable cache file is not an error; the checker starts empty.
func NewChecker(cfg CheckerConfig) *Checker {
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = []Strategy{StrategyURL, StrategyContentHash}
	}
	enabled := make(map[Strategy]bool, len(strategies))
	for _, s := range strategies {
		enabled[s] = true
	}

	c := &Checker{
		cacheFile:         cfg.CacheFile,
		maxAgeDays:        cfg.MaxAgeDays,
		autoSave:          !cfg.DisableAutoSave,
		strategies:        enabled,
		urlCache:          make(map[string]struct{}),
		contentHashCache:  make(map[string]struct{}),
		addressPriceCache: make(map[string]struct{}),
		lastSeen:          make(map[string]time.Time),
		log:               logger.ForDedup(),
	}

	if dir := filepath.Dir(c.cacheFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.log.Error().Err(err).Str("dir", dir).Msg("Failed to create cache directory")
		}
	}
	c.LoadCache()
	return c
}

// LoadCache reads the cache file into memory and evicts stale entries.
// Never fails to the caller: a missing or malformed file leaves the
// checker with empty caches.
func (c *Checker) LoadCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cacheFile)
	if err != nil {
		if os.IsNotExist(err) {
			c.log.Info().Str("file", c.cacheFile).Msg("Cache file not found, starting empty")
		} else {
			c.log.Error().Err(err).Str("file", c.cacheFile).Msg("Failed to read cache file")
		}
		return
	}

	var raw cacheFile
	if err := json.Unmarshal(data, &raw); err != nil {
		c.log.Error().Err(err).Str("file", c.cacheFile).Msg("Failed to decode cache file, starting empty")
		c.resetLocked()
		return
	}

	c.resetLocked()
	for key, stamp := range raw.LastSeen {
		t, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			continue
		}
		c.lastSeen[key] = t
	}

	// A key without a valid last_seen timestamp can never be TTL-evicted,
	// so it is dropped here rather than kept immortal.
	dropped := 0
	for _, u := range raw.URLCache {
		if _, ok := c.lastSeen[u]; ok {
			c.urlCache[u] = struct{}{}
		} else {
			dropped++
		}
	}
	for _, h := range raw.ContentHashCache {
		if _, ok := c.lastSeen[h]; ok {
			c.contentHashCache[h] = struct{}{}
		} else {
			dropped++
		}
	}
	for _, k := range raw.AddressPriceCache {
		if _, ok := c.lastSeen[k]; ok {
			c.addressPriceCache[k] = struct{}{}
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		c.log.Warn().Int("count", dropped).Msg("Dropped cache keys without a valid last_seen timestamp")
	}

	c.log.Info().
		Int("urls", len(c.urlCache)).
		Int("content_hashes", len(c.contentHashCache)).
		Msg("Loaded duplicate cache")

	c.cleanupLocked()
}

func (c *Checker) resetLocked() {
	c.urlCache = make(map[string]struct{})
	c.contentHashCache = make(map[string]struct{})
	c.addressPriceCache = make(map[string]struct{})
	c.lastSeen = make(map[string]time.Time)
}

// SaveCache writes the cache to disk. Persistence errors are logged, never
// propagated: the in-memory state stays authoritative for this process.
func (c *Checker) SaveCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveLocked()
}

func (c *Checker) saveLocked() {
	raw := cacheFile{
		URLCache:          make([]string, 0, len(c.urlCache)),
		ContentHashCache:  make([]string, 0, len(c.contentHashCache)),
		AddressPriceCache: make([]string, 0, len(c.addressPriceCache)),
		LastSeen:          make(map[string]string, len(c.lastSeen)),
	}
	for u := range c.urlCache {
		raw.URLCache = append(raw.URLCache, u)
	}
	for h := range c.contentHashCache {
		raw.ContentHashCache = append(raw.ContentHashCache, h)
	}
	for k := range c.addressPriceCache {
		raw.AddressPriceCache = append(raw.AddressPriceCache, k)
	}
	for key, t := range c.lastSeen {
		raw.LastSeen[key] = t.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to encode cache")
		return
	}
	if err := os.WriteFile(c.cacheFile, data, 0o644); err != nil {
		c.log.Error().Err(err).Str("file", c.cacheFile).Msg("Failed to save cache")
		return
	}

	c.log.Debug().
		Int("urls", len(c.urlCache)).
		Int("content_hashes", len(c.contentHashCache)).
		Msg("Saved duplicate cache")
}

// CleanupOldEntries removes every key whose last_seen timestamp is older than
// MaxAgeDays from the last_seen map and from all three cache sets.
func (c *Checker) CleanupOldEntries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
}

func (c *Checker) cleanupLocked() {
	if c.maxAgeDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -c.maxAgeDays)

	var stale []string
	for key, t := range c.lastSeen {
		if t.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return
	}

	c.log.Info().Int("count", len(stale)).Msg("Evicting stale cache entries")

	for _, key := range stale {
		delete(c.lastSeen, key)
		// A key may be absent from a given set; delete is a no-op then.
		delete(c.urlCache, key)
		delete(c.contentHashCache, key)
		delete(c.addressPriceCache, key)
	}

	if c.autoSave {
		c.saveLocked()
	}
}

// ContentHash returns the MD5 hex digest over the normalized concatenation of
// the listing's salient fields. Missing fields are skipped, never an error,
// and the digest is deterministic for identical input.
func (c *Checker) ContentHash(l *listing.Listing) string {
	var parts []string
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	if l.Price != 0 {
		parts = append(parts, strconv.Itoa(l.Price))
	}
	if l.Area != 0 {
		parts = append(parts, strconv.Itoa(l.Area))
	}
	if l.Location != "" {
		parts = append(parts, l.Location)
	}
	if l.Description != "" {
		// Only the first 200 characters, to reduce formatting noise.
		desc := []rune(l.Description)
		if len(desc) > 200 {
			desc = desc[:200]
		}
		parts = append(parts, string(desc))
	}

	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	content := strings.Join(parts, "||")

	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddressPriceKey returns a deliberately fuzzy key built from the normalized
// location and the price rounded to the nearest 100 units. The second return
// is false when either field is absent: a weak key is never synthesized from
// partial data.
func (c *Checker) AddressPriceKey(l *listing.Listing) (string, bool) {
	if l.Location == "" || l.Price == 0 {
		return "", false
	}

	address := strings.ToLower(strings.TrimSpace(l.Location))
	rounded := int(math.Round(float64(l.Price)/100)) * 100

	sum := md5.Sum([]byte(address + "||" + strconv.Itoa(rounded)))
	return hex.EncodeToString(sum[:]), true
}

// IsDuplicate evaluates each enabled strategy in a fixed order (URL, content
// hash, address+price) and returns true on the first match, refreshing that
// key's last_seen timestamp. When no strategy matches, the listing is added
// to every enabled cache set before returning false, so calling IsDuplicate
// twice with the same fresh listing yields false then true.
func (c *Checker) IsDuplicate(l *listing.Listing) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.strategies[StrategyURL] {
		if _, ok := c.urlCache[l.URL]; ok {
			c.log.Debug().Str("url", l.URL).Msg("Duplicate by URL")
			c.lastSeen[l.URL] = time.Now()
			return true
		}
	}

	if c.strategies[StrategyContentHash] {
		hash := c.ContentHash(l)
		l.ContentHash = hash
		if _, ok := c.contentHashCache[hash]; ok {
			c.log.Debug().Str("content_hash", hash).Msg("Duplicate by content hash")
			c.lastSeen[hash] = time.Now()
			return true
		}
	}

	if c.strategies[StrategyAddressPrice] {
		if key, ok := c.AddressPriceKey(l); ok {
			if _, seen := c.addressPriceCache[key]; seen {
				c.log.Debug().
					Str("location", l.Location).
					Int("price", l.Price).
					Msg("Duplicate by address and price")
				c.lastSeen[key] = time.Now()
				return true
			}
		}
	}

	c.addLocked(l)
	return false
}

// AddToCache adds the listing's keys to every enabled cache set with the
// current timestamp and persists if auto-save is on.
func (c *Checker) AddToCache(l *listing.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(l)
}

func (c *Checker) addLocked(l *listing.Listing) {
	now := time.Now()

	if c.strategies[StrategyURL] && l.URL != "" {
		c.urlCache[l.URL] = struct{}{}
		c.lastSeen[l.URL] = now
	}

	if c.strategies[StrategyContentHash] {
		hash := l.ContentHash
		if hash == "" {
			hash = c.ContentHash(l)
			l.ContentHash = hash
		}
		c.contentHashCache[hash] = struct{}{}
		c.lastSeen[hash] = now
	}

	if c.strategies[StrategyAddressPrice] {
		if key, ok := c.AddressPriceKey(l); ok {
			c.addressPriceCache[key] = struct{}{}
			c.lastSeen[key] = now
		}
	}

	if c.autoSave {
		c.saveLocked()
	}
}

// FilterDuplicates keeps only listings not seen before, in input order. The
// cache is populated as a side effect, so the first of two identical listings
// in the same batch is kept and the second dropped.
func (c *Checker) FilterDuplicates(listings []*listing.Listing) []*listing.Listing {
	unique := make([]*listing.Listing, 0, len(listings))
	duplicates := 0

	for _, l := range listings {
		if c.IsDuplicate(l) {
			duplicates++
			continue
		}
		unique = append(unique, l)
	}

	if duplicates > 0 {
		c.log.Info().
			Int("duplicates", duplicates).
			Int("total", len(listings)).
			Msg("Filtered duplicate listings")
	}
	return unique
}

package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"campovivo/landworker/internal/dedup"
	"campovivo/landworker/internal/listing"
	"campovivo/landworker/internal/monitoring"
	"campovivo/landworker/internal/parser"
	"campovivo/landworker/services/publisher"
)

// MockParser implements the parser.Parser interface for testing
type MockParser struct {
	source    string
	listings  []*listing.Listing
	fetchErr  error
	enrichErr error
	enriched  int
}

var _ parser.Parser = (*MockParser)(nil)

func (m *MockParser) FetchListings(ctx context.Context) ([]*listing.Listing, error) {
	return m.listings, m.fetchErr
}

func (m *MockParser) Enrich(ctx context.Context, l *listing.Listing) error {
	m.enriched++
	if m.enrichErr != nil {
		return m.enrichErr
	}
	l.Description = "enriched"
	return nil
}

func (m *MockParser) GetName() string   { return m.source + "Parser" }
func (m *MockParser) GetSource() string { return m.source }
func (m *MockParser) Close()            {}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu         sync.Mutex
	messages   map[string][][]byte
	publishErr error
	trimmed    bool
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages[key] = append(m.messages[key], messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed = true
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) published(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[key])
}

func newTestWorker(t *testing.T, parsers []parser.Parser, pub publisher.Publisher) *Worker {
	t.Helper()
	dir := t.TempDir()
	checker := dedup.NewChecker(dedup.CheckerConfig{
		CacheFile:  filepath.Join(dir, "cache.json"),
		MaxAgeDays: 30,
	})
	seen := dedup.NewSeenStore(filepath.Join(dir, "seen.json"))
	return NewWorker(context.Background(), parsers, checker, seen, pub, monitoring.NewMetrics(), time.Second)
}

func testListing(id, url string) *listing.Listing {
	return &listing.Listing{
		ID:       id,
		URL:      url,
		Source:   "Test",
		Title:    "Terreno en Rocha",
		Location: "Rocha",
		Price:    45000,
	}
}

func TestWorkerCrawlAndPublish(t *testing.T) {
	mockPublisher := NewMockPublisher()
	mockParser := &MockParser{
		source: "Test",
		listings: []*listing.Listing{
			testListing("MLU1", "https://example.com/1"),
		},
	}

	w := newTestWorker(t, []parser.Parser{mockParser}, mockPublisher)
	w.crawlAndPublish(mockParser)

	assert.Equal(t, 1, mockPublisher.published("Test"), "The new listing should be published")
	assert.Equal(t, 1, mockParser.enriched, "The listing should be enriched before publishing")
	assert.Contains(t, string(mockPublisher.messages["Test"][0]), "enriched")
	assert.False(t, w.seen.IsNew("MLU1"), "A published listing is recorded as seen")
}

func TestWorkerSecondSweepPublishesNothing(t *testing.T) {
	mockPublisher := NewMockPublisher()
	first := &MockParser{
		source:   "Test",
		listings: []*listing.Listing{testListing("MLU1", "https://example.com/1")},
	}

	w := newTestWorker(t, []parser.Parser{first}, mockPublisher)
	w.crawlAndPublish(first)
	assert.Equal(t, 1, mockPublisher.published("Test"))

	// The same advertisement crawled again is filtered as a duplicate.
	second := &MockParser{
		source:   "Test",
		listings: []*listing.Listing{testListing("MLU1", "https://example.com/1")},
	}
	w.crawlAndPublish(second)
	assert.Equal(t, 1, mockPublisher.published("Test"), "No repeat notifications")
}

func TestWorkerFetchError(t *testing.T) {
	mockPublisher := NewMockPublisher()
	mockParser := &MockParser{
		source:   "Test",
		fetchErr: errors.New("connection refused"),
	}

	w := newTestWorker(t, []parser.Parser{mockParser}, mockPublisher)
	w.crawlAndPublish(mockParser)

	assert.Zero(t, mockPublisher.published("Test"), "A failed fetch publishes nothing")
}

func TestWorkerEnrichFailurePublishesPartial(t *testing.T) {
	mockPublisher := NewMockPublisher()
	mockParser := &MockParser{
		source:    "Test",
		listings:  []*listing.Listing{testListing("MLU1", "https://example.com/1")},
		enrichErr: errors.New("detail page unavailable"),
	}

	w := newTestWorker(t, []parser.Parser{mockParser}, mockPublisher)
	w.crawlAndPublish(mockParser)

	assert.Equal(t, 1, mockPublisher.published("Test"), "Enrichment failure still delivers the search-page data")
	assert.False(t, w.seen.IsNew("MLU1"))
}

func TestWorkerPublishFailureLeavesListingUnseen(t *testing.T) {
	mockPublisher := NewMockPublisher()
	mockPublisher.publishErr = errors.New("redis down")
	mockParser := &MockParser{
		source:   "Test",
		listings: []*listing.Listing{testListing("MLU1", "https://example.com/1")},
	}

	w := newTestWorker(t, []parser.Parser{mockParser}, mockPublisher)
	w.crawlAndPublish(mockParser)

	assert.True(t, w.seen.IsNew("MLU1"), "A listing that failed to publish must stay eligible")
}

func TestWorkerRunParsers(t *testing.T) {
	mockPublisher := NewMockPublisher()
	parser1 := &MockParser{
		source:   "SiteA",
		listings: []*listing.Listing{testListing("A1", "https://a.example.com/1")},
	}
	parser2 := &MockParser{
		source:   "SiteB",
		listings: []*listing.Listing{testListing("B1", "https://b.example.com/1")},
	}

	w := newTestWorker(t, []parser.Parser{parser1, parser2}, mockPublisher)
	w.runParsers()

	assert.Equal(t, 1, mockPublisher.published("SiteA"))
	assert.Equal(t, 1, mockPublisher.published("SiteB"))
	assert.True(t, mockPublisher.trimmed, "Streams are trimmed after each sweep")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campovivo/landworker/internal/dedup"
	"campovivo/landworker/internal/listing"
	"campovivo/landworker/internal/monitoring"
	"campovivo/landworker/internal/parser"
	"campovivo/landworker/internal/retry"
	"campovivo/landworker/services/cache"
	"campovivo/landworker/services/publisher"
	"campovivo/landworker/services/worker"

	"github.com/stretchr/testify/assert"
)

// This is a simple test HTML that mimics a land listing search page
const testHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Terrenos en venta</title>
</head>
<body>
    <div class="list">
        <div class="item">
            <h3 class="title"><a href="/terreno/101">Terreno en Rocha 5.000 m²</a></h3>
            <div class="price">U$S 45.000</div>
            <div class="location">Rocha, Rocha</div>
        </div>
        <div class="item">
            <h3 class="title"><a href="/terreno/102">Chacra en Canelones 2 ha</a></h3>
            <div class="price">U$S 120.000</div>
            <div class="location">Canelones</div>
        </div>
    </div>
</body>
</html>
`

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

var _ cache.CacheService = (*MockCacheService)(nil)

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, errors.New("cache miss")
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// CapturingPublisher implements publisher.Publisher and records everything
type CapturingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

var _ publisher.Publisher = (*CapturingPublisher)(nil)

func (p *CapturingPublisher) Publish(key string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	p.messages[key] = append(p.messages[key], messageCopy)
	return nil
}

func (p *CapturingPublisher) TrimStreams() error { return nil }
func (p *CapturingPublisher) Close() error       { return nil }

func (p *CapturingPublisher) published(key string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[key]
}

// TestIntegration runs a full crawl sweep against a local HTTP server: fetch,
// extract, dedup, publish, with no external services involved.
func TestIntegration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, testHTML)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	checker := dedup.NewChecker(dedup.CheckerConfig{
		CacheFile:  filepath.Join(dir, "cache.json"),
		MaxAgeDays: 30,
	})
	seen := dedup.NewSeenStore(filepath.Join(dir, "seen.json"))
	pub := &CapturingPublisher{}

	siteParser := parser.NewSiteParser(parser.ParserConfig{
		URL:      server.URL,
		BaseURL:  server.URL,
		Source:   "TestSite",
		CacheKey: "rate_limit_testsite",
		MaxPages: 1,
		Selectors: parser.Selectors{
			CardList: "div.item",
			Title:    []string{"h3.title a"},
			Link:     []string{"h3.title a"},
			Price:    []string{"div.price"},
			Location: []string{"div.location"},
		},
	}, parser.Options{
		Cache: &MockCacheService{cache: make(map[string][]byte)},
		Harness: retry.NewHarness(retry.HarnessConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		}),
		ErrorLogDir: dir,
	})

	w := worker.NewWorker(
		ctx,
		[]parser.Parser{siteParser},
		checker,
		seen,
		pub,
		monitoring.NewMetrics(),
		time.Hour,
	)

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()

	// The first sweep runs immediately; wait for both listings to land.
	deadline := time.After(10 * time.Second)
	for len(pub.published("TestSite")) < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out; published %d listings", len(pub.published("TestSite")))
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	<-done

	messages := pub.published("TestSite")
	assert.Len(t, messages, 2)

	byURL := make(map[string]listing.Listing)
	for _, data := range messages {
		var l listing.Listing
		assert.NoError(t, json.Unmarshal(data, &l))
		byURL[l.URL] = l
	}

	first, ok := byURL[server.URL+"/terreno/101"]
	assert.True(t, ok, "The first listing should have been published")
	assert.Equal(t, "Terreno en Rocha 5.000 m²", first.Title)
	assert.Equal(t, 45000, first.Price)
	assert.Equal(t, "USD", first.PriceCurrency)
	assert.Equal(t, 5000, first.Area)
	assert.Equal(t, "Rocha, Rocha", first.Location)

	second, ok := byURL[server.URL+"/terreno/102"]
	assert.True(t, ok)
	assert.Equal(t, 20000, second.Area, "Hectares are normalized to square meters")

	// Both the duplicate cache and the seen set persisted to disk.
	assert.False(t, seen.IsNew(server.URL+"/terreno/101"))
	assert.True(t, checker.IsDuplicate(&listing.Listing{
		URL:   server.URL + "/terreno/101",
		Title: "Terreno en Rocha 5.000 m²",
	}))
}

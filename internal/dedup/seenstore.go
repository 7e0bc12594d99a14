package dedup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"campovivo/landworker/logger"
)

// SeenStore tracks which listing identifiers were already delivered to the
// notification channel. Unlike the duplicate cache it is permanent history:
// no timestamps, no eviction, the set only grows.
type SeenStore struct {
	stateFile string

	mu   sync.Mutex
	seen map[string]struct{}

	log *logger.Logger
}

// NewSeenStore creates a store backed by stateFile and loads existing state.
func NewSeenStore(stateFile string) *SeenStore {
	s := &SeenStore{
		stateFile: stateFile,
		seen:      make(map[string]struct{}),
		log:       logger.ForDedup(),
	}
	s.loadState()
	return s
}

// loadState reads the JSON array of identifiers. A missing file or malformed
// content leaves the store empty; neither is fatal.
func (s *SeenStore) loadState() {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info().Str("file", s.stateFile).Msg("Seen-ID file not found, starting empty")
		} else {
			s.log.Error().Err(err).Str("file", s.stateFile).Msg("Failed to read seen-ID file")
		}
		return
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.log.Error().Err(err).Str("file", s.stateFile).Msg("Failed to decode seen-ID file, starting empty")
		return
	}

	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
	s.log.Info().Int("count", len(s.seen)).Str("file", s.stateFile).Msg("Loaded seen listing IDs")
}

// saveState writes the set back as a sorted JSON array, creating parent
// directories as needed. Errors are logged, not returned.
func (s *SeenStore) saveState() {
	if dir := filepath.Dir(s.stateFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Error().Err(err).Str("dir", dir).Msg("Failed to create state directory")
			return
		}
	}

	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode seen-ID state")
		return
	}
	if err := os.WriteFile(s.stateFile, data, 0o644); err != nil {
		s.log.Error().Err(err).Str("file", s.stateFile).Msg("Failed to save seen-ID state")
		return
	}
	s.log.Debug().Int("count", len(ids)).Msg("Saved seen listing IDs")
}

// IsNew reports whether the identifier has not been delivered yet. An empty
// identifier is treated as not new (skip) rather than an error.
func (s *SeenStore) IsNew(identifier string) bool {
	if identifier == "" {
		s.log.Warn().Msg("Empty listing identifier in novelty check")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.seen[identifier]
	return !exists
}

// AddSeen records the identifier and persists immediately. Every addition
// rewrites the state file; send volume is low enough that batching is not
// worth the durability loss.
func (s *SeenStore) AddSeen(identifier string) {
	if identifier == "" {
		s.log.Warn().Msg("Attempted to record an empty listing identifier")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[identifier]; exists {
		return
	}
	s.seen[identifier] = struct{}{}
	s.saveState()
	s.log.Debug().Str("identifier", identifier).Msg("Recorded delivered listing")
}

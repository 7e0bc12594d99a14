package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "campovivo/landworker/pkg/errors"
	"campovivo/landworker/logger"
)

// Record is one entry in the error journal.
type Record struct {
	Operation string `json:"operation"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// HarnessConfig holds the retry policy parameters.
type HarnessConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// OnRetry is invoked once per retry attempt, for run-level statistics.
	OnRetry func()
}

// Harness wraps fallible operations with bounded retries, exponential backoff
// with jitter, and structured error logging. It is the single place the
// failure-handling policy lives, so every call site behaves consistently.
//
// Only errors classified as retryable (see pkg/errors.IsRetryable) are
// retried; anything else is a programming error or unexpected condition and
// fails fast. Wrapped operations must be safe to invoke multiple times.
type Harness struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logger.Logger

	onRetry func()

	mu      sync.Mutex
	journal []Record
	retries int
}

// NewHarness creates a harness with the given policy. Zero values fall back
// to 5 attempts, 2s base delay and 60s ceiling.
func NewHarness(cfg HarnessConfig) *Harness {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	return &Harness{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		onRetry:    cfg.OnRetry,
		log:        logger.ForRetry(),
	}
}

// Do runs fn under the retry policy. See DoValue.
func (h *Harness) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := DoValue(ctx, h, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoAttempts behaves like Do with a per-call override of the attempt count.
func (h *Harness) DoAttempts(ctx context.Context, operation string, maxAttempts int, fn func(context.Context) error) error {
	_, err := doValue(ctx, h, operation, maxAttempts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue runs fn under h's retry policy and returns its result.
//
// A retryable failure sleeps min(base*2^(n-2) + jitter, max) before attempt n
// and tries again; exhausting all attempts returns an error wrapping the
// operation name, attempt count and last failure, and journals one record.
// A non-retryable failure is journaled and returned immediately.
func DoValue[T any](ctx context.Context, h *Harness, operation string, fn func(context.Context) (T, error)) (T, error) {
	return doValue(ctx, h, operation, h.maxRetries, fn)
}

func doValue[T any](ctx context.Context, h *Harness, operation string, maxAttempts int, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = h.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			h.log.Info().
				Str("operation", operation).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Msg("Retrying operation")
			h.mu.Lock()
			h.retries++
			h.mu.Unlock()
			if h.onRetry != nil {
				h.onRetry()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !apperrors.IsRetryable(err) {
			h.addRecord(operation, attempt, err)
			h.log.Error().
				Str("operation", operation).
				Err(err).
				Msg("Non-retryable error, failing fast")
			return zero, err
		}

		if attempt < maxAttempts {
			delay := h.backoff(attempt)
			h.log.Debug().
				Str("operation", operation).
				Dur("delay", delay).
				Err(err).
				Msg("Retryable failure, backing off")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	h.addRecord(operation, maxAttempts, lastErr)
	h.log.Error().
		Str("operation", operation).
		Int("attempts", maxAttempts).
		Err(lastErr).
		Msg("Operation failed after all attempts")
	return zero, fmt.Errorf("operation %q failed after %d attempts: %w", operation, maxAttempts, lastErr)
}

// backoff returns the delay after a failed attempt (1-indexed): exponential
// growth from the base, up to one second of jitter, capped at the ceiling.
func (h *Harness) backoff(attempt int) time.Duration {
	delay := h.baseDelay * (1 << (attempt - 1))
	delay += time.Duration(rand.Float64() * float64(time.Second))
	if delay > h.maxDelay {
		delay = h.maxDelay
	}
	return delay
}

func (h *Harness) addRecord(operation string, attempts int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.journal = append(h.journal, Record{
		Operation: operation,
		Attempts:  attempts,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Retries returns the total number of retry attempts performed.
func (h *Harness) Retries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retries
}

// Journal returns a copy of the accumulated error records.
func (h *Harness) Journal() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.journal))
	copy(out, h.journal)
	return out
}

// FlushJournal writes the journal to a timestamped JSON file under dir and
// clears it. Writing nothing (empty journal) returns an empty path.
func (h *Harness) FlushJournal(dir, source string) (string, error) {
	h.mu.Lock()
	records := h.journal
	h.journal = nil
	h.mu.Unlock()

	if len(records) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("error_log_%s_%s.json", source, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode error journal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write error journal: %w", err)
	}

	h.log.Info().Str("path", path).Int("records", len(records)).Msg("Saved error journal")
	return path, nil
}

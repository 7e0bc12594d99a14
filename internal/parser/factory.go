package parser

import (
	"campovivo/landworker/config"
	"campovivo/landworker/internal/retry"
	"campovivo/landworker/services/cache"
)

// CreateParsers builds one parser per configured site. Each parser owns its
// retry harness so error journals stay separated per source; onRetry (may be
// nil) is shared across harnesses for run-level retry counting.
func CreateParsers(cfg *config.Config, cacheSvc cache.CacheService, browser *BrowserFetcher, onRetry func()) []Parser {
	newOpts := func() Options {
		return Options{
			Cache: cacheSvc,
			Harness: retry.NewHarness(retry.HarnessConfig{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  cfg.RetryBaseDelay,
				MaxDelay:   cfg.RetryMaxDelay,
				OnRetry:    onRetry,
			}),
			Browser:     browser,
			DelayMin:    cfg.RequestDelayMin,
			DelayMax:    cfg.RequestDelayMax,
			ErrorLogDir: cfg.ErrorLogDir,
		}
	}

	var parsers []Parser
	if cfg.MercadoLibreURL != "" {
		parsers = append(parsers, NewMercadoLibreParser(cfg.MercadoLibreURL, cfg.MaxPages, newOpts()))
	}
	if cfg.InfoCasasURL != "" {
		parsers = append(parsers, NewInfoCasasParser(cfg.InfoCasasURL, cfg.MaxPages, newOpts()))
	}
	if cfg.GallitoURL != "" {
		parsers = append(parsers, NewGallitoParser(cfg.GallitoURL, cfg.MaxPages, newOpts()))
	}
	return parsers
}

package enrich

import (
	"errors"
	"fmt"
	"log"
	"time"

	"marketintel/internal/database"
	"marketintel/internal/dataset"
)

// Result holds the counts of an enrichment run.
type Result struct {
	Total    int
	Fetched  int
	NotFound int
	Failed   int
	Skipped  int
}

// Enricher looks up each distinct app in the catalog API and caches
// the raw responses. Cached ok and not_found entries are skipped on
// re-runs; failed entries are retried, so an interrupted batch resumes
// where it left off.
type Enricher struct {
	db     *database.DB
	client *Client
	retry  retryConfig
}

// NewEnricher creates an enricher. maxRetries bounds the attempts per
// identifier, not per batch.
func NewEnricher(db *database.DB, client *Client, maxRetries int) *Enricher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Enricher{
		db:     db,
		client: client,
		retry:  retryConfig{maxAttempts: maxRetries, baseDelay: time.Second},
	}
}

// EnrichApps fetches catalog metadata for every distinct cleaned app.
// A single failed lookup never aborts the batch; only a service-wide
// auth failure does.
func (e *Enricher) EnrichApps(apps []dataset.PlayStoreApp) (*Result, error) {
	r := &Result{}
	seen := make(map[string]struct{}, len(apps))

	for _, app := range apps {
		key := dataset.NormalizeName(app.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.Total++

		cached, err := e.db.GetLookup(key)
		if err != nil {
			return r, fmt.Errorf("reading lookup cache: %w", err)
		}
		if cached != nil && cached.Status != database.LookupFailed {
			r.Skipped++
			continue
		}

		attempts := 0
		var raw string
		var found bool
		lookupErr := e.retry.do(fmt.Sprintf("lookup %q", app.Name), func() error {
			attempts++
			var err error
			raw, found, err = e.client.Lookup(app.Name)
			return err
		})
		if cached != nil {
			attempts += cached.Attempts
		}

		switch {
		case errors.Is(lookupErr, ErrAuth):
			return r, lookupErr
		case lookupErr != nil:
			if err := e.db.UpsertLookup(key, app.Name, database.LookupFailed, nil, attempts); err != nil {
				return r, fmt.Errorf("caching failed lookup: %w", err)
			}
			log.Printf("Lookup failed for %q - continuing: %v", app.Name, lookupErr)
			r.Failed++
		case !found:
			if err := e.db.UpsertLookup(key, app.Name, database.LookupNotFound, nil, attempts); err != nil {
				return r, fmt.Errorf("caching not-found lookup: %w", err)
			}
			r.NotFound++
		default:
			if err := e.db.UpsertLookup(key, app.Name, database.LookupOK, &raw, attempts); err != nil {
				return r, fmt.Errorf("caching lookup: %w", err)
			}
			r.Fetched++
		}
	}

	log.Printf("Enrichment complete: %d apps (%d fetched, %d not found, %d failed, %d cached)",
		r.Total, r.Fetched, r.NotFound, r.Failed, r.Skipped)
	return r, nil
}

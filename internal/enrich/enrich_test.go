package enrich

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"marketintel/internal/database"
	"marketintel/internal/dataset"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testClient(srv *httptest.Server) *Client {
	return &Client{
		apiKey:  "test-key",
		apiHost: "test-host",
		country: "us",
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func testEnricher(db *database.DB, client *Client, attempts int) *Enricher {
	return &Enricher{
		db:     db,
		client: client,
		retry:  retryConfig{maxAttempts: attempts, baseDelay: time.Millisecond},
	}
}

func app(name string) dataset.PlayStoreApp {
	return dataset.PlayStoreApp{Name: name, Category: "GAME", Rating: 4.0}
}

func TestLookupFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-rapidapi-key") != "test-key" {
			t.Errorf("expected key header, got %q", r.Header.Get("x-rapidapi-key"))
		}
		if got := r.URL.Query().Get("term"); got != "My App" {
			t.Errorf("expected term 'My App', got %q", got)
		}
		w.Write([]byte(`{"results":[{"trackName":"My App","averageUserRating":4.5}]}`))
	}))
	defer srv.Close()

	raw, found, err := testClient(srv).Lookup("My App")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected match")
	}
	if raw == "" {
		t.Error("expected raw JSON")
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	_, found, err := testClient(srv).Lookup("Nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected no match for empty results")
	}
}

func TestLookupAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, _, err := testClient(srv).Lookup("My App")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestEnrichOneFailureDoesNotAbortBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("term") == "Bad App" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"results":[{"trackName":"x"}]}`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	e := testEnricher(db, testClient(srv), 2)

	result, err := e.EnrichApps([]dataset.PlayStoreApp{app("Good App"), app("Bad App"), app("Other App")})
	if err != nil {
		t.Fatalf("batch aborted: %v", err)
	}
	if result.Fetched != 2 {
		t.Errorf("expected 2 fetched, got %d", result.Fetched)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", result.Failed)
	}

	l, _ := db.GetLookup("bad app")
	if l == nil || l.Status != database.LookupFailed {
		t.Error("expected failed lookup to be cached")
	}
	l, _ = db.GetLookup("other app")
	if l == nil || l.Status != database.LookupOK {
		t.Error("expected lookup after the failure to succeed")
	}
}

func TestEnrichNotFoundContinues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	result, err := testEnricher(db, testClient(srv), 2).EnrichApps([]dataset.PlayStoreApp{app("Ghost App")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NotFound != 1 {
		t.Errorf("expected 1 not found, got %d", result.NotFound)
	}

	l, _ := db.GetLookup("ghost app")
	if l == nil || l.Status != database.LookupNotFound {
		t.Error("expected not_found to be cached")
	}
}

func TestEnrichSkipsCachedOnRerun(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"results":[{"trackName":"x"}]}`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	e := testEnricher(db, testClient(srv), 2)
	apps := []dataset.PlayStoreApp{app("My App"), app("Other App")}

	if _, err := e.EnrichApps(apps); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected 2 requests on first run, got %d", requests)
	}

	result, err := e.EnrichApps(apps)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if requests != 2 {
		t.Errorf("expected no new requests on re-run, got %d", requests)
	}
	if result.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Skipped)
	}
}

func TestEnrichRetriesPreviouslyFailed(t *testing.T) {
	db := openTestDB(t)
	db.UpsertLookup("my app", "My App", database.LookupFailed, nil, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"trackName":"My App"}]}`))
	}))
	defer srv.Close()

	result, err := testEnricher(db, testClient(srv), 2).EnrichApps([]dataset.PlayStoreApp{app("My App")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 1 {
		t.Errorf("expected failed entry to be refetched, got %+v", result)
	}

	l, _ := db.GetLookup("my app")
	if l.Status != database.LookupOK {
		t.Errorf("expected status ok, got %q", l.Status)
	}
}

func TestEnrichAuthFailureIsFatal(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	db := openTestDB(t)
	_, err := testEnricher(db, testClient(srv), 3).EnrichApps([]dataset.PlayStoreApp{app("A"), app("B")})
	if err == nil {
		t.Fatal("expected fatal error for auth failure")
	}
	if requests != 1 {
		t.Errorf("expected no retries on auth failure, got %d requests", requests)
	}
}

func TestEnrichDeduplicatesNames(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"results":[{"trackName":"x"}]}`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	result, err := testEnricher(db, testClient(srv), 2).EnrichApps(
		[]dataset.PlayStoreApp{app("My App"), app("my app "), app("MY APP")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 {
		t.Errorf("expected 1 request for case variants, got %d", requests)
	}
	if result.Total != 1 {
		t.Errorf("expected 1 distinct app, got %d", result.Total)
	}
}

package normalize

import (
	"path/filepath"
	"testing"

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

func seed(t *testing.T, db *database.DB, key, name string, raw *string) {
	t.Helper()
	status := database.LookupOK
	if raw == nil {
		status = database.LookupNotFound
	}
	if err := db.UpsertLookup(key, name, status, raw, 1); err != nil {
		t.Fatalf("seeding lookup %q: %v", key, err)
	}
}

func strPtr(s string) *string { return &s }

func TestRunProjectsVendorFields(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "my app", "My App", strPtr(
		`{"trackName":"My App","primaryGenreName":"Games","averageUserRating":4.61234,"userRatingCount":120,"price":1.99,"bundleId":"ignored"}`))

	out := filepath.Join(t.TempDir(), "appstore.csv")
	r, err := Run(db, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Apps != 1 {
		t.Fatalf("expected 1 app, got %d", r.Apps)
	}

	apps, err := dataset.ReadAppStoreCSV(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	got := apps[0]
	if got.Name != "My App" || got.Category != "Games" {
		t.Errorf("unexpected name/category: %+v", got)
	}
	if got.Rating != 4.61 {
		t.Errorf("expected rating rounded to 4.61, got %v", got.Rating)
	}
	if got.RatingCount != 120 || got.Price != 1.99 {
		t.Errorf("unexpected count/price: %+v", got)
	}
}

func TestRunSkipsMalformedPayloads(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "good", "Good", strPtr(`{"trackName":"Good","primaryGenreName":"Games"}`))
	seed(t, db, "broken", "Broken", strPtr(`{"trackName":`))
	seed(t, db, "nameless", "Nameless", strPtr(`{"price":0.99}`))

	out := filepath.Join(t.TempDir(), "appstore.csv")
	r, err := Run(db, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Apps != 1 || r.Skipped != 2 {
		t.Errorf("expected 1 app and 2 skipped, got %+v", r)
	}
}

func TestRunIgnoresNotFoundEntries(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "ghost", "Ghost", nil)

	out := filepath.Join(t.TempDir(), "appstore.csv")
	r, err := Run(db, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Cached != 0 || r.Apps != 0 {
		t.Errorf("not_found entries should not be normalized, got %+v", r)
	}

	apps, err := dataset.ReadAppStoreCSV(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("expected empty dataset, got %d rows", len(apps))
	}
}

func TestRunClampsRatings(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "odd", "Odd", strPtr(`{"trackName":"Odd","averageUserRating":6.3}`))

	out := filepath.Join(t.TempDir(), "appstore.csv")
	if _, err := Run(db, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	apps, _ := dataset.ReadAppStoreCSV(out)
	if apps[0].Rating != 5 {
		t.Errorf("expected rating clamped to 5, got %v", apps[0].Rating)
	}
}

func TestRunOutputIsSortedByName(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "zebra", "Zebra", strPtr(`{"trackName":"Zebra"}`))
	seed(t, db, "alpha", "Alpha", strPtr(`{"trackName":"Alpha"}`))

	out := filepath.Join(t.TempDir(), "appstore.csv")
	if _, err := Run(db, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	apps, _ := dataset.ReadAppStoreCSV(out)
	if len(apps) != 2 || apps[0].Name != "Alpha" {
		t.Errorf("expected deterministic name order, got %+v", apps)
	}
}

package clean

import (
	"path/filepath"
	"reflect"
	"testing"

	"marketintel/internal/dataset"
)

func rawTable(rows ...[]string) *dataset.Table {
	t := &dataset.Table{Headers: []string{"App", "Category", "Rating", "Reviews", "Size", "Installs", "Price"}}
	for _, r := range rows {
		row := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			row[h] = r[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func TestCleanFiveRowFixture(t *testing.T) {
	// 5 raw rows: one exact duplicate, one missing a required field.
	tbl := rawTable(
		[]string{"Photo Editor", "ART_AND_DESIGN", "4.1", "159", "19M", "10,000+", "0"},
		[]string{"Coloring Book", "ART_AND_DESIGN", "3.9", "967", "14M", "500,000+", "0"},
		[]string{"Photo Editor", "ART_AND_DESIGN", "4.1", "159", "19M", "10,000+", "0"},
		[]string{"Sketch It", "", "4.5", "215644", "25M", "50,000,000+", "0"},
		[]string{"Pixel Draw", "ART_AND_DESIGN", "4.3", "967", "2.8M", "100,000+", "$1.99"},
	)

	apps, result, err := New().Clean(tbl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 3 {
		t.Fatalf("expected 3 cleaned rows, got %d", len(apps))
	}
	if result.DroppedDuplicates != 1 {
		t.Errorf("expected 1 duplicate dropped, got %d", result.DroppedDuplicates)
	}
	if result.DroppedMissing != 1 {
		t.Errorf("expected 1 missing-field drop, got %d", result.DroppedMissing)
	}
}

func TestCleanNeverIncreasesRowCount(t *testing.T) {
	tbl := rawTable(
		[]string{"A", "GAME", "4.0", "1", "19M", "100+", "0"},
		[]string{"B", "GAME", "bad", "1", "19M", "100+", "0"},
		[]string{"C", "GAME", "4.9", "1", "19M", "100+", "0"},
	)
	apps, _, err := New().Clean(tbl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) > len(tbl.Rows) {
		t.Errorf("cleaning increased row count: %d > %d", len(apps), len(tbl.Rows))
	}
}

func TestCleanIdempotent(t *testing.T) {
	tbl := rawTable(
		[]string{"Photo Editor", "ART_AND_DESIGN", "4.1", "159", "19M", "10,000+", "0"},
		[]string{"Pixel Draw", "ART_AND_DESIGN", "4.3", "967", "201k", "100,000+", "$1.99"},
		[]string{"No Size App", "TOOLS", "3.7", "12", "Varies with device", "1,000+", "0"},
	)

	first, _, err := New().Clean(tbl)
	if err != nil {
		t.Fatalf("first clean failed: %v", err)
	}

	// Write the cleaned output and clean it again.
	path := filepath.Join(t.TempDir(), "cleaned.csv")
	if err := dataset.WritePlayStoreCSV(path, first); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	reread, err := dataset.ReadTable(path)
	if err != nil {
		t.Fatalf("reread failed: %v", err)
	}

	second, result, err := New().Clean(reread)
	if err != nil {
		t.Fatalf("second clean failed: %v", err)
	}
	if result.Kept != len(first) {
		t.Errorf("expected %d rows kept, got %d", len(first), result.Kept)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-cleaning changed rows:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestCleanDuplicateNameKeepsMostReviews(t *testing.T) {
	tbl := rawTable(
		[]string{"Instagram", "SOCIAL", "4.5", "66577313", "Varies with device", "1,000,000,000+", "0"},
		[]string{"Instagram", "SOCIAL", "4.5", "66577446", "Varies with device", "1,000,000,000+", "0"},
	)

	apps, _, err := New().Clean(tbl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 row, got %d", len(apps))
	}
	if apps[0].Reviews != 66577446 {
		t.Errorf("expected the row with more reviews, got %d", apps[0].Reviews)
	}
}

func TestCleanMissingColumnsFailFast(t *testing.T) {
	tbl := &dataset.Table{Headers: []string{"App", "Category"}}
	_, _, err := New().Clean(tbl)
	if err == nil {
		t.Fatal("expected error for missing Rating column")
	}
}

func TestCleanInvalidRatingDropped(t *testing.T) {
	tbl := rawTable(
		[]string{"Weird", "LIFESTYLE", "19.0", "5", "3M", "100+", "0"},
		[]string{"Fine", "LIFESTYLE", "4.2", "5", "3M", "100+", "0"},
	)
	apps, result, err := New().Clean(tbl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 1 || apps[0].Name != "Fine" {
		t.Errorf("expected only 'Fine' to survive, got %+v", apps)
	}
	if result.DroppedInvalid != 1 {
		t.Errorf("expected 1 invalid drop, got %d", result.DroppedInvalid)
	}
}

func TestParseInstalls(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		null bool
	}{
		{"10,000+", 10000, false},
		{"1,000,000,000+", 1000000000, false},
		{"0", 0, false},
		{"Free", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got := parseInstalls(c.in)
		if c.null {
			if got != nil {
				t.Errorf("parseInstalls(%q) = %v, want nil", c.in, *got)
			}
			continue
		}
		if got == nil || *got != c.want {
			t.Errorf("parseInstalls(%q) = %v, want %d", c.in, got, c.want)
		}
	}
}

func TestParseSizeMB(t *testing.T) {
	if got := parseSizeMB("19M"); got == nil || *got != 19.0 {
		t.Errorf("parseSizeMB(19M) = %v, want 19.0", got)
	}
	if got := parseSizeMB("512k"); got == nil || *got != 0.5 {
		t.Errorf("parseSizeMB(512k) = %v, want 0.5", got)
	}
	if got := parseSizeMB("Varies with device"); got != nil {
		t.Errorf("parseSizeMB(Varies with device) = %v, want nil", *got)
	}
	// Bare numbers are already megabytes (cleaned-file format).
	if got := parseSizeMB("2.8"); got == nil || *got != 2.8 {
		t.Errorf("parseSizeMB(2.8) = %v, want 2.8", got)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$4.99", 4.99},
		{"0", 0},
		{"Free", 0},
		{"Everyone", 0},
	}
	for _, c := range cases {
		if got := parsePrice(c.in); got != c.want {
			t.Errorf("parsePrice(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

package clean

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"

	"marketintel/internal/dataset"
)

// columnAliases maps each logical field to its accepted header names:
// the raw Google Play export first, then our canonical cleaned header,
// so re-cleaning an already-cleaned file is the identity.
var columnAliases = map[string][]string{
	"app":      {"App", "app_name"},
	"category": {"Category", "category"},
	"rating":   {"Rating", "rating"},
	"reviews":  {"Reviews", "reviews"},
	"size":     {"Size", "size_mb"},
	"installs": {"Installs", "installs"},
	"price":    {"Price", "price"},
}

// Result holds the counts of a cleaning run.
type Result struct {
	TotalRows         int
	Kept              int
	DroppedMissing    int
	DroppedInvalid    int
	DroppedDuplicates int
}

// Cleaner transforms a raw Google Play table into typed, deduplicated
// rows. It is a pure function of the input table: cleaning an already
// clean dataset yields the same rows again.
//
// Field policy (deterministic):
//   - App, Category, Rating are required; rows missing any are dropped.
//   - Rating outside 0..5 or unparsable drops the row.
//   - Reviews unparsable coerces to 0.
//   - Installs ("10,000+") and Size ("19M", "201k") unparsable coerce
//     to null.
//   - Price ("$4.99", "Free") unparsable coerces to 0.
type Cleaner struct{}

// New creates a Cleaner.
func New() *Cleaner {
	return &Cleaner{}
}

// Clean validates the table schema and returns the cleaned rows.
func (c *Cleaner) Clean(t *dataset.Table) ([]dataset.PlayStoreApp, *Result, error) {
	cols, err := resolveColumns(t)
	if err != nil {
		return nil, nil, fmt.Errorf("raw dataset: %w", err)
	}

	r := &Result{TotalRows: len(t.Rows)}

	seenRow := make(map[string]struct{})
	byName := make(map[string]int) // normalized name -> index into apps
	var apps []dataset.PlayStoreApp

	for _, row := range t.Rows {
		// Full-row duplicates go first so they never count as invalid.
		rowKey := row[cols.app] + "\x00" + row[cols.category] + "\x00" + row[cols.rating] + "\x00" +
			row[cols.reviews] + "\x00" + row[cols.size] + "\x00" + row[cols.installs] + "\x00" + row[cols.price]
		if _, dup := seenRow[rowKey]; dup {
			r.DroppedDuplicates++
			continue
		}
		seenRow[rowKey] = struct{}{}

		name := normalizeText(row[cols.app])
		category := normalizeText(row[cols.category])
		ratingRaw := strings.TrimSpace(row[cols.rating])
		if name == "" || category == "" || ratingRaw == "" || strings.EqualFold(ratingRaw, "nan") {
			r.DroppedMissing++
			continue
		}

		rating, err := strconv.ParseFloat(ratingRaw, 64)
		if err != nil || rating < 0 || rating > 5 {
			r.DroppedInvalid++
			continue
		}

		app := dataset.PlayStoreApp{
			Name:     name,
			Category: category,
			Rating:   rating,
			Reviews:  parseReviews(row[cols.reviews]),
			SizeMB:   parseSizeMB(row[cols.size]),
			Installs: parseInstalls(row[cols.installs]),
			Price:    parsePrice(row[cols.price]),
		}

		key := dataset.NormalizeName(name)
		if i, ok := byName[key]; ok {
			// Key duplicate: keep the entry with the most reviews.
			if app.Reviews > apps[i].Reviews {
				apps[i] = app
			}
			r.DroppedDuplicates++
			continue
		}
		byName[key] = len(apps)
		apps = append(apps, app)
	}

	r.Kept = len(apps)
	log.Printf("Cleaned %d -> %d rows (%d missing, %d invalid, %d duplicates)",
		r.TotalRows, r.Kept, r.DroppedMissing, r.DroppedInvalid, r.DroppedDuplicates)
	return apps, r, nil
}

type columns struct {
	app, category, rating, reviews, size, installs, price string
}

// resolveColumns picks the header name for each logical field. The
// required fields (app, category, rating) fail fast when absent;
// optional fields resolve to "" and read as empty cells.
func resolveColumns(t *dataset.Table) (*columns, error) {
	pick := func(field string) string {
		for _, name := range columnAliases[field] {
			if t.HasColumn(name) {
				return name
			}
		}
		return ""
	}

	c := &columns{
		app:      pick("app"),
		category: pick("category"),
		rating:   pick("rating"),
		reviews:  pick("reviews"),
		size:     pick("size"),
		installs: pick("installs"),
		price:    pick("price"),
	}

	var missing []string
	for _, req := range []struct{ field, col string }{
		{"App", c.app}, {"Category", c.category}, {"Rating", c.rating},
	} {
		if req.col == "" {
			missing = append(missing, req.field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

// parseInstalls parses install counts like "10,000+".
func parseInstalls(raw string) *int64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "+")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// parseSizeMB parses sizes like "19M" and "201k" into megabytes. A
// bare number is already megabytes. "Varies with device" and anything
// unparsable become null.
func parseSizeMB(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	var scale float64 = 1
	switch {
	case strings.HasSuffix(s, "M"):
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		s = strings.TrimSuffix(strings.TrimSuffix(s, "k"), "K")
		scale = 1.0 / 1024
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	v *= scale
	return &v
}

// parsePrice parses prices like "$4.99", "0", and "Free".
func parsePrice(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "free") {
		return 0
	}
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseReviews(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// normalizeText strips leading/trailing whitespace and collapses
// internal whitespace.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}

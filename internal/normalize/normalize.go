// Package normalize turns the raw catalog responses cached during
// enrichment into a typed, flat App Store dataset.
package normalize

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"marketintel/internal/database"
	"marketintel/internal/dataset"
)

// catalogEntry is the subset of the catalog API response we keep. The
// vendor payload carries dozens of fields; everything else is ignored.
type catalogEntry struct {
	TrackName         string  `json:"trackName"`
	PrimaryGenreName  string  `json:"primaryGenreName"`
	AverageUserRating float64 `json:"averageUserRating"`
	UserRatingCount   int64   `json:"userRatingCount"`
	Price             float64 `json:"price"`
}

// Result holds the counts of a normalization run.
type Result struct {
	Cached  int
	Apps    int
	Skipped int
}

// Run reads every successful cached lookup, projects the raw vendor
// JSON onto the flat App Store schema, and writes the dataset to
// outPath. Entries whose payload no longer parses are logged and
// skipped rather than failing the run.
func Run(db *database.DB, outPath string) (*Result, error) {
	lookups, err := db.GetLookupsByStatus(database.LookupOK)
	if err != nil {
		return nil, fmt.Errorf("reading cached lookups: %w", err)
	}

	r := &Result{Cached: len(lookups)}
	apps := make([]dataset.AppStoreApp, 0, len(lookups))
	for _, l := range lookups {
		if l.RawJSON == nil {
			log.Printf("Cached lookup %q has no payload - skipping", l.AppKey)
			r.Skipped++
			continue
		}
		app, err := normalizeEntry(*l.RawJSON)
		if err != nil {
			log.Printf("Cached lookup %q: %v - skipping", l.AppKey, err)
			r.Skipped++
			continue
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool {
		return dataset.NormalizeName(apps[i].Name) < dataset.NormalizeName(apps[j].Name)
	})

	if err := dataset.WriteAppStoreCSV(outPath, apps); err != nil {
		return nil, err
	}

	r.Apps = len(apps)
	log.Printf("Normalized %d of %d cached entries to %s", r.Apps, r.Cached, outPath)
	return r, nil
}

func normalizeEntry(raw string) (dataset.AppStoreApp, error) {
	var e catalogEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return dataset.AppStoreApp{}, fmt.Errorf("parsing payload: %w", err)
	}
	if strings.TrimSpace(e.TrackName) == "" {
		return dataset.AppStoreApp{}, fmt.Errorf("payload has no track name")
	}

	return dataset.AppStoreApp{
		Name:        strings.TrimSpace(e.TrackName),
		Category:    strings.TrimSpace(e.PrimaryGenreName),
		Rating:      roundRating(e.AverageUserRating),
		RatingCount: e.UserRatingCount,
		Price:       e.Price,
	}, nil
}

// roundRating clamps catalog ratings onto the 0..5 scale with two
// decimals, matching the precision of the Play Store dataset.
func roundRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return math.Round(v*100) / 100
}

// Package merge joins the cleaned Play Store dataset with the
// normalized App Store dataset into one cross-platform table.
package merge

import (
	"log"

	"marketintel/internal/dataset"
)

// Result holds the counts of a merge run.
type Result struct {
	PlayStore int
	AppStore  int
	Matched   int
	Merged    int
}

// Merge performs a left outer join from the Play Store side on the
// normalized app name. Every cleaned Play Store app yields exactly one
// output row; App Store fields stay nil when no catalog match exists.
// Catalog entries without a Play Store counterpart are dropped.
func Merge(playApps []dataset.PlayStoreApp, storeApps []dataset.AppStoreApp) (*Result, []dataset.MergedApp) {
	catalog := make(map[string]dataset.AppStoreApp, len(storeApps))
	for _, a := range storeApps {
		key := dataset.NormalizeName(a.Name)
		if _, dup := catalog[key]; dup {
			continue
		}
		catalog[key] = a
	}

	r := &Result{PlayStore: len(playApps), AppStore: len(storeApps)}
	merged := make([]dataset.MergedApp, 0, len(playApps))
	for _, p := range playApps {
		row := dataset.MergedApp{
			Name:          p.Name,
			Category:      p.Category,
			GoogleRating:  p.Rating,
			GoogleReviews: p.Reviews,
			SizeMB:        p.SizeMB,
			Installs:      p.Installs,
			GooglePrice:   p.Price,
		}
		if match, ok := catalog[dataset.NormalizeName(p.Name)]; ok {
			rating := match.Rating
			ratings := match.RatingCount
			price := match.Price
			row.AppleRating = &rating
			row.AppleRatings = &ratings
			row.ApplePrice = &price
			row.OnBothStores = true
			r.Matched++
		}
		merged = append(merged, row)
	}

	r.Merged = len(merged)
	log.Printf("Merged %d apps (%d matched in catalog)", r.Merged, r.Matched)
	return r, merged
}

// Run reads both datasets from disk, joins them, and writes the
// unified dataset to outPath.
func Run(playPath, storePath, outPath string) (*Result, error) {
	playApps, err := dataset.ReadPlayStoreCSV(playPath)
	if err != nil {
		return nil, err
	}
	storeApps, err := dataset.ReadAppStoreCSV(storePath)
	if err != nil {
		return nil, err
	}

	r, merged := Merge(playApps, storeApps)
	if err := dataset.WriteMergedCSV(outPath, merged); err != nil {
		return nil, err
	}
	return r, nil
}

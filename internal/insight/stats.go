package insight

import (
	"fmt"
	"sort"
	"strings"

	"marketintel/internal/dataset"
)

// Summary holds the bounded statistics fed to the insight prompt.
// Everything here is derived from the merged dataset; its size does
// not grow with the number of apps.
type Summary struct {
	TotalApps       int             `json:"total_apps"`
	OnBothStores    int             `json:"on_both_stores"`
	AvgGoogleRating float64         `json:"avg_google_rating"`
	AvgAppleRating  float64         `json:"avg_apple_rating"`
	AvgSizeMB       float64         `json:"avg_size_mb"`
	PaidApps        int             `json:"paid_apps"`
	TopCategories   []CategoryCount `json:"top_categories"`
}

// CategoryCount is one category with its app count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

const topCategoryCount = 5

// Summarize reduces the merged dataset to prompt-sized statistics.
func Summarize(apps []dataset.MergedApp) Summary {
	s := Summary{TotalApps: len(apps)}
	if len(apps) == 0 {
		return s
	}

	var googleSum, appleSum, sizeSum float64
	var appleN, sizeN int
	byCategory := make(map[string]int)

	for _, a := range apps {
		googleSum += a.GoogleRating
		if a.OnBothStores {
			s.OnBothStores++
		}
		if a.AppleRating != nil {
			appleSum += *a.AppleRating
			appleN++
		}
		if a.SizeMB != nil {
			sizeSum += *a.SizeMB
			sizeN++
		}
		if a.GooglePrice > 0 {
			s.PaidApps++
		}
		if a.Category != "" {
			byCategory[a.Category]++
		}
	}

	s.AvgGoogleRating = round2(googleSum / float64(len(apps)))
	if appleN > 0 {
		s.AvgAppleRating = round2(appleSum / float64(appleN))
	}
	if sizeN > 0 {
		s.AvgSizeMB = round2(sizeSum / float64(sizeN))
	}
	s.TopCategories = topCategories(byCategory, topCategoryCount)
	return s
}

func topCategories(counts map[string]int, n int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for c, count := range counts {
		out = append(out, CategoryCount{Category: c, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s Summary) promptBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Total apps: %d (on both stores: %d)\n", s.TotalApps, s.OnBothStores)
	fmt.Fprintf(&b, "- Average Google Play rating: %.2f\n", s.AvgGoogleRating)
	fmt.Fprintf(&b, "- Average App Store rating: %.2f\n", s.AvgAppleRating)
	fmt.Fprintf(&b, "- Average size: %.1f MB, paid apps: %d\n", s.AvgSizeMB, s.PaidApps)
	if len(s.TopCategories) > 0 {
		names := make([]string, len(s.TopCategories))
		for i, c := range s.TopCategories {
			names[i] = fmt.Sprintf("%s (%d)", c.Category, c.Count)
		}
		fmt.Fprintf(&b, "- Top categories: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

func round2(v float64) float64 {
	if v < 0 {
		return v
	}
	return float64(int(v*100+0.5)) / 100
}

package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var playStoreHeader = []string{"app_name", "category", "rating", "reviews", "size_mb", "installs", "price"}

var appStoreHeader = []string{"app_name", "category", "rating", "rating_count", "price"}

var mergedHeader = []string{
	"app_name", "category", "google_rating", "google_reviews", "size_mb", "installs",
	"google_price", "apple_rating", "apple_rating_count", "apple_price", "on_both_stores",
}

var campaignHeader = []string{
	"campaign_id", "channel", "spend_usd", "impressions", "clicks", "installs", "signups",
	"first_purchase", "repeat_purchase", "revenue_usd", "conversion_rate",
	"cac", "roas", "ctr", "retention_rate",
}

// WritePlayStoreCSV writes cleaned Google Play rows, creating parent
// directories as needed.
func WritePlayStoreCSV(path string, apps []PlayStoreApp) error {
	return writeCSV(path, playStoreHeader, len(apps), func(i int) []string {
		a := apps[i]
		return []string{
			a.Name, a.Category, formatFloat(a.Rating), strconv.FormatInt(a.Reviews, 10),
			formatFloatPtr(a.SizeMB), formatIntPtr(a.Installs), formatFloat(a.Price),
		}
	})
}

// ReadPlayStoreCSV reads a cleaned Google Play dataset, validating the
// schema before parsing any row.
func ReadPlayStoreCSV(path string) ([]PlayStoreApp, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(playStoreHeader...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	apps := make([]PlayStoreApp, 0, len(t.Rows))
	for i, row := range t.Rows {
		a := PlayStoreApp{Name: row["app_name"], Category: row["category"]}
		if a.Rating, err = parseFloat(row["rating"]); err != nil {
			return nil, rowErr(path, i, "rating", err)
		}
		if a.Reviews, err = parseInt(row["reviews"]); err != nil {
			return nil, rowErr(path, i, "reviews", err)
		}
		if a.SizeMB, err = parseFloatPtr(row["size_mb"]); err != nil {
			return nil, rowErr(path, i, "size_mb", err)
		}
		if a.Installs, err = parseIntPtr(row["installs"]); err != nil {
			return nil, rowErr(path, i, "installs", err)
		}
		if a.Price, err = parseFloat(row["price"]); err != nil {
			return nil, rowErr(path, i, "price", err)
		}
		apps = append(apps, a)
	}
	return apps, nil
}

// WriteAppStoreCSV writes normalized App Store rows.
func WriteAppStoreCSV(path string, apps []AppStoreApp) error {
	return writeCSV(path, appStoreHeader, len(apps), func(i int) []string {
		a := apps[i]
		return []string{
			a.Name, a.Category, formatFloat(a.Rating),
			strconv.FormatInt(a.RatingCount, 10), formatFloat(a.Price),
		}
	})
}

// ReadAppStoreCSV reads a normalized App Store dataset.
func ReadAppStoreCSV(path string) ([]AppStoreApp, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(appStoreHeader...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	apps := make([]AppStoreApp, 0, len(t.Rows))
	for i, row := range t.Rows {
		a := AppStoreApp{Name: row["app_name"], Category: row["category"]}
		if a.Rating, err = parseFloat(row["rating"]); err != nil {
			return nil, rowErr(path, i, "rating", err)
		}
		if a.RatingCount, err = parseInt(row["rating_count"]); err != nil {
			return nil, rowErr(path, i, "rating_count", err)
		}
		if a.Price, err = parseFloat(row["price"]); err != nil {
			return nil, rowErr(path, i, "price", err)
		}
		apps = append(apps, a)
	}
	return apps, nil
}

// WriteMergedCSV writes the unified cross-platform dataset.
func WriteMergedCSV(path string, apps []MergedApp) error {
	return writeCSV(path, mergedHeader, len(apps), func(i int) []string {
		a := apps[i]
		onBoth := "0"
		if a.OnBothStores {
			onBoth = "1"
		}
		return []string{
			a.Name, a.Category, formatFloat(a.GoogleRating), strconv.FormatInt(a.GoogleReviews, 10),
			formatFloatPtr(a.SizeMB), formatIntPtr(a.Installs), formatFloat(a.GooglePrice),
			formatFloatPtr(a.AppleRating), formatIntPtr(a.AppleRatings), formatFloatPtr(a.ApplePrice),
			onBoth,
		}
	})
}

// ReadMergedCSV reads the unified cross-platform dataset.
func ReadMergedCSV(path string) ([]MergedApp, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(mergedHeader...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	apps := make([]MergedApp, 0, len(t.Rows))
	for i, row := range t.Rows {
		a := MergedApp{Name: row["app_name"], Category: row["category"]}
		if a.GoogleRating, err = parseFloat(row["google_rating"]); err != nil {
			return nil, rowErr(path, i, "google_rating", err)
		}
		if a.GoogleReviews, err = parseInt(row["google_reviews"]); err != nil {
			return nil, rowErr(path, i, "google_reviews", err)
		}
		if a.SizeMB, err = parseFloatPtr(row["size_mb"]); err != nil {
			return nil, rowErr(path, i, "size_mb", err)
		}
		if a.Installs, err = parseIntPtr(row["installs"]); err != nil {
			return nil, rowErr(path, i, "installs", err)
		}
		if a.GooglePrice, err = parseFloat(row["google_price"]); err != nil {
			return nil, rowErr(path, i, "google_price", err)
		}
		if a.AppleRating, err = parseFloatPtr(row["apple_rating"]); err != nil {
			return nil, rowErr(path, i, "apple_rating", err)
		}
		if a.AppleRatings, err = parseIntPtr(row["apple_rating_count"]); err != nil {
			return nil, rowErr(path, i, "apple_rating_count", err)
		}
		if a.ApplePrice, err = parseFloatPtr(row["apple_price"]); err != nil {
			return nil, rowErr(path, i, "apple_price", err)
		}
		a.OnBothStores = row["on_both_stores"] == "1"
		apps = append(apps, a)
	}
	return apps, nil
}

// WriteCampaignCSV writes the cleaned D2C dataset with derived metrics.
func WriteCampaignCSV(path string, records []CampaignRecord) error {
	return writeCSV(path, campaignHeader, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.CampaignID, r.Channel, formatFloat(r.SpendUSD),
			strconv.FormatInt(r.Impressions, 10), strconv.FormatInt(r.Clicks, 10),
			strconv.FormatInt(r.Installs, 10), strconv.FormatInt(r.Signups, 10),
			strconv.FormatInt(r.FirstPurchase, 10), strconv.FormatInt(r.RepeatPurchase, 10),
			formatFloat(r.RevenueUSD), formatFloat(r.ConversionRate),
			formatFloat(r.CAC), formatFloat(r.ROAS), formatFloat(r.CTR), formatFloat(r.RetentionRate),
		}
	})
}

// ReadCampaignCSV reads the cleaned D2C dataset.
func ReadCampaignCSV(path string) ([]CampaignRecord, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(campaignHeader...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]CampaignRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		r := CampaignRecord{CampaignID: row["campaign_id"], Channel: row["channel"]}
		fields := []struct {
			col  string
			dstF *float64
			dstI *int64
		}{
			{col: "spend_usd", dstF: &r.SpendUSD},
			{col: "impressions", dstI: &r.Impressions},
			{col: "clicks", dstI: &r.Clicks},
			{col: "installs", dstI: &r.Installs},
			{col: "signups", dstI: &r.Signups},
			{col: "first_purchase", dstI: &r.FirstPurchase},
			{col: "repeat_purchase", dstI: &r.RepeatPurchase},
			{col: "revenue_usd", dstF: &r.RevenueUSD},
			{col: "conversion_rate", dstF: &r.ConversionRate},
			{col: "cac", dstF: &r.CAC},
			{col: "roas", dstF: &r.ROAS},
			{col: "ctr", dstF: &r.CTR},
			{col: "retention_rate", dstF: &r.RetentionRate},
		}
		for _, f := range fields {
			if f.dstF != nil {
				if *f.dstF, err = parseFloat(row[f.col]); err != nil {
					return nil, rowErr(path, i, f.col, err)
				}
			} else {
				if *f.dstI, err = parseInt(row[f.col]); err != nil {
					return nil, rowErr(path, i, f.col, err)
				}
			}
		}
		records = append(records, r)
	}
	return records, nil
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	w.Flush()
	return w.Error()
}

func rowErr(path string, i int, col string, err error) error {
	return fmt.Errorf("%s row %d column %s: %w", path, i+1, col, err)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseFloatPtr(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseIntPtr(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

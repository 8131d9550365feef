// Package d2c cleans a direct-to-consumer marketing dataset and
// generates funnel metrics and narrative insights for it. It runs
// beside the app-comparison pipeline and shares no state with it.
package d2c

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"marketintel/internal/dataset"
)

// Raw campaign columns. Header names are normalized to snake_case
// before lookup, so "Spend USD" and "spend_usd" both resolve.
var requiredColumns = []string{
	"campaign_id", "channel", "spend_usd", "impressions", "clicks",
	"installs", "signups", "first_purchase", "repeat_purchase",
	"revenue_usd", "conversion_rate",
}

// CleanResult holds the counts of a D2C cleaning run.
type CleanResult struct {
	TotalRows  int
	Kept       int
	Duplicates int
}

// Clean validates and cleans the raw campaign table and computes the
// derived funnel metrics for every row. Missing numeric cells are
// treated as zero; duplicate rows are dropped.
func Clean(t *dataset.Table) ([]dataset.CampaignRecord, *CleanResult, error) {
	cols, err := resolveColumns(t)
	if err != nil {
		return nil, nil, err
	}

	r := &CleanResult{TotalRows: len(t.Rows)}
	records := make([]dataset.CampaignRecord, 0, len(t.Rows))
	seen := make(map[string]struct{}, len(t.Rows))

	for _, row := range t.Rows {
		key := rowKey(row, cols)
		if _, dup := seen[key]; dup {
			r.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		rec := dataset.CampaignRecord{
			CampaignID:     strings.TrimSpace(row[cols["campaign_id"]]),
			Channel:        strings.TrimSpace(row[cols["channel"]]),
			SpendUSD:       floatOrZero(row[cols["spend_usd"]]),
			Impressions:    intOrZero(row[cols["impressions"]]),
			Clicks:         intOrZero(row[cols["clicks"]]),
			Installs:       intOrZero(row[cols["installs"]]),
			Signups:        intOrZero(row[cols["signups"]]),
			FirstPurchase:  intOrZero(row[cols["first_purchase"]]),
			RepeatPurchase: intOrZero(row[cols["repeat_purchase"]]),
			RevenueUSD:     floatOrZero(row[cols["revenue_usd"]]),
			ConversionRate: floatOrZero(row[cols["conversion_rate"]]),
		}
		computeMetrics(&rec)
		records = append(records, rec)
	}

	r.Kept = len(records)
	log.Printf("D2C cleaning complete: %d rows in, %d kept, %d duplicates dropped",
		r.TotalRows, r.Kept, r.Duplicates)
	return records, r, nil
}

// computeMetrics fills the derived funnel metrics. Zero denominators
// yield zero rather than an error; absent activity is not a fault.
func computeMetrics(r *dataset.CampaignRecord) {
	r.CAC = ratio(r.SpendUSD, float64(r.Installs))
	r.ROAS = ratio(r.RevenueUSD, r.SpendUSD)
	r.CTR = ratio(float64(r.Clicks), float64(r.Impressions))
	r.RetentionRate = ratio(float64(r.RepeatPurchase), float64(r.FirstPurchase))
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func resolveColumns(t *dataset.Table) (map[string]string, error) {
	byNorm := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		byNorm[normalizeHeader(h)] = h
	}

	cols := make(map[string]string, len(requiredColumns))
	var missing []string
	for _, want := range requiredColumns {
		actual, ok := byNorm[want]
		if !ok {
			missing = append(missing, want)
			continue
		}
		cols[want] = actual
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("campaign dataset is missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func rowKey(row map[string]string, cols map[string]string) string {
	parts := make([]string, 0, len(requiredColumns))
	for _, c := range requiredColumns {
		parts = append(parts, strings.TrimSpace(row[cols[c]]))
	}
	return strings.Join(parts, "\x1f")
}

func floatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func intOrZero(s string) int64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// Some exports write counts as floats ("120.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// Run reads the raw campaign CSV, cleans it, and writes the cleaned
// dataset with metrics to outPath.
func Run(inPath, outPath string) ([]dataset.CampaignRecord, *CleanResult, error) {
	t, err := dataset.ReadTable(inPath)
	if err != nil {
		return nil, nil, err
	}
	records, r, err := Clean(t)
	if err != nil {
		return nil, nil, err
	}
	if err := dataset.WriteCampaignCSV(outPath, records); err != nil {
		return nil, nil, err
	}
	return records, r, nil
}

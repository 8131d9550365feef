package d2c

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"marketintel/internal/database"
	"marketintel/internal/dataset"
)

func rawTable(t *testing.T, rows [][]string) *dataset.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	f.Close()

	table, err := dataset.ReadTable(path)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	return table
}

var rawHeader = []string{
	"Campaign ID", "Channel", "Spend USD", "Impressions", "Clicks",
	"Installs", "Signups", "First Purchase", "Repeat Purchase",
	"Revenue USD", "Conversion Rate",
}

func TestCleanComputesMetrics(t *testing.T) {
	table := rawTable(t, [][]string{
		rawHeader,
		{"C1", "meta", "100", "1000", "50", "25", "10", "8", "4", "400", "0.32"},
	})

	records, r, err := Clean(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kept != 1 {
		t.Fatalf("expected 1 record, got %d", r.Kept)
	}

	rec := records[0]
	if rec.CAC != 4 { // 100 / 25
		t.Errorf("expected CAC 4, got %v", rec.CAC)
	}
	if rec.ROAS != 4 { // 400 / 100
		t.Errorf("expected ROAS 4, got %v", rec.ROAS)
	}
	if rec.CTR != 0.05 { // 50 / 1000
		t.Errorf("expected CTR 0.05, got %v", rec.CTR)
	}
	if rec.RetentionRate != 0.5 { // 4 / 8
		t.Errorf("expected retention 0.5, got %v", rec.RetentionRate)
	}
}

func TestCleanZeroDenominators(t *testing.T) {
	table := rawTable(t, [][]string{
		rawHeader,
		{"C1", "seo", "100", "0", "0", "0", "0", "0", "0", "0", "0"},
	})

	records, _, err := Clean(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := records[0]
	if rec.CAC != 0 || rec.ROAS != 0 || rec.CTR != 0 || rec.RetentionRate != 0 {
		t.Errorf("zero denominators must yield zero metrics, got %+v", rec)
	}
}

func TestCleanDropsDuplicatesAndZeroFills(t *testing.T) {
	row := []string{"C1", "meta", "100", "1000", "50", "25", "10", "8", "4", "400", "0.32"}
	table := rawTable(t, [][]string{
		rawHeader,
		row,
		row,
		{"C2", "google", "", "500", "", "10", "5", "2", "1", "50", ""},
	})

	records, r, err := Clean(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kept != 2 || r.Duplicates != 1 {
		t.Errorf("expected 2 kept and 1 duplicate, got %+v", r)
	}

	c2 := records[1]
	if c2.SpendUSD != 0 || c2.Clicks != 0 || c2.ConversionRate != 0 {
		t.Errorf("missing cells must be zero-filled, got %+v", c2)
	}
	if c2.CAC != 0 { // spend is zero
		t.Errorf("expected zero CAC for zero spend, got %v", c2.CAC)
	}
}

func TestCleanAcceptsSnakeCaseHeaders(t *testing.T) {
	table := rawTable(t, [][]string{
		{"campaign_id", "channel", "spend_usd", "impressions", "clicks",
			"installs", "signups", "first_purchase", "repeat_purchase",
			"revenue_usd", "conversion_rate"},
		{"C1", "meta", "10", "100", "5", "2", "1", "1", "0", "20", "0.5"},
	})

	if _, _, err := Clean(table); err != nil {
		t.Fatalf("snake_case headers should resolve: %v", err)
	}
}

func TestCleanMissingColumnsFailFast(t *testing.T) {
	table := rawTable(t, [][]string{
		{"Campaign ID", "Channel"},
		{"C1", "meta"},
	})

	_, _, err := Clean(table)
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "spend_usd") || !strings.Contains(err.Error(), "revenue_usd") {
		t.Errorf("error should name the missing columns, got: %v", err)
	}
}

func TestCleanIdempotent(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "raw.csv")
	outPath := filepath.Join(dir, "cleaned.csv")

	f, err := os.Create(inPath)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	w := csv.NewWriter(f)
	w.WriteAll([][]string{
		rawHeader,
		{"C1", "meta", "100", "1000", "50", "25", "10", "8", "4", "400", "0.32"},
	})
	f.Close()

	first, _, err := Run(inPath, outPath)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, _, err := Run(outPath, filepath.Join(dir, "cleaned2.csv"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-cleaning the cleaned dataset must be the identity:\n%+v\n%+v", first, second)
	}
}

func TestAverage(t *testing.T) {
	records := []dataset.CampaignRecord{
		{CAC: 2, ROAS: 4, ConversionRate: 0.2, CTR: 0.1, RetentionRate: 0.5},
		{CAC: 4, ROAS: 2, ConversionRate: 0.4, CTR: 0.3, RetentionRate: 0.1},
	}
	a := Average(records)
	if a.Campaigns != 2 || a.CAC != 3 || a.ROAS != 3 {
		t.Errorf("unexpected averages: %+v", a)
	}
	if a.ConversionRate != 0.3 || a.CTR != 0.2 || a.RetentionRate != 0.3 {
		t.Errorf("unexpected rate averages: %+v", a)
	}
}

func TestAverageEmpty(t *testing.T) {
	a := Average(nil)
	if a.Campaigns != 0 || a.CAC != 0 {
		t.Errorf("expected zero averages, got %+v", a)
	}
}

type mockProvider struct {
	responses []string
	calls     int
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	i := m.calls
	m.calls++
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", nil
}

func (m *mockProvider) IsConfigured() bool { return true }

const goodResponse = `{
  "insights": [{"insight": "ROAS is healthy", "confidence": "High"}],
  "ad_headlines": ["Grow faster"],
  "seo_descriptions": ["A better funnel"],
  "product_descriptions": ["The product"]
}`

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGenerateInsightsPersists(t *testing.T) {
	db := openTestDB(t)
	provider := &mockProvider{responses: []string{goodResponse}}
	records := []dataset.CampaignRecord{{CampaignID: "C1", CAC: 2, ROAS: 4}}

	jsonPath := filepath.Join(t.TempDir(), "d2c_insights.json")
	insights, err := GenerateInsights(context.Background(), db, provider, records, jsonPath, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insights.Insights) != 1 || insights.Insights[0].Insight != "ROAS is healthy" {
		t.Errorf("unexpected insights: %+v", insights)
	}
	if len(insights.AdHeadlines) != 1 || len(insights.SEODescriptions) != 1 {
		t.Errorf("expected creative lists, got %+v", insights)
	}

	if _, err := os.Stat(jsonPath); err != nil {
		t.Errorf("insights JSON not written: %v", err)
	}
	stored, err := db.GetInsightReport(database.TrackD2C)
	if err != nil || stored == nil {
		t.Fatalf("expected stored report, got %v, %v", stored, err)
	}
}

func TestGenerateInsightsFailsAfterTwoAttempts(t *testing.T) {
	db := openTestDB(t)
	provider := &mockProvider{responses: []string{"garbage", "still garbage"}}

	_, err := GenerateInsights(context.Background(), db, provider, nil,
		filepath.Join(t.TempDir(), "i.json"), 256)
	if err == nil {
		t.Fatal("expected hard error")
	}
	if provider.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", provider.calls)
	}
}

func TestGenerateInsightsCodeFenceTolerant(t *testing.T) {
	db := openTestDB(t)
	provider := &mockProvider{responses: []string{"```json\n" + goodResponse + "\n```"}}

	insights, err := GenerateInsights(context.Background(), db, provider, nil,
		filepath.Join(t.TempDir(), "i.json"), 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insights.Insights) != 1 {
		t.Errorf("unexpected insights: %+v", insights)
	}
}

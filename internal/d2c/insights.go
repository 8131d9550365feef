package d2c

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"marketintel/internal/database"
	"marketintel/internal/dataset"
	"marketintel/internal/llm"
)

const maxAttempts = 2

const insightPrompt = `You are analyzing a direct-to-consumer marketing dataset.
Key averages across %d campaigns:
- CAC = $%.2f
- ROAS = %.2fx
- Conversion Rate = %.2f%%
- CTR = %.2f%%
- Retention Rate = %.2f%%

Generate:
1. 3 key market insights (with confidence High/Medium/Low).
2. 3 ad headlines (short, catchy).
3. 3 SEO meta descriptions.
4. 3 short product descriptions.

IMPORTANT: Return ONLY valid JSON without any markdown formatting or code blocks.
Example format:
{
    "insights": [
        {"insight": "text", "confidence": "High"}
    ],
    "ad_headlines": ["headline1", "headline2", "headline3"],
    "seo_descriptions": ["desc1", "desc2", "desc3"],
    "product_descriptions": ["prod1", "prod2", "prod3"]
}`

// Averages holds the campaign-level means fed to the prompt.
type Averages struct {
	Campaigns      int     `json:"campaigns"`
	CAC            float64 `json:"avg_cac"`
	ROAS           float64 `json:"avg_roas"`
	ConversionRate float64 `json:"avg_conversion_rate"`
	CTR            float64 `json:"avg_ctr"`
	RetentionRate  float64 `json:"avg_retention_rate"`
}

// Finding is one narrative insight with its confidence label.
type Finding struct {
	Insight    string `json:"insight"`
	Confidence string `json:"confidence"`
}

// Insights is the full creative package returned by the provider.
type Insights struct {
	Insights            []Finding `json:"insights"`
	AdHeadlines         []string  `json:"ad_headlines"`
	SEODescriptions     []string  `json:"seo_descriptions"`
	ProductDescriptions []string  `json:"product_descriptions"`
}

// Average computes the mean funnel metrics over the cleaned campaigns.
func Average(records []dataset.CampaignRecord) Averages {
	a := Averages{Campaigns: len(records)}
	if len(records) == 0 {
		return a
	}

	for _, r := range records {
		a.CAC += r.CAC
		a.ROAS += r.ROAS
		a.ConversionRate += r.ConversionRate
		a.CTR += r.CTR
		a.RetentionRate += r.RetentionRate
	}
	n := float64(len(records))
	a.CAC /= n
	a.ROAS /= n
	a.ConversionRate /= n
	a.CTR /= n
	a.RetentionRate /= n
	return a
}

// GenerateInsights asks the provider for insights and ad creative over
// the campaign averages, persisting the result as JSON and a database
// row. A provider failure after both attempts is fatal.
func GenerateInsights(ctx context.Context, db *database.DB, provider llm.Provider, records []dataset.CampaignRecord, jsonPath string, maxTokens int) (*Insights, error) {
	if provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	avg := Average(records)
	prompt := fmt.Sprintf(insightPrompt, avg.Campaigns, avg.CAC, avg.ROAS,
		avg.ConversionRate*100, avg.CTR*100, avg.RetentionRate*100)

	insights, err := generate(ctx, provider, prompt, maxTokens)
	if err != nil {
		return nil, err
	}

	avgJSON, err := json.Marshal(avg)
	if err != nil {
		return nil, fmt.Errorf("encoding averages: %w", err)
	}
	insightsJSON, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding insights: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(jsonPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(jsonPath), err)
	}
	if err := os.WriteFile(jsonPath, insightsJSON, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", jsonPath, err)
	}
	if _, err := db.InsertInsightReport(database.TrackD2C, string(avgJSON), string(insightsJSON), renderReport(avg, insights)); err != nil {
		return nil, fmt.Errorf("storing D2C report: %w", err)
	}

	log.Printf("Generated D2C insights for %d campaigns", avg.Campaigns)
	return insights, nil
}

func generate(ctx context.Context, provider llm.Provider, prompt string, maxTokens int) (*Insights, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := provider.Generate(ctx, prompt, maxTokens)
		if err != nil {
			lastErr = err
			log.Printf("D2C insight generation failed (attempt %d/%d): %v", attempt, maxAttempts, err)
			continue
		}

		insights, err := parseResponse(text)
		if err != nil {
			lastErr = err
			log.Printf("D2C insight response unusable (attempt %d/%d): %v", attempt, maxAttempts, err)
			continue
		}
		return insights, nil
	}
	return nil, fmt.Errorf("D2C insight generation failed after %d attempts: %w", maxAttempts, lastErr)
}

func parseResponse(text string) (*Insights, error) {
	obj := llm.ParseJSONObject(text)
	if obj == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	out := &Insights{
		AdHeadlines:         strList(obj, "ad_headlines"),
		SEODescriptions:     strList(obj, "seo_descriptions"),
		ProductDescriptions: strList(obj, "product_descriptions"),
	}
	if items, ok := obj["insights"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			f := Finding{Insight: strField(m, "insight"), Confidence: strField(m, "confidence")}
			if f.Insight != "" {
				out.Insights = append(out.Insights, f)
			}
		}
	}
	if len(out.Insights) == 0 {
		return nil, fmt.Errorf("response contained no insights")
	}
	return out, nil
}

func strList(obj map[string]any, key string) []string {
	items, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func strField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func renderReport(avg Averages, insights *Insights) string {
	var b strings.Builder
	b.WriteString("# D2C Funnel & Creative Insights\n\n")
	fmt.Fprintf(&b, "- Campaigns: %d\n", avg.Campaigns)
	fmt.Fprintf(&b, "- Avg CAC: $%.2f, Avg ROAS: %.2fx\n", avg.CAC, avg.ROAS)
	fmt.Fprintf(&b, "- Avg CTR: %.2f%%, Avg Retention: %.2f%%\n\n", avg.CTR*100, avg.RetentionRate*100)
	for _, f := range insights.Insights {
		fmt.Fprintf(&b, "- **Insight**: %s\n", f.Insight)
		fmt.Fprintf(&b, "  - Confidence: %s\n\n", f.Confidence)
	}
	writeList(&b, "Ad Headlines", insights.AdHeadlines)
	writeList(&b, "SEO Descriptions", insights.SEODescriptions)
	writeList(&b, "Product Descriptions", insights.ProductDescriptions)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

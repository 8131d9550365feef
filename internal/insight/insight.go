// Package insight summarizes the merged dataset and asks the LLM
// provider for narrative market insights, persisting the result as
// JSON, a Markdown report, and a database row.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketintel/internal/database"
	"marketintel/internal/dataset"
	"marketintel/internal/llm"
	"marketintel/internal/newsfeed"
)

const maxAttempts = 2

const insightPrompt = `You are a mobile-app market analyst reviewing a combined Google Play / App Store dataset.

Dataset summary:
%s
Generate 3 market insights:
- Trends
- Competitor performance
- Recommendations

For each, assign confidence as High, Medium, or Low.
Respond with ONLY a valid JSON array with keys: insight, confidence.
Example:
[
  {"insight": "Sample text", "confidence": "High"},
  {"insight": "Sample text 2", "confidence": "Medium"}
]`

// Insight is one narrative finding with its confidence label.
type Insight struct {
	Insight    string `json:"insight"`
	Confidence string `json:"confidence"`
}

// Generator produces the app-track insight report.
type Generator struct {
	db       *database.DB
	provider llm.Provider
	news     *newsfeed.Fetcher
	maxNews  int
	tokens   int
}

// NewGenerator creates a generator. news may be nil when headline
// context is disabled.
func NewGenerator(db *database.DB, provider llm.Provider, news *newsfeed.Fetcher, maxNews, maxTokens int) *Generator {
	return &Generator{db: db, provider: provider, news: news, maxNews: maxNews, tokens: maxTokens}
}

// Generate summarizes the merged dataset, queries the provider, and
// writes the insights JSON and Markdown report. A provider failure
// after both attempts is fatal; the dashboard depends on this
// artifact.
func (g *Generator) Generate(ctx context.Context, apps []dataset.MergedApp, jsonPath, reportPath string) (Summary, []Insight, error) {
	summary := Summarize(apps)
	if g.provider == nil {
		return summary, nil, fmt.Errorf("no LLM provider configured")
	}

	prompt := fmt.Sprintf(insightPrompt, summary.promptBlock())
	if g.news != nil {
		if headlines := g.news.Fetch(g.maxNews); len(headlines) > 0 {
			prompt += "\n\nRecent industry headlines for context:\n" + formatHeadlines(headlines)
		}
	}

	insights, err := generateInsights(ctx, g.provider, prompt, g.tokens)
	if err != nil {
		return summary, nil, err
	}

	statsJSON, err := json.Marshal(summary)
	if err != nil {
		return summary, nil, fmt.Errorf("encoding summary: %w", err)
	}
	insightsJSON, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return summary, nil, fmt.Errorf("encoding insights: %w", err)
	}
	body := renderReport(summary, insights)

	if err := writeFile(jsonPath, insightsJSON); err != nil {
		return summary, nil, err
	}
	if err := writeFile(reportPath, []byte(body)); err != nil {
		return summary, nil, err
	}
	if _, err := g.db.InsertInsightReport(database.TrackApps, string(statsJSON), string(insightsJSON), body); err != nil {
		return summary, nil, fmt.Errorf("storing insight report: %w", err)
	}

	log.Printf("Generated %d insights across %d apps", len(insights), summary.TotalApps)
	return summary, insights, nil
}

// generateInsights calls the provider with bounded retries and parses
// the JSON array out of its response.
func generateInsights(ctx context.Context, provider llm.Provider, prompt string, maxTokens int) ([]Insight, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := provider.Generate(ctx, prompt, maxTokens)
		if err != nil {
			lastErr = err
			log.Printf("Insight generation failed (attempt %d/%d): %v", attempt, maxAttempts, err)
			continue
		}

		insights, err := parseInsights(text)
		if err != nil {
			lastErr = err
			log.Printf("Insight response unusable (attempt %d/%d): %v", attempt, maxAttempts, err)
			continue
		}
		return insights, nil
	}
	return nil, fmt.Errorf("insight generation failed after %d attempts: %w", maxAttempts, lastErr)
}

func parseInsights(text string) ([]Insight, error) {
	items := llm.ParseJSONArray(text)
	if items == nil {
		return nil, fmt.Errorf("response is not a JSON array")
	}

	var insights []Insight
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ins := Insight{
			Insight:    strField(obj, "insight"),
			Confidence: normalizeConfidence(strField(obj, "confidence")),
		}
		if ins.Insight == "" {
			continue
		}
		insights = append(insights, ins)
	}
	if len(insights) == 0 {
		return nil, fmt.Errorf("response contained no insights")
	}
	return insights, nil
}

func normalizeConfidence(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

func strField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func formatHeadlines(headlines []newsfeed.Headline) string {
	var b strings.Builder
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Source)
	}
	return b.String()
}

func renderReport(summary Summary, insights []Insight) string {
	var b strings.Builder
	b.WriteString("# AI-Powered Market Insights\n\n")
	fmt.Fprintf(&b, "_Generated %s over %d apps._\n\n", time.Now().Format("2006-01-02"), summary.TotalApps)
	b.WriteString(summary.promptBlock())
	b.WriteString("\n")
	for _, ins := range insights {
		fmt.Fprintf(&b, "- **Insight**: %s\n", ins.Insight)
		fmt.Fprintf(&b, "  - Confidence: %s\n\n", ins.Confidence)
	}
	return b.String()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

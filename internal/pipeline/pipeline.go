// Package pipeline orchestrates the market-intelligence phases in
// their fixed order: clean, enrich, normalize, merge, insights.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"marketintel/internal/clean"
	"marketintel/internal/config"
	"marketintel/internal/d2c"
	"marketintel/internal/database"
	"marketintel/internal/dataset"
	"marketintel/internal/enrich"
	"marketintel/internal/insight"
	"marketintel/internal/llm"
	"marketintel/internal/merge"
	"marketintel/internal/newsfeed"
	"marketintel/internal/normalize"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Failed reports whether any step errored.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline orchestrates the 5-step market analysis pipeline.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	ins := cfg.Insights
	provider := llm.CreateProvider(
		ins.Provider,
		ins.GeminiModel,
		ins.GeminiKeyEnv,
		ins.OpenAIModel,
		ins.OpenAIKeyEnv,
	)

	return &Pipeline{cfg: cfg, db: db, provider: provider}
}

// Run executes the full pipeline. A failed step stops the run; every
// later step depends on the earlier artifacts.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	// Step 1: Clean
	log.Println("Step 1/5: Cleaning Play Store dataset...")
	step := p.RunClean()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Enrich
	log.Println("Step 2/5: Enriching from App Store catalog...")
	step = p.RunEnrich()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 3: Normalize
	log.Println("Step 3/5: Normalizing catalog responses...")
	step = p.RunNormalize()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 4: Merge
	log.Println("Step 4/5: Merging datasets...")
	step = p.RunMerge()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 5: Insights
	log.Println("Step 5/5: Generating market insights...")
	step = p.RunInsights(ctx)
	r.Steps = append(r.Steps, step)

	return r
}

// RunClean cleans the raw Play Store dataset.
func (p *Pipeline) RunClean() StepResult {
	paths := p.cfg.Paths
	if err := config.RequireFile(paths.RawApps, "raw Play Store export"); err != nil {
		return StepResult{Name: "Clean", Err: err}
	}

	t, err := dataset.ReadTable(paths.RawApps)
	if err != nil {
		return StepResult{Name: "Clean", Err: err}
	}
	apps, result, err := clean.New().Clean(t)
	if err != nil {
		return StepResult{Name: "Clean", Err: err}
	}
	if err := dataset.WritePlayStoreCSV(paths.CleanedApps, apps); err != nil {
		return StepResult{Name: "Clean", Err: err}
	}

	return p.record(StepResult{
		Name: "Clean",
		Summary: fmt.Sprintf("Kept %d of %d rows (%d duplicates, %d missing fields, %d invalid)",
			result.Kept, result.TotalRows, result.DroppedDuplicates, result.DroppedMissing, result.DroppedInvalid),
	})
}

// RunEnrich looks up every cleaned app in the catalog API.
func (p *Pipeline) RunEnrich() StepResult {
	cat := p.cfg.Catalog
	if err := config.RequireEnv(cat.APIKeyEnv, cat.APIHostEnv); err != nil {
		return StepResult{Name: "Enrich", Err: err}
	}

	apps, err := dataset.ReadPlayStoreCSV(p.cfg.Paths.CleanedApps)
	if err != nil {
		return StepResult{Name: "Enrich", Err: err}
	}

	client := enrich.NewClient(cat.APIKeyEnv, cat.APIHostEnv, cat.Country,
		time.Duration(cat.TimeoutSeconds)*time.Second)
	result, err := enrich.NewEnricher(p.db, client, cat.MaxRetries).EnrichApps(apps)
	if err != nil {
		return StepResult{Name: "Enrich", Err: err}
	}

	return p.record(StepResult{
		Name: "Enrich",
		Summary: fmt.Sprintf("%d apps: %d fetched, %d not found, %d failed, %d cached",
			result.Total, result.Fetched, result.NotFound, result.Failed, result.Skipped),
	})
}

// RunNormalize projects the cached catalog responses onto the flat
// App Store dataset.
func (p *Pipeline) RunNormalize() StepResult {
	result, err := normalize.Run(p.db, p.cfg.Paths.AppStoreApps)
	if err != nil {
		return StepResult{Name: "Normalize", Err: err}
	}

	return p.record(StepResult{
		Name:    "Normalize",
		Summary: fmt.Sprintf("Normalized %d of %d cached entries", result.Apps, result.Cached),
	})
}

// RunMerge joins the two datasets.
func (p *Pipeline) RunMerge() StepResult {
	paths := p.cfg.Paths
	result, err := merge.Run(paths.CleanedApps, paths.AppStoreApps, paths.MergedApps)
	if err != nil {
		return StepResult{Name: "Merge", Err: err}
	}

	return p.record(StepResult{
		Name:    "Merge",
		Summary: fmt.Sprintf("Merged %d apps (%d matched in catalog)", result.Merged, result.Matched),
	})
}

// RunInsights generates the narrative market insights.
func (p *Pipeline) RunInsights(ctx context.Context) StepResult {
	apps, err := dataset.ReadMergedCSV(p.cfg.Paths.MergedApps)
	if err != nil {
		return StepResult{Name: "Insights", Err: err}
	}

	var fetcher *newsfeed.Fetcher
	if p.cfg.News.Enabled {
		feeds := make([]newsfeed.Feed, len(p.cfg.News.Feeds))
		for i, f := range p.cfg.News.Feeds {
			feeds[i] = newsfeed.Feed{URL: f.URL, Name: f.Name}
		}
		fetcher = newsfeed.NewFetcher(feeds)
	}

	gen := insight.NewGenerator(p.db, p.provider, fetcher, p.cfg.News.MaxHeadlines, p.cfg.Insights.MaxTokens)
	summary, insights, err := gen.Generate(ctx, apps, p.cfg.Paths.InsightsJSON, p.cfg.Paths.ReportMD)
	if err != nil {
		return StepResult{Name: "Insights", Err: err}
	}

	return p.record(StepResult{
		Name:    "Insights",
		Summary: fmt.Sprintf("Generated %d insights over %d apps", len(insights), summary.TotalApps),
	})
}

// RunD2CClean cleans the campaign dataset and computes funnel metrics.
func (p *Pipeline) RunD2CClean() StepResult {
	paths := p.cfg.Paths
	if err := config.RequireFile(paths.D2CRaw, "raw D2C campaign export"); err != nil {
		return StepResult{Name: "D2C Clean", Err: err}
	}

	_, result, err := d2c.Run(paths.D2CRaw, paths.D2CCleaned)
	if err != nil {
		return StepResult{Name: "D2C Clean", Err: err}
	}

	return p.record(StepResult{
		Name: "D2C Clean",
		Summary: fmt.Sprintf("Kept %d of %d campaigns (%d duplicates dropped)",
			result.Kept, result.TotalRows, result.Duplicates),
	})
}

// RunD2CInsights generates the funnel and creative insights.
func (p *Pipeline) RunD2CInsights(ctx context.Context) StepResult {
	records, err := dataset.ReadCampaignCSV(p.cfg.Paths.D2CCleaned)
	if err != nil {
		return StepResult{Name: "D2C Insights", Err: err}
	}

	insights, err := d2c.GenerateInsights(ctx, p.db, p.provider, records, p.cfg.Paths.D2CInsights, p.cfg.Insights.MaxTokens)
	if err != nil {
		return StepResult{Name: "D2C Insights", Err: err}
	}

	return p.record(StepResult{
		Name:    "D2C Insights",
		Summary: fmt.Sprintf("Generated %d insights over %d campaigns", len(insights.Insights), len(records)),
	})
}

// record stores a run report row for a completed step.
func (p *Pipeline) record(step StepResult) StepResult {
	if _, err := p.db.InsertRunReport(step.Name, step.Summary); err != nil {
		log.Printf("Failed to record run report for %s: %v", step.Name, err)
	}
	return step
}

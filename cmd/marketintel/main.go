package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"marketintel/internal/config"
	"marketintel/internal/database"
	"marketintel/internal/pipeline"
	"marketintel/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "marketintel",
	Short:   "Mobile app market intelligence pipeline",
	Long:    "marketintel cleans a Play Store dataset, enriches it from the App Store catalog, merges both, and generates AI market insights with a local dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(d2cCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("marketintel", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/marketintel/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure dataset paths, API credentials, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Catalog lookups:")
		fmt.Printf("  Total cached: %d\n", stats.LookupsTotal)
		fmt.Printf("  Matched: %d\n", stats.LookupsOK)
		fmt.Printf("  Not found: %d\n", stats.LookupsNotFound)
		fmt.Printf("  Failed: %d\n", stats.LookupsFailed)
		fmt.Println("\nReports:")
		fmt.Printf("  Insight reports: %d\n", stats.InsightReports)
		fmt.Printf("  Recorded runs: %d\n", stats.Runs)

		runs, err := db.GetRecentRuns(5)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent runs:")
			for _, run := range runs {
				fmt.Printf("  %s: %s\n", run.Phase, run.Summary)
			}
		}
		return nil
	},
}

// --- phase commands ---

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the raw Play Store dataset",
	RunE:  phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult { return p.RunClean() }),
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Look up cleaned apps in the App Store catalog API",
	RunE:  phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult { return p.RunEnrich() }),
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Project cached catalog responses onto the App Store dataset",
	RunE:  phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult { return p.RunNormalize() }),
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Join the Play Store and App Store datasets",
	RunE:  phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult { return p.RunMerge() }),
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate AI market insights over the merged dataset",
	RunE: phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult {
		return p.RunInsights(context.Background())
	}),
}

// phaseCommand wraps a single pipeline step as a cobra RunE.
func phaseCommand(step func(*pipeline.Pipeline) pipeline.StepResult) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := step(pipeline.New(cfg, db))
		if result.Err != nil {
			return fmt.Errorf("%s failed: %w", result.Name, result.Err)
		}
		fmt.Printf("%s: %s\n", result.Name, result.Summary)
		return nil
	}
}

// --- d2c command ---

var d2cCmd = &cobra.Command{
	Use:   "d2c",
	Short: "Run the D2C marketing analysis track",
}

var d2cCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the campaign dataset and compute funnel metrics",
	RunE:  phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult { return p.RunD2CClean() }),
}

var d2cInsightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate funnel and creative insights for the campaigns",
	RunE: phaseCommand(func(p *pipeline.Pipeline) pipeline.StepResult {
		return p.RunD2CInsights(context.Background())
	}),
}

func init() {
	d2cCmd.AddCommand(d2cCleanCmd)
	d2cCmd.AddCommand(d2cInsightsCmd)
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: clean -> enrich -> normalize -> merge -> insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := pipeline.New(cfg, db).Run(context.Background())

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/5: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if result.Failed() {
			return fmt.Errorf("pipeline failed")
		}
		fmt.Println("\nPipeline complete! Run 'marketintel serve' to view the dashboard.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting dashboard at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg.Paths, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "marketintel.db")
	return database.Open(dbPath)
}

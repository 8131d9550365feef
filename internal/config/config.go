package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Paths    Paths    `yaml:"paths"`
	Catalog  Catalog  `yaml:"catalog"`
	Insights Insights `yaml:"insights"`
	News     News     `yaml:"news"`
	Server   Server   `yaml:"server"`
}

// Paths holds the file locations of every pipeline artifact.
type Paths struct {
	DataDir      string `yaml:"data_dir"`
	RawApps      string `yaml:"raw_apps"`
	CleanedApps  string `yaml:"cleaned_apps"`
	AppStoreApps string `yaml:"appstore_apps"`
	MergedApps   string `yaml:"merged_apps"`
	InsightsJSON string `yaml:"insights_json"`
	ReportMD     string `yaml:"report_md"`
	D2CRaw       string `yaml:"d2c_raw"`
	D2CCleaned   string `yaml:"d2c_cleaned"`
	D2CInsights  string `yaml:"d2c_insights"`
}

// Catalog configures the App Store catalog API client. Credentials are
// named by env var, never stored in the file.
type Catalog struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	APIHostEnv     string `yaml:"api_host_env"`
	Country        string `yaml:"country"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Insights configures the generative-text provider.
type Insights struct {
	Provider     string `yaml:"provider"`
	GeminiModel  string `yaml:"gemini_model"`
	GeminiKeyEnv string `yaml:"gemini_api_key_env"`
	OpenAIModel  string `yaml:"openai_model"`
	OpenAIKeyEnv string `yaml:"openai_api_key_env"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// News configures optional market-news feeds mixed into insight prompts.
type News struct {
	Enabled      bool   `yaml:"enabled"`
	Feeds        []Feed `yaml:"feeds"`
	MaxHeadlines int    `yaml:"max_headlines"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for marketintel.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "marketintel")
}

// DataDir returns the XDG data directory for marketintel.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "marketintel")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/marketintel/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'marketintel init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file. A .env file in the working
// directory is loaded first so api_key_env lookups see its values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Paths: Paths{
			RawApps:      "data/raw/googleplaystore.csv",
			CleanedApps:  "data/processed/cleaned_apps.csv",
			AppStoreApps: "data/processed/appstore_apps.csv",
			MergedApps:   "data/processed/merged_apps.csv",
			InsightsJSON: "data/processed/insights.json",
			ReportMD:     "reports/insights_report.md",
			D2CRaw:       "data/raw/d2c_campaigns.csv",
			D2CCleaned:   "data/processed/d2c_cleaned.csv",
			D2CInsights:  "data/processed/d2c_insights.json",
		},
		Catalog: Catalog{
			APIKeyEnv:      "RAPIDAPI_KEY",
			APIHostEnv:     "RAPIDAPI_HOST",
			Country:        "us",
			MaxRetries:     3,
			TimeoutSeconds: 10,
		},
		Insights: Insights{
			Provider:     "gemini",
			GeminiModel:  "gemini-pro-latest",
			GeminiKeyEnv: "GEMINI_API_KEY",
			OpenAIModel:  "gpt-4o-mini",
			OpenAIKeyEnv: "OPENAI_API_KEY",
			MaxTokens:    1024,
		},
		News:   News{MaxHeadlines: 10},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Paths.DataDir != "" {
		return c.Paths.DataDir
	}
	return DataDir()
}

// RequireEnv checks that every named environment variable is set and
// non-empty, reporting all missing ones in a single error so a phase
// fails at startup rather than mid-batch.
func RequireEnv(names ...string) error {
	var missing []string
	for _, n := range names {
		if os.Getenv(n) == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireFile checks that an input artifact exists before a phase runs.
func RequireFile(path, hint string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input file %s not found (%s)", path, hint)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

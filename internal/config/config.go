// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// RunMode selects between the production configuration and the reduced
// test configuration (smaller samples, fewer bootstrap replicates).
type RunMode string

const (
	// RunModeTest - reduced sample sizes and replicate counts for local runs
	RunModeTest RunMode = "TEST"
	// RunModeProd - full benchmark configuration
	RunModeProd RunMode = "PROD"
)

// Config holds application configuration
type Config struct {
	RunMode     RunMode
	CloudRegion string
	TaskIndex   int // Injected by the external job scheduler (0-based)
	NumCPUs     int // Worker count for parallel stages (bootstrap, series updates)

	// Bucket is the object-store bucket; the key layout inside it is
	// fixed and path-exact (see objstore).
	Bucket string

	// LocalStoreDir, when set, backs all buckets with a local directory
	// instead of S3. Always set under RUN_MODE=TEST.
	LocalStoreDir string

	DataDir         string // Base directory for the sqlite question bank tables
	AlertWebhookURL string
	LogLevel        string
	Port            int
	DevMode         bool

	// Upstream API credentials. Sources without an entry are public.
	FREDAPIKey   string
	ACLEDAPIKey  string
	ACLEDEmail   string
	MetaculusKey string

	// ClassifierURL is the external category classification service.
	// Empty falls back to the offline keyword classifier.
	ClassifierURL string
}

// Curation returns the curator sizing for the active run mode.
func (c *Config) Curation() (llmN, humanN int) {
	if c.RunMode == RunModeTest {
		return 20, 10
	}
	return 1000, 200
}

// BootstrapReplicates returns the bootstrap replicate count for the active
// run mode.
func (c *Config) BootstrapReplicates() int {
	if c.RunMode == RunModeTest {
		return 5
	}
	return 1999
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory: FORECASTBENCH_DATA_DIR, else ./data,
	// always resolved to an absolute path that exists.
	dataDir := getEnv("FORECASTBENCH_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		RunMode:     RunMode(getEnv("RUN_MODE", string(RunModeTest))),
		CloudRegion: getEnv("CLOUD_REGION", "us-east-1"),
		TaskIndex:   getEnvAsInt("TASK_INDEX", 0),
		NumCPUs:     getEnvAsInt("N_CPUS", runtime.NumCPU()),

		Bucket: getEnv("FORECASTBENCH_BUCKET", "forecastbench"),

		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", ""),
		DataDir:         absDataDir,
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("GO_PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),

		FREDAPIKey:   getEnv("FRED_API_KEY", ""),
		ACLEDAPIKey:  getEnv("ACLED_API_KEY", ""),
		ACLEDEmail:   getEnv("ACLED_EMAIL", ""),
		MetaculusKey: getEnv("METACULUS_API_KEY", ""),

		ClassifierURL: getEnv("CLASSIFIER_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RunMode != RunModeTest && c.RunMode != RunModeProd {
		return fmt.Errorf("invalid RUN_MODE %q: must be TEST or PROD", c.RunMode)
	}
	if c.RunMode == RunModeTest && c.LocalStoreDir == "" {
		// TEST runs never touch real buckets
		c.LocalStoreDir = filepath.Join(c.DataDir, "localstore")
	}
	if c.NumCPUs < 1 {
		return fmt.Errorf("N_CPUS must be positive, got %d", c.NumCPUs)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

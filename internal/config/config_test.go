package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FORECASTBENCH_DATA_DIR", t.TempDir())
	t.Setenv("RUN_MODE", "")
	t.Setenv("LOCAL_STORE_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RunModeTest, cfg.RunMode)
	assert.Equal(t, "forecastbench", cfg.Bucket)
	assert.Equal(t, 8001, cfg.Port)
	assert.GreaterOrEqual(t, cfg.NumCPUs, 1)
	// TEST runs never touch real buckets
	assert.Equal(t, filepath.Join(cfg.DataDir, "localstore"), cfg.LocalStoreDir)
}

func TestLoadRejectsBadRunMode(t *testing.T) {
	t.Setenv("FORECASTBENCH_DATA_DIR", t.TempDir())
	t.Setenv("RUN_MODE", "STAGING")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUN_MODE")
}

func TestLoadProdKeepsBucketBacking(t *testing.T) {
	t.Setenv("FORECASTBENCH_DATA_DIR", t.TempDir())
	t.Setenv("RUN_MODE", "PROD")
	t.Setenv("LOCAL_STORE_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RunModeProd, cfg.RunMode)
	assert.Empty(t, cfg.LocalStoreDir)
}

func TestLoadRejectsBadCPUCount(t *testing.T) {
	t.Setenv("FORECASTBENCH_DATA_DIR", t.TempDir())
	t.Setenv("RUN_MODE", "TEST")
	t.Setenv("N_CPUS", "-2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "N_CPUS")
}

func TestRunModeSizing(t *testing.T) {
	test := &Config{RunMode: RunModeTest}
	llmN, humanN := test.Curation()
	assert.Equal(t, 20, llmN)
	assert.Equal(t, 10, humanN)
	assert.Equal(t, 5, test.BootstrapReplicates())

	prod := &Config{RunMode: RunModeProd}
	llmN, humanN = prod.Curation()
	assert.Equal(t, 1000, llmN)
	assert.Equal(t, 200, humanN)
	assert.Equal(t, 1999, prod.BootstrapReplicates())
}

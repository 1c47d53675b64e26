package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ValidateRejectsOutOfRangeB(t *testing.T) {
	cfg := DefaultConfig()
	cfg.B = 1.5 // must be in [0, 1]
	assert.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsNonPositiveK1(t *testing.T) {
	cfg := DefaultConfig()
	cfg.K1 = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsMissingPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IndexPath = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsNonPositiveRRFK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RRFK = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_AppliesDefaultsForUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("k1: 2.0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.K1, "overridden by file")
	assert.Equal(t, DefaultConfig().B, cfg.B, "not set by file, should keep default")
}

func TestLoad_RejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("b: 5.0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnsureDataDirs(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.IndexPath = filepath.Join(base, "nested", "index.bin")
	cfg.SparseIndexPath = filepath.Join(base, "nested", "splade_index")
	cfg.TitlesPath = filepath.Join(base, "nested", "titles.db")

	require.NoError(t, cfg.EnsureDataDirs())

	info, err := os.Stat(filepath.Join(base, "nested"))
	require.NoError(t, err, "expected nested directory to be created")
	assert.True(t, info.IsDir())
}

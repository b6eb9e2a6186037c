package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/app/images", cfg.LocalDir)
	assert.Empty(t, cfg.ImagesPrefix, "the whole input bucket by default")
	assert.Equal(t, 0.3, cfg.Threshold)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.StorageUseSSL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INPUT_BUCKET", "raw")
	t.Setenv("THRESHOLD", "0.1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "raw", cfg.InputBucket)
	assert.Equal(t, 0.1, cfg.Threshold)
	assert.Equal(t, "raw", cfg.Transfer().InputBucket)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "racoon.env")
	require.NoError(t, os.WriteFile(path, []byte("OUTPUT_BUCKET=clean\nLOCAL_DIR=/tmp/imgs\n"), 0644))
	t.Setenv("LOCAL_DIR", "/from/process")
	// godotenv does not override, so unset a var the file should supply
	t.Setenv("OUTPUT_BUCKET", "")
	os.Unsetenv("OUTPUT_BUCKET")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "clean", cfg.OutputBucket)
	assert.Equal(t, "/from/process", cfg.LocalDir)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestLoad_BadThreshold(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("THRESHOLD", "high")
	_, err := Load("")
	assert.Error(t, err)
}

func TestRequireBuckets_ReportsInOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		err := (&Config{}).RequireBuckets()
		require.Error(t, err)
		assert.Equal(t, "INPUT_BUCKET is not set", err.Error())
	}
	err := (&Config{InputBucket: "a"}).RequireBuckets()
	assert.Equal(t, "OUTPUT_BUCKET is not set", err.Error())
}

func TestLoad_DBPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RACOON_DB", "/data/racoon.db")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/racoon.db", cfg.DBPath)
}

func TestRequireBuckets(t *testing.T) {
	cfg := &Config{InputBucket: "a", OutputBucket: "b"}
	err := cfg.RequireBuckets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANNOTATION_SET_BUCKET")

	cfg.AnnotationBucket = "c"
	assert.NoError(t, cfg.RequireBuckets())
}

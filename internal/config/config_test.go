package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/speakerpipe/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "in/scraped_pages", cfg.Paths.PagesDir)
	assert.Equal(t, 10, cfg.Pipeline.ClassifyCheckpointInterval)
	assert.Equal(t, 20, cfg.Pipeline.GenerateCheckpointInterval)
	assert.Equal(t, 10, cfg.Pipeline.ClassifyConcurrency)
	assert.Equal(t, 15, cfg.Pipeline.GenerateConcurrency)
	assert.Equal(t, 5, cfg.Enrichment.BatchSize)
	assert.Equal(t, time.Second, cfg.Enrichment.Pause)
	assert.Equal(t, []string{"Builder", "Owner"}, cfg.Pipeline.EligibleCategories)
}

func TestNew_ReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speakerpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: anthropic
  model: claude-test
enrichment:
  pause: 250ms
pipeline:
  eligible_categories: [Builder]
`), 0o644))

	t.Setenv("SPEAKERPIPE_PIPELINE_CLASSIFY_CONCURRENCY", "3")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)
	assert.Equal(t, "tvly-test", cfg.Search.APIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Enrichment.Pause)
	assert.Equal(t, 3, cfg.Pipeline.ClassifyConcurrency)
	assert.Equal(t, []string{"Builder"}, cfg.Pipeline.EligibleCategories)
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(model.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

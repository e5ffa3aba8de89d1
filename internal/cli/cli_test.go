package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/speakerpipe/internal/model"
	"github.com/ppiankov/speakerpipe/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("SPEAKERPIPE_PATHS_OUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("SPEAKERPIPE_PATHS_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("SPEAKERPIPE_LOG_LEVEL", "error")
	return dir
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "speakerpipe "+Version)
}

func TestExportCommand_FromClassified(t *testing.T) {
	dir := isolate(t)
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	speakers := []model.Speaker{
		{Name: "B", Company: "Other", Category: model.CategoryOther},
		{Name: "A", Company: "Build", Category: model.CategoryBuilder},
	}
	data, err := json.Marshal(speakers)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outDir, pipeline.ClassifiedFile), data, 0o644))

	_, err = execute(t, "export")
	require.NoError(t, err)

	csv, err := os.ReadFile(filepath.Join(outDir, "email_list.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "A,"))
}

func TestExportCommand_NoData(t *testing.T) {
	isolate(t)
	_, err := execute(t, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run stage 1")
}

func TestGenerateCommand_RequiresStage1BeforeProvider(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SPEAKERPIPE_LLM_API_KEY", "")

	_, err := execute(t, "generate")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrStage1Missing)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TAVILY_API_KEY", "tvly-1234567890")

	path := filepath.Join(dir, "speakerpipe.yaml")
	_, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--path", path)
	assert.Error(t, err)

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "classify_checkpoint_interval: 10")
	assert.Contains(t, out, "tvly****7890")
	assert.NotContains(t, out, "tvly-1234567890")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "sk-a****wxyz", mask("sk-abcdefghwxyz"))
}

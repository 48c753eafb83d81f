package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"REMEM_CONFIG", "REMEM_SNAPSHOT", "REMEM_BACKUP_DIR", "REMEM_DB", "REMEM_PROVIDER",
		"REMEM_MODEL", "REMEM_BASE_URL", "REMEM_LOG_LEVEL", "REMEM_RANKER",
		"REMEM_MAX_ITERATIONS", "REMEM_TIMEOUT", "OPENAI_API_KEY", "DEEPSEEK_API_KEY",
		"MOONSHOT_API_KEY", "ANTHROPIC_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
memory:
  snapshot: /tmp/remem/bank.json
  capacity: 50
loop:
  max_iterations: 3
  timeout: 5s
  ranker: lexical
llm:
  provider: ollama
  model: llama3.1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/remem/bank.json", cfg.Memory.Snapshot)
	assert.Equal(t, 50, cfg.Memory.Capacity)
	assert.Equal(t, 1000, cfg.Memory.HistorySize, "unset fields keep defaults")
	assert.Equal(t, 3, cfg.Loop.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.Loop.Timeout)
	assert.Equal(t, "lexical", cfg.Loop.Ranker)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMEM_SNAPSHOT", "/data/m.json")
	t.Setenv("REMEM_PROVIDER", "deepseek")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("REMEM_MAX_ITERATIONS", "4")
	t.Setenv("REMEM_TIMEOUT", "1m")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/data/m.json", cfg.Memory.Snapshot)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 4, cfg.Loop.MaxIterations)
	assert.Equal(t, time.Minute, cfg.Loop.Timeout)
}

func TestLoad_BadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMEM_MAX_ITERATIONS", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"zero iterations": "loop:\n  max_iterations: 0\n",
		"bad ranker":      "loop:\n  ranker: magic\n",
		"bad provider":    "llm:\n  provider: telepathy\n",
		"bad base url":    "llm:\n  base_url: not a url\n",
		"bad log level":   "log:\n  level: loud\n",
		"malformed yaml":  "memory: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Loop.MaxIterations = 12
	require.NoError(t, Write(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

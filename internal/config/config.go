// Package config loads remem settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full remem configuration.
type Config struct {
	Memory  MemoryConfig  `yaml:"memory"`
	Loop    LoopConfig    `yaml:"loop"`
	LLM     LLMConfig     `yaml:"llm"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// MemoryConfig configures the bank and its snapshot store.
type MemoryConfig struct {
	Snapshot    string `yaml:"snapshot" validate:"required"`
	Capacity    int    `yaml:"capacity" validate:"gt=0"`
	HistorySize int    `yaml:"history_size" validate:"gt=0"`
	BackupDir   string `yaml:"backup_dir"`
	MaxBackups  int    `yaml:"max_backups" validate:"gte=0,lte=100"`
	Strict      bool   `yaml:"strict"`
}

// LoopConfig bounds the Think/Refine/Act loop.
type LoopConfig struct {
	MaxIterations int           `yaml:"max_iterations" validate:"gt=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	StuckWindow   int           `yaml:"stuck_window" validate:"gte=0"`
	RetrievalK    int           `yaml:"retrieval_k" validate:"gt=0"`
	ContextBudget int           `yaml:"context_budget" validate:"gt=0"`
	Ranker        string        `yaml:"ranker" validate:"oneof=oracle lexical"`
	Policy        string        `yaml:"policy" validate:"oneof=none stats"`
}

// LLMConfig selects the text capability.
type LLMConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=mock openai deepseek kimi anthropic ollama"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gte=0"`
	Temperature float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	Retries     int           `yaml:"retries" validate:"gte=0,lte=10"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Dir returns the default data directory, ~/.remem.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".remem"
	}
	return filepath.Join(home, ".remem")
}

// Default returns the built-in configuration.
func Default() Config {
	dir := Dir()
	return Config{
		Memory: MemoryConfig{
			Snapshot:    filepath.Join(dir, "memory.json"),
			Capacity:    1000,
			HistorySize: 1000,
			MaxBackups:  5,
		},
		Loop: LoopConfig{
			MaxIterations: 8,
			Timeout:       30 * time.Second,
			StuckWindow:   5,
			RetrievalK:    5,
			ContextBudget: 2000,
			Ranker:        "oracle",
			Policy:        "stats",
		},
		LLM: LLMConfig{
			Provider:    "mock",
			MaxTokens:   2000,
			Temperature: 0.7,
			Retries:     3,
			Timeout:     30 * time.Second,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "runs.db"),
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

var validate = validator.New()

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error; an empty path
// checks $REMEM_CONFIG and then ~/.remem/config.yaml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("REMEM_CONFIG")
	}
	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Write saves c as YAML at path.
func Write(c Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// providerKeyEnv names the API key variable for each remote provider.
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"kimi":      "MOONSHOT_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

func applyEnv(c *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("REMEM_SNAPSHOT", &c.Memory.Snapshot)
	setString("REMEM_BACKUP_DIR", &c.Memory.BackupDir)
	setString("REMEM_DB", &c.Journal.Path)
	setString("REMEM_PROVIDER", &c.LLM.Provider)
	setString("REMEM_MODEL", &c.LLM.Model)
	setString("REMEM_BASE_URL", &c.LLM.BaseURL)
	setString("REMEM_LOG_LEVEL", &c.Log.Level)
	setString("REMEM_RANKER", &c.Loop.Ranker)

	if v := os.Getenv("REMEM_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REMEM_MAX_ITERATIONS: %w", err)
		}
		c.Loop.MaxIterations = n
	}
	if v := os.Getenv("REMEM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REMEM_TIMEOUT: %w", err)
		}
		c.Loop.Timeout = d
	}

	if c.LLM.APIKey == "" {
		if key, ok := providerKeyEnv[c.LLM.Provider]; ok {
			c.LLM.APIKey = os.Getenv(key)
		}
	}
	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	return nil
}

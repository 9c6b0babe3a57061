// Package config loads visualgit settings from a YAML or TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/aezell/visualgit/internal/model"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis"`
	Engines  EnginesConfig  `yaml:"engines" toml:"engines"`
}

// ServerConfig controls the local HTTP server.
type ServerConfig struct {
	Host   string `yaml:"host" toml:"host"`
	Port   int    `yaml:"port" toml:"port"` // first port tried; 0 picks any free port
	NoOpen bool   `yaml:"no_open" toml:"no_open"`
}

// AnalysisConfig controls how explanations are produced.
type AnalysisConfig struct {
	Provider   string   `yaml:"provider" toml:"provider"`
	Model      string   `yaml:"model" toml:"model"`
	Timeout    Duration `yaml:"timeout" toml:"timeout"` // 0 means no limit
	ChunkWords int      `yaml:"chunk_words" toml:"chunk_words"`
}

// EnginesConfig names the engine executables.
type EnginesConfig struct {
	Claude      string `yaml:"claude" toml:"claude"`
	OpenAI      string `yaml:"openai" toml:"openai"`
	OpenAIModel string `yaml:"openai_model" toml:"openai_model"`
}

// Duration is a time.Duration written as "90s" or "2m" in config files.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4321,
		},
		Analysis: AnalysisConfig{
			Provider:   string(model.ProviderClaude),
			Model:      "sonnet",
			ChunkWords: 3,
		},
		Engines: EnginesConfig{
			Claude:      "claude",
			OpenAI:      "openai",
			OpenAIModel: "gpt-4o",
		},
	}
}

// DefaultPath is ~/.config/visualgit/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "visualgit", "config.yaml"), nil
}

// Load reads configuration from path and merges it over the defaults. An
// empty path means DefaultPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", c.Server.Port)
	}
	if _, err := model.ParseProvider(c.Analysis.Provider); err != nil {
		return fmt.Errorf("analysis.provider: %w", err)
	}
	if c.Analysis.ChunkWords < 1 {
		return fmt.Errorf("analysis.chunk_words must be at least 1, got %d", c.Analysis.ChunkWords)
	}
	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("analysis.timeout must not be negative")
	}
	if c.Engines.Claude == "" || c.Engines.OpenAI == "" {
		return fmt.Errorf("engine commands must not be empty")
	}
	return nil
}

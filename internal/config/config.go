package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	AI        AI        `yaml:"ai"`
	Keywords  []string  `yaml:"keywords"`
	Ingestion Ingestion `yaml:"ingestion"`
	Fetch     Fetch     `yaml:"fetch"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type AI struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Ingestion struct {
	LookbackDays int  `yaml:"lookback_days"`
	CreateStubs  bool `yaml:"create_stubs"`
	EnrichNews   bool `yaml:"enrich_news"`
	MaxPerFeed   int  `yaml:"max_per_feed"`
}

type Fetch struct {
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int `yaml:"read_timeout_seconds"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for draftwire.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "draftwire")
}

// DataDir returns the XDG data directory for draftwire.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "draftwire")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/draftwire/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'draftwire init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		AI: AI{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Ingestion: Ingestion{
			LookbackDays: 1,
			CreateStubs:  true,
			EnrichNews:   true,
			MaxPerFeed:   50,
		},
		Fetch: Fetch{
			ConnectTimeoutSeconds: 10,
			ReadTimeoutSeconds:    20,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

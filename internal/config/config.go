package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Mining  Mining  `yaml:"mining"`
	Market  Market  `yaml:"market"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Mining holds the validation thresholds shared by all pattern miners.
type Mining struct {
	MinSampleSize int     `yaml:"min_sample_size"`
	MinPeriods    int     `yaml:"min_periods"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinBatchSize  int     `yaml:"min_batch_size"`
	BatchLimit    int     `yaml:"batch_limit"`
	LookbackDays  int     `yaml:"lookback_days"`
	Workers       int     `yaml:"workers"`
}

// Market holds tunables for niche aggregation and fusion scoring.
type Market struct {
	MinFusionListings int `yaml:"min_fusion_listings"`
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

// ConfigDir returns the XDG config directory for patternmine.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "patternmine")
}

// DataDir returns the XDG data directory for patternmine.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "patternmine")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/patternmine/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'patternmine init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file, applies .env overrides,
// and validates thresholds.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Mining: Mining{
			MinSampleSize: 10,
			MinPeriods:    2,
			MinConfidence: 0.8,
			MinBatchSize:  10,
			BatchLimit:    1000,
			LookbackDays:  90,
			Workers:       4,
		},
		Market:  Market{MinFusionListings: 3},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides reads a .env file if present and applies
// PATTERNMINE_* environment variables on top of the parsed config.
func applyEnvOverrides(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("PATTERNMINE_DATA_DIR"); v != "" {
		cfg.Output.DataDir = v
	}
	if v := os.Getenv("PATTERNMINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// Validate rejects threshold configurations that would make mining results
// meaningless. A bad threshold aborts the run before any write happens.
func (c *Config) Validate() error {
	m := c.Mining
	if m.MinSampleSize < 1 {
		return fmt.Errorf("invalid config: mining.min_sample_size must be >= 1, got %d", m.MinSampleSize)
	}
	if m.MinPeriods < 1 {
		return fmt.Errorf("invalid config: mining.min_periods must be >= 1, got %d", m.MinPeriods)
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return fmt.Errorf("invalid config: mining.min_confidence must be in [0,1], got %g", m.MinConfidence)
	}
	if m.BatchLimit < 1 {
		return fmt.Errorf("invalid config: mining.batch_limit must be >= 1, got %d", m.BatchLimit)
	}
	if m.Workers < 1 {
		return fmt.Errorf("invalid config: mining.workers must be >= 1, got %d", m.Workers)
	}
	if c.Market.MinFusionListings < 1 {
		return fmt.Errorf("invalid config: market.min_fusion_listings must be >= 1, got %d", c.Market.MinFusionListings)
	}
	return nil
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

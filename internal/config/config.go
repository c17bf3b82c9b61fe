package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/clive/experimenter/internal/experiment"
)

// Config represents the user's configuration
type Config struct {
	ExperimentsDir string       `yaml:"experiments_dir"`
	MaxVisibleTabs int          `yaml:"max_visible_tabs"`
	PruneOnSaveAll bool         `yaml:"prune_on_save_all"`
	Run            RunConfig    `yaml:"run"`
	Server         ServerConfig `yaml:"server"`
	RunsDBPath     string       `yaml:"runs_db_path"`
	Log            LogConfig    `yaml:"log"`
}

// RunConfig describes the external command a tab's parameters are handed to
type RunConfig struct {
	Command   []string      `yaml:"command"`
	ParamFlag string        `yaml:"param_flag"`
	Timeout   time.Duration `yaml:"timeout"` // 0 means no timeout
	WorkDir   string        `yaml:"workdir"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`   // "-" or empty logs to stderr
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home := homeDir()
	return &Config{
		MaxVisibleTabs: experiment.DefaultMaxVisibleTabs,
		Run: RunConfig{
			ParamFlag: "-p",
		},
		Server: ServerConfig{
			Addr: ":8742",
		},
		RunsDBPath: filepath.Join(home, ".experimenter", "runs.db"),
		Log: LogConfig{
			Level:  "info",
			File:   filepath.Join(home, ".experimenter", "logs", "experimenter.log"),
			Format: "text",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// globalConfigPath returns the global config file path (~/.experimenter/config.yaml)
func globalConfigPath() string {
	return filepath.Join(homeDir(), ".experimenter", "config.yaml")
}

// ProjectConfigPath returns the project-level config path (.experimenter/config.yaml in cwd)
func ProjectConfigPath() string {
	return filepath.Join(".experimenter", "config.yaml")
}

// Load reads .env, then the project config, falling back to the global one,
// then applies environment overrides.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return loadFrom(ProjectConfigPath(), globalConfigPath())
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadFrom decodes the first readable file of paths over the defaults.
func loadFrom(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}

	cfg.applyEnv()
	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ExperimentsDir = envStr("EXPERIMENTER_DIR", c.ExperimentsDir)
	c.MaxVisibleTabs = envInt("EXPERIMENTER_MAX_TABS", c.MaxVisibleTabs)
	c.PruneOnSaveAll = envBool("EXPERIMENTER_PRUNE", c.PruneOnSaveAll)
	c.Server.Addr = envStr("EXPERIMENTER_ADDR", c.Server.Addr)
	c.Server.APIKey = envStr("EXPERIMENTER_API_KEY", c.Server.APIKey)
	c.RunsDBPath = envStr("EXPERIMENTER_RUNS_DB", c.RunsDBPath)
	if v := os.Getenv("EXPERIMENTER_RUN_COMMAND"); v != "" {
		c.Run.Command = strings.Fields(v)
	}
	c.Log.Level = envStr("LOG_LEVEL", c.Log.Level)
	c.Log.File = envStr("EXPERIMENTER_LOG_FILE", c.Log.File)
}

func (c *Config) expandPaths() {
	c.ExperimentsDir = expandHome(c.ExperimentsDir)
	c.RunsDBPath = expandHome(c.RunsDBPath)
	c.Log.File = expandHome(c.Log.File)
	c.Run.WorkDir = expandHome(c.Run.WorkDir)
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func (c *Config) validate() error {
	if c.MaxVisibleTabs < 1 {
		return fmt.Errorf("max_visible_tabs must be positive, got %d", c.MaxVisibleTabs)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.RunsDBPath == "" {
		return fmt.Errorf("runs_db_path must not be empty")
	}
	if c.Run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Save writes the config to the project-level location (.experimenter/config.yaml)
func Save(cfg *Config) error {
	return saveTo(ProjectConfigPath(), cfg)
}

func saveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

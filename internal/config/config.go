package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fmuoria/fair-hire/internal/fairness"
	"github.com/fmuoria/fair-hire/internal/llm"
	"github.com/fmuoria/fair-hire/internal/logging"
	"github.com/fmuoria/fair-hire/internal/scoring"
	"github.com/fmuoria/fair-hire/internal/store"
)

// Environment variables that override the file
const (
	EnvDB      = "FAIRHIRE_DB"
	EnvDriver  = "FAIRHIRE_DRIVER"
	EnvPort    = "PORT"
	EnvProject = "GOOGLE_CLOUD_PROJECT"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Database DatabaseConfig   `yaml:"database"`
	Logging  LoggingConfig    `yaml:"logging"`
	Scoring  ScoringConfig    `yaml:"scoring"`
	Fairness fairness.Options `yaml:"fairness"`
	Skills   SkillsConfig     `yaml:"skills"`
	Vertex   VertexConfig     `yaml:"vertex"`
	Gmail    GmailConfig      `yaml:"gmail"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxUploadMB  int64         `yaml:"maxUploadMB"`
}

// DatabaseConfig selects the store driver
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// ScoringConfig holds per-tier weights and thresholds.
// A tier listed in the file replaces the default tier entirely.
type ScoringConfig struct {
	Tiers   scoring.Policy `yaml:"tiers"`
	Workers int            `yaml:"workers"`
}

// SkillsConfig extends the skill taxonomy, canonical name to aliases
type SkillsConfig struct {
	Extra map[string][]string `yaml:"extra,omitempty"`
}

// VertexConfig enables LLM review notes
type VertexConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Project         string  `yaml:"project"`
	Location        string  `yaml:"location"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	CredentialsPath string  `yaml:"credentialsPath,omitempty"`
}

// GmailConfig configures resume intake from email
type GmailConfig struct {
	CredentialsPath string `yaml:"credentialsPath"`
	TokenDir        string `yaml:"tokenDir"`
	UploadsDir      string `yaml:"uploadsDir"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			MaxUploadMB:  10,
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    "fairhire.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Scoring: ScoringConfig{
			Tiers:   scoring.DefaultPolicy(),
			Workers: 4,
		},
		Fairness: fairness.DefaultOptions(),
		Vertex: VertexConfig{
			Location:    llm.DefaultLocation,
			Model:       llm.DefaultModel,
			Temperature: 0.2,
		},
		Gmail: GmailConfig{
			CredentialsPath: "credentials.json",
			UploadsDir:      "uploads",
		},
	}
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/fairhire/config.yaml
// On Unix: ~/.config/fairhire/config.yaml
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		configDir = filepath.Join(os.Getenv("APPDATA"), "fairhire")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "fairhire")
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// Load loads configuration from the default config path
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFrom(configPath)
}

// LoadFrom loads configuration from a specific path, then applies environment overrides.
// A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to the default config path
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnvOverrides replaces file values with FAIRHIRE_DB, FAIRHIRE_DRIVER, PORT and GOOGLE_CLOUD_PROJECT when set
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvDB); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvProject); v != "" {
		c.Vertex.Project = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}

	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}

	if err := c.Scoring.Tiers.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Scoring.Workers < 1 {
		return fmt.Errorf("scoring workers must be at least 1, got %d", c.Scoring.Workers)
	}

	if err := c.Fairness.Validate(); err != nil {
		return fmt.Errorf("fairness: %w", err)
	}

	if c.Vertex.Enabled {
		if c.Vertex.Project == "" {
			return errors.New("vertex project is required when vertex is enabled")
		}
		if c.Vertex.Location == "" {
			return errors.New("vertex location is required when vertex is enabled")
		}
		if c.Vertex.CredentialsPath != "" {
			if _, err := os.Stat(c.Vertex.CredentialsPath); err != nil {
				return fmt.Errorf("google credentials file not found: %w", err)
			}
		}
	}

	return nil
}

// ApplyToEnv exports the Google settings for the client libraries
func (c *Config) ApplyToEnv() {
	if c.Vertex.Project != "" {
		os.Setenv(EnvProject, c.Vertex.Project)
	}
	if c.Vertex.Location != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.Vertex.Location)
	}
	if c.Vertex.CredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.Vertex.CredentialsPath)
	}
}

// LLMOptions converts the vertex section for the llm package
func (c *Config) LLMOptions() llm.Options {
	return llm.Options{
		Project:     c.Vertex.Project,
		Location:    c.Vertex.Location,
		Model:       c.Vertex.Model,
		Temperature: c.Vertex.Temperature,
	}
}

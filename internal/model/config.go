package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// GenerationConfig holds defaults for periodic generation runs.
type GenerationConfig struct {
	AssignmentPriority string `mapstructure:"assignment_priority" yaml:"assignment_priority"`
	Audience           string `mapstructure:"audience" yaml:"audience"`

	// Workers bounds concurrent per-client resolution.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// ImportConfig holds defaults for spreadsheet imports.
type ImportConfig struct {
	// ChunkSize is the maximum number of tasks written per batch insert.
	ChunkSize          int  `mapstructure:"chunk_size" yaml:"chunk_size"`
	ForceOverrideOwner bool `mapstructure:"force_override_owner" yaml:"force_override_owner"`
}

// ExclusionConfig holds exclusion registry policy.
type ExclusionConfig struct {
	// ReactivateOnClear moves NOT_APPLICABLE tasks back to PENDING when an
	// exclusion is lifted. Off by default.
	ReactivateOnClear bool `mapstructure:"reactivate_on_clear" yaml:"reactivate_on_clear"`
}

// DriveConfig configures deliverable folder provisioning.
type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	ParentFolderID  string `mapstructure:"parent_folder_id" yaml:"parent_folder_id"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Import     ImportConfig     `mapstructure:"import" yaml:"import"`
	Exclusions ExclusionConfig  `mapstructure:"exclusions" yaml:"exclusions"`
	Drive      DriveConfig      `mapstructure:"drive" yaml:"drive"`
}

const envPrefix = "OBLIGATIONS"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/obligations/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "obligations", "config.yaml")
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "obligations.db"
	}
	return filepath.Join(home, ".local", "share", "obligations", "obligations.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Generation: GenerationConfig{
			AssignmentPriority: string(PriorityClientOwner),
			Audience:           string(AudienceFilterAll),
			Workers:            4,
		},
		Import: ImportConfig{
			ChunkSize: 500,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("generation.assignment_priority", d.Generation.AssignmentPriority)
	v.SetDefault("generation.audience", d.Generation.Audience)
	v.SetDefault("generation.workers", d.Generation.Workers)
	v.SetDefault("import.chunk_size", d.Import.ChunkSize)
	v.SetDefault("import.force_override_owner", false)
	v.SetDefault("exclusions.reactivate_on_clear", false)
	v.SetDefault("drive.credentials_file", "")
	v.SetDefault("drive.parent_folder_id", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with OBLIGATIONS_ override file values
// (e.g. OBLIGATIONS_DATABASE_PATH). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that would otherwise fail deep inside a run.
func (c *AppConfig) Validate() error {
	if _, err := ParseAssignmentPriority(c.Generation.AssignmentPriority); err != nil {
		return err
	}
	if _, err := ParseAudienceFilter(c.Generation.Audience); err != nil {
		return err
	}
	if c.Generation.Workers < 1 {
		c.Generation.Workers = 1
	}
	if c.Import.ChunkSize < 1 {
		return fmt.Errorf("import.chunk_size must be positive, got %d", c.Import.ChunkSize)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("generation", cfg.Generation)
	v.Set("import", cfg.Import)
	v.Set("exclusions", cfg.Exclusions)
	v.Set("drive", cfg.Drive)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

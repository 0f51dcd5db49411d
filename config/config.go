package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"library-circulation/library"
)

// Storage backends.
const (
	BackendText   = "text"
	BackendSQLite = "sqlite"
)

// Config holds all runtime settings. The zero-file defaults reproduce the
// plain flat-file console.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Policies PoliciesConfig `yaml:"policies"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"`     // text, sqlite
	SQLitePath string `yaml:"sqlite_path"` // defaults to <data_dir>/library.db
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // defaults to <data_dir>/library.log; "stderr" logs to stderr
}

// PoliciesConfig carries the lending limits per borrowing role.
type PoliciesConfig struct {
	Student StudentPolicy `yaml:"student"`
	Faculty FacultyPolicy `yaml:"faculty"`
}

// StudentPolicy mirrors library.Policy for students.
type StudentPolicy struct {
	MaxBorrow        int     `yaml:"max_borrow"`
	BorrowPeriodDays int     `yaml:"borrow_period_days"`
	FinePerDay       float64 `yaml:"fine_per_day"`
}

// FacultyPolicy mirrors library.Policy for faculty.
type FacultyPolicy struct {
	MaxBorrow        int `yaml:"max_borrow"`
	BorrowPeriodDays int `yaml:"borrow_period_days"`
	OverdueLimitDays int `yaml:"overdue_limit_days"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	student := library.StudentPolicy()
	faculty := library.FacultyPolicy()
	return &Config{
		DataDir: "./data",
		Storage: StorageConfig{Backend: BackendText},
		Logging: LoggingConfig{Level: "info"},
		Policies: PoliciesConfig{
			Student: StudentPolicy{
				MaxBorrow:        student.MaxBorrow,
				BorrowPeriodDays: student.BorrowPeriodDays,
				FinePerDay:       student.FinePerDay,
			},
			Faculty: FacultyPolicy{
				MaxBorrow:        faculty.MaxBorrow,
				BorrowPeriodDays: faculty.BorrowPeriodDays,
				OverdueLimitDays: faculty.OverdueLimitDays,
			},
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("LIBRARY_DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LIBRARY_BACKEND")); v != "" {
		c.Storage.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("LIBRARY_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LIBRARY_LOG_FILE")); v != "" {
		c.Logging.File = v
	}
}

// Validate checks the settings that would otherwise fail later.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must be set")
	}
	switch c.Storage.Backend {
	case BackendText, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %s or %s)", c.Storage.Backend, BackendText, BackendSQLite)
	}
	s, f := c.Policies.Student, c.Policies.Faculty
	if s.MaxBorrow <= 0 || f.MaxBorrow <= 0 {
		return errors.New("max_borrow must be positive")
	}
	if s.BorrowPeriodDays < 0 || f.BorrowPeriodDays < 0 || f.OverdueLimitDays < 0 || s.FinePerDay < 0 {
		return errors.New("policy periods and fines must not be negative")
	}
	return nil
}

// SQLitePath resolves the database location.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.DataDir, "library.db")
}

// LogFile resolves the log destination.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.DataDir, "library.log")
}

// LendingPolicies converts the configured limits for the lending engine.
func (c *Config) LendingPolicies() library.Policies {
	p := library.DefaultPolicies()
	p.Student.MaxBorrow = c.Policies.Student.MaxBorrow
	p.Student.BorrowPeriodDays = c.Policies.Student.BorrowPeriodDays
	p.Student.FinePerDay = c.Policies.Student.FinePerDay
	p.Faculty.MaxBorrow = c.Policies.Faculty.MaxBorrow
	p.Faculty.BorrowPeriodDays = c.Policies.Faculty.BorrowPeriodDays
	p.Faculty.OverdueLimitDays = c.Policies.Faculty.OverdueLimitDays
	return p
}

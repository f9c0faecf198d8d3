package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigDir is the per-project directory holding config.yaml.
const ConfigDir = ".findary"

// HistoryConfig controls the run history database
type HistoryConfig struct {
	// Enabled records a summary of every scan
	Enabled bool `yaml:"enabled"`

	// DBPath is the sqlite file (empty = $FINDARY_HOME/history.db)
	DBPath string `yaml:"db_path"`

	// KeepRuns prunes older runs after each scan (0 = keep all)
	KeepRuns int `yaml:"keep_runs"`
}

// ReportConfig controls the end-of-run report
type ReportConfig struct {
	// Format is one of text, yaml, json, markdown, html
	Format string `yaml:"format"`

	// Path writes the report to a file instead of stdout (empty = stdout)
	Path string `yaml:"path"`
}

// Config represents findary configuration options
type Config struct {
	// Directory is the root of the scan
	Directory string `yaml:"directory"`

	// Recursive descends into subdirectories
	Recursive bool `yaml:"recursive"`

	// IgnoreFiles honours .gitignore in the scan root
	IgnoreFiles bool `yaml:"ignore_files"`

	// Track registers binary files with git-lfs
	Track bool `yaml:"track"`

	// Stats prints the summary even when not verbose
	Stats bool `yaml:"stats"`

	// MeasureTime prints how long scanning and tracking took
	MeasureTime bool `yaml:"measure_time"`

	// Workers is the number of concurrent classifiers (0 = one per CPU)
	Workers int `yaml:"workers"`

	// ChunkSize is the read size of the null-byte scan
	ChunkSize int `yaml:"chunk_size"`

	// ExcludeDirs are directory names skipped in addition to .git
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written (empty = no file log)
	LogDir string `yaml:"log_dir"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`

	// Report contains report output configuration
	Report ReportConfig `yaml:"report"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Directory:   ".",
		Recursive:   true,
		IgnoreFiles: false,
		Track:       false,
		Stats:       false,
		MeasureTime: false,
		Workers:     0,
		ChunkSize:   1024,
		LogLevel:    "info",
		LogDir:      "",
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   "",
			KeepRuns: 100,
		},
		Report: ReportConfig{
			Format: "text",
		},
	}
}

// yamlConfig mirrors Config with pointers so that explicit false and zero
// values in the file can be told apart from absent keys.
type yamlConfig struct {
	Directory   *string  `yaml:"directory"`
	Recursive   *bool    `yaml:"recursive"`
	IgnoreFiles *bool    `yaml:"ignore_files"`
	Track       *bool    `yaml:"track"`
	Stats       *bool    `yaml:"stats"`
	MeasureTime *bool    `yaml:"measure_time"`
	Workers     *int     `yaml:"workers"`
	ChunkSize   *int     `yaml:"chunk_size"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
	LogLevel    *string  `yaml:"log_level"`
	LogDir      *string  `yaml:"log_dir"`
	History     *struct {
		Enabled  *bool   `yaml:"enabled"`
		DBPath   *string `yaml:"db_path"`
		KeepRuns *int    `yaml:"keep_runs"`
	} `yaml:"history"`
	Report *struct {
		Format *string `yaml:"format"`
		Path   *string `yaml:"path"`
	} `yaml:"report"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&cfg.Directory, y.Directory)
	setBool(&cfg.Recursive, y.Recursive)
	setBool(&cfg.IgnoreFiles, y.IgnoreFiles)
	setBool(&cfg.Track, y.Track)
	setBool(&cfg.Stats, y.Stats)
	setBool(&cfg.MeasureTime, y.MeasureTime)
	setInt(&cfg.Workers, y.Workers)
	setInt(&cfg.ChunkSize, y.ChunkSize)
	setString(&cfg.LogLevel, y.LogLevel)
	setString(&cfg.LogDir, y.LogDir)
	if y.ExcludeDirs != nil {
		cfg.ExcludeDirs = y.ExcludeDirs
	}
	if y.History != nil {
		setBool(&cfg.History.Enabled, y.History.Enabled)
		setString(&cfg.History.DBPath, y.History.DBPath)
		setInt(&cfg.History.KeepRuns, y.History.KeepRuns)
	}
	if y.Report != nil {
		setString(&cfg.Report.Format, y.Report.Format)
		setString(&cfg.Report.Path, y.Report.Path)
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .findary/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ConfigDir, "config.yaml"))
}

// Flags holds CLI overrides. A nil field means the flag was not given.
type Flags struct {
	Directory   *string
	Recursive   *bool
	IgnoreFiles *bool
	Track       *bool
	Stats       *bool
	MeasureTime *bool
	Workers     *int
	LogLevel    *string
	LogDir      *string
	NoHistory   *bool
	ReportPath  *string
	Format      *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f Flags) {
	setString(&c.Directory, f.Directory)
	setBool(&c.Recursive, f.Recursive)
	setBool(&c.IgnoreFiles, f.IgnoreFiles)
	setBool(&c.Track, f.Track)
	setBool(&c.Stats, f.Stats)
	setBool(&c.MeasureTime, f.MeasureTime)
	setInt(&c.Workers, f.Workers)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogDir, f.LogDir)
	setString(&c.Report.Path, f.ReportPath)
	setString(&c.Report.Format, f.Format)
	if f.NoHistory != nil && *f.NoHistory {
		c.History.Enabled = false
	}
}

// ReportFormats lists the accepted report.format values.
var ReportFormats = []string{"text", "yaml", "json", "markdown", "html"}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be > 0, got %d", c.ChunkSize)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	validFormat := false
	for _, f := range ReportFormats {
		if c.Report.Format == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid report.format %q, must be one of: text, yaml, json, markdown, html", c.Report.Format)
	}

	if c.History.KeepRuns < 0 {
		return fmt.Errorf("history.keep_runs must be >= 0, got %d", c.History.KeepRuns)
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

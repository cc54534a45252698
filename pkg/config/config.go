// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all logvet configuration.
type Config struct {
	Version int `yaml:"version"`

	Run       RunConfig       `yaml:"run"`
	Report    ReportConfig    `yaml:"report"`
	History   HistoryConfig   `yaml:"history"`
	S3        S3Config        `yaml:"s3"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RunConfig controls suite execution.
type RunConfig struct {
	// Parallel is the number of examples scanned concurrently. 0 = auto.
	Parallel int `yaml:"parallel"`

	// Enable lists condition names enabled by default (e.g. "mpi").
	Enable []string `yaml:"enable"`

	// BaseDir resolves relative logfile paths. Empty = suite file's
	// directory.
	BaseDir string `yaml:"base_dir"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	// JUnit, when set, writes a JUnit XML report to this path.
	JUnit string `yaml:"junit"`

	// XLSX, when set, writes an Excel workbook to this path.
	XLSX string `yaml:"xlsx"`

	NoColor bool `yaml:"no_color"`
	Verbose bool `yaml:"verbose"`
}

// HistoryConfig controls the run archive.
type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Database string `yaml:"database"`
}

// S3Config for remote logfiles.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	logvetDir := filepath.Join(homeDir, ".logvet")

	return &Config{
		Version: 1,
		Run: RunConfig{
			Parallel: 0, // auto
		},
		History: HistoryConfig{
			Enabled:  false,
			Database: filepath.Join(logvetDir, "history.db"),
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start with defaults
	m.config = Default()

	// Load from paths in order (later overrides earlier)
	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but surface errors for existing ones
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	// Override with environment variables
	m.loadEnv()

	return nil
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/logvet/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".logvet", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".logvet.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Merge non-zero values
	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	// Run
	if src.Run.Parallel != 0 {
		m.config.Run.Parallel = src.Run.Parallel
	}
	if len(src.Run.Enable) > 0 {
		m.config.Run.Enable = src.Run.Enable
	}
	if src.Run.BaseDir != "" {
		m.config.Run.BaseDir = src.Run.BaseDir
	}

	// Report
	if src.Report.JUnit != "" {
		m.config.Report.JUnit = src.Report.JUnit
	}
	if src.Report.XLSX != "" {
		m.config.Report.XLSX = src.Report.XLSX
	}
	if src.Report.NoColor {
		m.config.Report.NoColor = true
	}
	if src.Report.Verbose {
		m.config.Report.Verbose = true
	}

	// History
	if src.History.Enabled {
		m.config.History.Enabled = true
	}
	if src.History.Database != "" {
		m.config.History.Database = src.History.Database
	}

	// S3
	if src.S3.Region != "" {
		m.config.S3.Region = src.S3.Region
	}
	if src.S3.Endpoint != "" {
		m.config.S3.Endpoint = src.S3.Endpoint
	}
	if src.S3.UsePathStyle {
		m.config.S3.UsePathStyle = true
	}

	// Telemetry
	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("LOGVET_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.config.Run.Parallel = n
		}
	}
	if v := os.Getenv("LOGVET_ENABLE"); v != "" {
		m.config.Run.Enable = strings.Split(v, ",")
	}
	if v := os.Getenv("LOGVET_HISTORY_DB"); v != "" {
		m.config.History.Database = v
	}
	if v := os.Getenv("LOGVET_S3_REGION"); v != "" {
		m.config.S3.Region = v
	}
	if v := os.Getenv("LOGVET_S3_ENDPOINT"); v != "" {
		m.config.S3.Endpoint = v
	}
	if v := os.Getenv("LOGVET_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Enabled = true
		m.config.Telemetry.Endpoint = v
	}
	if os.Getenv("NO_COLOR") != "" {
		m.config.Report.NoColor = true
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".logvet")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0644)
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the global configuration manager.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		if err := globalManager.Load(); err != nil {
			// Defaults still apply; a broken config file must not be
			// silently ignored.
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	})
	return globalManager
}

// Package config provides centralized configuration management for the export
// tool. This module handles configuration loading from multiple sources
// (files, environment variables), validation, and provides typed configuration
// structures for the provider client, storage backends, and the export run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	json "github.com/goccy/go-json"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	// Application metadata
	AppName    string `json:"app_name" env:"BINANCE_EXPORT_APP_NAME"`
	Version    string `json:"version" env:"BINANCE_EXPORT_VERSION"`
	ConfigPath string `json:"-" env:"BINANCE_EXPORT_CONFIG_PATH"`

	// Provider API configuration
	Binance BinanceConfig `json:"binance"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Export run configuration
	Export ExportConfig `json:"export"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// BinanceConfig configures the provider API client
type BinanceConfig struct {
	BaseURL    string `json:"base_url" env:"BINANCE_EXPORT_BASE_URL"` // API base URL
	APIKey     string `json:"api_key" env:"BINANCE_API_KEY"`          // API key for signed requests
	APISecret  string `json:"api_secret" env:"BINANCE_API_SECRET"`    // API secret for request signatures
	RateLimit  int    `json:"rate_limit" env:"BINANCE_EXPORT_RATE_LIMIT"` // Requests per second
	Timeout    string `json:"timeout" env:"BINANCE_EXPORT_HTTP_TIMEOUT"`  // HTTP request timeout
	RecvWindow string `json:"recv_window" env:"BINANCE_EXPORT_RECV_WINDOW"` // Signed request validity window
}

// StorageConfig configures the storage backend
type StorageConfig struct {
	Type         string `json:"type" env:"BINANCE_EXPORT_STORAGE_TYPE"`         // "duckdb", "postgres", "memory"
	DatabasePath string `json:"database_path" env:"BINANCE_EXPORT_DATABASE_PATH"` // DuckDB file path
	DatabaseURL  string `json:"database_url" env:"BINANCE_EXPORT_DATABASE_URL"`   // PostgreSQL connection string
}

// ExportConfig configures the history export run
type ExportConfig struct {
	FromDate      string `json:"from_date" env:"BINANCE_EXPORT_FROM_DATE"`           // First month to export, "YYYY-MM"
	MonthInterval int    `json:"month_interval" env:"BINANCE_EXPORT_MONTH_INTERVAL"` // Window width in months
	RequestDelay  string `json:"request_delay" env:"BINANCE_EXPORT_REQUEST_DELAY"`   // Optional pause after each fetch
	PauseInterval string `json:"pause_interval" env:"BINANCE_EXPORT_PAUSE_INTERVAL"` // Wait after a provider failure
	PollInterval  string `json:"poll_interval" env:"BINANCE_EXPORT_POLL_INTERVAL"`   // Wait between clock-resync pings
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level         string            `json:"level" env:"BINANCE_EXPORT_LOG_LEVEL"`     // Log level: debug, info, warn, error
	Format        string            `json:"format" env:"BINANCE_EXPORT_LOG_FORMAT"`   // Log format: json, text
	Output        string            `json:"output" env:"BINANCE_EXPORT_LOG_OUTPUT"`   // Output: stdout, stderr, file
	FilePath      string            `json:"file_path" env:"BINANCE_EXPORT_LOG_FILE_PATH"` // Log file path
	MaxSize       int               `json:"max_size" env:"BINANCE_EXPORT_LOG_MAX_SIZE"`   // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" env:"BINANCE_EXPORT_LOG_MAX_BACKUPS"` // Maximum log file backups
	MaxAge        int               `json:"max_age" env:"BINANCE_EXPORT_LOG_MAX_AGE"` // Maximum log file age in days
	Compress      bool              `json:"compress" env:"BINANCE_EXPORT_LOG_COMPRESS"` // Compress old log files
	ContextFields map[string]string `json:"context_fields"`                            // Additional context fields
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	config     *AppConfig
	configPath string
	logger     *slog.Logger
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(configPath string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		logger:     logger,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()

	// Load from configuration file if it exists
	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate the final configuration
	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.config = config
	cm.logger.Debug("configuration loaded successfully",
		"config_path", cm.configPath,
		"storage_type", config.Storage.Type,
		"from_date", config.Export.FromDate,
		"log_level", config.Logging.Level)

	return config, nil
}

// loadFromFile loads configuration from a JSON file
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		cm.logger.Debug("config file does not exist, using defaults", "path", cm.configPath)
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

// loadFromEnv loads configuration from environment variables.
// The provider credentials use the conventional unprefixed names so existing
// shell setups keep working; everything else carries the BINANCE_EXPORT_
// prefix.
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	if val := os.Getenv("BINANCE_EXPORT_APP_NAME"); val != "" {
		config.AppName = val
	}

	// Provider API config
	if val := os.Getenv("BINANCE_EXPORT_BASE_URL"); val != "" {
		config.Binance.BaseURL = val
	}
	if val := os.Getenv("BINANCE_API_KEY"); val != "" {
		config.Binance.APIKey = val
	}
	if val := os.Getenv("BINANCE_API_SECRET"); val != "" {
		config.Binance.APISecret = val
	}
	if val := os.Getenv("BINANCE_EXPORT_RATE_LIMIT"); val != "" {
		if rateLimit, err := strconv.Atoi(val); err == nil {
			config.Binance.RateLimit = rateLimit
		}
	}
	if val := os.Getenv("BINANCE_EXPORT_HTTP_TIMEOUT"); val != "" {
		config.Binance.Timeout = val
	}
	if val := os.Getenv("BINANCE_EXPORT_RECV_WINDOW"); val != "" {
		config.Binance.RecvWindow = val
	}

	// Storage config
	if val := os.Getenv("BINANCE_EXPORT_STORAGE_TYPE"); val != "" {
		config.Storage.Type = val
	}
	if val := os.Getenv("BINANCE_EXPORT_DATABASE_PATH"); val != "" {
		config.Storage.DatabasePath = val
	}
	if val := os.Getenv("BINANCE_EXPORT_DATABASE_URL"); val != "" {
		config.Storage.DatabaseURL = val
	}

	// Export config
	if val := os.Getenv("BINANCE_EXPORT_FROM_DATE"); val != "" {
		config.Export.FromDate = val
	}
	if val := os.Getenv("BINANCE_EXPORT_MONTH_INTERVAL"); val != "" {
		if interval, err := strconv.Atoi(val); err == nil {
			config.Export.MonthInterval = interval
		}
	}
	if val := os.Getenv("BINANCE_EXPORT_REQUEST_DELAY"); val != "" {
		config.Export.RequestDelay = val
	}
	if val := os.Getenv("BINANCE_EXPORT_PAUSE_INTERVAL"); val != "" {
		config.Export.PauseInterval = val
	}
	if val := os.Getenv("BINANCE_EXPORT_POLL_INTERVAL"); val != "" {
		config.Export.PollInterval = val
	}

	// Logging config
	if val := os.Getenv("BINANCE_EXPORT_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("BINANCE_EXPORT_LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("BINANCE_EXPORT_LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
	if val := os.Getenv("BINANCE_EXPORT_LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}

	cm.logger.Debug("loaded configuration from environment variables")
	return nil
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var errors []string

	// Validate provider configuration
	if config.Binance.BaseURL == "" {
		errors = append(errors, "binance.base_url is required")
	}
	if config.Binance.APIKey == "" {
		errors = append(errors, "binance.api_key is required (set BINANCE_API_KEY)")
	}
	if config.Binance.APISecret == "" {
		errors = append(errors, "binance.api_secret is required (set BINANCE_API_SECRET)")
	}
	if config.Binance.RateLimit <= 0 {
		errors = append(errors, "binance.rate_limit must be greater than 0")
	}
	if _, err := time.ParseDuration(config.Binance.Timeout); err != nil {
		errors = append(errors, fmt.Sprintf("binance.timeout is not a valid duration: %v", err))
	}
	if _, err := time.ParseDuration(config.Binance.RecvWindow); err != nil {
		errors = append(errors, fmt.Sprintf("binance.recv_window is not a valid duration: %v", err))
	}

	// Validate storage configuration
	validStorageTypes := map[string]bool{"duckdb": true, "postgres": true, "memory": true}
	if !validStorageTypes[config.Storage.Type] {
		errors = append(errors, "storage.type must be one of: duckdb, postgres, memory")
	}
	if config.Storage.Type == "duckdb" && config.Storage.DatabasePath == "" {
		errors = append(errors, "storage.database_path is required for DuckDB storage")
	}
	if config.Storage.Type == "postgres" && config.Storage.DatabaseURL == "" {
		errors = append(errors, "storage.database_url is required for PostgreSQL storage")
	}

	// Validate export configuration
	if _, err := time.Parse("2006-01", config.Export.FromDate); err != nil {
		errors = append(errors, fmt.Sprintf("export.from_date must be in YYYY-MM format, got %q", config.Export.FromDate))
	}
	if config.Export.MonthInterval < 1 {
		errors = append(errors, "export.month_interval must be at least 1")
	}
	if delay, err := time.ParseDuration(config.Export.RequestDelay); err != nil {
		errors = append(errors, fmt.Sprintf("export.request_delay is not a valid duration: %v", err))
	} else if delay < 0 {
		errors = append(errors, "export.request_delay must not be negative")
	}
	if _, err := time.ParseDuration(config.Export.PauseInterval); err != nil {
		errors = append(errors, fmt.Sprintf("export.pause_interval is not a valid duration: %v", err))
	}
	if _, err := time.ParseDuration(config.Export.PollInterval); err != nil {
		errors = append(errors, fmt.Sprintf("export.poll_interval is not a valid duration: %v", err))
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errors = append(errors, "logging.level must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errors = append(errors, "logging.format must be one of: json, text")
	}

	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[config.Logging.Output] {
		errors = append(errors, "logging.output must be one of: stdout, stderr, file")
	}
	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errors = append(errors, "logging.file_path is required when logging.output is file")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *AppConfig {
	return cm.config
}

// SaveConfig saves the current configuration to the config file
func (cm *ConfigManager) SaveConfig() error {
	if cm.configPath == "" {
		return fmt.Errorf("no config path specified")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cm.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal configuration to JSON
	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	// Write to file
	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.logger.Info("configuration saved", "path", cm.configPath)
	return nil
}

// DefaultFromDate returns the default first export month: January of the
// current year.
func DefaultFromDate() string {
	return fmt.Sprintf("%d-01", time.Now().UTC().Year())
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "binance-export",
		Version: "1.0.0",
		Binance: BinanceConfig{
			BaseURL:    "https://api.binance.com",
			RateLimit:  10,
			Timeout:    "30s",
			RecvWindow: "5s",
		},
		Storage: StorageConfig{
			Type:         "duckdb",
			DatabasePath: "binance_data.db",
			DatabaseURL:  "",
		},
		Export: ExportConfig{
			FromDate:      DefaultFromDate(),
			MonthInterval: 1,
			RequestDelay:  "0s",
			PauseInterval: "5s",
			PollInterval:  "5s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "binance-export",
			},
		},
	}
}

// GetBinanceConfig returns provider-specific configuration
func (c *AppConfig) GetBinanceConfig() BinanceConfig {
	return c.Binance
}

// GetStorageConfig returns storage-specific configuration
func (c *AppConfig) GetStorageConfig() StorageConfig {
	return c.Storage
}

// GetExportConfig returns export-run configuration
func (c *AppConfig) GetExportConfig() ExportConfig {
	return c.Export
}

// GetLoggingConfig returns logging-specific configuration
func (c *AppConfig) GetLoggingConfig() LoggingConfig {
	return c.Logging
}

// String returns a string representation of the configuration (excluding sensitive data)
func (c *AppConfig) String() string {
	// Create a copy without sensitive data
	sanitized := *c
	if sanitized.Binance.APIKey != "" {
		sanitized.Binance.APIKey = "[REDACTED]"
	}
	if sanitized.Binance.APISecret != "" {
		sanitized.Binance.APISecret = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(&sanitized, "", "  ")
	return string(data)
}

package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/radiology-ai-assistant/internal/domain"
)

// Manager loads and holds application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/radiology-ai-assistant/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("RADIOLOGY_AI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.max_upload_mb", 20)

	// Vision model defaults
	viper.SetDefault("vision.base_url", "https://api.openai.com/v1")
	viper.SetDefault("vision.api_key", "")
	viper.SetDefault("vision.model", "gpt-4o")
	viper.SetDefault("vision.temperature", 0.2)
	viper.SetDefault("vision.max_tokens", 2048)
	viper.SetDefault("vision.timeout", "90s")
	viper.SetDefault("vision.rate_limit", 2)
	viper.SetDefault("vision.max_image_dim", 512)

	// Storage defaults
	viper.SetDefault("storage.output_dir", "outputs")
	viper.SetDefault("storage.feedback_log_file", "feedback_logs.json")
	viper.SetDefault("storage.learning_data_file", "learning_data.json")

	// Ontology defaults (empty path falls back to the built-in table)
	viper.SetDefault("ontology.terms_path", "")

	// Dataset defaults (empty path means simulated labels only)
	viper.SetDefault("dataset.csv_path", "")
	viper.SetDefault("dataset.cache_size", 256)

	// Learning defaults
	viper.SetDefault("learning.min_support", 2)
	viper.SetDefault("learning.strict_confidence", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetVisionConfig returns vision model configuration
func (m *Manager) GetVisionConfig() *domain.VisionConfig {
	return &m.config.Vision
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate vision configuration
	if config.Vision.BaseURL == "" {
		return fmt.Errorf("vision base URL is required")
	}
	if config.Vision.Model == "" {
		return fmt.Errorf("vision model name is required")
	}
	if config.Vision.MaxImageDim <= 0 {
		return fmt.Errorf("invalid max image dimension: %d", config.Vision.MaxImageDim)
	}

	// Validate storage configuration
	if config.Storage.OutputDir == "" {
		return fmt.Errorf("storage output directory is required")
	}
	if config.Storage.FeedbackLogFile == "" || config.Storage.LearningDataFile == "" {
		return fmt.Errorf("feedback and learning log file names are required")
	}

	// Validate learning configuration
	if config.Learning.MinSupport < 1 {
		return fmt.Errorf("invalid learning min support: %d", config.Learning.MinSupport)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// NewLogger builds a logrus logger from the logging configuration
func (m *Manager) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(m.config.Logging.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.ToLower(m.config.Logging.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

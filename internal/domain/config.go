package domain

import (
	"time"
)

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Ontology OntologyConfig `mapstructure:"ontology"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Learning LearningConfig `mapstructure:"learning"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// VisionConfig represents the vision model API configuration
type VisionConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	MaxImageDim int           `mapstructure:"max_image_dim"`
}

// StorageConfig represents feedback/learning log storage configuration
type StorageConfig struct {
	OutputDir        string `mapstructure:"output_dir"`
	FeedbackLogFile  string `mapstructure:"feedback_log_file"`
	LearningDataFile string `mapstructure:"learning_data_file"`
}

// OntologyConfig represents controlled-vocabulary configuration
type OntologyConfig struct {
	TermsPath string `mapstructure:"terms_path"`
}

// DatasetConfig represents ground-truth dataset configuration
type DatasetConfig struct {
	CSVPath   string `mapstructure:"csv_path"`
	CacheSize int    `mapstructure:"cache_size"`
}

// LearningConfig represents rule-mining configuration
type LearningConfig struct {
	MinSupport       int  `mapstructure:"min_support"`
	StrictConfidence bool `mapstructure:"strict_confidence"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Vision.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.Vision.Model)
	assert.Equal(t, 512, cfg.Vision.MaxImageDim)
	assert.Equal(t, "outputs", cfg.Storage.OutputDir)
	assert.Equal(t, "feedback_logs.json", cfg.Storage.FeedbackLogFile)
	assert.Equal(t, "learning_data.json", cfg.Storage.LearningDataFile)
	assert.Equal(t, 2, cfg.Learning.MinSupport)
	assert.False(t, cfg.Learning.StrictConfidence)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Manager)
		wantErr string
	}{
		{
			name:   "Defaults are valid",
			mutate: func(m *Manager) {},
		},
		{
			name:    "Invalid port",
			mutate:  func(m *Manager) { m.config.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "Missing vision base URL",
			mutate:  func(m *Manager) { m.config.Vision.BaseURL = "" },
			wantErr: "vision base URL is required",
		},
		{
			name:    "Missing vision model",
			mutate:  func(m *Manager) { m.config.Vision.Model = "" },
			wantErr: "vision model name is required",
		},
		{
			name:    "Missing output directory",
			mutate:  func(m *Manager) { m.config.Storage.OutputDir = "" },
			wantErr: "storage output directory is required",
		},
		{
			name:    "Invalid min support",
			mutate:  func(m *Manager) { m.config.Learning.MinSupport = 0 },
			wantErr: "invalid learning min support",
		},
		{
			name:    "Invalid log level",
			mutate:  func(m *Manager) { m.config.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewManager()
			require.NoError(t, err)
			tt.mutate(manager)

			err = manager.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.config.Logging.Level = "debug"
	manager.config.Logging.Format = "json"
	logger := manager.NewLogger()

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	manager.config.Logging.Format = "text"
	logger = manager.NewLogger()
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

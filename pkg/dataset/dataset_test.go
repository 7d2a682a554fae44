package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/pkg/vocab"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewSource_SimulationOnly(t *testing.T) {
	source, err := NewSource(domain.DatasetConfig{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, source.Size())
}

func TestNewSource_MissingCSVFails(t *testing.T) {
	_, err := NewSource(domain.DatasetConfig{CSVPath: "/nonexistent/labels.csv"}, testLogger())
	require.Error(t, err)
}

func TestNewSource_CSVWithoutFilenameColumnFails(t *testing.T) {
	path := writeCSV(t, "Cardiomegaly,Pneumonia\n1,0\n")
	_, err := NewSource(domain.DatasetConfig{CSVPath: path}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filename")
}

func TestLabels_FromDataset(t *testing.T) {
	path := writeCSV(t,
		"filename,Cardiomegaly,Pleural Effusion,Normal\n"+
			"chest1.jpg,1,1.0,0\n"+
			"chest2.jpg,0,0,1\n"+
			"chest3.jpg,0,0,0\n")

	source, err := NewSource(domain.DatasetConfig{CSVPath: path}, testLogger())
	require.NoError(t, err)
	require.Equal(t, 3, source.Size())

	assert.Equal(t, []string{"Cardiomegaly", "Pleural Effusion"}, source.Labels("chest1.jpg"))
	assert.Equal(t, []string{"No Finding"}, source.Labels("chest2.jpg"), "positive Normal column maps to No Finding")
}

func TestLabels_BasenameAndCaseInsensitiveMatch(t *testing.T) {
	path := writeCSV(t, "filename,Cardiomegaly\nChest1.jpg,1\n")

	source, err := NewSource(domain.DatasetConfig{CSVPath: path}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"Cardiomegaly"}, source.Labels("uploads/Chest1.jpg"))
	assert.Equal(t, []string{"Cardiomegaly"}, source.Labels("chest1.jpg"))
}

func TestLabels_SimulatedKeywords(t *testing.T) {
	source, err := NewSource(domain.DatasetConfig{}, testLogger())
	require.NoError(t, err)

	tests := []struct {
		image string
		want  []string
	}{
		{"cardio_case.jpg", []string{"Cardiomegaly", "Pulmonary Edema"}},
		{"pleural_case.jpg", []string{"Pleural Effusion"}},
		{"normal_chest.jpg", []string{"No Finding"}},
		{"clear_study.png", []string{"No Finding"}},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			assert.Equal(t, tt.want, source.Labels(tt.image))
		})
	}
}

func TestLabels_SimulatedRandomFallback(t *testing.T) {
	source, err := NewSource(domain.DatasetConfig{}, testLogger())
	require.NoError(t, err)
	source.Seed(42)

	labels := source.Labels("unknown_image.jpg")

	assert.GreaterOrEqual(t, len(labels), 2)
	assert.LessOrEqual(t, len(labels), 4)
	for _, label := range labels {
		assert.Contains(t, vocab.ChexpertLabelPool, label)
		assert.NotEqual(t, "No Finding", label, "random sampling excludes No Finding")
	}
}

func TestLabels_CachedAcrossCalls(t *testing.T) {
	source, err := NewSource(domain.DatasetConfig{CacheSize: 8}, testLogger())
	require.NoError(t, err)
	source.Seed(42)

	first := source.Labels("unknown_image.jpg")
	second := source.Labels("unknown_image.jpg")

	assert.Equal(t, first, second, "repeated lookups return the cached labels")
}

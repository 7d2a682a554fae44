package feedback

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiology-ai-assistant/internal/domain"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewJSONStore(domain.StorageConfig{
		OutputDir:        t.TempDir(),
		FeedbackLogFile:  "feedback_logs.json",
		LearningDataFile: "learning_data.json",
	}, logger)
	require.NoError(t, err)
	return store
}

func sampleReport(confidence float64) domain.Report {
	report := domain.NewReport()
	report.Findings = []domain.Finding{
		{Name: "Cardiomegaly", Location: "cardiac", Evidence: "enlarged heart", Confidence: confidence, Severity: "moderate"},
	}
	report.Impression = "Cardiomegaly"
	return report
}

func TestRecord_AppendAndReadBack(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.Record(RecordParams{
		ImageName:      "chest1.jpg",
		OriginalReport: sampleReport(0.5),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.Timestamp)
	assert.False(t, entry.HasEdits)
	assert.Equal(t, 0, entry.EditCount)

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chest1.jpg", entries[0].ImageName)

	records, err := store.LearningRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].EditedFindings)
}

func TestRecord_UpsertReplacesUneditedEntry(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Record(RecordParams{
		ImageName:      "chest1.jpg",
		OriginalReport: sampleReport(0.5),
	})
	require.NoError(t, err)

	edited := sampleReport(0.9)
	entry, err := store.Record(RecordParams{
		ImageName:      "chest1.jpg",
		OriginalReport: sampleReport(0.5),
		EditedReport:   &edited,
	})
	require.NoError(t, err)
	assert.True(t, entry.HasEdits)

	// The unedited auto-log entry was replaced, not duplicated.
	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].HasEdits)

	// Learning records always append.
	records, err := store.LearningRecords()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecord_EditedEntriesAccumulate(t *testing.T) {
	store := newTestStore(t)

	edited := sampleReport(0.9)
	for i := 0; i < 2; i++ {
		_, err := store.Record(RecordParams{
			ImageName:      "chest1.jpg",
			OriginalReport: sampleReport(0.5),
			EditedReport:   &edited,
		})
		require.NoError(t, err)
	}

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2, "entries with edits are never replaced")
}

func TestCountEdits(t *testing.T) {
	base := sampleReport(0.5)

	tests := []struct {
		name   string
		edit   func(r *domain.Report)
		expect int
	}{
		{
			name:   "No changes",
			edit:   func(r *domain.Report) {},
			expect: 0,
		},
		{
			name: "Changed confidence counts as one finding edit",
			edit: func(r *domain.Report) {
				r.Findings[0].Confidence = 0.9
			},
			expect: 1,
		},
		{
			name: "Added finding counts the length delta",
			edit: func(r *domain.Report) {
				r.Findings = append(r.Findings, domain.Finding{Name: "Pleural Effusion"})
			},
			expect: 1,
		},
		{
			name: "Changed impression and recommendations",
			edit: func(r *domain.Report) {
				r.Impression = "Severe cardiomegaly"
				r.Recommendations = []string{"Echocardiogram"}
			},
			expect: 2,
		},
		{
			name: "Everything changed",
			edit: func(r *domain.Report) {
				r.Findings[0].Severity = "severe"
				r.Findings = append(r.Findings, domain.Finding{Name: "Pulmonary Edema"})
				r.Impression = "Severe cardiomegaly with edema"
				r.Recommendations = []string{"Diuresis"}
			},
			expect: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edited := sampleReport(0.5)
			tt.edit(&edited)
			assert.Equal(t, tt.expect, countEdits(base, edited))
		})
	}
}

func TestLoadEntries_SelfHealsOnCorruptFile(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, os.WriteFile(store.feedbackPath, []byte("{not json"), 0o644))

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A corrupt log never blocks new feedback.
	_, err = store.Record(RecordParams{
		ImageName:      "chest1.jpg",
		OriginalReport: sampleReport(0.5),
	})
	require.NoError(t, err)

	entries, err = store.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_WriteFailureSurfaces(t *testing.T) {
	store := newTestStore(t)

	// Make the feedback log path unwritable by turning it into a directory.
	require.NoError(t, os.MkdirAll(store.feedbackPath, 0o755))

	_, err := store.Record(RecordParams{
		ImageName:      "chest1.jpg",
		OriginalReport: sampleReport(0.5),
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrPersistence, domain.ErrorCode(err))
}

func TestStatistics(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Record(RecordParams{ImageName: "a.jpg", OriginalReport: sampleReport(0.5)})
	require.NoError(t, err)

	edited := sampleReport(0.9)
	_, err = store.Record(RecordParams{
		ImageName:      "b.jpg",
		OriginalReport: sampleReport(0.5),
		EditedReport:   &edited,
	})
	require.NoError(t, err)

	stats, err := store.Statistics()
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.EntriesWithEdits)
	assert.Equal(t, 1, stats.TotalEdits)
	assert.Equal(t, 0.5, stats.AverageEditsPerEntry)
	assert.Equal(t, 0.5, stats.EditRate)
}

func TestStatistics_Empty(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Statistics()
	require.NoError(t, err)
	assert.Equal(t, &Statistics{}, stats)
}

func TestFilesAreValidJSON(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Record(RecordParams{ImageName: "a.jpg", OriginalReport: sampleReport(0.5)})
	require.NoError(t, err)

	for _, path := range []string{store.feedbackPath, store.learningPath} {
		data, err := os.ReadFile(path)
		require.NoError(t, err, filepath.Base(path))
		assert.True(t, json.Valid(data), filepath.Base(path))
	}
}

package feedback

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/radiology-ai-assistant/internal/domain"
)

// JSONStore is the single-writer feedback store backed by two JSON
// files: the full feedback log and the flattened learning data. Each
// record call rewrites both files in full.
type JSONStore struct {
	feedbackPath string
	learningPath string
	logger       *logrus.Logger
	mu           sync.Mutex
}

// NewJSONStore creates the store and its output directory.
func NewJSONStore(cfg domain.StorageConfig, logger *logrus.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, domain.NewServiceError(domain.ErrPersistence, "failed to create output directory", err)
	}

	return &JSONStore{
		feedbackPath: filepath.Join(cfg.OutputDir, cfg.FeedbackLogFile),
		learningPath: filepath.Join(cfg.OutputDir, cfg.LearningDataFile),
		logger:       logger,
	}, nil
}

// Record logs a feedback submission. When a previous entry for the same
// image has no edits yet, that entry is replaced in place; otherwise the
// new entry is appended. The derived learning record is always appended.
func (s *JSONStore) Record(params RecordParams) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.buildEntry(params)

	entries := s.loadEntries()
	replaced := false
	for i := range entries {
		if entries[i].ImageName == params.ImageName && !entries[i].HasEdits {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	if err := s.writeJSON(s.feedbackPath, entries); err != nil {
		return nil, domain.NewServiceError(domain.ErrPersistence, "failed to write feedback log file", err)
	}

	records := s.loadLearningRecords()
	records = append(records, deriveLearningRecord(entry))
	if err := s.writeJSON(s.learningPath, records); err != nil {
		return nil, domain.NewServiceError(domain.ErrPersistence, "failed to write learning data file", err)
	}

	s.logger.WithFields(logrus.Fields{
		"entry_id":   entry.ID,
		"image":      entry.ImageName,
		"has_edits":  entry.HasEdits,
		"edit_count": entry.EditCount,
		"replaced":   replaced,
	}).Info("Feedback recorded")

	return &entry, nil
}

func (s *JSONStore) buildEntry(params RecordParams) Entry {
	entry := Entry{
		ID:              uuid.New().String(),
		Timestamp:       nowTimestamp(),
		ImageName:       params.ImageName,
		OriginalReport:  params.OriginalReport,
		EditedReport:    params.EditedReport,
		Explanations:    params.Explanations,
		UserFeedback:    params.UserFeedback,
		OntologyMapping: params.OntologyMapping,
		Metadata:        params.Metadata,
		HasEdits:        params.EditedReport != nil,
	}
	if params.EditedReport != nil {
		entry.EditCount = countEdits(params.OriginalReport, *params.EditedReport)
	}
	return entry
}

// countEdits scores the distance between the original and edited report:
// the findings length delta, plus one per differing finding pair, plus
// one each for a changed impression and changed recommendations.
func countEdits(original, edited domain.Report) int {
	count := 0

	if len(original.Findings) != len(edited.Findings) {
		count += int(math.Abs(float64(len(original.Findings) - len(edited.Findings))))
	}

	pairs := len(original.Findings)
	if len(edited.Findings) < pairs {
		pairs = len(edited.Findings)
	}
	for i := 0; i < pairs; i++ {
		if !original.Findings[i].CoreEquals(edited.Findings[i]) {
			count++
		}
	}

	if original.Impression != edited.Impression {
		count++
	}

	if !stringSlicesEqual(original.Recommendations, edited.Recommendations) {
		count++
	}

	return count
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func deriveLearningRecord(entry Entry) LearningRecord {
	record := LearningRecord{
		Timestamp:        entry.Timestamp,
		Image:            entry.ImageName,
		OriginalFindings: entry.OriginalReport.Findings,
		EditedFindings:   []domain.Finding{},
		Explanations:     entry.Explanations,
		UserFeedback:     entry.UserFeedback,
		OntologyMapping:  entry.OntologyMapping,
		HasEdits:         entry.HasEdits,
		EditCount:        entry.EditCount,
	}
	if record.OriginalFindings == nil {
		record.OriginalFindings = []domain.Finding{}
	}
	if entry.EditedReport != nil && entry.EditedReport.Findings != nil {
		record.EditedFindings = entry.EditedReport.Findings
	}
	return record
}

// Entries returns all logged feedback entries.
func (s *JSONStore) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadEntries(), nil
}

// LearningRecords returns all derived learning records.
func (s *JSONStore) LearningRecords() ([]LearningRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLearningRecords(), nil
}

// Statistics summarizes the feedback log.
func (s *JSONStore) Statistics() (*Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadEntries()
	stats := &Statistics{TotalEntries: len(entries)}
	if len(entries) == 0 {
		return stats, nil
	}

	for _, entry := range entries {
		if entry.HasEdits {
			stats.EntriesWithEdits++
		}
		stats.TotalEdits += entry.EditCount
	}

	total := float64(len(entries))
	stats.AverageEditsPerEntry = math.Round(float64(stats.TotalEdits)/total*100) / 100
	stats.EditRate = math.Round(float64(stats.EntriesWithEdits)/total*100) / 100
	return stats, nil
}

// loadEntries reads the feedback log, treating a missing or corrupt file
// as empty so a damaged log never blocks new feedback.
func (s *JSONStore) loadEntries() []Entry {
	var entries []Entry
	if !s.readJSON(s.feedbackPath, &entries) {
		return []Entry{}
	}
	return entries
}

func (s *JSONStore) loadLearningRecords() []LearningRecord {
	var records []LearningRecord
	if !s.readJSON(s.learningPath, &records) {
		return []LearningRecord{}
	}
	return records
}

func (s *JSONStore) readJSON(path string, target any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("path", path).Warn("Failed to read log file, starting fresh")
		}
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("Corrupt log file, starting fresh")
		return false
	}
	return true
}

func (s *JSONStore) writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

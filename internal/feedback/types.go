// Package feedback persists radiologist feedback on generated reports
// and derives the learning records the continuous-learning engine mines.
package feedback

import (
	"encoding/json"
	"time"

	"github.com/radiology-ai-assistant/internal/domain"
)

// Entry is one logged feedback event for an image.
type Entry struct {
	ID              string            `json:"entry_id"`
	Timestamp       string            `json:"timestamp"`
	ImageName       string            `json:"image"`
	OriginalReport  domain.Report     `json:"original_report"`
	EditedReport    *domain.Report    `json:"edited_report"`
	Explanations    json.RawMessage   `json:"explanations,omitempty"`
	UserFeedback    json.RawMessage   `json:"user_feedback,omitempty"`
	OntologyMapping json.RawMessage   `json:"ontology_mapping,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	HasEdits        bool              `json:"has_edits"`
	EditCount       int               `json:"edit_count"`
}

// LearningRecord is the flattened view of an entry consumed by rule
// mining. It is derived once at record time and appended unconditionally.
type LearningRecord struct {
	Timestamp        string           `json:"timestamp"`
	Image            string           `json:"image"`
	OriginalFindings []domain.Finding `json:"original_findings"`
	EditedFindings   []domain.Finding `json:"edited_findings"`
	Explanations     json.RawMessage  `json:"explanations,omitempty"`
	UserFeedback     json.RawMessage  `json:"user_feedback,omitempty"`
	OntologyMapping  json.RawMessage  `json:"ontology_mapping,omitempty"`
	HasEdits         bool             `json:"has_edits"`
	EditCount        int              `json:"edit_count"`
}

// Statistics summarizes the feedback log.
type Statistics struct {
	TotalEntries         int     `json:"total_entries"`
	EntriesWithEdits     int     `json:"entries_with_edits"`
	TotalEdits           int     `json:"total_edits"`
	AverageEditsPerEntry float64 `json:"average_edits_per_entry"`
	EditRate             float64 `json:"edit_rate"`
}

// RecordParams carries one feedback submission into the store.
type RecordParams struct {
	ImageName       string
	OriginalReport  domain.Report
	EditedReport    *domain.Report
	Explanations    json.RawMessage
	UserFeedback    json.RawMessage
	OntologyMapping json.RawMessage
	Metadata        map[string]string
}

// Store persists feedback entries and their learning records.
type Store interface {
	Record(params RecordParams) (*Entry, error)
	Entries() ([]Entry, error)
	LearningRecords() ([]LearningRecord, error)
	Statistics() (*Statistics, error)
}

func nowTimestamp() string {
	return time.Now().Format(time.RFC3339Nano)
}

package domain

import (
	"time"
)

// Core Enums and Types

// ConfidenceLevel buckets a confidence score for explanation purposes.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// BucketConfidence maps a confidence score onto a ConfidenceLevel.
// The 0.7 and 0.4 thresholds are inclusive lower bounds.
func BucketConfidence(score float64) ConfidenceLevel {
	switch {
	case score >= 0.7:
		return ConfidenceHigh
	case score >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Core Data Models

// Report is the canonical structured radiology report produced per image.
// All four top-level fields are always present, even when empty; findings
// keep the model's output order.
type Report struct {
	Findings        []Finding         `json:"findings"`
	Impression      string            `json:"impression"`
	Recommendations []string          `json:"recommendations"`
	Metadata        map[string]string `json:"metadata"`
	RulesApplied    int               `json:"rules_applied,omitempty"`
}

// NewReport returns an empty canonical report with all fields initialized.
func NewReport() Report {
	return Report{
		Findings:        []Finding{},
		Impression:      "",
		Recommendations: []string{},
		Metadata:        map[string]string{},
	}
}

// Finding is a single clinical observation extracted from an image.
type Finding struct {
	Name       string  `json:"finding"`
	Location   string  `json:"location"`
	Evidence   string  `json:"evidence"`
	Confidence float64 `json:"confidence"`
	Severity   string  `json:"severity"`

	// Enrichment added by the pipeline stages.
	OntologyMapping *OntologyMapping `json:"ontology_mapping,omitempty"`
	Explanation     *Explanation     `json:"explanation,omitempty"`

	// Set by the rule applier when a mined rule adjusted the confidence.
	ConfidenceAdjusted bool   `json:"confidence_adjusted,omitempty"`
	AdjustmentReason   string `json:"adjustment_reason,omitempty"`
}

// CoreEquals reports whether two findings agree on the model-produced
// fields, ignoring pipeline enrichment. Used for edit counting and for
// pairing original/edited findings during rule mining.
func (f Finding) CoreEquals(other Finding) bool {
	return f.Name == other.Name &&
		f.Location == other.Location &&
		f.Evidence == other.Evidence &&
		f.Confidence == other.Confidence &&
		f.Severity == other.Severity
}

// OntologyMapping holds the controlled-vocabulary matches for a finding.
type OntologyMapping struct {
	RadlexConditions  []string `json:"radlex_conditions"`
	RadlexKeywords    []string `json:"radlex_keywords"`
	ChexpertLabels    []string `json:"chexpert_labels"`
	MappingConfidence float64  `json:"mapping_confidence"`
}

// HasMatch reports whether any controlled vocabulary matched.
func (m *OntologyMapping) HasMatch() bool {
	if m == nil {
		return false
	}
	return len(m.RadlexConditions) > 0 || len(m.ChexpertLabels) > 0
}

// EvidenceLink is one entry in a finding's evidence chain.
type EvidenceLink struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Relevance   string `json:"relevance"`
}

// Explanation links a finding to its evidence and confidence reasoning.
type Explanation struct {
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore float64         `json:"confidence_score"`
	EvidenceChain   []EvidenceLink  `json:"evidence_chain"`
	Reasoning       string          `json:"reasoning"`
	Template        string          `json:"template"`
	KeyEvidence     []string        `json:"key_evidence"`
}

// KeyFinding is a summary projection of a high-ranked finding.
type KeyFinding struct {
	Name       string  `json:"finding"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location"`
}

// ExplanationSummary is the per-report explanation rollup.
type ExplanationSummary struct {
	TotalFindings          int             `json:"total_findings"`
	HighConfidenceFindings int             `json:"high_confidence_findings"`
	AverageConfidence      float64         `json:"average_confidence"`
	OverallReliability     ConfidenceLevel `json:"overall_reliability"`
	KeyFindings            []KeyFinding    `json:"key_findings"`
}

// ValidationResult flags ontology-mapping issues for a set of findings.
// Valid is false iff at least one warning exists; suggestions never
// affect validity.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// OntologyStats summarizes controlled-vocabulary coverage for a report.
type OntologyStats struct {
	TotalFindings     int     `json:"total_findings"`
	RadlexCoverage    float64 `json:"radlex_coverage"`
	ChexpertCoverage  float64 `json:"chexpert_coverage"`
	AverageConfidence float64 `json:"average_confidence"`
	MappedFindings    int     `json:"mapped_findings"`
}

// OntologyReport groups validation and coverage statistics per report.
type OntologyReport struct {
	Validation *ValidationResult `json:"validation"`
	Statistics *OntologyStats    `json:"statistics"`
}

// ReportExplanations groups per-finding explanations with the summary.
type ReportExplanations struct {
	Findings []Finding           `json:"findings"`
	Summary  *ExplanationSummary `json:"summary"`
}

// AccuracyMetrics compares ground-truth labels against the final report.
type AccuracyMetrics struct {
	Accuracy      float64  `json:"accuracy"`
	Precision     float64  `json:"precision"`
	Recall        float64  `json:"recall"`
	F1Score       float64  `json:"f1_score"`
	MatchedLabels []string `json:"matched_labels"`
	MissedLabels  []string `json:"missed_labels"`
	TotalLabels   int      `json:"total_labels"`
	TotalFindings int      `json:"total_findings"`
}

// GenerateResult is the full response of a report-generation run.
type GenerateResult struct {
	Report          Report              `json:"report"`
	TextReport      string              `json:"text_report"`
	Explanations    *ReportExplanations `json:"explanations"`
	OntologyMapping *OntologyReport     `json:"ontology_mapping"`
	AccuracyMetrics *AccuracyMetrics    `json:"accuracy_metrics"`
	ImageName       string              `json:"image_name"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

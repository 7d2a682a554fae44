package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/pkg/vocab"
)

// FormatReportText renders a structured report as plain clinical text.
func FormatReportText(report domain.Report) string {
	var b strings.Builder

	b.WriteString("=== RADIOLOGY REPORT ===\n\n")

	b.WriteString("FINDINGS:\n")
	if len(report.Findings) > 0 {
		for i, finding := range report.Findings {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, finding.Name))
			if finding.Location != "" {
				b.WriteString(fmt.Sprintf(" - Location: %s", finding.Location))
			}
			if finding.Severity != "" {
				b.WriteString(fmt.Sprintf(" - Severity: %s", finding.Severity))
			}
			b.WriteString(fmt.Sprintf("\n   Confidence: %.1f%%", finding.Confidence*100))
			if finding.Evidence != "" {
				b.WriteString(fmt.Sprintf("\n   Evidence: %s", finding.Evidence))
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("No significant findings detected.\n")
	}

	b.WriteString("\nIMPRESSION:\n")
	if report.Impression != "" {
		b.WriteString(report.Impression + "\n")
	} else {
		b.WriteString("No impression provided.\n")
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("\nRECOMMENDATIONS:\n")
		for i, rec := range report.Recommendations {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec))
		}
	}

	if len(report.Metadata) > 0 {
		b.WriteString("\nMETADATA:\n")
		keys := make([]string, 0, len(report.Metadata))
		for key := range report.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			b.WriteString(fmt.Sprintf("- %s: %s\n", key, report.Metadata[key]))
		}
	}

	return b.String()
}

// Evaluator scores a generated report against expected dataset labels
// using keyword containment.
type Evaluator struct {
	terms vocab.Terms
}

// NewEvaluator creates an accuracy evaluator over the given vocabulary.
func NewEvaluator(terms vocab.Terms) *Evaluator {
	return &Evaluator{terms: terms}
}

// Evaluate counts an expected label as matched when any of its registered
// keywords appears, case-insensitively, in the report text.
func (e *Evaluator) Evaluate(report domain.Report, reportText string, expectedLabels []string) *domain.AccuracyMetrics {
	lowerText := strings.ToLower(reportText)

	matched := []string{}
	missed := []string{}
	for _, label := range expectedLabels {
		if e.labelMentioned(label, lowerText) {
			matched = append(matched, label)
		} else {
			missed = append(missed, label)
		}
	}

	totalLabels := len(expectedLabels)
	totalFindings := len(report.Findings)

	accuracy := 1.0
	recall := 0.0
	if totalLabels > 0 {
		accuracy = float64(len(matched)) / float64(totalLabels)
		recall = accuracy
	}

	precision := 0.0
	if totalFindings > 0 {
		precision = float64(len(matched)) / float64(totalFindings)
	}

	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return &domain.AccuracyMetrics{
		Accuracy:      round3(accuracy),
		Precision:     round3(precision),
		Recall:        round3(recall),
		F1Score:       round3(f1),
		MatchedLabels: matched,
		MissedLabels:  missed,
		TotalLabels:   totalLabels,
		TotalFindings: totalFindings,
	}
}

func (e *Evaluator) labelMentioned(label, lowerText string) bool {
	for _, keyword := range e.terms.Keywords(label) {
		if strings.Contains(lowerText, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

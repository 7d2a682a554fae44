package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/pkg/vocab"
)

// Mapper maps free-text findings onto the RadLex condition table and the
// CheXpert label list, deriving a mapping confidence per finding.
type Mapper struct {
	terms  vocab.Terms
	labels []string
}

// NewMapper creates an ontology mapper over the given vocabularies.
func NewMapper(terms vocab.Terms, labels []string) *Mapper {
	return &Mapper{terms: terms, labels: labels}
}

// MapFindings annotates each finding with its controlled-vocabulary
// matches. The scan is case-insensitive over the concatenated finding
// name and evidence text; input order is preserved.
func (m *Mapper) MapFindings(findings []domain.Finding) []domain.Finding {
	mapped := make([]domain.Finding, len(findings))

	for i, finding := range findings {
		combined := strings.ToLower(finding.Name + " " + finding.Evidence)

		var conditions []string
		var keywords []string
		seenKeyword := map[string]bool{}

		for _, term := range m.terms {
			matchedCondition := false
			for _, keyword := range term.Keywords {
				if strings.Contains(combined, strings.ToLower(keyword)) {
					matchedCondition = true
					if !seenKeyword[keyword] {
						seenKeyword[keyword] = true
						keywords = append(keywords, keyword)
					}
				}
			}
			if matchedCondition {
				conditions = append(conditions, term.Condition)
			}
		}

		var labelMatches []string
		for _, label := range m.labels {
			if strings.Contains(combined, strings.ToLower(label)) {
				labelMatches = append(labelMatches, label)
			}
		}

		mapped[i] = finding
		mapped[i].OntologyMapping = &domain.OntologyMapping{
			RadlexConditions:  conditions,
			RadlexKeywords:    keywords,
			ChexpertLabels:    labelMatches,
			MappingConfidence: mappingConfidence(len(conditions) > 0, len(labelMatches) > 0, finding.Confidence),
		}
	}

	return mapped
}

// mappingConfidence boosts the finding confidence by 0.2 when both
// vocabularies matched, 0.1 when either did, capped at 1.0.
func mappingConfidence(radlexHit, chexpertHit bool, base float64) float64 {
	switch {
	case radlexHit && chexpertHit:
		base = math.Min(1.0, base+0.2)
	case radlexHit || chexpertHit:
		base = math.Min(1.0, base+0.1)
	}
	return round2(base)
}

// Validate flags findings that miss the controlled vocabularies or carry
// suspicious confidence scores.
func (m *Mapper) Validate(findings []domain.Finding) *domain.ValidationResult {
	result := &domain.ValidationResult{
		Valid:       true,
		Warnings:    []string{},
		Suggestions: []string{},
	}

	for _, finding := range findings {
		mapping := finding.OntologyMapping

		if !mapping.HasMatch() {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Finding '%s' does not map to standard RadLex/CheXpert terms", finding.Name))
		}

		if finding.Confidence < 0.3 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Low confidence (%.1f%%) for finding '%s'", finding.Confidence*100, finding.Name))
		} else if finding.Confidence > 0.9 && (mapping == nil || len(mapping.RadlexConditions) == 0) {
			result.Suggestions = append(result.Suggestions, fmt.Sprintf(
				"High confidence finding '%s' - consider verifying ontology mapping", finding.Name))
		}
	}

	result.Valid = len(result.Warnings) == 0
	return result
}

// Statistics reports controlled-vocabulary coverage over the findings.
func (m *Mapper) Statistics(findings []domain.Finding) *domain.OntologyStats {
	total := len(findings)
	stats := &domain.OntologyStats{TotalFindings: total}
	if total == 0 {
		return stats
	}

	radlexMapped := 0
	chexpertMapped := 0
	confidenceSum := 0.0

	for _, finding := range findings {
		if finding.OntologyMapping != nil && len(finding.OntologyMapping.RadlexConditions) > 0 {
			radlexMapped++
		}
		if finding.OntologyMapping != nil && len(finding.OntologyMapping.ChexpertLabels) > 0 {
			chexpertMapped++
		}
		confidenceSum += finding.Confidence
	}

	stats.RadlexCoverage = float64(radlexMapped) / float64(total)
	stats.ChexpertCoverage = float64(chexpertMapped) / float64(total)
	stats.AverageConfidence = round2(confidenceSum / float64(total))
	stats.MappedFindings = radlexMapped + chexpertMapped
	return stats
}

// SuggestTerms returns the standard conditions and labels whose keywords
// appear in the given free text.
func (m *Mapper) SuggestTerms(text string) []string {
	lower := strings.ToLower(text)
	var suggestions []string
	seen := map[string]bool{}

	for _, term := range m.terms {
		for _, keyword := range term.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) && !seen[term.Condition] {
				seen[term.Condition] = true
				suggestions = append(suggestions, term.Condition)
			}
		}
	}

	for _, label := range m.labels {
		if strings.Contains(lower, strings.ToLower(label)) && !seen[label] {
			seen[label] = true
			suggestions = append(suggestions, label)
		}
	}

	return suggestions
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}

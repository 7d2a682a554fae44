package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radiology-ai-assistant/internal/domain"
)

// explanationTemplates binds each confidence bucket to its fixed
// template sentence.
var explanationTemplates = map[domain.ConfidenceLevel]string{
	domain.ConfidenceHigh:   "Strong visual evidence supports this finding with clear radiographic features.",
	domain.ConfidenceMedium: "Moderate visual evidence present, but some features may be subtle or partially obscured.",
	domain.ConfidenceLow:    "Limited visual evidence; findings may be subtle or require additional views for confirmation.",
}

// keyEvidenceTerms is the fixed list of radiological terms tested for
// membership in evidence text. Output preserves this list's order.
var keyEvidenceTerms = []string{
	"increased", "decreased", "enlarged", "opacity", "effusion",
	"consolidation", "atelectasis", "pneumothorax", "edema",
	"cardiomegaly", "blunting", "collapse", "device",
}

// Explainer derives evidence chains, reasoning, and summaries that link
// findings to the confidence the model assigned them.
type Explainer struct{}

// NewExplainer creates an explainability engine.
func NewExplainer() *Explainer {
	return &Explainer{}
}

// Explain annotates each finding with its explanation. Input order is
// preserved.
func (e *Explainer) Explain(findings []domain.Finding) []domain.Finding {
	explained := make([]domain.Finding, len(findings))
	for i, finding := range findings {
		explained[i] = finding
		explained[i].Explanation = e.explainFinding(finding)
	}
	return explained
}

func (e *Explainer) explainFinding(finding domain.Finding) *domain.Explanation {
	level := domain.BucketConfidence(finding.Confidence)

	return &domain.Explanation{
		ConfidenceLevel: level,
		ConfidenceScore: finding.Confidence,
		EvidenceChain:   e.buildEvidenceChain(finding),
		Reasoning:       e.buildReasoning(finding, level),
		Template:        explanationTemplates[level],
		KeyEvidence:     extractKeyEvidence(finding.Evidence),
	}
}

// buildEvidenceChain assembles the chain in fixed order: location,
// visual evidence, then a confidence entry for high-confidence findings.
func (e *Explainer) buildEvidenceChain(finding domain.Finding) []domain.EvidenceLink {
	chain := []domain.EvidenceLink{}

	if finding.Location != "" {
		chain = append(chain, domain.EvidenceLink{
			Type:        "location",
			Description: fmt.Sprintf("Finding located in: %s", finding.Location),
			Relevance:   "high",
		})
	}

	if finding.Evidence != "" {
		chain = append(chain, domain.EvidenceLink{
			Type:        "visual",
			Description: finding.Evidence,
			Relevance:   "high",
		})
	}

	if finding.Confidence >= 0.7 {
		chain = append(chain, domain.EvidenceLink{
			Type:        "confidence",
			Description: "High confidence based on clear radiographic features",
			Relevance:   "high",
		})
	}

	return chain
}

// buildReasoning assembles the reasoning sentence from fixed slots,
// omitting slots whose source field is empty.
func (e *Explainer) buildReasoning(finding domain.Finding, level domain.ConfidenceLevel) string {
	parts := []string{fmt.Sprintf("The AI identified '%s'", finding.Name)}

	if finding.Location != "" {
		parts = append(parts, fmt.Sprintf("in the %s", finding.Location))
	}
	if finding.Severity != "" {
		parts = append(parts, fmt.Sprintf("with %s severity", finding.Severity))
	}

	parts = append(parts, fmt.Sprintf("based on %s confidence (%.1f%%)", level, finding.Confidence*100))

	if finding.Evidence != "" {
		excerpt := finding.Evidence
		if len(excerpt) > 100 {
			excerpt = excerpt[:100]
		}
		parts = append(parts, fmt.Sprintf("supported by: %s...", excerpt))
	}

	return strings.Join(parts, " ")
}

// extractKeyEvidence returns up to 5 known radiological terms present in
// the evidence text, in fixed-list order.
func extractKeyEvidence(evidence string) []string {
	if evidence == "" {
		return []string{}
	}

	lower := strings.ToLower(evidence)
	found := []string{}
	for _, term := range keyEvidenceTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
			if len(found) == 5 {
				break
			}
		}
	}
	return found
}

// Summary produces the per-report explanation rollup, including the
// top-3 findings by confidence (stable order on ties).
func (e *Explainer) Summary(findings []domain.Finding) *domain.ExplanationSummary {
	total := len(findings)
	summary := &domain.ExplanationSummary{
		TotalFindings: total,
		KeyFindings:   []domain.KeyFinding{},
	}
	if total == 0 {
		summary.OverallReliability = domain.ConfidenceLow
		return summary
	}

	confidenceSum := 0.0
	for _, finding := range findings {
		if finding.Confidence >= 0.7 {
			summary.HighConfidenceFindings++
		}
		confidenceSum += finding.Confidence
	}

	average := confidenceSum / float64(total)
	summary.AverageConfidence = round2(average)
	summary.OverallReliability = domain.BucketConfidence(average)

	ranked := make([]domain.Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	for i := 0; i < len(ranked) && i < 3; i++ {
		summary.KeyFindings = append(summary.KeyFindings, domain.KeyFinding{
			Name:       ranked[i].Name,
			Confidence: ranked[i].Confidence,
			Location:   ranked[i].Location,
		})
	}

	return summary
}

// FormatExplanation renders an explanation as human-readable text.
func FormatExplanation(explanation *domain.Explanation) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("**Confidence Level:** %s", strings.ToUpper(string(explanation.ConfidenceLevel))))
	lines = append(lines, fmt.Sprintf("**Confidence Score:** %.1f%%", explanation.ConfidenceScore*100))
	lines = append(lines, "")
	lines = append(lines, "**Evidence Chain:**")
	for i, link := range explanation.EvidenceChain {
		lines = append(lines, fmt.Sprintf("  %d. [%s] %s", i+1, strings.ToUpper(link.Type), link.Description))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("**Reasoning:** %s", explanation.Reasoning))

	if len(explanation.KeyEvidence) > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("**Key Evidence Terms:** %s", strings.Join(explanation.KeyEvidence, ", ")))
	}

	return strings.Join(lines, "\n")
}

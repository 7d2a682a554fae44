package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiology-ai-assistant/internal/domain"
)

func TestExplain_ConfidenceBuckets(t *testing.T) {
	explainer := NewExplainer()

	tests := []struct {
		name       string
		confidence float64
		wantLevel  domain.ConfidenceLevel
	}{
		{"High at threshold", 0.7, domain.ConfidenceHigh},
		{"High above threshold", 0.95, domain.ConfidenceHigh},
		{"Medium at threshold", 0.4, domain.ConfidenceMedium},
		{"Medium below high", 0.69, domain.ConfidenceMedium},
		{"Low below medium", 0.39, domain.ConfidenceLow},
		{"Low at zero", 0.0, domain.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := explainer.Explain([]domain.Finding{
				{Name: "Cardiomegaly", Confidence: tt.confidence},
			})
			require.NotNil(t, findings[0].Explanation)
			assert.Equal(t, tt.wantLevel, findings[0].Explanation.ConfidenceLevel)
			assert.Equal(t, explanationTemplates[tt.wantLevel], findings[0].Explanation.Template)
		})
	}
}

func TestExplain_EvidenceChainOrder(t *testing.T) {
	explainer := NewExplainer()

	findings := explainer.Explain([]domain.Finding{
		{
			Name:       "Pleural Effusion",
			Location:   "right costophrenic angle",
			Evidence:   "Blunting of the right costophrenic angle",
			Confidence: 0.85,
		},
	})

	chain := findings[0].Explanation.EvidenceChain
	require.Len(t, chain, 3)
	assert.Equal(t, "location", chain[0].Type)
	assert.Equal(t, "visual", chain[1].Type)
	assert.Equal(t, "confidence", chain[2].Type)
}

func TestExplain_NoConfidenceLinkBelowThreshold(t *testing.T) {
	explainer := NewExplainer()

	findings := explainer.Explain([]domain.Finding{
		{
			Name:       "Atelectasis",
			Location:   "left base",
			Evidence:   "Linear opacity at the left base",
			Confidence: 0.5,
		},
	})

	chain := findings[0].Explanation.EvidenceChain
	require.Len(t, chain, 2)
	assert.Equal(t, "location", chain[0].Type)
	assert.Equal(t, "visual", chain[1].Type)
}

func TestExplain_EmptyFieldsSkipChainLinks(t *testing.T) {
	explainer := NewExplainer()

	findings := explainer.Explain([]domain.Finding{
		{Name: "Cardiomegaly", Confidence: 0.3},
	})

	assert.Empty(t, findings[0].Explanation.EvidenceChain)
	assert.Equal(t, "The AI identified 'Cardiomegaly' based on low confidence (30.0%)",
		findings[0].Explanation.Reasoning)
}

func TestExplain_Reasoning(t *testing.T) {
	explainer := NewExplainer()

	findings := explainer.Explain([]domain.Finding{
		{
			Name:       "Cardiomegaly",
			Location:   "cardiac silhouette",
			Severity:   "moderate",
			Evidence:   "Enlarged cardiac silhouette",
			Confidence: 0.8,
		},
	})

	reasoning := findings[0].Explanation.Reasoning
	assert.Equal(t,
		"The AI identified 'Cardiomegaly' in the cardiac silhouette with moderate severity "+
			"based on high confidence (80.0%) supported by: Enlarged cardiac silhouette...",
		reasoning)
}

func TestExtractKeyEvidence(t *testing.T) {
	tests := []struct {
		name     string
		evidence string
		want     []string
	}{
		{
			name:     "Terms in fixed-list order",
			evidence: "Blunting with a small effusion and increased opacity",
			want:     []string{"increased", "opacity", "effusion", "blunting"},
		},
		{
			name:     "Capped at five terms",
			evidence: "increased decreased enlarged opacity effusion consolidation",
			want:     []string{"increased", "decreased", "enlarged", "opacity", "effusion"},
		},
		{
			name:     "Empty evidence",
			evidence: "",
			want:     []string{},
		},
		{
			name:     "No known terms",
			evidence: "fracture of the sixth rib",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractKeyEvidence(tt.evidence))
		})
	}
}

func TestSummary(t *testing.T) {
	explainer := NewExplainer()

	findings := []domain.Finding{
		{Name: "Cardiomegaly", Confidence: 0.9, Location: "cardiac"},
		{Name: "Pleural Effusion", Confidence: 0.7, Location: "right base"},
		{Name: "Atelectasis", Confidence: 0.5, Location: "left base"},
		{Name: "Pneumothorax", Confidence: 0.3, Location: "apex"},
	}

	summary := explainer.Summary(findings)

	assert.Equal(t, 4, summary.TotalFindings)
	assert.Equal(t, 2, summary.HighConfidenceFindings)
	assert.Equal(t, 0.6, summary.AverageConfidence)
	assert.Equal(t, domain.ConfidenceMedium, summary.OverallReliability)

	require.Len(t, summary.KeyFindings, 3)
	assert.Equal(t, "Cardiomegaly", summary.KeyFindings[0].Name)
	assert.Equal(t, "Pleural Effusion", summary.KeyFindings[1].Name)
	assert.Equal(t, "Atelectasis", summary.KeyFindings[2].Name)
}

func TestSummary_TieKeepsInputOrder(t *testing.T) {
	explainer := NewExplainer()

	summary := explainer.Summary([]domain.Finding{
		{Name: "First", Confidence: 0.6},
		{Name: "Second", Confidence: 0.6},
	})

	require.Len(t, summary.KeyFindings, 2)
	assert.Equal(t, "First", summary.KeyFindings[0].Name)
	assert.Equal(t, "Second", summary.KeyFindings[1].Name)
}

func TestSummary_Empty(t *testing.T) {
	summary := NewExplainer().Summary(nil)

	assert.Equal(t, 0, summary.TotalFindings)
	assert.Equal(t, domain.ConfidenceLow, summary.OverallReliability)
	assert.Empty(t, summary.KeyFindings)
}

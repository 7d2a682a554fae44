package learning

import (
	"math"
	"regexp"
	"strings"

	"github.com/radiology-ai-assistant/internal/feedback"
)

var keyTermPattern = regexp.MustCompile(`\b\w{4,}\b`)

// WeakClassifier holds pattern-derived weights trained from the learning
// records. It is advisory: thresholds describe typical confidence per
// finding, evidence weights describe term frequency across evidence text.
type WeakClassifier struct {
	ConfidenceThresholds map[string]float64 `json:"confidence_thresholds"`
	FindingWeights       map[string]float64 `json:"finding_weights"`
	EvidenceWeights      map[string]float64 `json:"evidence_weights"`
}

// TrainWeakClassifier derives classifier weights from the learning
// records. An empty record set yields a nil classifier.
func (e *Engine) TrainWeakClassifier(records []feedback.LearningRecord) *WeakClassifier {
	if len(records) == 0 {
		return nil
	}

	classifier := &WeakClassifier{
		ConfidenceThresholds: map[string]float64{},
		FindingWeights:       map[string]float64{},
		EvidenceWeights:      map[string]float64{},
	}

	confidences := map[string][]float64{}
	for _, record := range records {
		for _, finding := range record.OriginalFindings {
			confidences[finding.Name] = append(confidences[finding.Name], finding.Confidence)
		}
	}
	for name, values := range confidences {
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		classifier.ConfidenceThresholds[name] = round2(sum / float64(len(values)))
	}

	termCounts := map[string]int{}
	total := 0
	for _, record := range records {
		for _, finding := range record.OriginalFindings {
			terms := keyTermPattern.FindAllString(strings.ToLower(finding.Evidence), -1)
			limit := min(len(terms), 5)
			for _, term := range terms[:limit] {
				termCounts[term]++
				total++
			}
		}
	}
	if total > 0 {
		for term, count := range termCounts {
			classifier.EvidenceWeights[term] = math.Round(float64(count)/float64(total)*1000) / 1000
		}
	}

	return classifier
}

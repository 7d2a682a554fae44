// Package service orchestrates the report-generation pipeline: vision
// model call, normalization, ontology mapping, explainability, learned
// rule application, and accuracy evaluation.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/internal/feedback"
	"github.com/radiology-ai-assistant/internal/learning"
)

// ReportService runs the full report-generation pipeline and records
// feedback for the learning loop.
type ReportService struct {
	vision    domain.VisionModel
	labels    domain.LabelSource
	mapper    *Mapper
	explainer *Explainer
	evaluator *Evaluator
	store     feedback.Store
	learning  *learning.Engine
	logger    *logrus.Logger
}

// NewReportService wires the pipeline stages together.
func NewReportService(
	vision domain.VisionModel,
	labels domain.LabelSource,
	mapper *Mapper,
	evaluator *Evaluator,
	store feedback.Store,
	learningEngine *learning.Engine,
	logger *logrus.Logger,
) *ReportService {
	return &ReportService{
		vision:    vision,
		labels:    labels,
		mapper:    mapper,
		explainer: NewExplainer(),
		evaluator: evaluator,
		store:     store,
		learning:  learningEngine,
		logger:    logger,
	}
}

// VisionConfigured reports whether the upstream vision model is usable.
func (s *ReportService) VisionConfigured() bool {
	return s.vision.Configured()
}

// GenerateReport runs the pipeline for one uploaded image. The generated
// report is auto-logged for analytics; a logging failure only warns.
func (s *ReportService) GenerateReport(ctx context.Context, image []byte, imageName string) (*domain.GenerateResult, error) {
	if len(image) == 0 {
		return nil, domain.NewServiceError(domain.ErrInvalidInput, "no image data provided", nil)
	}
	if imageName == "" {
		imageName = "uploaded_image.jpg"
	}

	expectedLabels := s.labels.Labels(imageName)

	raw, err := s.vision.Describe(ctx, image, imageName)
	if err != nil {
		return nil, err
	}

	report, err := DecodeModelOutput(raw)
	if err != nil {
		return nil, err
	}

	report.Findings = s.mapper.MapFindings(report.Findings)
	ontology := &domain.OntologyReport{
		Validation: s.mapper.Validate(report.Findings),
		Statistics: s.mapper.Statistics(report.Findings),
	}

	explained := s.explainer.Explain(report.Findings)
	explanations := &domain.ReportExplanations{
		Findings: explained,
		Summary:  s.explainer.Summary(explained),
	}

	improved, err := s.learning.ApplyRules(ctx, report)
	if err != nil {
		return nil, err
	}

	textReport := FormatReportText(improved)
	metrics := s.evaluator.Evaluate(improved, textReport, expectedLabels)

	s.autoLog(improved, explanations, ontology, imageName)

	return &domain.GenerateResult{
		Report:          improved,
		TextReport:      textReport,
		Explanations:    explanations,
		OntologyMapping: ontology,
		AccuracyMetrics: metrics,
		ImageName:       imageName,
		GeneratedAt:     time.Now(),
	}, nil
}

// autoLog records the generated report in the feedback store so the
// analytics views see every operation, not only edited ones.
func (s *ReportService) autoLog(report domain.Report, explanations *domain.ReportExplanations, ontology *domain.OntologyReport, imageName string) {
	_, err := s.store.Record(feedback.RecordParams{
		ImageName:       imageName,
		OriginalReport:  report,
		EditedReport:    nil,
		Explanations:    marshalRaw(explanations),
		OntologyMapping: marshalRaw(ontology),
		Metadata:        map[string]string{"auto_logged": "true"},
	})
	if err != nil {
		s.logger.WithError(err).WithField("image", imageName).Warn("Failed to auto-log generated report")
		return
	}
	s.learning.Invalidate()
}

// SaveFeedbackParams carries one feedback submission.
type SaveFeedbackParams struct {
	ImageName       string
	OriginalReport  domain.Report
	EditedReport    *domain.Report
	Explanations    json.RawMessage
	OntologyMapping json.RawMessage
	UserFeedback    json.RawMessage
}

// SaveFeedback records an edited report. An edited report is required:
// feedback without edits carries no learning signal.
func (s *ReportService) SaveFeedback(params SaveFeedbackParams) (*feedback.Entry, error) {
	if params.ImageName == "" {
		return nil, domain.NewServiceError(domain.ErrInvalidInput, "image_name is required", nil)
	}
	if params.EditedReport == nil {
		return nil, domain.NewServiceError(domain.ErrInvalidInput,
			"No edited report provided. Please make edits before saving.", nil)
	}

	entry, err := s.store.Record(feedback.RecordParams{
		ImageName:       params.ImageName,
		OriginalReport:  params.OriginalReport,
		EditedReport:    params.EditedReport,
		Explanations:    params.Explanations,
		OntologyMapping: params.OntologyMapping,
		UserFeedback:    params.UserFeedback,
	})
	if err != nil {
		return nil, err
	}

	s.learning.Invalidate()
	return entry, nil
}

// LearningStats pairs mining statistics with feedback-log statistics.
type LearningStats struct {
	Learning *learning.Statistics `json:"learning_stats"`
	Feedback *feedback.Statistics `json:"feedback_stats"`
}

// LearningStats reports the state of the continuous-learning loop.
func (s *ReportService) LearningStats(ctx context.Context) (*LearningStats, error) {
	learningStats, err := s.learning.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	feedbackStats, err := s.store.Statistics()
	if err != nil {
		return nil, err
	}
	return &LearningStats{Learning: learningStats, Feedback: feedbackStats}, nil
}

// Rules returns the currently mined rules.
func (s *ReportService) Rules(ctx context.Context) ([]learning.Rule, error) {
	return s.learning.MineRules(ctx)
}

func marshalRaw(value any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}

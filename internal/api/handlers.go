package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/internal/service"
)

// feedbackRequest is the save-feedback request body.
type feedbackRequest struct {
	ImageName       string          `json:"image_name" binding:"required"`
	OriginalReport  domain.Report   `json:"original_report"`
	EditedReport    *domain.Report  `json:"edited_report"`
	Explanations    json.RawMessage `json:"explanations"`
	OntologyMapping json.RawMessage `json:"ontology_mapping"`
	UserFeedback    json.RawMessage `json:"user_feedback"`
}

// handleRoot handles the root endpoint
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Radiology AI Assistant API",
		"status":  "running",
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"vision_configured": s.reports.VisionConfigured(),
		"timestamp":         time.Now(),
	})
}

// handleGenerateReport accepts a multipart image upload and runs the
// report-generation pipeline.
func (s *Server) handleGenerateReport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput,
			"missing 'file' form field", err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput,
			"unable to open uploaded file", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput,
			"unable to read uploaded file", err))
		return
	}

	result, err := s.reports.GenerateReport(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"report":           result.Report,
		"text_report":      result.TextReport,
		"explanations":     result.Explanations,
		"ontology_mapping": result.OntologyMapping,
		"accuracy_metrics": result.AccuracyMetrics,
		"image_name":       result.ImageName,
	})
}

// handleSaveFeedback records an edited report for the learning loop.
func (s *Server) handleSaveFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput,
			"invalid feedback payload", err))
		return
	}

	entry, err := s.reports.SaveFeedback(service.SaveFeedbackParams{
		ImageName:       req.ImageName,
		OriginalReport:  req.OriginalReport,
		EditedReport:    req.EditedReport,
		Explanations:    req.Explanations,
		OntologyMapping: req.OntologyMapping,
		UserFeedback:    req.UserFeedback,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Feedback saved successfully",
		"entry_id":   entry.ID,
		"edit_count": entry.EditCount,
		"has_edits":  entry.HasEdits,
	})
}

// handleRules returns the mined rules.
func (s *Server) handleRules(c *gin.Context) {
	rules, err := s.reports.Rules(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rules":   rules,
		"count":   len(rules),
	})
}

// handleLearningStats returns learning and feedback statistics.
func (s *Server) handleLearningStats(c *gin.Context) {
	stats, err := s.reports.LearningStats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"learning_stats": stats.Learning,
		"feedback_stats": stats.Feedback,
	})
}

// handleAnalytics returns the analytics report.
func (s *Server) handleAnalytics(c *gin.Context) {
	report, err := s.analytics.GenerateReport()
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"analytics":    report,
		"generated_at": time.Now(),
	})
}

// respondError maps a pipeline error to its HTTP status.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusForError(err)

	var se *domain.ServiceError
	if !errors.As(err, &se) {
		se = domain.NewServiceError(domain.ErrInternalServer, "internal server error", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"code":       se.Code,
		"status":     status,
	}).WithError(err).Error("Request failed")

	c.JSON(status, gin.H{
		"success": false,
		"error":   se,
	})
}

func statusForError(err error) int {
	switch domain.ErrorCode(err) {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

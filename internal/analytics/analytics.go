// Package analytics aggregates feedback history into summary and
// admin-dashboard views.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radiology-ai-assistant/internal/feedback"
)

// Summary holds the headline counters over the feedback log.
type Summary struct {
	TotalReports         int `json:"total_reports"`
	ReportsWithEdits     int `json:"reports_with_edits"`
	TotalEdits           int `json:"total_edits"`
	TotalFindings        int `json:"total_findings"`
	UniqueImages         int `json:"unique_images"`
	TotalLearningEntries int `json:"total_learning_entries"`
}

// OperationsBreakdown splits operations into automated and manual.
type OperationsBreakdown struct {
	TotalOperations        int     `json:"total_operations"`
	AutomatedOperations    int     `json:"automated_operations"`
	ManualInterventions    int     `json:"manual_interventions"`
	AutomationRate         float64 `json:"automation_rate"`
	ManualInterventionRate float64 `json:"manual_intervention_rate"`
}

// PeriodStats counts operations within a time window.
type PeriodStats struct {
	Total     int `json:"total"`
	Automated int `json:"automated"`
	Manual    int `json:"manual"`
}

// TimePeriodStats covers the standard reporting windows.
type TimePeriodStats struct {
	Today     PeriodStats `json:"today"`
	ThisWeek  PeriodStats `json:"this_week"`
	ThisMonth PeriodStats `json:"this_month"`
}

// PerformanceMetrics describes report volume and quality.
type PerformanceMetrics struct {
	AverageFindingsPerReport float64 `json:"average_findings_per_report"`
	AverageConfidenceScore   float64 `json:"average_confidence_score"`
	TotalFindingsDetected    int     `json:"total_findings_detected"`
	ReportsPerDayAvg         float64 `json:"reports_per_day_avg"`
}

// Intervention is one manual edit event.
type Intervention struct {
	Timestamp string `json:"timestamp"`
	Image     string `json:"image"`
	EditCount int    `json:"edit_count"`
}

// InterventionStats summarizes manual editing activity.
type InterventionStats struct {
	TotalInterventions          int            `json:"total_interventions"`
	AverageEditsPerIntervention float64        `json:"average_edits_per_intervention"`
	RecentInterventions         []Intervention `json:"recent_interventions"`
}

// AdminDashboard is the full admin-level view.
type AdminDashboard struct {
	OperationsBreakdown OperationsBreakdown `json:"operations_breakdown"`
	TimePeriodStats     TimePeriodStats     `json:"time_period_stats"`
	PerformanceMetrics  PerformanceMetrics  `json:"performance_metrics"`
	ManualInterventions InterventionStats   `json:"manual_interventions"`
}

// Report pairs the summary with the admin dashboard.
type Report struct {
	Summary        Summary        `json:"summary"`
	AdminDashboard AdminDashboard `json:"admin_dashboard"`
}

// Engine computes analytics over the feedback store. The clock is
// injectable for tests.
type Engine struct {
	store  feedback.Store
	logger *logrus.Logger
	now    func() time.Time
}

// NewEngine creates an analytics engine over the feedback store.
func NewEngine(store feedback.Store, logger *logrus.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// SetClock overrides the engine clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// GenerateReport builds the summary and admin dashboard from the current
// feedback log.
func (e *Engine) GenerateReport() (*Report, error) {
	entries, err := e.store.Entries()
	if err != nil {
		return nil, err
	}
	records, err := e.store.LearningRecords()
	if err != nil {
		return nil, err
	}

	return &Report{
		Summary:        e.buildSummary(entries, records),
		AdminDashboard: e.buildDashboard(entries),
	}, nil
}

func (e *Engine) buildSummary(entries []feedback.Entry, records []feedback.LearningRecord) Summary {
	summary := Summary{
		TotalReports:         len(entries),
		TotalLearningEntries: len(records),
	}

	images := map[string]bool{}
	for _, entry := range entries {
		if entry.HasEdits {
			summary.ReportsWithEdits++
		}
		summary.TotalEdits += entry.EditCount
		summary.TotalFindings += len(entry.OriginalReport.Findings)
		images[entry.ImageName] = true
	}
	summary.UniqueImages = len(images)

	return summary
}

func (e *Engine) buildDashboard(entries []feedback.Entry) AdminDashboard {
	total := len(entries)
	manual := 0
	totalFindings := 0
	confidenceSum := 0.0
	confidenceCount := 0
	totalManualEdits := 0
	var interventions []Intervention

	for _, entry := range entries {
		if entry.HasEdits {
			manual++
			totalManualEdits += entry.EditCount
			interventions = append(interventions, Intervention{
				Timestamp: entry.Timestamp,
				Image:     entry.ImageName,
				EditCount: entry.EditCount,
			})
		}
		totalFindings += len(entry.OriginalReport.Findings)
		for _, finding := range entry.OriginalReport.Findings {
			confidenceSum += finding.Confidence
			confidenceCount++
		}
	}

	automated := total - manual

	breakdown := OperationsBreakdown{
		TotalOperations:     total,
		AutomatedOperations: automated,
		ManualInterventions: manual,
	}
	if total > 0 {
		breakdown.AutomationRate = round1(float64(automated) / float64(total) * 100)
		breakdown.ManualInterventionRate = round1(float64(manual) / float64(total) * 100)
	}

	now := e.now()
	today := truncateToDay(now)
	weekAgo := today.AddDate(0, 0, -7)
	monthAgo := today.AddDate(0, 0, -30)

	periods := TimePeriodStats{}
	weekTotal := 0
	for _, entry := range entries {
		ts, ok := parseTimestamp(entry.Timestamp)
		if !ok {
			continue
		}
		day := truncateToDay(ts.In(now.Location()))
		if day.Equal(today) {
			countInto(&periods.Today, entry.HasEdits)
		}
		if !day.Before(weekAgo) {
			countInto(&periods.ThisWeek, entry.HasEdits)
			weekTotal++
		}
		if !day.Before(monthAgo) {
			countInto(&periods.ThisMonth, entry.HasEdits)
		}
	}

	performance := PerformanceMetrics{
		TotalFindingsDetected: totalFindings,
	}
	if total > 0 {
		performance.AverageFindingsPerReport = round1(float64(totalFindings) / float64(total))
	}
	if confidenceCount > 0 {
		performance.AverageConfidenceScore = round1(confidenceSum / float64(confidenceCount) * 100)
	}
	if weekTotal > 0 {
		performance.ReportsPerDayAvg = round1(float64(weekTotal) / 7)
	}

	sort.SliceStable(interventions, func(i, j int) bool {
		return interventions[i].Timestamp > interventions[j].Timestamp
	})
	if len(interventions) > 10 {
		interventions = interventions[:10]
	}
	if interventions == nil {
		interventions = []Intervention{}
	}

	interventionStats := InterventionStats{
		TotalInterventions:  manual,
		RecentInterventions: interventions,
	}
	if manual > 0 {
		interventionStats.AverageEditsPerIntervention = round1(float64(totalManualEdits) / float64(manual))
	}

	return AdminDashboard{
		OperationsBreakdown: breakdown,
		TimePeriodStats:     periods,
		PerformanceMetrics:  performance,
		ManualInterventions: interventionStats,
	}
}

func countInto(stats *PeriodStats, manual bool) {
	stats.Total++
	if manual {
		stats.Manual++
	} else {
		stats.Automated++
	}
}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func truncateToDay(ts time.Time) time.Time {
	year, month, day := ts.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, ts.Location())
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

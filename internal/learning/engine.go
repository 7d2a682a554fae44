// Package learning mines rules from accumulated radiologist feedback
// and applies them to new reports.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/internal/feedback"
)

// Rule is one mined rule. Adjustment is set for confidence_adjustment
// rules, Associations for finding_association rules, Confidence for
// edit_pattern rules.
type Rule struct {
	Type         string   `json:"type"`
	Pattern      string   `json:"pattern"`
	Support      int      `json:"support"`
	Confidence   float64  `json:"confidence,omitempty"`
	Adjustment   float64  `json:"adjustment,omitempty"`
	Associations []string `json:"associations,omitempty"`
}

// Statistics summarizes the state of the learning process.
type Statistics struct {
	TotalLearningEntries int            `json:"total_learning_entries"`
	TotalRulesMined      int            `json:"total_rules_mined"`
	RulesByType          map[string]int `json:"rules_by_type"`
	HighConfidenceRules  int            `json:"high_confidence_rules"`
	EntriesWithEdits     int            `json:"entries_with_edits"`
}

// RecordSource supplies the learning records to mine.
type RecordSource interface {
	LearningRecords() ([]feedback.LearningRecord, error)
}

// Engine mines rules from learning records and applies them to reports.
// Mined rules are cached until Invalidate is called.
type Engine struct {
	source RecordSource
	logger *logrus.Logger

	// StrictConfidence restricts pattern support counting to finding
	// names instead of the full rendered record.
	StrictConfidence bool

	minSupport int

	mu    sync.Mutex
	rules []Rule
	mined bool
}

// NewEngine creates a learning engine over the given record source.
func NewEngine(source RecordSource, cfg domain.LearningConfig, logger *logrus.Logger) *Engine {
	minSupport := cfg.MinSupport
	if minSupport <= 0 {
		minSupport = 2
	}
	return &Engine{
		source:           source,
		logger:           logger,
		StrictConfidence: cfg.StrictConfidence,
		minSupport:       minSupport,
	}
}

// Invalidate drops the cached rules so the next use re-mines.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.rules = nil
	e.mined = false
	e.mu.Unlock()
}

// MineRules extracts edit patterns, confidence adjustments, and finding
// associations from the learning records. Results are sorted by support
// descending with ties kept in discovery order.
func (e *Engine) MineRules(ctx context.Context) ([]Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mineLocked(ctx)
}

func (e *Engine) mineLocked(ctx context.Context) ([]Rule, error) {
	if e.mined {
		return e.rules, nil
	}

	records, err := e.source.LearningRecords()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		e.rules = []Rule{}
		e.mined = true
		return e.rules, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rendered := renderRecords(records)

	rules := []Rule{}
	rules = append(rules, e.mineEditPatterns(records, rendered)...)
	rules = append(rules, e.mineConfidenceAdjustments(records, rendered)...)
	rules = append(rules, e.mineFindingAssociations(records)...)

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Support > rules[j].Support
	})

	e.rules = rules
	e.mined = true

	e.logger.WithFields(logrus.Fields{
		"records": len(records),
		"rules":   len(rules),
	}).Info("Rules mined from learning data")

	return e.rules, nil
}

// renderRecords serializes each record once so pattern support counting
// does not re-marshal per pattern.
func renderRecords(records []feedback.LearningRecord) []string {
	rendered := make([]string, len(records))
	for i, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		rendered[i] = string(data)
	}
	return rendered
}

// orderedCounter counts keys while remembering first-seen order.
type orderedCounter struct {
	counts map[string]int
	order  []string
}

func newOrderedCounter() *orderedCounter {
	return &orderedCounter{counts: map[string]int{}}
}

func (c *orderedCounter) add(key string) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (e *Engine) mineEditPatterns(records []feedback.LearningRecord, rendered []string) []Rule {
	patterns := newOrderedCounter()

	for _, record := range records {
		if !record.HasEdits {
			continue
		}
		pairs := min(len(record.OriginalFindings), len(record.EditedFindings))
		for i := 0; i < pairs; i++ {
			orig := record.OriginalFindings[i]
			edit := record.EditedFindings[i]
			if !orig.CoreEquals(edit) {
				patterns.add(fmt.Sprintf("%s -> %s", orig.Name, edit.Name))
			}
		}
	}

	editedCount := 0
	for _, record := range records {
		if record.HasEdits {
			editedCount++
		}
	}

	rules := []Rule{}
	for _, pattern := range patterns.order {
		count := patterns.counts[pattern]
		if count < e.minSupport {
			continue
		}
		confidence := 0.0
		if editedCount > 0 {
			confidence = round2(float64(e.countPattern(pattern, records, rendered)) / float64(editedCount))
		}
		rules = append(rules, Rule{
			Type:       "edit_pattern",
			Pattern:    pattern,
			Support:    count,
			Confidence: confidence,
		})
	}
	return rules
}

func (e *Engine) mineConfidenceAdjustments(records []feedback.LearningRecord, rendered []string) []Rule {
	deltas := map[string][]float64{}
	var order []string

	for _, record := range records {
		pairs := min(len(record.OriginalFindings), len(record.EditedFindings))
		for i := 0; i < pairs; i++ {
			orig := record.OriginalFindings[i]
			edit := record.EditedFindings[i]
			if math.Abs(orig.Confidence-edit.Confidence) > 0.1 {
				if _, seen := deltas[orig.Name]; !seen {
					order = append(order, orig.Name)
				}
				deltas[orig.Name] = append(deltas[orig.Name], edit.Confidence-orig.Confidence)
			}
		}
	}

	rules := []Rule{}
	for _, name := range order {
		values := deltas[name]
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		average := sum / float64(len(values))
		if math.Abs(average) <= 0.1 {
			continue
		}
		rules = append(rules, Rule{
			Type:       "confidence_adjustment",
			Pattern:    name,
			Adjustment: round2(average),
			Support:    e.countPattern(name, records, rendered),
		})
	}
	return rules
}

func (e *Engine) mineFindingAssociations(records []feedback.LearningRecord) []Rule {
	associations := map[string][]string{}
	seen := map[string]map[string]bool{}
	var order []string

	link := func(a, b string) {
		if seen[a] == nil {
			seen[a] = map[string]bool{}
			order = append(order, a)
		}
		if !seen[a][b] {
			seen[a][b] = true
			associations[a] = append(associations[a], b)
		}
	}

	for _, record := range records {
		var names []string
		for _, finding := range record.OriginalFindings {
			if finding.Name != "" {
				names = append(names, finding.Name)
			}
		}
		for i, name1 := range names {
			for _, name2 := range names[i+1:] {
				link(name1, name2)
				link(name2, name1)
			}
		}
	}

	rules := []Rule{}
	for _, name := range order {
		linked := associations[name]
		if len(linked) < e.minSupport {
			continue
		}
		rules = append(rules, Rule{
			Type:         "finding_association",
			Pattern:      name,
			Associations: linked,
			Support:      len(linked),
		})
	}
	return rules
}

// countPattern counts the records that mention the pattern. The default
// scan tests substring containment over the JSON-rendered record; strict
// mode consults only finding names and edit pairs.
func (e *Engine) countPattern(pattern string, records []feedback.LearningRecord, rendered []string) int {
	count := 0
	for i, record := range records {
		if e.StrictConfidence {
			if recordMentions(record, pattern) {
				count++
			}
		} else if strings.Contains(rendered[i], pattern) {
			count++
		}
	}
	return count
}

func recordMentions(record feedback.LearningRecord, pattern string) bool {
	for _, finding := range record.OriginalFindings {
		if strings.Contains(finding.Name, pattern) {
			return true
		}
	}
	for _, finding := range record.EditedFindings {
		if strings.Contains(finding.Name, pattern) {
			return true
		}
	}
	pairs := min(len(record.OriginalFindings), len(record.EditedFindings))
	for i := 0; i < pairs; i++ {
		pair := record.OriginalFindings[i].Name + " -> " + record.EditedFindings[i].Name
		if strings.Contains(pair, pattern) {
			return true
		}
	}
	return false
}

// ApplyRules applies confidence-adjustment rules to a report. A rule
// matches a finding when its pattern is a case-insensitive substring of
// the finding name; matching adjustments accumulate, and the result is
// clamped to [0, 1]. RulesApplied counts rules matching the report as
// submitted, before any adjustment.
func (e *Engine) ApplyRules(ctx context.Context, report domain.Report) (domain.Report, error) {
	e.mu.Lock()
	rules, err := e.mineLocked(ctx)
	e.mu.Unlock()
	if err != nil {
		return report, err
	}

	improved := report
	improved.Findings = make([]domain.Finding, len(report.Findings))

	for i, finding := range report.Findings {
		adjusted := finding
		for _, rule := range rules {
			if rule.Type != "confidence_adjustment" {
				continue
			}
			if !patternMatchesFinding(rule.Pattern, finding.Name) {
				continue
			}
			newConfidence := adjusted.Confidence + rule.Adjustment
			newConfidence = math.Max(0.0, math.Min(1.0, newConfidence))
			adjusted.Confidence = round2(newConfidence)
			adjusted.ConfidenceAdjusted = true
			adjusted.AdjustmentReason = fmt.Sprintf("Based on learned pattern: %s", rule.Pattern)
		}
		improved.Findings[i] = adjusted
	}

	applied := 0
	for _, rule := range rules {
		if rule.Type != "confidence_adjustment" {
			continue
		}
		for _, finding := range report.Findings {
			if patternMatchesFinding(rule.Pattern, finding.Name) {
				applied++
				break
			}
		}
	}
	improved.RulesApplied = applied

	return improved, nil
}

func patternMatchesFinding(pattern, findingName string) bool {
	return strings.Contains(strings.ToLower(findingName), strings.ToLower(pattern))
}

// Statistics re-mines and reports counts by rule type.
func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	records, err := e.source.LearningRecords()
	if err != nil {
		return nil, err
	}

	rules, err := e.MineRules(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalLearningEntries: len(records),
		TotalRulesMined:      len(rules),
		RulesByType: map[string]int{
			"edit_pattern":          0,
			"confidence_adjustment": 0,
			"finding_association":   0,
		},
	}

	for _, rule := range rules {
		stats.RulesByType[rule.Type]++
		if rule.Confidence >= 0.7 {
			stats.HighConfidenceRules++
		}
	}
	for _, record := range records {
		if record.HasEdits {
			stats.EntriesWithEdits++
		}
	}

	return stats, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

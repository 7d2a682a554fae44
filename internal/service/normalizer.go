package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/radiology-ai-assistant/internal/domain"
)

// DecodeModelOutput parses the raw vision model response into a canonical
// report. The model is untrusted: the payload may arrive wrapped in
// markdown code fences, with fields missing or mistyped. One fence-strip
// fallback is attempted before giving up with a parse error. This is the
// single place in the pipeline where untyped data is accepted.
func DecodeModelOutput(raw string) (domain.Report, error) {
	text := strings.TrimSpace(raw)

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		stripped := stripCodeFences(text)
		if err2 := json.Unmarshal([]byte(stripped), &payload); err2 != nil {
			return domain.NewReport(), domain.NewServiceError(domain.ErrParse,
				"model output is not a valid JSON report", err2)
		}
	}

	return NormalizeReport(payload), nil
}

// stripCodeFences extracts the payload from a ```json ... ``` or
// ``` ... ``` block.
func stripCodeFences(text string) string {
	start := strings.Index(text, "```json")
	offset := 7
	if start < 0 {
		start = strings.Index(text, "```")
		offset = 3
	}
	if start < 0 {
		return text
	}

	body := text[start+offset:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// NormalizeReport coerces an arbitrary decoded payload into the canonical
// report shape. Missing or mistyped fields fall back to defaults; the
// transform is pure and never fails.
func NormalizeReport(payload map[string]any) domain.Report {
	report := domain.NewReport()

	if rawFindings, ok := payload["findings"].([]any); ok {
		for _, rawFinding := range rawFindings {
			entry, ok := rawFinding.(map[string]any)
			if !ok {
				continue
			}
			report.Findings = append(report.Findings, domain.Finding{
				Name:       coerceString(entry["finding"]),
				Location:   coerceString(entry["location"]),
				Evidence:   coerceString(entry["evidence"]),
				Confidence: coerceFloat(entry["confidence"], 0.5),
				Severity:   coerceStringDefault(entry["severity"], "unknown"),
			})
		}
	}

	report.Impression = coerceString(payload["impression"])

	switch recs := payload["recommendations"].(type) {
	case []any:
		for _, rec := range recs {
			if s := coerceString(rec); s != "" {
				report.Recommendations = append(report.Recommendations, s)
			}
		}
	case string:
		report.Recommendations = append(report.Recommendations, recs)
	}

	if meta, ok := payload["metadata"].(map[string]any); ok {
		for key, value := range meta {
			report.Metadata[key] = coerceString(value)
		}
	}

	return report
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func coerceStringDefault(value any, fallback string) string {
	if s := coerceString(value); s != "" {
		return s
	}
	return fallback
}

func coerceFloat(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	case int:
		return float64(v)
	}
	return fallback
}

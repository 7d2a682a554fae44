// Package vocab provides the controlled vocabularies used to normalize
// free-text radiology findings: a RadLex-style condition→keyword table
// and the CheXpert classifier label pool.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Term maps a condition name to the keywords that identify it in
// free text.
type Term struct {
	Condition string
	Keywords  []string
}

// Terms is an ordered condition→keyword table. Order is deterministic
// (condition names sorted at load time) so that mapping output is stable.
type Terms []Term

// Keywords returns the keyword list registered for a condition, or nil.
func (t Terms) Keywords(condition string) []string {
	for _, term := range t {
		if term.Condition == condition {
			return term.Keywords
		}
	}
	return nil
}

// Conditions returns the ordered condition names.
func (t Terms) Conditions() []string {
	names := make([]string, len(t))
	for i, term := range t {
		names[i] = term.Condition
	}
	return names
}

// Load reads a condition→keyword-list JSON table from disk. The file is
// required to exist; a missing or malformed table is a startup error.
func Load(path string) (Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in vocabulary file %s: %w", path, err)
	}

	return fromMap(raw), nil
}

func fromMap(raw map[string][]string) Terms {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	terms := make(Terms, 0, len(names))
	for _, name := range names {
		terms = append(terms, Term{Condition: name, Keywords: raw[name]})
	}
	return terms
}

// DefaultTerms returns the built-in RadLex-style table covering the
// CheXpert label pool. Used when no vocabulary file is configured.
func DefaultTerms() Terms {
	return fromMap(map[string][]string{
		"Cardiomegaly": {
			"cardiomegaly", "enlarged heart", "cardiac enlargement",
			"increased cardiothoracic ratio", "enlarged cardiac silhouette",
		},
		"Pleural Effusion": {
			"pleural effusion", "effusion", "blunting of costophrenic angle",
			"fluid in pleural space", "pleural fluid",
		},
		"Pulmonary Edema": {
			"pulmonary edema", "edema", "vascular congestion",
			"kerley b lines", "interstitial edema",
		},
		"Consolidation": {
			"consolidation", "airspace opacity", "air bronchogram",
			"dense opacity", "lobar opacity",
		},
		"Atelectasis": {
			"atelectasis", "collapse", "volume loss",
			"linear opacity", "plate-like opacity",
		},
		"Pneumothorax": {
			"pneumothorax", "collapsed lung", "absent lung markings",
			"pleural line", "deep sulcus sign",
		},
		"Support Devices": {
			"support device", "endotracheal tube", "central line",
			"pacemaker", "catheter", "tube", "device",
		},
		"No Finding": {
			"no acute", "clear lungs", "normal", "unremarkable",
			"no significant findings",
		},
	})
}

// ChexpertLabelPool is the fixed CheXpert classifier label set used as
// ground truth for accuracy scoring. "No Finding" is last and excluded
// from random sampling.
var ChexpertLabelPool = []string{
	"Cardiomegaly",
	"Pleural Effusion",
	"Pulmonary Edema",
	"Consolidation",
	"Atelectasis",
	"Pneumothorax",
	"Support Devices",
	"No Finding",
}

// Package dataset supplies ground-truth CheXpert labels for chest X-ray
// images, backed by a MIMIC-CXR CSV export with a simulated fallback for
// images the dataset does not cover.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/radiology-ai-assistant/internal/domain"
	"github.com/radiology-ai-assistant/pkg/vocab"
)

// labelColumns are the CheXpert label columns recognized in the CSV.
var labelColumns = []string{
	"Atelectasis", "Cardiomegaly", "Consolidation", "Edema",
	"Enlarged Cardiomediastinum", "Lung Lesion", "Lung Opacity",
	"Normal", "Pleural Effusion", "Pneumonia", "Pneumothorax",
}

// Source resolves image filenames to CheXpert label lists. It is
// constructed once at startup and passed into the pipeline; a configured
// but unreadable CSV is a constructor-time error, while an empty path
// yields a simulation-only source.
type Source struct {
	lookup map[string][]string
	cache  *lru.Cache
	logger *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a label source from the dataset configuration.
func NewSource(cfg domain.DatasetConfig, logger *logrus.Logger) (*Source, error) {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create label cache: %w", err)
	}

	s := &Source{
		lookup: map[string][]string{},
		cache:  cache,
		logger: logger,
		rng:    rand.New(rand.NewSource(rand.Int63())),
	}

	if cfg.CSVPath != "" {
		if err := s.loadCSV(cfg.CSVPath); err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"csv_path": cfg.CSVPath,
			"images":   len(s.lookup),
		}).Info("Loaded MIMIC-CXR label dataset")
	} else {
		logger.Info("No dataset CSV configured, using simulated labels only")
	}

	return s, nil
}

// Seed replaces the random source used by the simulated fallback.
func (s *Source) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// loadCSV reads the MIMIC-CXR CSV into the filename→labels lookup.
func (s *Source) loadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse dataset CSV: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("dataset CSV %s is empty", path)
	}

	header := records[0]
	colIndex := map[string]int{}
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	fileCol, ok := colIndex["filename"]
	if !ok {
		return fmt.Errorf("dataset CSV %s has no filename column", path)
	}

	for _, row := range records[1:] {
		if fileCol >= len(row) {
			continue
		}
		filename := strings.TrimSpace(row[fileCol])
		if filename == "" {
			continue
		}
		s.lookup[filename] = extractLabels(row, colIndex)
	}

	return nil
}

// extractLabels collects label names whose column value is 1.0, mapping
// a positive Normal column to the "No Finding" label.
func extractLabels(row []string, colIndex map[string]int) []string {
	var labels []string
	normal := false

	for _, col := range labelColumns {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[idx])
		if value != "1" && value != "1.0" {
			continue
		}
		if col == "Normal" {
			normal = true
			continue
		}
		labels = append(labels, col)
	}

	if len(labels) == 0 && normal {
		return []string{"No Finding"}
	}
	return labels
}

// Labels returns the CheXpert labels for an image, preferring dataset
// entries and falling back to simulation. Results are cached so repeated
// lookups for the same image are stable within a process.
func (s *Source) Labels(imageName string) []string {
	if cached, ok := s.cache.Get(imageName); ok {
		return cached.([]string)
	}

	labels := s.datasetLabels(imageName)
	if labels == nil {
		labels = s.simulate(imageName)
	}

	s.cache.Add(imageName, labels)
	return labels
}

// datasetLabels tries exact, basename, and case-insensitive matches.
func (s *Source) datasetLabels(imageName string) []string {
	if labels, ok := s.lookup[imageName]; ok {
		return labels
	}

	base := filepath.Base(imageName)
	if labels, ok := s.lookup[base]; ok {
		return labels
	}

	lower := strings.ToLower(base)
	for key, labels := range s.lookup {
		if strings.ToLower(key) == lower {
			return labels
		}
	}
	return nil
}

// simulate derives labels from filename keywords, or samples 2-4 labels
// from the pool when nothing matches.
func (s *Source) simulate(imageName string) []string {
	name := strings.ToLower(imageName)

	switch {
	case strings.Contains(name, "cardio"):
		return []string{"Cardiomegaly", "Pulmonary Edema"}
	case strings.Contains(name, "pleura"):
		return []string{"Pleural Effusion"}
	case strings.Contains(name, "normal"), strings.Contains(name, "clear"):
		return []string{"No Finding"}
	}

	pool := vocab.ChexpertLabelPool[:len(vocab.ChexpertLabelPool)-1]

	s.mu.Lock()
	defer s.mu.Unlock()
	k := 2 + s.rng.Intn(3)
	picked := s.rng.Perm(len(pool))[:k]

	labels := make([]string, 0, k)
	for _, idx := range picked {
		labels = append(labels, pool[idx])
	}
	return labels
}

// Size returns the number of dataset entries loaded from the CSV.
func (s *Source) Size() int {
	return len(s.lookup)
}

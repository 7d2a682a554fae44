package domain

import (
	"context"
)

// VisionModel is the outbound collaborator that describes an image.
// The returned text is untrusted and may or may not contain a JSON
// payload wrapped in code fences; only the normalizer interprets it.
type VisionModel interface {
	Describe(ctx context.Context, image []byte, imageName string) (string, error)
	Configured() bool
}

// LabelSource supplies ground-truth labels for an image, falling back
// to simulated labels when the dataset has no entry.
type LabelSource interface {
	Labels(imageName string) []string
}

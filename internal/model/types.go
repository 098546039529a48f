package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Classifier scores one preprocessed image. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Classify(ctx context.Context, input []float32) ([]float32, error)
	// OutputWidth is the length of every score vector, fixed at load time.
	OutputWidth() int
}

// Metadata describes an exported model. It is optional; when absent the
// shapes come from configuration.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// LoadMetadata reads a metadata JSON file.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &metadata, nil
}

// OutputWidth is the last dimension of OutputShape, or 0 when unknown.
func (m *Metadata) OutputWidth() int {
	if m == nil || len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}

// ResolveShapes derives the session's input and output shapes. Metadata
// shapes win over the configured resolution; the output width falls back to
// outputClasses, then to the number of candidate labels. A dynamic leading
// batch dimension is pinned to 1.
func ResolveShapes(meta *Metadata, width, height, outputClasses, labelCount int) (input, output []int64, err error) {
	input = []int64{1, int64(height), int64(width), 3}
	if meta != nil && len(meta.InputShape) == 4 {
		input = append([]int64(nil), meta.InputShape...)
	} else if meta != nil && meta.ImageSize > 0 {
		input = []int64{1, int64(meta.ImageSize), int64(meta.ImageSize), 3}
	}

	k := meta.OutputWidth()
	if k == 0 {
		k = outputClasses
	}
	if k == 0 {
		k = labelCount
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("cannot determine classifier output width")
	}
	output = []int64{1, int64(k)}
	if meta != nil && len(meta.OutputShape) > 0 {
		output = append([]int64(nil), meta.OutputShape...)
	}

	// Exports with a dynamic batch axis record it as -1 (or 0).
	if len(input) > 1 && input[0] <= 0 {
		input[0] = 1
	}
	if len(output) > 1 && output[0] <= 0 {
		output[0] = 1
	}

	for _, d := range input {
		if d <= 0 {
			return nil, nil, fmt.Errorf("invalid input shape %v", input)
		}
	}
	return input, output, nil
}

// Elements is the number of values in a tensor of the given shape.
func Elements(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

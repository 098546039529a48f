// Package predict runs the leaf image pipeline: resolve the source,
// preprocess, classify, interpret the scores and attach a remedy.
package predict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Brownie44l1/leaf-api/internal/labels"
	"github.com/Brownie44l1/leaf-api/internal/model"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
	"github.com/Brownie44l1/leaf-api/internal/remedy"
	"github.com/Brownie44l1/leaf-api/internal/scoring"
	"github.com/Brownie44l1/leaf-api/pkg/xerr"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	"go.uber.org/zap"
)

// Request carries the two accepted image sources. ImageBase64 wins when both
// are set.
type Request struct {
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
}

// Result is the response payload for a successful prediction.
type Result struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Solution   string  `json:"solution"`
}

// Resolver produces raw image bytes from a request.
type Resolver interface {
	Resolve(ctx context.Context, imageBase64, imageURL string) ([]byte, error)
}

// Service is built once at startup; all of its collaborators are read-only.
type Service struct {
	resolver     Resolver
	preprocessor *preprocess.Preprocessor
	classifier   model.Classifier
	registry     *labels.Registry
	remedies     *remedy.Table
}

func NewService(
	resolver Resolver,
	preprocessor *preprocess.Preprocessor,
	classifier model.Classifier,
	registry *labels.Registry,
	remedies *remedy.Table,
) (*Service, error) {
	if registry.Len() != classifier.OutputWidth() {
		return nil, fmt.Errorf("label registry has %d entries, classifier outputs %d", registry.Len(), classifier.OutputWidth())
	}
	return &Service{
		resolver:     resolver,
		preprocessor: preprocessor,
		classifier:   classifier,
		registry:     registry,
		remedies:     remedies,
	}, nil
}

// Predict resolves the image source and runs the pipeline.
func (s *Service) Predict(ctx context.Context, req Request) (*Result, error) {
	raw, err := s.resolver.Resolve(ctx, req.ImageBase64, req.ImageURL)
	if err != nil {
		return nil, err
	}
	return s.PredictBytes(ctx, raw)
}

// PredictBytes runs the pipeline from already-resolved image bytes.
func (s *Service) PredictBytes(ctx context.Context, raw []byte) (*Result, error) {
	start := time.Now()

	tensor, err := s.preprocessor.Process(raw)
	if err != nil {
		return nil, err
	}

	scores, err := s.classifier.Classify(ctx, tensor.Data)
	if err != nil {
		return nil, xerr.Internal(err, "prediction failed")
	}
	if len(scores) != s.registry.Len() {
		return nil, xerr.Internal(nil, "classifier returned %d scores, expected %d", len(scores), s.registry.Len())
	}

	interp, err := scoring.Interpret(scores)
	if err != nil {
		return nil, xerr.Internal(err, "prediction failed")
	}

	label, ok := s.registry.Label(interp.Index)
	if !ok {
		return nil, xerr.Internal(nil, "class index %d out of range", interp.Index)
	}
	result := Assemble(label, interp.Confidence, s.remedies.Lookup(label))

	zlog.Info("prediction",
		zap.String("label", label),
		zap.Float64("confidence", result.Confidence),
		zap.Ints("top3", scoring.TopK(interp.Distribution, 3)),
		zap.Int64("ms", time.Since(start).Milliseconds()))
	return result, nil
}

// Assemble formats a label for display and builds the response payload.
func Assemble(label string, confidence float64, solution string) *Result {
	return &Result{
		Disease:    DisplayLabel(label),
		Confidence: confidence,
		Solution:   solution,
	}
}

// DisplayLabel replaces underscores with spaces.
func DisplayLabel(label string) string {
	return strings.ReplaceAll(label, "_", " ")
}

// Labels exposes the registry for health reporting.
func (s *Service) Labels() *labels.Registry { return s.registry }

// InputShape is the tensor shape fed to the classifier.
func (s *Service) InputShape() []int64 { return s.preprocessor.Shape() }

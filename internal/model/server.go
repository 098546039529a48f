package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxConfig locates the model and names its graph endpoints.
type OnnxConfig struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputShape []int64
}

// OnnxClassifier runs an ONNX graph through onnxruntime. The session is
// bound to one pair of tensors, so runs are serialized.
type OnnxClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int64
	outputWidth  int
}

func NewOnnxClassifier(cfg OnnxConfig) (*OnnxClassifier, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &OnnxClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   cfg.InputShape,
		outputWidth:  int(cfg.OutputShape[len(cfg.OutputShape)-1]),
	}, nil
}

func (s *OnnxClassifier) OutputWidth() int { return s.outputWidth }

func (s *OnnxClassifier) InputShape() []int64 {
	return append([]int64(nil), s.inputShape...)
}

// Classify copies input into the session, runs it and returns a copy of the
// first batch row of scores.
func (s *OnnxClassifier) Classify(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("classifier is closed")
	}

	dst := s.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	if len(out) < s.outputWidth {
		return nil, fmt.Errorf("output has %d values, expected at least %d", len(out), s.outputWidth)
	}
	scores := make([]float32, s.outputWidth)
	copy(scores, out[:s.outputWidth])
	return scores, nil
}

func (s *OnnxClassifier) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	ort.DestroyEnvironment()
}

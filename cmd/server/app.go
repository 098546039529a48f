package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Brownie44l1/leaf-api/internal/config"
	"github.com/Brownie44l1/leaf-api/internal/labels"
	"github.com/Brownie44l1/leaf-api/internal/model"
	"github.com/Brownie44l1/leaf-api/internal/predict"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
	"github.com/Brownie44l1/leaf-api/internal/remedy"
	"github.com/Brownie44l1/leaf-api/internal/resolver"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	"go.uber.org/zap"
)

// app owns everything built once at startup.
type app struct {
	service    *predict.Service
	classifier *model.OnnxClassifier
}

func newApp(conf *config.Config) (*app, error) {
	meta, err := loadMetadata(conf.ModelConfig.MetadataPath)
	if err != nil {
		return nil, err
	}

	var metaClasses []string
	if meta != nil {
		metaClasses = meta.Classes
	}
	candidates, source, err := labels.Select(conf.ModelConfig.LabelsPath, metaClasses)
	if err != nil {
		return nil, err
	}
	zlog.Info("label catalog loaded", zap.String("source", source), zap.Int("labels", len(candidates)))

	inputShape, outputShape, err := model.ResolveShapes(meta,
		conf.ModelConfig.InputWidth, conf.ModelConfig.InputHeight,
		conf.ModelConfig.OutputClasses, len(candidates))
	if err != nil {
		return nil, err
	}

	zlog.Info("loading model", zap.String("path", conf.ModelConfig.Path),
		zap.Int64s("input_shape", inputShape), zap.Int64s("output_shape", outputShape))
	clf, err := model.NewOnnxClassifier(model.OnnxConfig{
		ModelPath:   conf.ModelConfig.Path,
		LibraryPath: conf.ModelConfig.OrtLibPath,
		InputName:   conf.ModelConfig.InputName,
		OutputName:  conf.ModelConfig.OutputName,
		InputShape:  inputShape,
		OutputShape: outputShape,
	})
	if err != nil {
		return nil, err
	}
	zlog.Info("model loaded", zap.Int("classes", clf.OutputWidth()))

	svc, err := buildService(conf, candidates, clf, inputShape)
	if err != nil {
		clf.Close()
		return nil, err
	}
	return &app{service: svc, classifier: clf}, nil
}

// buildService reconciles the catalog against the classifier and wires the
// pipeline.
func buildService(conf *config.Config, candidates []string, clf model.Classifier, inputShape []int64) (*predict.Service, error) {
	if len(inputShape) != 4 || inputShape[3] != preprocess.Channels {
		return nil, fmt.Errorf("unsupported input shape %v: want (1, H, W, 3)", inputShape)
	}

	registry, rec := labels.Reconcile(candidates, clf.OutputWidth())
	if rec.Changed() {
		zlog.Warn("label catalog does not match model output, reconciled",
			zap.Int("catalog", rec.Candidates),
			zap.Int("model_classes", rec.Width),
			zap.Int("truncated", rec.Truncated),
			zap.Int("padded", rec.Padded))
	}

	return predict.NewService(
		resolver.New(resolver.Options{
			Timeout:   conf.FetchTimeout(),
			UserAgent: conf.FetchConfig.UserAgent,
			MaxBytes:  conf.FetchConfig.MaxBytes,
		}),
		preprocess.New(int(inputShape[2]), int(inputShape[1]), conf.ModelConfig.PixelScale).
			WithMaxPixels(conf.ModelConfig.MaxPixels),
		clf,
		registry,
		remedyTable(conf),
	)
}

func remedyTable(conf *config.Config) *remedy.Table {
	if len(conf.Remedies) == 0 {
		return remedy.New(remedy.Default().Entries(), conf.DefaultRemedy)
	}
	entries := make([]remedy.Entry, len(conf.Remedies))
	for i, r := range conf.Remedies {
		entries[i] = remedy.Entry{Keyword: r.Keyword, Text: r.Text}
	}
	return remedy.New(entries, conf.DefaultRemedy)
}

// loadMetadata returns nil when no metadata file is configured or present.
func loadMetadata(path string) (*model.Metadata, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zlog.Warn("model metadata not found, using configured shapes", zap.String("path", path))
		return nil, nil
	}
	return model.LoadMetadata(path)
}

func (a *app) Close() {
	if a.classifier != nil {
		a.classifier.Close()
	}
}

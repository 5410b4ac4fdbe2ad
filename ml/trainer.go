package ml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDataPath  = "data/sample_urls.csv"
	DefaultModelPath = "models/model.joblib"
)

// TrainingRun summarises one training run for the history store.
type TrainingRun struct {
	ModelName  string    `json:"model_name"`
	ModelPath  string    `json:"model_path"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

type TrainingRecorder interface {
	RecordTraining(ctx context.Context, run TrainingRun) error
}

type TrainConfig struct {
	DataPath        string
	OutputPath      string
	CreateIfMissing bool
	// SamplePath is copied to DataPath when the data file is missing.
	SamplePath string
	ModelType  string
	TestRatio  float64
	// Seed drives the split and the classifier; nil means DefaultSeed.
	Seed     *int64
	Trees    int
	MaxDepth int

	Logger   *zap.Logger
	Report   io.Writer
	Recorder TrainingRecorder
}

type TrainResult struct {
	Bundle    *Bundle
	Report    *Report
	TrainRows int
	TestRows  int
}

func (c *TrainConfig) setDefaults() {
	if c.DataPath == "" {
		c.DataPath = DefaultDataPath
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultModelPath
	}
	if c.SamplePath == "" {
		c.SamplePath = DefaultDataPath
	}
	if c.ModelType == "" {
		c.ModelType = ModelTypeRandomForest
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		c.TestRatio = DefaultTestRatio
	}
	if c.Seed == nil {
		seed := int64(DefaultSeed)
		c.Seed = &seed
	}
	if c.Trees <= 0 {
		c.Trees = DefaultTrees
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Report == nil {
		c.Report = io.Discard
	}
}

// Train loads the labeled CSV, fits a classifier on a seeded 80/20 split,
// writes a classification report for the held-out rows and saves the bundle.
func Train(ctx context.Context, config TrainConfig) (*TrainResult, error) {
	config.setDefaults()
	logger := config.Logger

	if err := EnsureDataset(config.DataPath, config.SamplePath, config.CreateIfMissing, logger); err != nil {
		return nil, err
	}
	examples, err := LoadDataset(config.DataPath)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", ErrSchema, config.DataPath)
	}

	features, labels := BuildMatrix(examples)
	split := SplitDataset(features, labels, config.TestRatio, *config.Seed)
	if len(split.TrainX) == 0 {
		logger.Warn("dataset too small to hold out a test partition, fitting on all rows",
			zap.Int("rows", len(examples)))
		split = Split{TrainX: features, TrainY: labels}
	}

	model, err := newClassifier(config)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(split.TrainX, split.TrainY); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	logger.Info("model trained",
		zap.String("model_type", config.ModelType),
		zap.Int("train_rows", len(split.TrainX)),
		zap.Int("test_rows", len(split.TestX)))

	result := &TrainResult{TrainRows: len(split.TrainX), TestRows: len(split.TestX)}
	if len(split.TestX) > 0 {
		predicted, err := model.Predict(split.TestX)
		if err != nil {
			return nil, fmt.Errorf("evaluate model: %w", err)
		}
		report := Evaluate(split.TestY, predicted)
		result.Report = &report
		fmt.Fprint(config.Report, report.String())
	}

	bundle, err := NewBundle(model)
	if err != nil {
		return nil, err
	}
	if err := SaveBundle(bundle, config.OutputPath); err != nil {
		return nil, err
	}
	result.Bundle = bundle
	logger.Info("model saved", zap.String("path", config.OutputPath))

	if config.Recorder != nil {
		run := TrainingRun{
			ModelName:  config.ModelType,
			ModelPath:  config.OutputPath,
			TrainedAt:  bundle.TrainedAt,
			DataPoints: len(examples),
		}
		if result.Report != nil {
			run.Accuracy = result.Report.Accuracy
			if m, ok := result.Report.Class(LabelPhishing); ok {
				run.Precision = m.Precision
				run.Recall = m.Recall
			}
		}
		if err := config.Recorder.RecordTraining(ctx, run); err != nil {
			logger.Warn("failed to record training run", zap.Error(err))
		}
	}
	return result, nil
}

func newClassifier(config TrainConfig) (Classifier, error) {
	switch config.ModelType {
	case ModelTypeRandomForest:
		return NewRandomForest(config.Trees, config.MaxDepth, *config.Seed), nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(config.MaxDepth, 0, *config.Seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, config.ModelType)
	}
}

// IsInputError reports whether err comes from missing or malformed training
// data rather than an internal failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrDataNotFound) || errors.Is(err, ErrSchema)
}

package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

const (
	ModelTypeRandomForest = "random_forest"
	ModelTypeDecisionTree = "decision_tree"
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrUnsupportedModel = errors.New("unsupported model type")
)

// Bundle pairs a fitted classifier with the feature names it was trained on.
// It is never modified after creation; retraining produces a new bundle.
type Bundle struct {
	ModelType string
	Features  []string
	Model     Classifier
	TrainedAt time.Time
}

type bundleFile struct {
	ModelType string          `json:"model_type"`
	Features  []string        `json:"features"`
	Classes   []int           `json:"classes"`
	TrainedAt time.Time       `json:"trained_at"`
	Model     json.RawMessage `json:"model"`
}

func NewBundle(model Classifier) (*Bundle, error) {
	modelType, err := modelTypeOf(model)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		ModelType: modelType,
		Features:  FeatureNames(),
		Model:     model,
		TrainedAt: time.Now().UTC(),
	}, nil
}

// CheckFeatures fails when the bundle was trained on a different feature
// layout than the running extractor produces.
func (b *Bundle) CheckFeatures() error {
	names := FeatureNames()
	if len(b.Features) != len(names) {
		return fmt.Errorf("%w: bundle has %d features, extractor has %d", ErrFeatureMismatch, len(b.Features), len(names))
	}
	for i, name := range names {
		if b.Features[i] != name {
			return fmt.Errorf("%w: feature %d is %q, extractor has %q", ErrFeatureMismatch, i, b.Features[i], name)
		}
	}
	return nil
}

// SaveBundle writes the bundle to path, creating parent directories. The file
// is written next to its destination and renamed into place.
func SaveBundle(bundle *Bundle, path string) (err error) {
	if bundle == nil || bundle.Model == nil {
		return ErrNotFitted
	}
	payload, err := json.Marshal(bundle.Model)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	data, err := json.Marshal(bundleFile{
		ModelType: bundle.ModelType,
		Features:  bundle.Features,
		Classes:   bundle.Model.Classes(),
		TrainedAt: bundle.TrainedAt,
		Model:     payload,
	})
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	_, werr := tmp.Write(data)
	err = multierr.Combine(werr, tmp.Sync(), tmp.Close())
	if err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install model: %w", err)
	}
	return nil
}

// LoadBundle reads a bundle written by SaveBundle. A missing file is reported
// as ErrModelNotFound so callers can tell "not trained yet" from I/O failures.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s: train one with cmd/train_model first", ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var file bundleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	model, err := newModel(file.ModelType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(file.Model, model); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", file.ModelType, err)
	}
	return &Bundle{
		ModelType: file.ModelType,
		Features:  file.Features,
		Model:     model,
		TrainedAt: file.TrainedAt,
	}, nil
}

func newModel(modelType string) (Classifier, error) {
	switch modelType {
	case ModelTypeRandomForest:
		return &RandomForest{}, nil
	case ModelTypeDecisionTree:
		return &DecisionTree{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}
}

func modelTypeOf(model Classifier) (string, error) {
	switch model.(type) {
	case *RandomForest:
		return ModelTypeRandomForest, nil
	case *DecisionTree:
		return ModelTypeDecisionTree, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedModel, model)
	}
}

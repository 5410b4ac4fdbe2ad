package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Label values. Datasets, models and API responses all use this convention.
const (
	LabelBenign   = 0
	LabelPhishing = 1
)

const starterCSV = "url,label\nhttp://example.com,0\n"

var (
	ErrDataNotFound = errors.New("data file not found")
	ErrSchema       = errors.New("invalid dataset schema")
)

// Example is one labeled row of a training CSV.
type Example struct {
	URL   string
	Label int
}

// EnsureDataset makes sure a CSV exists at path. When it is missing and create
// is set, the sample dataset is copied there, or a one-row starter file is
// written if no sample is available.
func EnsureDataset(path, samplePath string, create bool, logger *zap.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat data file: %w", err)
	}
	if !create {
		return fmt.Errorf("%w: %s (provide a CSV with columns url,label or pass --create-if-missing)", ErrDataNotFound, path)
	}

	logger.Info("data file not found, creating a starter CSV", zap.String("path", path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if samplePath != "" && !samePath(samplePath, path) {
		if data, err := os.ReadFile(samplePath); err == nil {
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("copy sample data: %w", err)
			}
			logger.Info("copied sample data", zap.String("from", samplePath), zap.String("to", path))
			return nil
		}
	}

	if err := os.WriteFile(path, []byte(starterCSV), 0o644); err != nil {
		return fmt.Errorf("write starter data: %w", err)
	}
	logger.Info("created minimal CSV", zap.String("path", path))
	return nil
}

// LoadDataset reads a url,label CSV from path.
func LoadDataset(path string) ([]Example, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer file.Close()
	return ReadDataset(file)
}

// ReadDataset parses CSV with a header row containing at least the url and
// label columns. A leading UTF-8 byte order mark is ignored.
func ReadDataset(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: CSV is empty, expected header url,label", ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	urlCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "url":
			urlCol = i
		case "label":
			labelCol = i
		}
	}
	if urlCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("%w: CSV must contain 'url' and 'label' columns (header: url,label)", ErrSchema)
	}

	var examples []Example
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		label, err := parseLabel(record[labelCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSchema, line, err)
		}
		examples = append(examples, Example{URL: record[urlCol], Label: label})
	}
	return examples, nil
}

// BuildMatrix extracts the feature matrix and label vector of examples.
func BuildMatrix(examples []Example) ([][]float64, []int) {
	features := make([][]float64, len(examples))
	labels := make([]int, len(examples))
	for i, ex := range examples {
		features[i] = ExtractFeatures(ex.URL)
		labels[i] = ex.Label
	}
	return features, labels
}

func parseLabel(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("label %q is not an integer", raw)
	}
	// float64(math.MaxInt) rounds up past the largest int.
	if f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("label %q is out of range", raw)
	}
	return int(f), nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

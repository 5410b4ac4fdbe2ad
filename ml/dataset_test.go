package ml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadDataset(t *testing.T) {
	csv := "label,url,source\n1,http://192.168.0.1/login,feed\n0,https://www.google.com,manual\n"
	examples, err := ReadDataset(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []Example{
		{URL: "http://192.168.0.1/login", Label: 1},
		{URL: "https://www.google.com", Label: 0},
	}, examples)
}

func TestReadDatasetByteOrderMark(t *testing.T) {
	csv := "\ufeffurl,label\n\"https://example.com/a,b\",0\nhttp://x.top,1.0\n"
	examples, err := ReadDataset(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "https://example.com/a,b", examples[0].URL)
	assert.Equal(t, 1, examples[1].Label)
}

func TestReadDatasetSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing label", "url,target\nhttp://a.com,1\n"},
		{"missing url", "link,label\nhttp://a.com,1\n"},
		{"non integer label", "url,label\nhttp://a.com,phish\n"},
		{"fractional label", "url,label\nhttp://a.com,0.5\n"},
		{"huge label", "url,label\nhttp://a.com,1e300\n"},
		{"huge negative label", "url,label\nhttp://a.com,-1e300\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDataset(strings.NewReader(tt.csv))
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestLoadDatasetMissing(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, ErrDataNotFound)
}

func TestEnsureDatasetMissingWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.csv")
	err := EnsureDataset(path, "", false, zap.NewNop())
	assert.ErrorIs(t, err, ErrDataNotFound)
	assert.NoFileExists(t, path)
}

func TestEnsureDatasetWritesStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "urls.csv")
	require.NoError(t, EnsureDataset(path, filepath.Join(t.TempDir(), "absent.csv"), true, zap.NewNop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, starterCSV, string(data))
}

func TestEnsureDatasetCopiesSample(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "sample.csv")
	content := "url,label\nhttps://a.com,0\nhttp://b.top/login,1\n"
	require.NoError(t, os.WriteFile(sample, []byte(content), 0o644))

	path := filepath.Join(dir, "out", "urls.csv")
	require.NoError(t, EnsureDataset(path, sample, true, zap.NewNop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestEnsureDatasetExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.csv")
	require.NoError(t, os.WriteFile(path, []byte("url,label\n"), 0o644))
	assert.NoError(t, EnsureDataset(path, "", false, zap.NewNop()))
}

func TestBuildMatrix(t *testing.T) {
	features, labels := BuildMatrix(sampleExamples())
	require.Len(t, features, len(sampleExamples()))
	for _, row := range features {
		assert.Len(t, row, FeatureCount)
	}
	assert.Equal(t, LabelBenign, labels[0])
	assert.Equal(t, LabelPhishing, labels[len(labels)-1])
}

func TestParseLabel(t *testing.T) {
	for raw, want := range map[string]int{"0": 0, " 1 ": 1, "1.0": 1, "-3": -3, "2e0": 2} {
		got, err := parseLabel(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"1e300", "9223372036854775808", "-1e19", "inf", "NaN", ""} {
		_, err := parseLabel(raw)
		assert.Error(t, err, raw)
	}
}

package http

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishguard/ml"
)

func TestModelCacheLoadsOnce(t *testing.T) {
	var loads int32
	cache := NewModelCache("model.joblib", nil)
	cache.load = func(path string) (*ml.Bundle, error) {
		atomic.AddInt32(&loads, 1)
		return fakeBundle(&fakeModel{}), nil
	}

	var wg sync.WaitGroup
	bundles := make([]*ml.Bundle, 16)
	for i := range bundles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bundle, err := cache.Get()
			assert.NoError(t, err)
			bundles[i] = bundle
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for _, bundle := range bundles[1:] {
		assert.Same(t, bundles[0], bundle)
	}
	assert.True(t, cache.Loaded())
}

func TestModelCacheRetriesAfterFailure(t *testing.T) {
	available := false
	cache := NewModelCache("model.joblib", nil)
	cache.load = func(path string) (*ml.Bundle, error) {
		if !available {
			return nil, ml.ErrModelNotFound
		}
		return fakeBundle(&fakeModel{}), nil
	}

	_, err := cache.Get()
	assert.ErrorIs(t, err, ml.ErrModelNotFound)
	assert.False(t, cache.Loaded())

	available = true
	bundle, err := cache.Get()
	require.NoError(t, err)
	assert.NotNil(t, bundle)
}

func TestModelCacheFeatureMismatch(t *testing.T) {
	cache := NewModelCache("model.joblib", nil)
	cache.load = func(path string) (*ml.Bundle, error) {
		return &ml.Bundle{ModelType: ml.ModelTypeRandomForest, Features: []string{"url_length"}, Model: &fakeModel{}}, nil
	}

	_, err := cache.Get()
	assert.ErrorIs(t, err, ml.ErrFeatureMismatch)
	assert.False(t, cache.Loaded())
}

func TestModelCacheReadsBundle(t *testing.T) {
	features := [][]float64{ml.ExtractFeatures("https://www.google.com"), ml.ExtractFeatures("http://192.168.0.1/login")}
	tree := ml.NewDecisionTree(0, 0, 1)
	require.NoError(t, tree.Fit(features, []int{ml.LabelBenign, ml.LabelPhishing}))
	bundle, err := ml.NewBundle(tree)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.joblib")
	require.NoError(t, ml.SaveBundle(bundle, path))

	cache := NewModelCache(path, nil)
	loaded, err := cache.Get()
	require.NoError(t, err)
	assert.Equal(t, ml.ModelTypeDecisionTree, loaded.ModelType)
	assert.Equal(t, path, cache.Path())
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"phishguard/db"
	"phishguard/ml"
)

type fakeModel struct {
	label      int
	proba      []float64
	err        error
	probaErr   error
	panicProba bool

	mu    sync.Mutex
	calls int
}

func (f *fakeModel) Fit(features [][]float64, labels []int) error { return nil }

func (f *fakeModel) Predict(features [][]float64) ([]int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []int{f.label}, nil
}

func (f *fakeModel) PredictProba(features [][]float64) ([][]float64, error) {
	if f.panicProba {
		panic("no probabilities")
	}
	if f.probaErr != nil {
		return nil, f.probaErr
	}
	return [][]float64{f.proba}, nil
}

func (f *fakeModel) Classes() []int { return []int{0, 1} }

func (f *fakeModel) predictCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fakeBundle(model ml.Classifier) *ml.Bundle {
	return &ml.Bundle{ModelType: ml.ModelTypeRandomForest, Features: ml.FeatureNames(), Model: model}
}

// cacheWith returns a ModelCache whose loader yields model, or a not-found
// error when model is nil.
func cacheWith(model ml.Classifier) *ModelCache {
	cache := NewModelCache("models/model.joblib", nil)
	cache.load = func(path string) (*ml.Bundle, error) {
		if model == nil {
			return nil, ml.ErrModelNotFound
		}
		return fakeBundle(model), nil
	}
	return cache
}

type memoryHistory struct {
	mu          sync.Mutex
	predictions []db.Prediction
	runs        []ml.TrainingRun
	err         error
}

func (m *memoryHistory) SavePrediction(ctx context.Context, p db.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.predictions = append(m.predictions, p)
	return nil
}

func (m *memoryHistory) RecentPredictions(ctx context.Context, limit int) ([]db.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]db.Prediction, 0, len(m.predictions))
	for i := len(m.predictions) - 1; i >= 0; i-- {
		out = append(out, m.predictions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryHistory) LoadTrainingLog(ctx context.Context) ([]ml.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.runs, nil
}

var errBoom = errors.New("boom")

func newTestMux(t *testing.T, opts HandlerOptions) *http.ServeMux {
	t.Helper()
	handler, err := NewHandler(opts)
	require.NoError(t, err)
	mux := http.NewServeMux()
	handler.Register(mux)
	return mux
}

func postPredict(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return w, payload
}

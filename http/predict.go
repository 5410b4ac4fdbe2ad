package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"phishguard/db"
	"phishguard/ml"
)

// PredictRequest 预测请求体
type PredictRequest struct {
	URL string `json:"url"`
}

// PredictResponse 预测结果：标签（0 正常，1 钓鱼）及置信度。
// 分类器无法给出概率时 Probability 为 null。
type PredictResponse struct {
	URL         string   `json:"url"`
	Prediction  int      `json:"prediction"`
	Probability *float64 `json:"probability"`
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// apiError 已映射到HTTP状态码的错误
type apiError struct {
	Status int
	Body   ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Detail != "" {
		return e.Body.Error + ": " + e.Body.Detail
	}
	return e.Body.Error
}

var errMissingURL = &apiError{Status: http.StatusBadRequest, Body: ErrorResponse{Error: "Missing url"}}

// handlePredict 处理 POST /predict
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, errMissingURL.Status, errMissingURL.Body)
		return
	}

	resp, apiErr := h.classify(r.Context(), req.URL)
	if apiErr != nil {
		writeJSON(w, apiErr.Status, apiErr.Body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// classify 对单个URL执行完整预测流程：校验、加载模型、提取特征、预测标签，
// 概率尽力而为
func (h *Handler) classify(ctx context.Context, url string) (PredictResponse, *apiError) {
	if url == "" {
		return PredictResponse{}, errMissingURL
	}

	if h.results != nil {
		if cached, ok := h.results.Get(url); ok {
			h.record(ctx, cached)
			return cached, nil
		}
	}

	bundle, err := h.models.Get()
	if errors.Is(err, ml.ErrModelNotFound) {
		return PredictResponse{}, &apiError{Status: http.StatusServiceUnavailable, Body: ErrorResponse{Error: err.Error()}}
	}
	if err != nil {
		h.logger.Error("failed to load model", zap.Error(err))
		return PredictResponse{}, &apiError{
			Status: http.StatusInternalServerError,
			Body:   ErrorResponse{Error: "Internal server error", Detail: err.Error()},
		}
	}

	x := [][]float64{ml.ExtractFeatures(url)}

	var probability *float64
	if proba, err := safePredictProba(bundle.Model, x); err != nil {
		h.logger.Warn("probability unavailable", zap.String("url", url), zap.Error(err))
	} else if len(proba) > 0 {
		if p, ok := ml.MaxProbability(proba[0]); ok {
			probability = &p
		}
	}

	labels, err := safePredict(bundle.Model, x)
	if err == nil && len(labels) == 0 {
		err = errors.New("classifier returned no label")
	}
	if err != nil {
		h.logger.Error("prediction failed", zap.String("url", url), zap.Error(err))
		return PredictResponse{}, &apiError{
			Status: http.StatusInternalServerError,
			Body:   ErrorResponse{Error: "Prediction failed", Detail: err.Error()},
		}
	}

	resp := PredictResponse{URL: url, Prediction: labels[0], Probability: probability}
	if h.results != nil {
		h.results.Add(url, resp)
	}
	h.record(ctx, resp)
	return resp, nil
}

// record 将预测结果写入历史记录，失败只记日志，不影响响应
func (h *Handler) record(ctx context.Context, resp PredictResponse) {
	if h.history == nil {
		return
	}
	err := h.history.SavePrediction(ctx, db.Prediction{
		URL:         resp.URL,
		Label:       resp.Prediction,
		Probability: resp.Probability,
		RequestID:   GetRequestID(ctx),
	})
	if err != nil {
		h.logger.Warn("failed to record prediction", zap.Error(err))
	}
}

// safePredict 调用分类器并把panic转换为错误
func safePredict(model ml.Classifier, x [][]float64) (labels []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return model.Predict(x)
}

func safePredictProba(model ml.Classifier, x [][]float64) (proba [][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return model.PredictProba(x)
}

// writeJSON 写JSON响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

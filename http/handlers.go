package http

import (
	"context"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"phishguard/db"
	"phishguard/ml"
)

// HistoryStore 预测历史与训练日志存储
type HistoryStore interface {
	SavePrediction(ctx context.Context, p db.Prediction) error
	RecentPredictions(ctx context.Context, limit int) ([]db.Prediction, error)
	LoadTrainingLog(ctx context.Context) ([]ml.TrainingRun, error)
}

// HandlerOptions 处理器依赖
type HandlerOptions struct {
	Models *ModelCache
	// CacheSize 结果缓存条目数，<= 0 时禁用
	CacheSize int
	History   HistoryStore
	Logger    *zap.Logger
	Static    fs.FS
}

// Handler 预测服务的HTTP处理器
type Handler struct {
	models  *ModelCache
	results *lru.Cache[string, PredictResponse]
	history HistoryStore
	logger  *zap.Logger
	static  fs.FS

	pingPeriod time.Duration
}

// NewHandler 创建处理器
func NewHandler(opts HandlerOptions) (*Handler, error) {
	h := &Handler{
		models:  opts.Models,
		history: opts.History,
		logger:  opts.Logger,
		static:  opts.Static,

		pingPeriod: wsPingPeriod,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, PredictResponse](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		h.results = cache
	}
	return h, nil
}

// Register 注册所有路由
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/training-log", h.handleTrainingLog)
	mux.HandleFunc("GET /api/ws/predict", h.handleWebSocket)
	if h.static != nil {
		mux.Handle("GET /", http.FileServerFS(h.static))
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		ModelLoaded: h.models.Loaded(),
		ModelPath:   h.models.Path(),
	})
}

func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "history store disabled"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	predictions, err := h.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load predictions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Detail: err.Error()})
		return
	}
	if predictions == nil {
		predictions = []db.Prediction{}
	}
	writeJSON(w, http.StatusOK, predictions)
}

func (h *Handler) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "history store disabled"})
		return
	}

	runs, err := h.history.LoadTrainingLog(r.Context())
	if err != nil {
		h.logger.Error("failed to load training log", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Detail: err.Error()})
		return
	}
	if runs == nil {
		runs = []ml.TrainingRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

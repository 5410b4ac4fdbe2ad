package http

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"phishguard/ml"
)

// ModelCache 首次使用时加载模型并在进程生命周期内保留。
// 加载过程串行化，并发的首次请求只读取一次文件；加载失败不缓存，
// 启动后才训练的模型会在下一次请求时被加载。
type ModelCache struct {
	path   string
	load   func(path string) (*ml.Bundle, error)
	logger *zap.Logger

	mu     sync.Mutex
	bundle atomic.Pointer[ml.Bundle]
}

// NewModelCache 创建模型缓存
func NewModelCache(path string, logger *zap.Logger) *ModelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelCache{path: path, load: ml.LoadBundle, logger: logger}
}

// Get 返回缓存的模型，必要时加载。模型文件不存在时返回 ml.ErrModelNotFound
func (c *ModelCache) Get() (*ml.Bundle, error) {
	if bundle := c.bundle.Load(); bundle != nil {
		return bundle, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bundle := c.bundle.Load(); bundle != nil {
		return bundle, nil
	}

	bundle, err := c.load(c.path)
	if err != nil {
		return nil, err
	}
	if err := bundle.CheckFeatures(); err != nil {
		return nil, err
	}
	c.bundle.Store(bundle)
	c.logger.Info("model loaded",
		zap.String("path", c.path),
		zap.String("model_type", bundle.ModelType),
		zap.Time("trained_at", bundle.TrainedAt))
	return bundle, nil
}

// Loaded 模型是否已加载
func (c *ModelCache) Loaded() bool {
	return c.bundle.Load() != nil
}

// Path 返回模型文件路径
func (c *ModelCache) Path() string {
	return c.path
}

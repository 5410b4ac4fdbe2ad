// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server   *http.Server
	config   ServerConfig
	logger   *zap.Logger
	listener net.Listener
	closers  []func() error
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	MaxBodyBytes   int64
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, handler *Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	handler.Register(mux)

	// 创建中间件链
	chain := Chain(
		LoggerMiddleware(logger),                               // 1. 日志中间件，生成请求ID
		RecoveryMiddleware(logger),                             // 2. 恢复中间件，捕获panic
		SecurityHeadersMiddleware,                              // 3. 安全头中间件
		CORSMiddleware(config.AllowedOrigins),                  // 4. CORS中间件
		RateLimitMiddleware(config.RateLimit, config.RateBurst), // 5. 速率限制
		RequestSizeMiddleware(config.MaxBodyBytes),             // 6. 请求大小限制
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: logger,
	}
}

// OnStop 注册关闭时释放的资源
func (s *Server) OnStop(closer func() error) {
	s.closers = append(s.closers, closer)
}

// Listen 绑定端口，Start 之前调用可提前发现端口冲突
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.listener = listener
	return nil
}

// Start 启动服务器，阻塞直到 Stop 被调用
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.listener.Addr().String()),
		zap.String("websocket", "/api/ws/predict"))

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	var err error
	if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
		err = fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	return err
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

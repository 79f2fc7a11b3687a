package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthBody /health 的固定响应
const HealthBody = "Online"

// Server 提供 /health 与 /metrics
type Server struct {
	engine   *gin.Engine
	srv      *http.Server
	listener net.Listener
}

// NewRouter 构造 gin 路由；debug=false 时使用 release 模式
func NewRouter(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, HealthBody)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// StartServer 在 host:port 上启动 HTTP 服务，返回实际监听地址（port=0 时随机端口）
func StartServer(host string, port int, debug bool) (*Server, error) {
	if port < 0 {
		port = 0
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s failed: %w", addr, err)
	}

	s := &Server{
		engine:   NewRouter(debug),
		listener: listener,
	}
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", listener.Addr().String()).Msg("启动健康检查/监控服务器")

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP服务器异常退出")
		}
	}()
	return s, nil
}

// Addr 实际监听地址
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

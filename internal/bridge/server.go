// Package bridge 把事件总线通过 WebSocket 推给浏览器 UI，并提供房间管理接口
package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/connector"
	"github.com/qiminjie89/danmuji/pkg/auth"
	"github.com/qiminjie89/danmuji/pkg/config"
	"github.com/qiminjie89/danmuji/pkg/logger"
	"go.uber.org/zap"
)

// RoomController 房间管理（由 connector.Connector 实现）
type RoomController interface {
	Start(roomID int64, userID uint64) bool
	Stop(roomID int64) bool
	Rooms() []connector.RoomStatus
}

// Option 服务选项
type Option func(*Server)

// WithMetrics 挂载 /metrics
func WithMetrics() Option {
	return func(s *Server) {
		s.metrics = true
	}
}

// Server UI 桥接服务
type Server struct {
	cfg       *config.BridgeConfig
	rooms     RoomController
	bus       *bus.Bus
	validator *auth.JWTValidator
	metrics   bool
	startTime time.Time

	httpServer *http.Server

	clients  map[string]*Client
	clientMu sync.RWMutex
}

// NewServer 创建桥接服务
func NewServer(cfg *config.BridgeConfig, rooms RoomController, b *bus.Bus, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		rooms:     rooms,
		bus:       b,
		startTime: time.Now(),
		clients:   make(map[string]*Client),
	}
	if cfg.JWTSecret != "" {
		s.validator = auth.NewJWTValidator(cfg.JWTSecret)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 返回 HTTP 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	// 房间管理
	mux.HandleFunc("/api/v1/rooms", s.handleListRooms)
	mux.HandleFunc("/api/v1/rooms/start", s.handleStartRoom)
	mux.HandleFunc("/api/v1/rooms/stop", s.handleStopRoom)

	if s.metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

// Run 运行 HTTP 服务直到 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	logger.Info("starting bridge server", zap.String("addr", s.cfg.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	// 已升级的 websocket 连接不受 Shutdown 管理
	s.CloseClients("server_shutdown")

	logger.Info("bridge server stopped")
	return err
}

// ClientCount 当前客户端数
func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// CloseClients 关闭所有客户端
func (s *Server) CloseClients(reason string) {
	s.clientMu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientMu.RUnlock()

	for _, c := range clients {
		c.Close(reason)
	}
}

func (s *Server) addClient(c *Client) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	s.clients[c.ID] = c
}

func (s *Server) removeClient(id string) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	delete(s.clients, id)
}

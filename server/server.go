// Package server 结算节点的网络接入：JSON-RPC、WebSocket 订阅、gRPC 隧道、指标与健康检查
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/metrics"
	"github.com/weisyn/bridge-go/services/settlement"
)

// 路由
const (
	PathRPC     = "/rpc"
	PathWS      = "/ws"
	PathMetrics = "/metrics"
	PathHealth  = "/healthz"
)

// Config 接入配置
type Config struct {
	HTTPAddr        string
	GRPCAddr        string // 为空时不启动 gRPC
	ShutdownTimeout time.Duration
}

// Server 节点接入层
type Server struct {
	cfg    Config
	engine settlement.Service
	hub    *Hub
	logger log.Logger

	router   *mux.Router
	grpc     *grpc.Server
	registry *prometheus.Registry

	mu       sync.Mutex
	httpAddr net.Addr
	grpcAddr net.Addr
	ready    chan struct{}
}

// Options 可选依赖
type Options struct {
	Nonces   NonceStore
	Registry *prometheus.Registry
	Recorder *metrics.Recorder
	Logger   log.Logger
}

// New 创建接入层
//
// hub 必须同时作为 engine 的 EventSink，订阅者才能收到事件。
func New(cfg Config, engine settlement.Service, hub *Hub, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	api := NewAPI(engine, NewAuthenticator(engine.DomainSeparator(), opts.Nonces), logger.With("component", "api"))
	dispatcher := NewDispatcher(api)

	var hooks []requestHooks
	if opts.Recorder != nil {
		hooks = append(hooks, opts.Recorder)
	}
	rpcServer, err := newRPCServer(api, hooks...)
	if err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		hub:      hub,
		logger:   logger.With("component", "server"),
		registry: registry,
		grpc:     NewGRPCServer(NewGRPCService(dispatcher, hub, logger)),
		ready:    make(chan struct{}),
	}

	r := mux.NewRouter()
	r.Handle(PathRPC, rpcServer).Methods(http.MethodPost)
	r.Handle(PathWS, NewWebSocketHandler(dispatcher, hub, logger)).Methods(http.MethodGet)
	r.Handle(PathMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, s.health).Methods(http.MethodGet)
	s.router = r
	return s, nil
}

// Handler HTTP 路由（测试可直接挂到 httptest.Server）
func (s *Server) Handler() http.Handler { return s.router }

// GRPC gRPC 服务器
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Ready 监听建立后关闭
func (s *Server) Ready() <-chan struct{} { return s.ready }

// HTTPAddr 实际监听地址（Ready 之后有效）
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// GRPCAddr 实际 gRPC 监听地址，未启用时为 nil
func (s *Server) GRPCAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grpcAddr
}

type healthReply struct {
	Status     string `json:"status"`
	Paused     bool   `json:"paused"`
	Validators int    `json:"validators"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthReply{
		Status:     "ok",
		Paused:     s.engine.Paused(),
		Validators: len(s.engine.GetActiveValidators()),
	})
}

// Run 启动监听直到 ctx 取消，然后在 ShutdownTimeout 内优雅关闭
func (s *Server) Run(ctx context.Context) error {
	// 1. 建立监听
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
	}
	var grpcLn net.Listener
	if s.cfg.GRPCAddr != "" {
		if grpcLn, err = net.Listen("tcp", s.cfg.GRPCAddr); err != nil {
			httpLn.Close()
			return fmt.Errorf("listen grpc %s: %w", s.cfg.GRPCAddr, err)
		}
	}

	s.mu.Lock()
	s.httpAddr = httpLn.Addr()
	if grpcLn != nil {
		s.grpcAddr = grpcLn.Addr()
	}
	s.mu.Unlock()
	close(s.ready)

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 2. 服务
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http listening", "addr", httpLn.Addr().String())
		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	if grpcLn != nil {
		g.Go(func() error {
			s.logger.Info("grpc listening", "addr", grpcLn.Addr().String())
			if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
	}

	// 3. 关闭
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.grpc.Stop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

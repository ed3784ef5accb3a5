package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/handterm/handterm/internal/infrastructure/config"
	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/infrastructure/monitoring"
	"github.com/handterm/handterm/internal/shell"
	"github.com/handterm/handterm/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the HTTP surface around the engine.
type Server struct {
	engine *shell.Engine
	router *gin.Engine
	http   *http.Server
	log    *logging.Logger
}

// New builds the gin router and binds every endpoint.
func New(cfg *config.Config, engine *shell.Engine, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(logger))
	router.Use(CORS())
	if metrics != nil {
		router.Use(metrics.Middleware())
	}

	handlers := NewHandlers(engine)
	wsHandler := ws.NewHandler(engine, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/frame", handlers.Frame)
	router.GET("/jobs", handlers.Jobs)
	router.POST("/execute", handlers.Execute)
	router.POST("/pty/key", handlers.PTYKey)
	router.POST("/interrupt", handlers.Interrupt)
	router.POST("/autocomplete", handlers.Autocomplete)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stream", wsHandler.HandleConnection)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	return &Server{
		engine: engine,
		router: router,
		http:   &http.Server{Addr: addr, Handler: router},
		log:    logger,
	}
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

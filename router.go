package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/choraleia/explorer/pkg/config"
	"github.com/choraleia/explorer/pkg/event"
	"github.com/choraleia/explorer/pkg/handler"
	"github.com/choraleia/explorer/pkg/metrics"
	"github.com/choraleia/explorer/pkg/models"
	"github.com/choraleia/explorer/pkg/service"
	"github.com/choraleia/explorer/pkg/utils"
	"github.com/gin-gonic/gin"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	explorer  *service.ExplorerService
	history   *service.UploadHistoryService
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.AppConfig, explorer *service.ExplorerService, history *service.UploadHistoryService) *Server {
	gin.SetMode(gin.ReleaseMode)
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	ginEngine.Use(metrics.Middleware())

	// CORS middleware: allow common localhost origins.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			if strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1") {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		explorer:  explorer,
		history:   history,
		logger:    utils.GetLogger(),
		port:      0,
	}

	server.SetupRoutes()

	return server
}

// Start binds the listener and serves in the background until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	port := s.cfg.Port()
	if v := os.Getenv(config.PortEnv); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			port = p
		} else {
			s.logger.Warn("Invalid "+config.PortEnv+" value, falling back to config", "value", v)
		}
	}

	addr := net.JoinHostPort(s.cfg.Host(), strconv.Itoa(port))
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen on port first; if occupied return error immediately
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = port
	}
	s.logger.Info("Explorer API listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Listen for context cancellation for graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

func (s *Server) SetupRoutes() {
	explorerHandler := handler.NewExplorerHandler(s.explorer, s.history)

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Runtime info for clients to discover the base URLs
	apiGroup.GET("/runtime", func(c *gin.Context) {
		host := s.cfg.Host()
		port := s.port
		if port == 0 {
			port = s.cfg.Port()
		}
		c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: models.RuntimeInfo{
			HTTPBaseURL: fmt.Sprintf("http://%s:%d", host, port),
			WSBaseURL:   fmt.Sprintf("ws://%s:%d", host, port),
			Port:        port,
		}})
	})

	// /api/sessions, /api/uploads
	explorerHandler.Register(apiGroup)

	// Event notifications
	// /api/events/ws
	apiGroup.GET("/events/ws", event.NewWSHandler().Handle)

	// Prometheus scrape endpoint
	s.ginEngine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

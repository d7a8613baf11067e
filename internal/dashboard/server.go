// Package dashboard serves an HTTP view of the keeper: open positions,
// monitors, trade history, recent alerts, Prometheus metrics and on-demand
// history export. It never mutates trading state, all control stays with
// the command bus.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rovshanmuradov/solana-keeper/internal/export"
	"github.com/rovshanmuradov/solana-keeper/internal/logger"
	"github.com/rovshanmuradov/solana-keeper/internal/monitor"
	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// Config configures the dashboard server.
type Config struct {
	Addr      string
	ExportDir string
}

// StatusFunc supplies the document served at /api/status.
type StatusFunc func() interface{}

// Server is the keeper's HTTP dashboard.
type Server struct {
	config   Config
	store    *store.Store
	alerts   *monitor.AlertManager
	status   StatusFunc
	exporter *export.TradeExporter
	logs     *logger.LogBuffer
	logger   *zap.Logger
	engine   *gin.Engine
}

// NewServer builds the dashboard with its routes registered. Start serving
// with Run.
func NewServer(config Config, st *store.Store, alerts *monitor.AlertManager, status StatusFunc, exporter *export.TradeExporter, logs *logger.LogBuffer, logger *zap.Logger) *Server {
	if config.ExportDir == "" {
		config.ExportDir = "exports"
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:   config,
		store:    st,
		alerts:   alerts,
		status:   status,
		exporter: exporter,
		logs:     logs,
		logger:   logger,
		engine:   engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/positions", s.handlePositions)
		api.GET("/monitors", s.handleMonitors)
		api.GET("/history", s.handleHistory)
		api.GET("/alerts", s.handleAlerts)
		api.GET("/blacklist", s.handleBlacklist)
		api.GET("/logs", s.handleLogs)
		api.POST("/export", s.handleExport)
	}

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("🖥️ Dashboard listening", zap.String("addr", s.config.Addr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown failed: %w", err)
	}

	s.logger.Info("🖥️ Dashboard stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) handlePositions(c *gin.Context) {
	positions := s.store.Positions()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

func (s *Server) handleMonitors(c *gin.Context) {
	monitors := s.store.Monitors()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(monitors),
		"monitors": monitors,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := queryLimit(c, defaultListLimit)
	trades := s.store.History(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(trades),
		"trades": trades,
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	limit := queryLimit(c, defaultListLimit)
	alerts := s.alerts.GetRecentAlerts(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleBlacklist(c *gin.Context) {
	blacklist := s.store.Blacklist()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(blacklist),
		"blacklist": blacklist,
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	if s.logs == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "logs": []logger.LogEntry{}})
		return
	}

	limit := queryLimit(c, defaultListLimit)
	entries := s.logs.GetRecentLogs(limit)
	c.JSON(http.StatusOK, gin.H{
		"count": len(entries),
		"logs":  entries,
	})
}

type exportRequest struct {
	Format string `json:"format"`
	Token  string `json:"token"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// handleExport writes the filtered trade history to the export directory.
// An empty body exports everything as CSV.
func (s *Server) handleExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid export request: %v", err)})
		return
	}

	format := export.FormatCSV
	if req.Format != "" {
		format = export.ExportFormat(req.Format)
	}
	switch format {
	case export.FormatCSV, export.FormatJSON:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format: %s", req.Format)})
		return
	}

	kind := store.TradeKind(req.Kind)
	switch kind {
	case "", store.TradeBuy, store.TradeSell:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown trade kind: %s", req.Kind)})
		return
	}

	options := export.ExportOptions{
		Format:       format,
		TokenFilter:  req.Token,
		KindFilter:   kind,
		ReasonFilter: req.Reason,
		OutputDir:    s.config.ExportDir,
	}

	if req.From != "" {
		from, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid from time: %v", err)})
			return
		}
		options.StartTime = from
	}
	if req.To != "" {
		to, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid to time: %v", err)})
			return
		}
		options.EndTime = to
	}

	path, err := s.exporter.ExportTrades(s.store.History(0), options)
	if errors.Is(err, export.ErrNoTrades) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("History export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"file": path})
}

func queryLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

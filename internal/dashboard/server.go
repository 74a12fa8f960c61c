package dashboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"guildkeeper/internal/analytics"
	"guildkeeper/internal/config"
	"guildkeeper/internal/dmlog"
	"guildkeeper/internal/settings"
	"guildkeeper/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	apiPrefix = "/api/"

	defaultAuditWindow = 24 * time.Hour
	maxSettingsBody    = 1 << 20
)

type httpError struct {
	Error string `json:"error"`
}

type httpReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type auditEntry struct {
	ID        int64     `json:"id"`
	GuildID   string    `json:"guild_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Level     string    `json:"level"`
	Event     string    `json:"event"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Server struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	analytics  *analytics.Service
	engine     *gin.Engine
	httpServer *http.Server
	// saveMu serializes settings writes.
	saveMu sync.Mutex
}

// New builds the router. store may be nil; the audit routes then answer 503.
func New(cfg config.Config, logger *zap.Logger, store *storage.Store) *Server {
	r := gin.New()
	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  store,
		engine: r,
	}
	if store != nil {
		s.analytics = analytics.New(store)
	}

	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	api := r.Group("/api")
	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.postSettings)
	api.GET("/dms", s.getDMs)
	api.GET("/audit", s.getAudit)
	api.GET("/audit/report", s.getAuditReport)

	static := gin.Dir(cfg.Dashboard.StaticDir, false)
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, apiPrefix) || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, httpError{Error: "Not found"})
			return
		}
		c.FileFromFS(c.Request.URL.Path, static)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Dashboard.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("dashboard listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getSettings(c *gin.Context) {
	current, err := settings.Load(s.cfg.SettingsPath)
	if err != nil {
		s.logger.Error("read settings failed", zap.String("path", s.cfg.SettingsPath), zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: "Failed to read settings."})
		return
	}
	c.JSON(http.StatusOK, current)
}

func (s *Server) postSettings(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSettingsBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	next, err := settings.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	s.saveMu.Lock()
	err = settings.Save(s.cfg.SettingsPath, next)
	s.saveMu.Unlock()
	if err != nil {
		s.logger.Error("write settings failed", zap.String("path", s.cfg.SettingsPath), zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: "Failed to save settings."})
		return
	}
	s.logger.Info("settings updated", zap.Int("keywords", len(next.ChannelKeywords)), zap.Int("commands", len(next.CustomCommands)))
	c.JSON(http.StatusOK, httpReply{Success: true, Message: "Settings updated successfully."})
}

func (s *Server) getDMs(c *gin.Context) {
	entries, err := dmlog.ReadFile(s.cfg.DMLogPath)
	if err != nil {
		s.logger.Error("read dm log failed", zap.String("path", s.cfg.DMLogPath), zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: "Failed to read DM log."})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) getAudit(c *gin.Context) {
	since, ok := s.auditSince(c)
	if !ok {
		return
	}
	logs, err := s.store.ListAuditLogs(c.Request.Context(), c.Query("guild_id"), since)
	if err != nil {
		s.logger.Error("list audit logs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: "Failed to read audit log."})
		return
	}
	out := make([]auditEntry, 0, len(logs))
	for _, log := range logs {
		out = append(out, auditEntry{
			ID:        log.ID,
			GuildID:   log.GuildID,
			UserID:    log.UserID,
			Level:     log.Level,
			Event:     log.Event,
			Details:   log.Details,
			CreatedAt: log.CreatedAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAuditReport(c *gin.Context) {
	since, ok := s.auditSince(c)
	if !ok {
		return
	}
	report, err := s.analytics.Report(c.Request.Context(), c.Query("guild_id"), since)
	if err != nil {
		s.logger.Error("audit report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: "Failed to build audit report."})
		return
	}
	c.JSON(http.StatusOK, report)
}

// auditSince parses the since query as a duration back from now and writes
// the error response itself when it cannot.
func (s *Server) auditSince(c *gin.Context) (time.Time, bool) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, httpError{Error: "Audit store unavailable."})
		return time.Time{}, false
	}
	window := defaultAuditWindow
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, httpError{Error: "since must be a positive duration such as 24h"})
			return time.Time{}, false
		}
		window = parsed
	}
	return time.Now().Add(-window), true
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("body_size", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			s.logger.Error("request finished with errors", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		s.logger.Debug("request finished", fields...)
	}
}

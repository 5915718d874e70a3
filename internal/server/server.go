// Package server exposes wall status and link commands over HTTP for the
// status UI.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/cubelink/internal/auth"
	"github.com/danmuck/cubelink/internal/cube"
	"github.com/danmuck/cubelink/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config configures the admin listener.
type Config struct {
	Addr         string
	CORSOrigins  []string
	Token        string
	CommandRate  float64
	CommandBurst int
}

func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8088",
		CORSOrigins:  []string{"http://localhost:3000"},
		CommandRate:  5,
		CommandBurst: 5,
	}
}

// Server is the admin HTTP surface for one cube.Service.
type Server struct {
	cfg     Config
	svc     *cube.Service
	router  *gin.Engine
	limiter *rate.Limiter
	started time.Time
}

func New(svc *cube.Service, cfg Config) *Server {
	observability.RegisterMetrics()
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = DefaultConfig().CommandRate
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = DefaultConfig().CommandBurst
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware("cubelink"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		router:  r,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandRate), cfg.CommandBurst),
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on cfg.Addr until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("server.Server.Serve listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("server.Server.Serve shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) commandGuard() []gin.HandlerFunc {
	return []gin.HandlerFunc{auth.Require(auth.FromToken(s.cfg.Token))}
}

// allowCommand takes a limiter token. Handlers call it after validating the
// request; rejected requests cost no token.
func (s *Server) allowCommand(c *gin.Context) bool {
	if s.limiter.Allow() {
		return true
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "command rate exceeded"})
	return false
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

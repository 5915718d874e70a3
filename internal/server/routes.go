package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/cubelink/internal/dispatch"
	"github.com/danmuck/cubelink/internal/protocol/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type thresholdRequest struct {
	TouchThreshold *int `json:"touchThreshold"`
}

type modeRequest struct {
	CubeMode string `json:"cubeMode"`
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "cubelink",
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		status := s.svc.LinkStatus()
		code := http.StatusOK
		if !status.Connected {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"ready": status.Connected, "link": status})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/walls", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"walls": s.svc.Walls().Snapshot()})
	})
	r.GET("/walls/:id", func(c *gin.Context) {
		id, ok := s.wallParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.svc.Walls().Get(id))
	})
	r.GET("/debug", func(c *gin.Context) {
		var since uint64
		if raw := c.Query("since"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a sequence number"})
				return
			}
			since = v
		}
		c.JSON(http.StatusOK, gin.H{"lines": s.svc.OperatorLog().Since(since)})
	})

	cmds := r.Group("/", s.commandGuard()...)
	cmds.POST("/commands/restart-master", func(c *gin.Context) {
		if !s.allowCommand(c) {
			return
		}
		s.respond(c, s.svc.Commands().RestartMaster())
	})
	cmds.POST("/walls/:id/restart", func(c *gin.Context) {
		id, ok := s.wallParam(c)
		if !ok || !s.allowCommand(c) {
			return
		}
		s.respond(c, s.svc.Commands().RestartWall(id))
	})
	cmds.POST("/walls/:id/touch-threshold", func(c *gin.Context) {
		id, ok := s.wallParam(c)
		if !ok {
			return
		}
		var req thresholdRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.TouchThreshold == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "touchThreshold is required"})
			return
		}
		if *req.TouchThreshold < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "touchThreshold must not be negative"})
			return
		}
		if !s.allowCommand(c) {
			return
		}
		s.respond(c, s.svc.Commands().SetTouchThreshold(id, *req.TouchThreshold))
	})
	cmds.POST("/cube/mode", func(c *gin.Context) {
		var req modeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mode := dispatch.CubeMode(req.CubeMode)
		if !mode.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown cube mode"})
			return
		}
		if !s.allowCommand(c) {
			return
		}
		s.respond(c, s.svc.Commands().SetCubeMode(mode))
	})
}

func (s *Server) wallParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || !s.svc.Walls().Valid(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown wall"})
		return 0, false
	}
	return id, true
}

func (s *Server) respond(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrInvalidWall):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrInvalidMode), errors.Is(err, dispatch.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrSessionClosed), errors.Is(err, dispatch.ErrNoSender):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

package config

import (
	"strings"
	"time"

	"github.com/danmuck/cubelink/internal/cube"
	"github.com/danmuck/cubelink/internal/server"
)

// ServiceConfig applies a validated LinkConfig over the runtime defaults.
func ServiceConfig(cfg LinkConfig) cube.ServiceConfig {
	out := cube.DefaultServiceConfig()
	out.Port = strings.TrimSpace(cfg.Port)
	if cfg.Baud > 0 {
		out.BaudRate = cfg.Baud
	}
	if cfg.Walls > 0 {
		out.Walls = cfg.Walls
	}
	if policy, err := cube.ParseReconnectPolicy(cfg.Reconnect); err == nil {
		out.Reconnect = policy
	}
	if d, ok := duration(cfg.Heartbeat); ok {
		out.HeartbeatInterval = d
	}
	if cfg.OperatorLog > 0 {
		out.OperatorLogSize = cfg.OperatorLog
	}
	if cfg.Link.MaxLineBytes > 0 {
		out.Session.MaxLineBytes = cfg.Link.MaxLineBytes
	}
	if cfg.Link.OutboxDepth > 0 {
		out.Session.OutboxDepth = cfg.Link.OutboxDepth
	}
	if d, ok := duration(cfg.Link.BackoffMin); ok {
		out.Session.Backoff.InitialDelay = d
	}
	if d, ok := duration(cfg.Link.BackoffMax); ok {
		out.Session.Backoff.MaxDelay = d
	}
	return out
}

func ServerConfig(cfg LinkConfig) server.Config {
	out := server.DefaultConfig()
	if addr := strings.TrimSpace(cfg.Admin.Addr); addr != "" {
		out.Addr = addr
	}
	if len(cfg.Admin.CorsOrigins) > 0 {
		out.CORSOrigins = cfg.Admin.CorsOrigins
	}
	out.Token = strings.TrimSpace(cfg.Admin.Token)
	if cfg.Admin.CommandRate > 0 {
		out.CommandRate = cfg.Admin.CommandRate
	}
	if cfg.Admin.CommandBurst > 0 {
		out.CommandBurst = cfg.Admin.CommandBurst
	}
	return out
}

func duration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

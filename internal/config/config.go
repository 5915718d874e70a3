package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LinkConfig is the on-disk shape of a cubelink config file.
type LinkConfig struct {
	Port        string      `toml:"port"`
	Baud        int         `toml:"baud"`
	PreferVID   string      `toml:"prefer_vid"`
	Walls       int         `toml:"walls"`
	Reconnect   string      `toml:"reconnect"`
	Heartbeat   string      `toml:"heartbeat"`
	OperatorLog int         `toml:"operator_log"`
	Admin       AdminConfig `toml:"admin"`
	Link        LinkTuning  `toml:"link"`
}

type AdminConfig struct {
	// Enabled defaults to true when unset.
	Enabled      *bool    `toml:"enabled"`
	Addr         string   `toml:"addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	Token        string   `toml:"token"`
	CommandRate  float64  `toml:"command_rate"`
	CommandBurst int      `toml:"command_burst"`
}

type LinkTuning struct {
	MaxLineBytes int    `toml:"max_line_bytes"`
	OutboxDepth  int    `toml:"outbox_depth"`
	BackoffMin   string `toml:"backoff_min"`
	BackoffMax   string `toml:"backoff_max"`
}

func LoadLinkConfig(path string) (LinkConfig, error) {
	var cfg LinkConfig
	if err := loadToml(path, &cfg); err != nil {
		return LinkConfig{}, err
	}
	cfg.ApplyDefaults()
	if err := ValidateLinkConfig(cfg); err != nil {
		return LinkConfig{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset scalar fields. Both config loaders call it.
func (c *LinkConfig) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.Walls == 0 {
		c.Walls = 4
	}
	if c.Reconnect == "" {
		c.Reconnect = "manual"
	}
}

// AdminEnabled reports whether the admin server should run.
func (c LinkConfig) AdminEnabled() bool {
	return c.Admin.Enabled == nil || *c.Admin.Enabled
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateLinkConfig(cfg LinkConfig) error {
	if cfg.Baud <= 0 {
		return fmt.Errorf("baud must be positive")
	}
	if cfg.Walls <= 0 {
		return fmt.Errorf("walls must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Reconnect)) {
	case "manual", "auto":
	default:
		return fmt.Errorf("reconnect must be manual or auto, got %q", cfg.Reconnect)
	}
	for name, raw := range map[string]string{
		"heartbeat":        cfg.Heartbeat,
		"link.backoff_min": cfg.Link.BackoffMin,
		"link.backoff_max": cfg.Link.BackoffMax,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := time.ParseDuration(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s invalid: %w", name, err)
		}
	}
	if cfg.Admin.CommandRate < 0 {
		return fmt.Errorf("admin.command_rate must not be negative")
	}
	for i, origin := range cfg.Admin.CorsOrigins {
		o := strings.TrimSpace(origin)
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("admin.cors_origins[%d] must be an http(s) origin", i)
		}
	}
	return nil
}

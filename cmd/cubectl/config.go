package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/cubelink/internal/config"
	"github.com/danmuck/cubelink/internal/cube"
	"github.com/danmuck/cubelink/internal/server"
)

type runtimeConfig struct {
	Service      cube.ServiceConfig
	Admin        server.Config
	AdminEnabled bool
	PreferVID    string
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Service:      cube.DefaultServiceConfig(),
		Admin:        server.DefaultConfig(),
		AdminEnabled: true,
	}
}

// loadRuntimeConfig decodes the shared config.LinkConfig schema, rejecting
// unknown keys, and converts it with the same helpers configgen validates
// through.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	var raw config.LinkConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load cubectl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runtimeConfig{}, fmt.Errorf("load cubectl config: unknown key %q", undecoded[0].String())
	}
	return fromLinkConfig(raw)
}

func fromLinkConfig(raw config.LinkConfig) (runtimeConfig, error) {
	raw.ApplyDefaults()
	if err := config.ValidateLinkConfig(raw); err != nil {
		return runtimeConfig{}, fmt.Errorf("load cubectl config: %w", err)
	}
	cfg := runtimeConfig{
		Service:      config.ServiceConfig(raw),
		Admin:        config.ServerConfig(raw),
		AdminEnabled: raw.AdminEnabled(),
		PreferVID:    strings.TrimSpace(raw.PreferVID),
	}
	if err := cfg.Service.Validate(); err != nil {
		return runtimeConfig{}, err
	}
	return cfg, nil
}

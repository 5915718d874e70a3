package main

import (
	"fmt"
	"os"

	"github.com/danmuck/cubelink/internal/config"
	"github.com/danmuck/cubelink/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const defaultPath = "cmd/cubectl/config.toml"

func main() {
	logging.ConfigureRuntime()

	kind := pflag.String("kind", "link", "config kind: link|dev")
	output := pflag.String("output", "", "output path for config template")
	validate := pflag.Bool("validate", false, "validate an existing config file")
	input := pflag.String("input", "", "config path for validation (defaults to "+defaultPath+")")
	force := pflag.Bool("force", false, "overwrite existing config file")
	pflag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.LoadLinkConfig(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
			os.Exit(1)
		}
		svc := config.ServiceConfig(cfg)
		if err := svc.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
			os.Exit(1)
		}
		admin := config.ServerConfig(cfg)
		log.Info().Str("path", path).Str("port", svc.Port).Int("walls", svc.Walls).
			Str("reconnect", string(svc.Reconnect)).Str("admin", admin.Addr).
			Msg("configgen validated config")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("configgen wrote config template")
}

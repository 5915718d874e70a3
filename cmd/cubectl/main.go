package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/cubelink/internal/cube"
	"github.com/danmuck/cubelink/internal/logging"
	"github.com/danmuck/cubelink/internal/serialport"
	"github.com/danmuck/cubelink/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cubectl: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	port       string
	admin      string
	reconnect  string
	listPorts  bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("cubectl", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a cubectl TOML config")
	flagSet.StringVarP(&opts.port, "port", "p", "", "serial device of the master controller")
	flagSet.StringVar(&opts.admin, "admin", "", `admin listen address ("off" disables the admin server)`)
	flagSet.StringVar(&opts.reconnect, "reconnect", "", "reconnect policy: manual|auto")
	flagSet.BoolVar(&opts.listPorts, "list-ports", false, "list serial ports and exit")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

func run(args []string) error {
	logging.ConfigureRuntime()

	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.listPorts {
		return printPorts()
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := cube.NewService(cfg.Service, nil, nil)

	adminErr := make(chan error, 1)
	if cfg.AdminEnabled {
		srv := server.New(svc, cfg.Admin)
		go func() {
			adminErr <- srv.Serve(ctx)
		}()
	} else {
		adminErr <- nil
	}

	runErr := svc.Run(ctx)
	stop()
	if err := <-adminErr; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func resolveConfig(opts options) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()
	if opts.configPath != "" {
		loaded, err := loadRuntimeConfig(opts.configPath)
		if err != nil {
			return runtimeConfig{}, err
		}
		cfg = loaded
	}

	if opts.port != "" {
		cfg.Service.Port = opts.port
	}
	if opts.reconnect != "" {
		policy, err := cube.ParseReconnectPolicy(opts.reconnect)
		if err != nil {
			return runtimeConfig{}, err
		}
		cfg.Service.Reconnect = policy
	}
	switch admin := strings.TrimSpace(opts.admin); admin {
	case "":
	case "off", "none":
		cfg.AdminEnabled = false
	default:
		cfg.Admin.Addr = admin
		cfg.AdminEnabled = true
	}

	if cfg.Service.Port == "" {
		ports, err := serialport.List()
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("list serial ports: %w", err)
		}
		picked, err := serialport.AutoSelect(ports, cfg.PreferVID)
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("no port configured and none could be picked (see --list-ports): %w", err)
		}
		log.Info().Str("port", picked.Name).Str("vid", picked.VID).Msg("cubectl selected port")
		cfg.Service.Port = picked.Name
	}
	return cfg, nil
}

func printPorts() error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\tusb vid=%s pid=%s serial=%s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
			continue
		}
		fmt.Println(p.Name)
	}
	return nil
}

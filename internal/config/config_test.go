package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/cubelink/internal/cube"
	"github.com/danmuck/cubelink/internal/testutil/testlog"
)

func TestTemplatesLoadAndValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"link", "dev"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		if _, err := LoadLinkConfig(path); err != nil {
			t.Fatalf("load %s template: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("expected refusal to overwrite %s", path)
		}
		if err := WriteTemplate(path, kind, true); err != nil {
			t.Fatalf("forced overwrite: %v", err)
		}
	}
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLinkTemplateConvertsToRuntimeConfig(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "cube.toml")
	if err := WriteTemplate(path, "link", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadLinkConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	svc := ServiceConfig(cfg)
	if svc.Port != "/dev/ttyACM0" || svc.BaudRate != 115200 || svc.Walls != 4 {
		t.Fatalf("unexpected service config: %+v", svc)
	}
	if svc.Reconnect != cube.ReconnectAuto || svc.HeartbeatInterval != 30*time.Second {
		t.Fatalf("unexpected policy/heartbeat: %q %v", svc.Reconnect, svc.HeartbeatInterval)
	}
	if svc.Session.Backoff.InitialDelay != 500*time.Millisecond || svc.Session.Backoff.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected backoff: %+v", svc.Session.Backoff)
	}

	srv := ServerConfig(cfg)
	if srv.Addr != "127.0.0.1:8088" || srv.Token != "" || srv.CommandRate != 5 || srv.CommandBurst != 5 {
		t.Fatalf("unexpected server config: %+v", srv)
	}
}

func TestLoadLinkConfigDefaultsAndErrors(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		return p
	}

	cfg, err := LoadLinkConfig(write("min.toml", `port = "/dev/ttyUSB1"`))
	if err != nil {
		t.Fatalf("load minimal: %v", err)
	}
	if cfg.Baud != 115200 || cfg.Walls != 4 || cfg.Reconnect != "manual" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.AdminEnabled() {
		t.Fatalf("admin should default to enabled")
	}

	cfg, err = LoadLinkConfig(write("off.toml", "prefer_vid = \"303a\"\n[admin]\nenabled = false"))
	if err != nil {
		t.Fatalf("load admin off: %v", err)
	}
	if cfg.AdminEnabled() || cfg.PreferVID != "303a" {
		t.Fatalf("unexpected admin/vid: %+v", cfg)
	}

	cases := map[string]string{
		"policy.toml":    `reconnect = "sometimes"`,
		"walls.toml":     `walls = -1`,
		"heartbeat.toml": `heartbeat = "soon"`,
		"origin.toml":    "[admin]\ncors_origins = [\"localhost:3000\"]",
		"syntax.toml":    `port = `,
		"typo.toml":      "wals = 8\n[admin]\nenabled = false",
	}
	for name, body := range cases {
		if _, err := LoadLinkConfig(write(name, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err = LoadLinkConfig(filepath.Join(dir, "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "link", "cube":
		return linkTemplate, nil
	case "dev":
		return devTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const linkTemplate = `# serial device of the master controller; empty picks the single USB port
port = "/dev/ttyACM0"
# with port empty, prefer this USB vendor id when several ports are present
prefer_vid = ""
baud = 115200
walls = 4
reconnect = "auto"
heartbeat = "30s"
operator_log = 256

[admin]
enabled = true
addr = "127.0.0.1:8088"
cors_origins = ["http://localhost:3000"]
token = ""
command_rate = 5.0
command_burst = 5

[link]
max_line_bytes = 65536
outbox_depth = 32
backoff_min = "500ms"
backoff_max = "10s"
`

const devTemplate = `port = ""
walls = 4
reconnect = "manual"

[admin]
addr = "127.0.0.1:8088"
cors_origins = ["http://localhost:3000", "http://localhost:5173"]
`

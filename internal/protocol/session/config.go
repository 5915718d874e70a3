package session

import (
	"time"

	"github.com/danmuck/cubelink/internal/protocol/frame"
)

// DefaultBaudRate matches the master controller firmware (Serial.begin(115200)).
const DefaultBaudRate = 115200

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link defaults.
type Config struct {
	BaudRate        int
	MaxLineBytes    int
	ReadBufferBytes int
	OutboxDepth     int
	Backoff         BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		BaudRate:        DefaultBaudRate,
		MaxLineBytes:    frame.DefaultMaxLineBytes,
		ReadBufferBytes: 1024,
		OutboxDepth:     32,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     10 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BaudRate <= 0 {
		c.BaudRate = d.BaudRate
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = d.MaxLineBytes
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = d.ReadBufferBytes
	}
	if c.OutboxDepth <= 0 {
		c.OutboxDepth = d.OutboxDepth
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}

// Package cube runs the host side of the cube link: it owns the serial
// session, routes firmware messages, and tracks wall status.
package cube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/cubelink/internal/dispatch"
	"github.com/danmuck/cubelink/internal/fleet"
	"github.com/danmuck/cubelink/internal/protocol/session"
	"github.com/danmuck/cubelink/internal/serialport"
	"github.com/danmuck/cubelink/internal/sound"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidPolicy    = errors.New("cube: invalid reconnect policy")
	ErrInvalidWallCount = errors.New("cube: wall count must be positive")
	ErrAlreadyRunning   = errors.New("cube: service already running")
)

// ReconnectPolicy controls what Run does when the link drops.
type ReconnectPolicy string

const (
	// ReconnectManual returns from Run when the link ends; the operator reconnects.
	ReconnectManual ReconnectPolicy = "manual"
	// ReconnectAuto reopens the port with backoff until the context ends.
	ReconnectAuto ReconnectPolicy = "auto"
)

func ParseReconnectPolicy(raw string) (ReconnectPolicy, error) {
	switch p := ReconnectPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case ReconnectManual, ReconnectAuto:
		return p, nil
	case "":
		return ReconnectManual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// ServiceConfig configures the link runtime.
type ServiceConfig struct {
	Port              string
	BaudRate          int
	Walls             int
	Reconnect         ReconnectPolicy
	OperatorLogSize   int
	HeartbeatInterval time.Duration
	Session           session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Port:              "",
		BaudRate:          session.DefaultBaudRate,
		Walls:             fleet.DefaultSize,
		Reconnect:         ReconnectManual,
		OperatorLogSize:   DefaultOperatorLogSize,
		HeartbeatInterval: 30 * time.Second,
		Session:           session.DefaultConfig(),
	}
}

func (c ServiceConfig) Validate() error {
	if c.Walls <= 0 {
		return ErrInvalidWallCount
	}
	if _, err := ParseReconnectPolicy(string(c.Reconnect)); err != nil {
		return err
	}
	return nil
}

// LinkStatus summarizes the link for the admin surface.
type LinkStatus struct {
	Port         string          `json:"port"`
	Connected    bool            `json:"connected"`
	Policy       ReconnectPolicy `json:"policy"`
	Reconnects   uint64          `json:"reconnects"`
	LastError    string          `json:"last_error,omitempty"`
	CurrentSound string          `json:"current_sound,omitempty"`
	Session      session.Stats   `json:"session"`
	Dispatch     dispatch.Stats  `json:"dispatch"`
}

// Service owns one link and everything fed by it.
type Service struct {
	cfg        ServiceConfig
	session    *session.Session
	dispatcher *dispatch.Dispatcher
	walls      *fleet.Table
	director   *sound.Director
	oplog      *OperatorLog

	running atomic.Bool
}

// NewService wires a Service. A nil opener uses the configured serial
// device; a nil library plays LogSounds.
func NewService(cfg ServiceConfig, opener session.Opener, library sound.Library) *Service {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = session.DefaultBaudRate
	}
	if cfg.Walls <= 0 {
		cfg.Walls = fleet.DefaultSize
	}
	if policy, err := ParseReconnectPolicy(string(cfg.Reconnect)); err == nil {
		cfg.Reconnect = policy
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultServiceConfig().HeartbeatInterval
	}
	cfg.Session.BaudRate = cfg.BaudRate
	cfg.Session = cfg.Session.WithDefaults()

	if opener == nil {
		opener = serialport.NewOpener(cfg.Port, cfg.BaudRate)
	}
	if library == nil {
		library = sound.LogLibrary()
	}

	sess := session.NewSession(opener, cfg.Session)
	s := &Service{
		cfg:        cfg,
		session:    sess,
		dispatcher: dispatch.New(sess, cfg.Walls),
		walls:      fleet.NewTable(cfg.Walls),
		director:   sound.NewDirector(library),
		oplog:      NewOperatorLog(cfg.OperatorLogSize),
	}
	s.registerHandlers()
	sess.OnMessage(s.dispatcher.Handle)
	s.walls.Subscribe(func(id int, st fleet.NodeStatus) {
		log.Info().Int("wall", id).Str("address", st.Address).Str("status", st.LastDeliveryStatus.String()).
			Msg("cube.Service wall status")
	})
	return s
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Commands is the outbound command surface.
func (s *Service) Commands() dispatch.Commands {
	return s.dispatcher
}

func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

func (s *Service) Walls() *fleet.Table {
	return s.walls
}

func (s *Service) OperatorLog() *OperatorLog {
	return s.oplog
}

func (s *Service) DebugLines() []DebugLine {
	return s.oplog.Lines()
}

func (s *Service) Connected() bool {
	return s.session.Connected()
}

func (s *Service) LinkStatus() LinkStatus {
	status := LinkStatus{
		Port:         s.session.Name(),
		Connected:    s.session.Connected(),
		Policy:       s.cfg.Reconnect,
		CurrentSound: s.director.Current(),
		Session:      s.session.Stats(),
		Dispatch:     s.dispatcher.Stats(),
	}
	if status.Session.Connects > 1 {
		status.Reconnects = status.Session.Connects - 1
	}
	if err := s.session.Err(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// Run connects and reads until ctx ends. Under the manual policy a failed
// connect or a lost link returns; under auto both are retried with backoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer s.director.Stop()
	defer s.session.Close()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.session.Connect(ctx); err != nil {
			if s.cfg.Reconnect == ReconnectManual {
				return err
			}
			attempt++
			log.Warn().Int("attempt", attempt).Err(err).Msg("cube.Service.Run connect failed")
			if err := s.waitReconnectBackoff(ctx, attempt); err != nil {
				return nil
			}
			continue
		}
		attempt = 0
		if err := s.session.Start(); err != nil {
			return err
		}
		log.Info().Str("port", s.session.Name()).Str("policy", string(s.cfg.Reconnect)).Msg("cube.Service.Run link up")

		stopped, err := s.monitor(ctx, heartbeat.C)
		if stopped {
			log.Info().Msg("cube.Service.Run shutdown")
			return nil
		}
		if s.cfg.Reconnect == ReconnectManual {
			return err
		}
		log.Warn().Err(err).Msg("cube.Service.Run link lost")
		attempt++
		if err := s.waitReconnectBackoff(ctx, attempt); err != nil {
			return nil
		}
	}
}

// monitor blocks until the read loop ends or ctx is done. stopped is true
// when ctx ended first.
func (s *Service) monitor(ctx context.Context, heartbeat <-chan time.Time) (bool, error) {
	done := s.session.Done()
	for {
		select {
		case <-ctx.Done():
			_ = s.session.Close()
			<-done
			return true, nil
		case <-done:
			return false, s.session.Err()
		case <-heartbeat:
			st := s.LinkStatus()
			log.Debug().
				Bool("connected", st.Connected).
				Uint64("delivered", st.Session.Delivered).
				Uint64("discarded", st.Session.Discarded).
				Uint64("sent", st.Session.Sent).
				Str("sound", st.CurrentSound).
				Msg("cube.Service.heartbeat")
		}
	}
}

func (s *Service) waitReconnectBackoff(ctx context.Context, attempt int) error {
	delay := s.session.ReconnectDelay(attempt)
	log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("cube.Service.waitReconnectBackoff")
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

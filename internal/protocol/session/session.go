package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/cubelink/internal/observability"
	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/danmuck/cubelink/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives every decoded inbound message, in stream order,
// on the read loop goroutine.
type MessageHandler func(msg protocol.Message)

// Connection is one open link. It is owned by the Session that created it.
type Connection struct {
	port    Port
	framer  *frame.LineFramer
	outbox  *Outbox
	reading atomic.Bool
	closed  atomic.Bool
	once    sync.Once
	ended   sync.Once
	done    chan struct{}
	err     error
}

func newConnection(port Port, cfg Config) *Connection {
	return &Connection{
		port:   port,
		framer: frame.NewLineFramer(cfg.MaxLineBytes),
		outbox: NewOutbox(port, cfg.OutboxDepth),
		done:   make(chan struct{}),
	}
}

func (c *Connection) close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		err = c.port.Close()
		c.outbox.Close()
	})
	return err
}

// Stats counts link traffic since the Session was created.
type Stats struct {
	LinesFramed uint64 `json:"lines_framed"`
	Delivered   uint64 `json:"delivered"`
	Discarded   uint64 `json:"discarded"`
	Overflowed  uint64 `json:"overflowed"`
	Sent        uint64 `json:"sent"`
	SendErrors  uint64 `json:"send_errors"`
	Connects    uint64 `json:"connects"`
}

// Session owns at most one live Connection.
type Session struct {
	cfg    Config
	opener Opener

	lifecycle sync.Mutex
	mu        sync.RWMutex
	conn      *Connection
	last      *Connection
	handler   MessageHandler

	rngMu sync.Mutex
	rng   *rand.Rand

	framed     atomic.Uint64
	delivered  atomic.Uint64
	discarded  atomic.Uint64
	overflowed atomic.Uint64
	sent       atomic.Uint64
	sendErrors atomic.Uint64
	connects   atomic.Uint64
}

func NewSession(opener Opener, cfg Config) *Session {
	return &Session{
		cfg:    cfg.WithDefaults(),
		opener: opener,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Session) Config() Config {
	return s.cfg
}

// Name is the opener's port label.
func (s *Session) Name() string {
	if s.opener == nil {
		return ""
	}
	return s.opener.Name()
}

// OnMessage installs the single inbound subscriber, replacing any previous one.
func (s *Session) OnMessage(handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Connect opens the port. It fails with a *ConnectionError and never retries.
func (s *Session) Connect(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.opener == nil {
		return &ConnectionError{Reason: ReasonNoDevice, Err: ErrNoOpener}
	}
	name := s.opener.Name()
	if s.Connected() {
		return &ConnectionError{Reason: ReasonAlreadyOpen, Port: name}
	}

	port, err := s.opener.Open(ctx)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return connErr
		}
		return &ConnectionError{Reason: ReasonOpenFailed, Port: name, Err: err}
	}

	conn := newConnection(port, s.cfg)
	s.mu.Lock()
	s.conn = conn
	s.last = conn
	s.mu.Unlock()
	s.connects.Add(1)

	log.Info().Str("port", name).Int("baud", s.cfg.BaudRate).Msg("session.Session.Connect opened")
	return nil
}

// Connected reports whether a Connection is live.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// Start runs ReadLoop on its own goroutine. Use Done and Err to observe
// the end of the session.
func (s *Session) Start() error {
	conn := s.current()
	if conn == nil {
		return ErrNotConnected
	}
	if conn.reading.Load() {
		return ErrReaderActive
	}
	go func() {
		_ = s.ReadLoop()
	}()
	return nil
}

// ReadLoop reads until the stream ends. EOF or a local Close returns nil;
// any other read error is returned wrapped in ErrStreamTerminated. Either
// way the Connection is closed on return and must be reopened with Connect.
func (s *Session) ReadLoop() error {
	conn := s.current()
	if conn == nil {
		return ErrNotConnected
	}
	if !conn.reading.CompareAndSwap(false, true) {
		return ErrReaderActive
	}
	err := s.readLoop(conn)
	s.finish(conn, err)
	return err
}

func (s *Session) readLoop(conn *Connection) error {
	buf := make([]byte, s.cfg.ReadBufferBytes)
	for {
		n, err := conn.port.Read(buf)
		if n > 0 {
			s.deliver(conn, buf[:n])
		}
		if err == nil {
			continue
		}
		if conn.closed.Load() {
			log.Info().Str("port", s.Name()).Msg("session.Session.readLoop closed locally")
			observability.RecordSessionEnd("closed")
			return nil
		}
		if errors.Is(err, io.EOF) {
			log.Info().Str("port", s.Name()).Msg("session.Session.readLoop stream ended")
			observability.RecordSessionEnd("eof")
			return nil
		}
		log.Error().Str("port", s.Name()).Err(err).Msg("session.Session.readLoop read failed")
		observability.RecordSessionEnd("error")
		return fmt.Errorf("%w: %v", ErrStreamTerminated, err)
	}
}

func (s *Session) deliver(conn *Connection, chunk []byte) {
	before := conn.framer.Overflowed()
	lines := conn.framer.Feed(chunk)
	if dropped := conn.framer.Overflowed() - before; dropped > 0 {
		s.overflowed.Add(dropped)
		observability.RecordLinkLines("overflow", dropped)
		log.Warn().Uint64("dropped", dropped).Int("max_line_bytes", s.cfg.MaxLineBytes).
			Msg("session.Session.deliver dropped overlong line")
	}

	for _, line := range lines {
		s.framed.Add(1)
		msg, err := protocol.Decode(line)
		if err != nil {
			s.discarded.Add(1)
			observability.RecordLinkLines("discarded", 1)
			log.Warn().Err(err).Msg("session.Session.deliver discarded line")
			continue
		}
		s.delivered.Add(1)
		observability.RecordLinkLines("decoded", 1)

		s.mu.RLock()
		handler := s.handler
		s.mu.RUnlock()
		if handler != nil {
			handler(msg)
		}
	}
}

func (s *Session) finish(conn *Connection, err error) {
	_ = conn.close()
	conn.ended.Do(func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		conn.err = err
		s.mu.Unlock()
		close(conn.done)
	})
}

// Send encodes one message and blocks until the line has been written.
func (s *Session) Send(method string, params protocol.Params) error {
	line, err := protocol.Encode(method, params)
	if err != nil {
		return err
	}
	conn := s.current()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.outbox.Submit(line); err != nil {
		s.sendErrors.Add(1)
		observability.RecordOutbound(method, false)
		log.Warn().Str("method", method).Err(err).Msg("session.Session.Send write failed")
		return err
	}
	s.sent.Add(1)
	observability.RecordOutbound(method, true)
	log.Debug().Str("method", method).Str("line", line).Msg("session.Session.Send")
	return nil
}

// Close closes the live Connection. A running ReadLoop returns nil.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	conn := s.current()
	if conn == nil {
		return nil
	}
	err := conn.close()
	if !conn.reading.Load() {
		s.finish(conn, nil)
	}
	return err
}

// Done is closed when the most recent Connection has ended. Before the
// first Connect it returns a closed channel.
func (s *Session) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.last.done
}

// Err is the read loop result of the most recent Connection once Done is closed.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	return s.last.err
}

func (s *Session) Stats() Stats {
	return Stats{
		LinesFramed: s.framed.Load(),
		Delivered:   s.delivered.Load(),
		Discarded:   s.discarded.Load(),
		Overflowed:  s.overflowed.Load(),
		Sent:        s.sent.Load(),
		SendErrors:  s.sendErrors.Load(),
		Connects:    s.connects.Load(),
	}
}

func (s *Session) current() *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/danmuck/cubelink/internal/testutil/testlog"
)

type readResult struct {
	data []byte
	err  error
}

// scriptedPort replays queued reads and records writes.
type scriptedPort struct {
	reads  chan readResult
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newScriptedPort() *scriptedPort {
	return &scriptedPort{
		reads:  make(chan readResult, 16),
		closed: make(chan struct{}),
	}
}

func (p *scriptedPort) push(data string) {
	p.reads <- readResult{data: []byte(data)}
}

func (p *scriptedPort) fail(err error) {
	p.reads <- readResult{err: err}
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	select {
	case r := <-p.reads:
		if r.err != nil {
			return 0, r.err
		}
		return copy(buf, r.data), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *scriptedPort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func (p *scriptedPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *scriptedPort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.writes))
	for _, w := range p.writes {
		out = append(out, string(w))
	}
	return out
}

func openerFor(ports ...Port) Opener {
	var mu sync.Mutex
	next := 0
	return OpenerFunc{
		Label: "test",
		Fn: func(context.Context) (Port, error) {
			mu.Lock()
			defer mu.Unlock()
			if next >= len(ports) {
				return nil, &ConnectionError{Reason: ReasonNoDevice, Port: "test"}
			}
			p := ports[next]
			next++
			return p, nil
		},
	}
}

type collector struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (c *collector) handle(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Method)
	}
	return out
}

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	want := map[int]time.Duration{
		0: 250 * time.Millisecond,
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		6: 5 * time.Second,
	}
	for attempt, d := range want {
		if got := cfg.Delay(attempt, rand.New(rand.NewSource(1))); got != d {
			t.Fatalf("attempt%d got=%v want=%v", attempt, got, d)
		}
	}
	if got := (BackoffConfig{}).Delay(3, nil); got != 0 {
		t.Fatalf("zero config should not wait, got %v", got)
	}
}

func TestBackoffDelayJitterRangeAndCap(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		got := cfg.Delay(3, rng)
		if got < 500*time.Millisecond || got >= 1500*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
		if capped := cfg.Delay(8, rng); capped > cfg.MaxDelay {
			t.Fatalf("jitter exceeded max delay: %v", capped)
		}
	}
	if got := cfg.Delay(3, nil); got != time.Second {
		t.Fatalf("nil rng should skip jitter, got %v", got)
	}
}

func TestSessionReconnectDelayFollowsConfig(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 3, MaxDelay: time.Second}
	s := NewSession(openerFor(), cfg)
	if got := s.ReconnectDelay(3); got != 90*time.Millisecond {
		t.Fatalf("unexpected delay without jitter: %v", got)
	}

	cfg.Backoff.Jitter = true
	s = NewSession(openerFor(), cfg)
	for i := 0; i < 20; i++ {
		if got := s.ReconnectDelay(2); got < 15*time.Millisecond || got >= 45*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{OutboxDepth: 4}.WithDefaults()
	if cfg.BaudRate != 115200 || cfg.OutboxDepth != 4 || cfg.ReadBufferBytes == 0 || cfg.MaxLineBytes == 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestReadLoopDeliversAcrossChunksAndSkipsMalformed(t *testing.T) {
	testlog.Start(t)
	port := newScriptedPort()
	s := NewSession(openerFor(port), DefaultConfig())
	c := &collector{}
	s.OnMessage(c.handle)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	port.push(`{"method":"debug","params":["he`)
	port.push("llo\"]}\nnot json\n{\"params\":{}}\n")
	port.push(`{"method":"playSound","params":{"soundName":"glitch"}}` + "\n")
	port.fail(io.EOF)

	if err := s.ReadLoop(); err != nil {
		t.Fatalf("expected clean end on EOF, got %v", err)
	}
	got := c.methods()
	if len(got) != 2 || got[0] != protocol.MethodDebug || got[1] != protocol.MethodPlaySound {
		t.Fatalf("unexpected delivered methods: %v", got)
	}
	first, _ := c.msgs[0].Params.At(0)
	if text, ok := first.(string); !ok || text != "hello" {
		t.Fatalf("unexpected debug text: %#v", first)
	}

	stats := s.Stats()
	if stats.LinesFramed != 4 || stats.Delivered != 2 || stats.Discarded != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if s.Connected() {
		t.Fatalf("session should be disconnected after EOF")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("done should be closed after read loop ends")
	}
}

func TestReadLoopIOErrorTerminatesAndAllowsReconnect(t *testing.T) {
	testlog.Start(t)
	first := newScriptedPort()
	second := newScriptedPort()
	s := NewSession(openerFor(first, second), DefaultConfig())

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	first.fail(errors.New("device unplugged"))
	err := s.ReadLoop()
	if !errors.Is(err, ErrStreamTerminated) {
		t.Fatalf("expected ErrStreamTerminated, got %v", err)
	}
	if !errors.Is(s.Err(), ErrStreamTerminated) {
		t.Fatalf("Err should report stream termination, got %v", s.Err())
	}
	if err := s.Send(protocol.MethodRestartMaster, protocol.Named(nil)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after termination, got %v", err)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := s.Send(protocol.MethodRestartMaster, protocol.Named(nil)); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	if got := second.written(); len(got) != 1 || got[0] != `{"method":"restartMaster","params":{}}`+"\n" {
		t.Fatalf("unexpected writes: %q", got)
	}
	if s.Stats().Connects != 2 {
		t.Fatalf("expected two connects, got %d", s.Stats().Connects)
	}
	_ = s.Close()
}

func TestConnectAlreadyOpenAndOpenerFailures(t *testing.T) {
	testlog.Start(t)
	port := newScriptedPort()
	s := NewSession(openerFor(port), DefaultConfig())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Connect(context.Background()); !IsConnectReason(err, ReasonAlreadyOpen) {
		t.Fatalf("expected already_open, got %v", err)
	}
	_ = s.Close()

	if err := s.Connect(context.Background()); !IsConnectReason(err, ReasonNoDevice) {
		t.Fatalf("expected no_device pass-through, got %v", err)
	}

	plain := NewSession(OpenerFunc{Label: "broken", Fn: func(context.Context) (Port, error) {
		return nil, errors.New("boom")
	}}, DefaultConfig())
	err := plain.Connect(context.Background())
	if !IsConnectReason(err, ReasonOpenFailed) {
		t.Fatalf("expected open_failed wrap, got %v", err)
	}

	var none Session
	if err := none.Connect(context.Background()); !errors.Is(err, ErrNoOpener) {
		t.Fatalf("expected ErrNoOpener, got %v", err)
	}
}

func TestCloseEndsRunningReadLoop(t *testing.T) {
	testlog.Start(t)
	port := newScriptedPort()
	s := NewSession(openerFor(port), DefaultConfig())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("read loop did not stop after Close")
	}
	if s.Err() != nil {
		t.Fatalf("local close should end cleanly, got %v", s.Err())
	}
}

func TestCloseWithoutReadLoop(t *testing.T) {
	testlog.Start(t)
	s := NewSession(openerFor(newScriptedPort()), DefaultConfig())
	select {
	case <-s.Done():
	default:
		t.Fatalf("done should be closed before first connect")
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Connected() {
		t.Fatalf("expected disconnected after close")
	}
	<-s.Done()
}

func TestConcurrentSendsNeverInterleave(t *testing.T) {
	testlog.Start(t)
	local, remote := net.Pipe()
	defer remote.Close()
	s := NewSession(openerFor(local), DefaultConfig())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	const senders = 8
	const perSender = 25
	received := make(chan []string, 1)
	go func() {
		var lines []string
		scanner := bufio.NewScanner(remote)
		for len(lines) < senders*perSender && scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		received <- lines
	}()

	var wg sync.WaitGroup
	for g := 0; g < senders; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				params := protocol.Named(map[string]any{
					protocol.ParamWallID: g,
					protocol.ParamText:   fmt.Sprintf("sender-%d-msg-%d", g, i),
				})
				if err := s.Send(protocol.MethodSetTouchThreshold, params); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	var lines []string
	select {
	case lines = <-received:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out reading sent lines")
	}
	if len(lines) != senders*perSender {
		t.Fatalf("expected %d lines, got %d", senders*perSender, len(lines))
	}
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		msg, err := protocol.Decode(line)
		if err != nil {
			t.Fatalf("interleaved or corrupt line %q: %v", line, err)
		}
		text, _ := msg.Params.String(protocol.ParamText)
		seen[text] = true
	}
	for g := 0; g < senders; g++ {
		for i := 0; i < perSender; i++ {
			if key := fmt.Sprintf("sender-%d-msg-%d", g, i); !seen[key] {
				t.Fatalf("missing %s", key)
			}
		}
	}
}

func TestSendWhenNotConnected(t *testing.T) {
	testlog.Start(t)
	s := NewSession(openerFor(), DefaultConfig())
	if err := s.Send(protocol.MethodRestartMaster, protocol.Named(nil)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected from Start, got %v", err)
	}
}

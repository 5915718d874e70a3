// Package dispatch routes inbound link messages to handlers and builds the
// outbound command set.
package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/cubelink/internal/observability"
	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrNoSender = errors.New("dispatch: no sender attached")

// Handler processes one inbound message. A returned error is logged; it
// never reaches the read loop.
type Handler func(msg protocol.Message) error

// Sender is the outbound half of the link. The Dispatcher does not own it.
type Sender interface {
	Send(method string, params protocol.Params) error
}

// UnknownMethodError is reported for inbound methods with no handler.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("dispatch: unknown method %q", e.Method)
}

type Stats struct {
	Handled  uint64 `json:"handled"`
	Failed   uint64 `json:"failed"`
	Unknown  uint64 `json:"unknown"`
	Panicked uint64 `json:"panicked"`
}

type Dispatcher struct {
	sender Sender
	walls  int

	mu       sync.RWMutex
	handlers map[string]Handler
	stats    Stats
}

// New builds a Dispatcher. walls bounds the wall ids accepted by outbound
// wall commands.
func New(sender Sender, walls int) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		walls:    walls,
		handlers: make(map[string]Handler),
	}
}

// Register installs h for method, replacing any previous handler.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, method)
		return
	}
	d.handlers[method] = h
}

func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Handle runs the handler for msg.Method. It is the session's
// MessageHandler and never panics.
func (d *Dispatcher) Handle(msg protocol.Message) {
	d.mu.RLock()
	h, ok := d.handlers[msg.Method]
	d.mu.RUnlock()

	if !ok {
		err := &UnknownMethodError{Method: msg.Method}
		d.count(func(s *Stats) { s.Unknown++ })
		observability.RecordDispatch(observability.UnknownMethodLabel, "unknown")
		log.Warn().Err(err).Msg("dispatch.Dispatcher.Handle")
		return
	}

	if err := d.invoke(h, msg); err != nil {
		var panicked *panicError
		if errors.As(err, &panicked) {
			d.count(func(s *Stats) { s.Panicked++ })
			observability.RecordDispatch(msg.Method, "panic")
			log.Error().Str("method", msg.Method).Err(err).Msg("dispatch.Dispatcher.Handle handler panicked")
			return
		}
		d.count(func(s *Stats) { s.Failed++ })
		observability.RecordDispatch(msg.Method, "failed")
		log.Warn().Str("method", msg.Method).Err(err).Msg("dispatch.Dispatcher.Handle handler failed")
		return
	}
	d.count(func(s *Stats) { s.Handled++ })
	observability.RecordDispatch(msg.Method, "handled")
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func (d *Dispatcher) invoke(h Handler, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return h(msg)
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// Send forwards to the attached Sender.
func (d *Dispatcher) Send(method string, params protocol.Params) error {
	if d.sender == nil {
		return ErrNoSender
	}
	return d.sender.Send(method, params)
}

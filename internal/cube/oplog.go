package cube

import (
	"sync"
	"time"
)

// DefaultOperatorLogSize bounds the debug lines kept for the status UI.
const DefaultOperatorLogSize = 256

// DebugLine is one firmware debug message.
type DebugLine struct {
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// OperatorLog is a bounded ring of debug lines with subscribers.
type OperatorLog struct {
	mu       sync.RWMutex
	lines    []DebugLine
	next     int
	full     bool
	seq      uint64
	now      func() time.Time
	watchers []func(DebugLine)
}

func NewOperatorLog(size int) *OperatorLog {
	if size <= 0 {
		size = DefaultOperatorLogSize
	}
	return &OperatorLog{lines: make([]DebugLine, size), now: time.Now}
}

func (l *OperatorLog) Append(text string) DebugLine {
	l.mu.Lock()
	l.seq++
	line := DebugLine{Seq: l.seq, At: l.now(), Text: text}
	l.lines[l.next] = line
	l.next = (l.next + 1) % len(l.lines)
	if l.next == 0 {
		l.full = true
	}
	watchers := l.watchers
	l.mu.Unlock()

	for _, fn := range watchers {
		fn(line)
	}
	return line
}

// Lines returns retained lines, oldest first.
func (l *OperatorLog) Lines() []DebugLine {
	return l.Since(0)
}

// Since returns retained lines with Seq greater than seq, oldest first.
func (l *OperatorLog) Since(seq uint64) []DebugLine {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var ordered []DebugLine
	if l.full {
		ordered = append(ordered, l.lines[l.next:]...)
		ordered = append(ordered, l.lines[:l.next]...)
	} else {
		ordered = append(ordered, l.lines[:l.next]...)
	}
	out := make([]DebugLine, 0, len(ordered))
	for _, line := range ordered {
		if line.Seq > seq {
			out = append(out, line)
		}
	}
	return out
}

func (l *OperatorLog) Subscribe(fn func(DebugLine)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]func(DebugLine), len(l.watchers), len(l.watchers)+1)
	copy(next, l.watchers)
	l.watchers = append(next, fn)
}

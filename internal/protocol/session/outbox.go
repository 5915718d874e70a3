package session

import (
	"io"
	"sync"
)

type pendingWrite struct {
	line   []byte
	result chan error
}

// Outbox serializes outbound lines through one writer goroutine. Each
// queued line is written with a single Write call, in queue order.
type Outbox struct {
	w     io.Writer
	queue chan *pendingWrite
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewOutbox(w io.Writer, depth int) *Outbox {
	if depth < 0 {
		depth = 0
	}
	o := &Outbox{
		w:     w,
		queue: make(chan *pendingWrite, depth),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go o.drain()
	return o
}

// Submit queues line (a "\n" is appended) and blocks until it has been
// written or the outbox closes.
func (o *Outbox) Submit(line string) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	pw := &pendingWrite{line: buf, result: make(chan error, 1)}

	select {
	case <-o.quit:
		return ErrSessionClosed
	default:
	}
	select {
	case o.queue <- pw:
	case <-o.quit:
		return ErrSessionClosed
	}

	select {
	case err := <-pw.result:
		return err
	case <-o.done:
		select {
		case err := <-pw.result:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// Close stops the writer. Lines still queued fail with ErrSessionClosed.
// Close the underlying port first if a Write may be blocked.
func (o *Outbox) Close() {
	o.once.Do(func() {
		close(o.quit)
	})
	<-o.done
}

func (o *Outbox) drain() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			o.failQueued()
			return
		case pw := <-o.queue:
			_, err := o.w.Write(pw.line)
			pw.result <- err
		}
	}
}

func (o *Outbox) failQueued() {
	for {
		select {
		case pw := <-o.queue:
			pw.result <- ErrSessionClosed
		default:
			return
		}
	}
}

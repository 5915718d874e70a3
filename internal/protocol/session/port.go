package session

import (
	"context"
	"io"
)

// Port is an open duplex byte stream to the master controller.
type Port interface {
	io.ReadWriteCloser
}

// Opener acquires a Port. Selecting the physical device is up to the
// implementation (configured path, OS prompt, test pipe).
type Opener interface {
	Open(ctx context.Context) (Port, error)
	Name() string
}

// OpenerFunc adapts a function into an Opener.
type OpenerFunc struct {
	Label string
	Fn    func(ctx context.Context) (Port, error)
}

func (o OpenerFunc) Open(ctx context.Context) (Port, error) {
	return o.Fn(ctx)
}

func (o OpenerFunc) Name() string {
	return o.Label
}

// Package serialport opens the master controller's USB serial device.
package serialport

import (
	"context"
	"errors"
	"io/fs"
	"syscall"

	"github.com/danmuck/cubelink/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultMode is 115200 8N1, matching the firmware.
func DefaultMode() serial.Mode {
	return serial.Mode{
		BaudRate: session.DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

type openFunc func(path string, mode *serial.Mode) (serial.Port, error)

// Opener implements session.Opener for a serial device path.
type Opener struct {
	Path string
	Mode serial.Mode

	open openFunc
}

func NewOpener(path string, baud int) *Opener {
	mode := DefaultMode()
	if baud > 0 {
		mode.BaudRate = baud
	}
	return &Opener{Path: path, Mode: mode}
}

func (o *Opener) Name() string {
	return o.Path
}

func (o *Opener) Open(ctx context.Context) (session.Port, error) {
	if o.Path == "" {
		return nil, &session.ConnectionError{Reason: session.ReasonNoDevice, Err: errors.New("serialport: no device path")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &session.ConnectionError{Reason: session.ReasonOpenFailed, Port: o.Path, Err: err}
	}

	mode := o.Mode
	if mode.BaudRate <= 0 {
		mode = DefaultMode()
	}
	open := o.open
	if open == nil {
		open = serial.Open
	}

	port, err := open(o.Path, &mode)
	if err != nil {
		reason := reasonFor(err)
		log.Warn().Str("port", o.Path).Str("reason", string(reason)).Err(err).Msg("serialport.Opener.Open failed")
		return nil, &session.ConnectionError{Reason: reason, Port: o.Path, Err: err}
	}
	log.Debug().Str("port", o.Path).Int("baud", mode.BaudRate).Msg("serialport.Opener.Open")
	return port, nil
}

// reasonFor classifies open errors. The serial library reports busy and
// permission failures as PortError; a missing device surfaces as a raw errno.
func reasonFor(err error) session.ConnectReason {
	if code, ok := portErrorCode(err); ok {
		switch code {
		case serial.PortNotFound:
			return session.ReasonNoDevice
		case serial.PermissionDenied:
			return session.ReasonPermissionDenied
		case serial.PortBusy:
			return session.ReasonBusy
		default:
			return session.ReasonOpenFailed
		}
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return session.ReasonNoDevice
	case errors.Is(err, fs.ErrPermission):
		return session.ReasonPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return session.ReasonBusy
	}
	return session.ReasonOpenFailed
}

func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var ptr *serial.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val serial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}

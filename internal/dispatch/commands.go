package dispatch

import (
	"errors"
	"fmt"

	"github.com/danmuck/cubelink/internal/protocol"
)

var (
	ErrInvalidWall     = errors.New("dispatch: wall id out of range")
	ErrInvalidMode     = errors.New("dispatch: unknown cube mode")
	ErrInvalidArgument = errors.New("dispatch: invalid argument")
)

// CubeMode is the master's global animation state.
type CubeMode string

const (
	ModeNormal     CubeMode = "normal"
	ModeManBurn    CubeMode = "manBurn"
	ModeTempleBurn CubeMode = "templeBurn"
)

func (m CubeMode) Valid() bool {
	switch m {
	case ModeNormal, ModeManBurn, ModeTempleBurn:
		return true
	}
	return false
}

// Commands is the outbound surface used by the admin server.
type Commands interface {
	RestartMaster() error
	RestartWall(wallID int) error
	SetTouchThreshold(wallID, threshold int) error
	SetCubeMode(mode CubeMode) error
}

var _ Commands = (*Dispatcher)(nil)

func (d *Dispatcher) RestartMaster() error {
	return d.Send(protocol.MethodRestartMaster, protocol.Named(nil))
}

func (d *Dispatcher) RestartWall(wallID int) error {
	if err := d.checkWall(wallID); err != nil {
		return err
	}
	return d.Send(protocol.MethodRestartWall, protocol.Named(map[string]any{
		protocol.ParamWallID: wallID,
	}))
}

func (d *Dispatcher) SetTouchThreshold(wallID, threshold int) error {
	if err := d.checkWall(wallID); err != nil {
		return err
	}
	if threshold < 0 {
		return fmt.Errorf("%w: touch threshold %d", ErrInvalidArgument, threshold)
	}
	return d.Send(protocol.MethodSetTouchThreshold, protocol.Named(map[string]any{
		protocol.ParamWallID:         wallID,
		protocol.ParamTouchThreshold: threshold,
	}))
}

func (d *Dispatcher) SetCubeMode(mode CubeMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return d.Send(protocol.MethodSetCubeMode, protocol.Named(map[string]any{
		protocol.ParamCubeMode: string(mode),
	}))
}

func (d *Dispatcher) checkWall(id int) error {
	if d.walls > 0 && (id < 0 || id >= d.walls) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidWall, id, d.walls)
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWall, id)
	}
	return nil
}

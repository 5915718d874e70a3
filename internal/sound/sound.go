// Package sound selects which effect the synthesizer plays. Synthesis
// itself sits behind the Sound interface.
package sound

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrUnknownSound = errors.New("sound: unknown sound")

// Built-in effect names sent by the master firmware.
const (
	Ambient = "ambient"
	Pressed = "pressed"
	Glitch  = "glitch"
	Climax  = "climax"
	Brandy  = "brandy"
	Dull    = "dull"
)

// BuiltinNames lists every effect the firmware may request.
var BuiltinNames = []string{Ambient, Pressed, Glitch, Climax, Brandy, Dull}

// Sound is one synthesizer voice. Pause on an inactive sound is a no-op.
type Sound interface {
	Play(params protocol.Params)
	Pause()
	Active() bool
}

// Library maps effect names to voices.
type Library map[string]Sound

func (l Library) Names() []string {
	out := make([]string, 0, len(l))
	for name := range l {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Director keeps at most one continuous sound active.
type Director struct {
	mu      sync.Mutex
	library Library
	current string
}

func NewDirector(library Library) *Director {
	if library == nil {
		library = Library{}
	}
	return &Director{library: library}
}

// PlaySound switches the continuous sound. An unknown name is rejected
// before anything is paused, so the current sound keeps playing.
func (d *Director) PlaySound(name string, params protocol.Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, ok := d.library[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}
	if cur, ok := d.library[d.current]; ok && cur.Active() {
		cur.Pause()
	}
	next.Play(params)
	d.current = name
	log.Debug().Str("sound", name).Msg("sound.Director.PlaySound")
	return nil
}

// PlayOneShot triggers an effect without touching the current sound.
func (d *Director) PlayOneShot(name string, params protocol.Params) error {
	d.mu.Lock()
	s, ok := d.library[name]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}
	s.Play(params)
	log.Debug().Str("sound", name).Msg("sound.Director.PlayOneShot")
	return nil
}

// Current is the name of the active continuous sound, or "".
func (d *Director) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.library[d.current]; ok && cur.Active() {
		return d.current
	}
	return ""
}

// Stop pauses the current sound.
func (d *Director) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.library[d.current]; ok && cur.Active() {
		cur.Pause()
	}
	d.current = ""
}

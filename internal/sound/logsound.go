package sound

import (
	"sync/atomic"

	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

// LogSound stands in for a synthesizer voice: it tracks play state and
// logs each transition.
type LogSound struct {
	Name   string
	active atomic.Bool
	plays  atomic.Uint64
}

func (s *LogSound) Play(params protocol.Params) {
	s.active.Store(true)
	s.plays.Add(1)
	log.Info().Str("sound", s.Name).Int("params", params.Len()).Msg("sound.LogSound.Play")
}

func (s *LogSound) Pause() {
	if s.active.CompareAndSwap(true, false) {
		log.Info().Str("sound", s.Name).Msg("sound.LogSound.Pause")
	}
}

func (s *LogSound) Active() bool {
	return s.active.Load()
}

func (s *LogSound) Plays() uint64 {
	return s.plays.Load()
}

// LogLibrary returns a LogSound for every built-in name.
func LogLibrary() Library {
	lib := make(Library, len(BuiltinNames))
	for _, name := range BuiltinNames {
		lib[name] = &LogSound{Name: name}
	}
	return lib
}

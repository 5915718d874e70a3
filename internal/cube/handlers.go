package cube

import (
	"errors"
	"fmt"

	"github.com/danmuck/cubelink/internal/fleet"
	"github.com/danmuck/cubelink/internal/observability"
	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrMissingParam = errors.New("cube: missing parameter")

func (s *Service) registerHandlers() {
	s.dispatcher.Register(protocol.MethodDebug, s.handleDebug)
	s.dispatcher.Register(protocol.MethodPlaySound, s.handlePlaySound)
	s.dispatcher.Register(protocol.MethodPlayOneShot, s.handlePlayOneShot)
	s.dispatcher.Register(protocol.MethodUpdateStatus, s.handleUpdateStatus)
}

// debug arrives as ["text"] from Serial.println wrappers, or {text}.
func (s *Service) handleDebug(msg protocol.Message) error {
	var raw any
	var ok bool
	if msg.Params.IsPositional() {
		raw, ok = msg.Params.At(0)
	} else {
		raw, ok = msg.Params.Value(protocol.ParamText)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingParam, protocol.ParamText)
	}
	text, isString := raw.(string)
	if !isString {
		text = fmt.Sprint(raw)
	}
	line := s.oplog.Append(text)
	log.Info().Uint64("seq", line.Seq).Str("text", text).Msg("cube.Service.debug")
	return nil
}

func soundArgs(params protocol.Params) (string, protocol.Params, error) {
	name, ok := params.String(protocol.ParamSoundName)
	if !ok || name == "" {
		return "", protocol.Params{}, fmt.Errorf("%w: %s", ErrMissingParam, protocol.ParamSoundName)
	}
	soundParams, ok := params.Object(protocol.ParamSoundParams)
	if !ok {
		soundParams = protocol.Named(nil)
	}
	return name, soundParams, nil
}

func (s *Service) handlePlaySound(msg protocol.Message) error {
	name, params, err := soundArgs(msg.Params)
	if err != nil {
		return err
	}
	return s.director.PlaySound(name, params)
}

func (s *Service) handlePlayOneShot(msg protocol.Message) error {
	name, params, err := soundArgs(msg.Params)
	if err != nil {
		return err
	}
	return s.director.PlayOneShot(name, params)
}

// updateStatus entry i overwrites wall slot i. Entries past the fleet size
// are dropped.
func (s *Service) handleUpdateStatus(msg protocol.Message) error {
	reports, err := fleet.DecodeReport(msg.Params)
	if err != nil {
		return err
	}
	for _, r := range reports {
		if !s.walls.Valid(r.ID) {
			log.Warn().Int("wall", r.ID).Int("walls", s.walls.Len()).Msg("cube.Service.updateStatus dropped extra wall")
			continue
		}
		s.walls.Set(r.ID, r)
		observability.RecordFleetUpdate(r.ID, r.LastDeliveryStatus.String())
	}
	return nil
}

package sound

import (
	"testing"

	"github.com/danmuck/cubelink/internal/protocol"
	"github.com/danmuck/cubelink/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	sound string
	op    string
}

type recorder struct {
	calls []call
}

type fakeSound struct {
	name   string
	rec    *recorder
	active bool
}

func (f *fakeSound) Play(protocol.Params) {
	f.active = true
	f.rec.calls = append(f.rec.calls, call{f.name, "play"})
}

func (f *fakeSound) Pause() {
	f.active = false
	f.rec.calls = append(f.rec.calls, call{f.name, "pause"})
}

func (f *fakeSound) Active() bool { return f.active }

func newFakeLibrary(rec *recorder, names ...string) Library {
	lib := Library{}
	for _, n := range names {
		lib[n] = &fakeSound{name: n, rec: rec}
	}
	return lib
}

func TestPlaySoundPausesPreviousExactlyOnce(t *testing.T) {
	testlog.Start(t)
	rec := &recorder{}
	d := NewDirector(newFakeLibrary(rec, Ambient, Glitch))

	require.NoError(t, d.PlaySound(Ambient, protocol.Named(nil)))
	require.NoError(t, d.PlaySound(Glitch, protocol.Named(nil)))

	assert.Equal(t, []call{
		{Ambient, "play"},
		{Ambient, "pause"},
		{Glitch, "play"},
	}, rec.calls)
	assert.Equal(t, Glitch, d.Current())
}

func TestPlayOneShotNeverPauses(t *testing.T) {
	testlog.Start(t)
	rec := &recorder{}
	d := NewDirector(newFakeLibrary(rec, Ambient, Pressed))

	require.NoError(t, d.PlaySound(Ambient, protocol.Named(nil)))
	require.NoError(t, d.PlayOneShot(Pressed, protocol.Named(nil)))
	require.NoError(t, d.PlayOneShot(Pressed, protocol.Named(nil)))

	for _, c := range rec.calls {
		assert.NotEqual(t, "pause", c.op, "one-shot paused %s", c.sound)
	}
	assert.Equal(t, Ambient, d.Current())
}

func TestUnknownSoundKeepsCurrent(t *testing.T) {
	testlog.Start(t)
	rec := &recorder{}
	d := NewDirector(newFakeLibrary(rec, Ambient))

	require.NoError(t, d.PlaySound(Ambient, protocol.Named(nil)))
	err := d.PlaySound("kazoo", protocol.Named(nil))
	assert.ErrorIs(t, err, ErrUnknownSound)
	assert.ErrorIs(t, d.PlayOneShot("kazoo", protocol.Named(nil)), ErrUnknownSound)

	assert.Equal(t, []call{{Ambient, "play"}}, rec.calls)
	assert.Equal(t, Ambient, d.Current())
}

func TestReplaySameSoundAndStop(t *testing.T) {
	testlog.Start(t)
	lib := LogLibrary()
	d := NewDirector(lib)

	require.NoError(t, d.PlaySound(Climax, protocol.Named(nil)))
	require.NoError(t, d.PlaySound(Climax, protocol.Named(nil)))
	climax := lib[Climax].(*LogSound)
	assert.Equal(t, uint64(2), climax.Plays())
	assert.True(t, climax.Active())

	d.Stop()
	assert.False(t, climax.Active())
	assert.Equal(t, "", d.Current())
	assert.Equal(t, []string{Ambient, Brandy, Climax, Dull, Glitch, Pressed}, lib.Names())
}

// Package audio bridges a frame-rendering source to the platform audio
// device via ebiten's 32-bit float stream player.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source renders interleaved stereo float32 frames on demand.
type Source interface {
	Process(dst []float32)
}

// FinishingSource additionally signals the end of playback; the stream
// returns io.EOF on the read after Finished turns true, which lets the
// device player drain and stop on its own.
type FinishingSource interface {
	Source
	Finished() bool
}

// stream adapts a Source to the io.Reader the ebiten player pulls from:
// little-endian float32, two channels, eight bytes per frame.
type stream struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s.buf[i]))
	}
	n := frames * 8
	if fs, ok := s.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (s *stream) Close() error { return nil }

// The ebiten audio context is process-global and pinned to one sample rate;
// every Player in the process must agree on it.
var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Player plays one Source on the audio device.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

func NewPlayer(sampleRate int, source Source) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := &stream{source: source}
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("create device player: %w", err)
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// SetVolume sets device-side volume in [0, 1], independent of the
// source's own gain.
func (p *Player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.player.SetVolume(v)
}

// Position returns the playback position the listener actually hears.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}

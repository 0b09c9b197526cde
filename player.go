package darbuka

import (
	"errors"
	"sync"
	"sync/atomic"

	intaudio "github.com/tiffz/darbuka/internal/audio"
	intfx "github.com/tiffz/darbuka/internal/effects"
	intseq "github.com/tiffz/darbuka/internal/sequencer"
	intsynth "github.com/tiffz/darbuka/internal/synth"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	loopPlayback bool
	roomAmbience bool
	sampleTap    func([]float32)
	onTick       func(Tick)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{loopPlayback: true, roomAmbience: true}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithRoomAmbience toggles the short reverb tail on the drum mix.
func WithRoomAmbience(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.roomAmbience = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo
// buffer. The callback runs on the audio thread; keep work brief.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithTickCallback reports the playhead tick as it advances, for UI cursors.
// The callback runs on the audio thread.
func WithTickCallback(fn func(Tick)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.onTick = fn
	}
}

// Player plays rhythms on the audio device.
type Player struct {
	mu           sync.Mutex
	sampleRate   int
	engine       *intsynth.Engine
	audio        *intaudio.Player
	baseGain     float64
	volume       float64
	loopPlayback bool
	roomAmbience bool
	sampleTap    func([]float32)
	onTick       func(Tick)
	position     atomic.Int64
	done         chan struct{}
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex
}

// eventWrapper wraps a sequencer and implements the audio Source and
// FinishingSource so non-looping playback drains and stops on its own.
type eventWrapper struct {
	seq       *intseq.Sequencer
	finished  atomic.Bool
	effects   *intfx.Chain
	sampleTap func([]float32)
}

func (w *eventWrapper) Process(dst []float32) {
	w.seq.Process(dst)
	if w.effects != nil {
		for i := 0; i+1 < len(dst); i += 2 {
			dst[i], dst[i+1] = w.effects.Process(dst[i], dst[i+1])
		}
	}
	if w.sampleTap != nil {
		w.sampleTap(dst)
	}
}

func (w *eventWrapper) Finished() bool {
	return w.finished.Load()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	params := intsynth.DefaultParams()
	engine := intsynth.New(sampleRate, params)
	return &Player{
		sampleRate:   sampleRate,
		engine:       engine,
		baseGain:     params.MasterGain,
		volume:       1,
		loopPlayback: cfg.loopPlayback,
		roomAmbience: cfg.roomAmbience,
		sampleTap:    cfg.sampleTap,
		onTick:       cfg.onTick,
	}, nil
}

// PlayNotation parses text and plays it.
func (p *Player) PlayNotation(text string, ts TimeSignature, bpm float64) error {
	r := Parse(text, ts)
	if !r.Valid {
		return errors.New(r.Err)
	}
	return p.Play(&r, bpm)
}

// Play starts playback of a parsed rhythm, replacing any current playback.
func (p *Player) Play(r *Rhythm, bpm float64) error {
	if r == nil || !r.Valid {
		return errors.New("cannot play an invalid rhythm")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Signal any existing Wait() that the previous playback was replaced.
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})

	// A fresh engine per Play keeps decaying voices from the previous
	// rhythm out of the new one.
	params := intsynth.DefaultParams()
	engine := intsynth.New(p.sampleRate, params)
	engine.SetMasterGain(params.MasterGain * p.volume)
	p.engine = engine
	p.baseGain = params.MasterGain

	wrapper := &eventWrapper{}
	seq := intseq.New(r, bpm, engine, p.sampleRate, intseq.Options{
		Loop: p.loopPlayback,
		OnEvent: func(kind intseq.EventKind) {
			if kind == intseq.EventPlaybackEnded {
				wrapper.finished.Store(true)
			}
			p.sendEvent(PlaybackEvent{Kind: int(kind)})
			if kind == intseq.EventPlaybackEnded {
				p.signalDone()
			}
		},
		OnTick: func(t Tick) {
			p.position.Store(int64(t))
			if p.onTick != nil {
				p.onTick(t)
			}
		},
	})
	wrapper.seq = seq
	chain := intfx.NewChain(intfx.NewLimiter(1.1))
	if p.roomAmbience {
		chain.Add(intfx.NewRoom(p.sampleRate, 0.35, 0.5, 0.12))
	}
	wrapper.effects = chain
	wrapper.sampleTap = p.sampleTap

	backend, err := intaudio.NewPlayer(p.sampleRate, wrapper)
	if err != nil {
		return err
	}
	if p.audio != nil {
		_ = p.audio.Stop()
	}
	p.audio = backend
	p.audio.Play()
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop the event rather than stall the audio thread.
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until the current playback ends. With loop playback enabled it
// blocks until Stop; use Watch for loop counting instead. Returns immediately
// when nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a buffered channel of playback events. Only the most recent
// Watch channel receives events; call it before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets the runtime volume scalar. 1.0 is the default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.engine.SetMasterGain(p.baseGain * p.volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlayheadTick returns the tick most recently dispatched by the sequencer.
func (p *Player) PlayheadTick() Tick {
	return Tick(p.position.Load())
}

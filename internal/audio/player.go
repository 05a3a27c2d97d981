// Package audio plays the background loop of the terminal client.
//
// Playback may only start in response to player input, so a Player stays
// silent until Unlock is called from the first key press. Speaker failures
// are logged and leave the game running without sound.
package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog/log"
)

// output abstracts the speaker for tests.
type output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
	Close()
}

type realSpeaker struct{}

func (realSpeaker) Init(r beep.SampleRate, n int) error { return speaker.Init(r, n) }
func (realSpeaker) Play(s ...beep.Streamer)             { speaker.Play(s...) }
func (realSpeaker) Lock()                               { speaker.Lock() }
func (realSpeaker) Unlock()                             { speaker.Unlock() }
func (realSpeaker) Close()                              { speaker.Clear(); speaker.Close() }

// Player owns the background loop.
type Player struct {
	mu       sync.Mutex
	out      output
	enabled  bool
	unlocked bool
	ctrl     *beep.Ctrl
}

// NewPlayer returns a Player. A disabled Player ignores every call.
func NewPlayer(enabled bool) *Player {
	return &Player{out: realSpeaker{}, enabled: enabled}
}

// Unlock starts the loop. Only the first call has any effect.
func (p *Player) Unlock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || p.unlocked {
		return
	}
	p.unlocked = true

	ctrl, err := loop(sampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("audio: build track")
		return
	}
	if err := p.out.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		log.Warn().Err(err).Msg("audio: speaker unavailable")
		return
	}
	p.ctrl = ctrl
	p.out.Play(ctrl)
	log.Debug().Msg("audio: loop started")
}

// Playing reports whether the loop is currently audible.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return false
	}
	p.out.Lock()
	defer p.out.Unlock()
	return !p.ctrl.Paused
}

// Toggle mutes or resumes the loop.
func (p *Player) Toggle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	p.out.Lock()
	p.ctrl.Paused = !p.ctrl.Paused
	p.out.Unlock()
}

// Close stops playback and releases the speaker.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	p.out.Close()
	p.ctrl = nil
}

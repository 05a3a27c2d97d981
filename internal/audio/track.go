package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
)

const sampleRate = beep.SampleRate(44100)

// arpeggio is the background phrase, in Hz. It ends on the tonic so the loop
// point is seamless.
var arpeggio = []float64{
	261.63, 329.63, 392.00, 493.88, // Cmaj7
	440.00, 392.00, 329.63, 293.66,
	349.23, 440.00, 523.25, 440.00, // Fmaj
	392.00, 329.63, 293.66, 261.63,
}

const (
	noteLength = 180 * time.Millisecond
	attack     = 10 * time.Millisecond
	release    = 120 * time.Millisecond
)

// envelope fades a note in and out to avoid clicks at note boundaries.
type envelope struct {
	s       beep.Streamer
	pos     int
	total   int
	attack  int
	release int
}

func newEnvelope(s beep.Streamer, rate beep.SampleRate) *envelope {
	return &envelope{
		s:       s,
		total:   rate.N(noteLength),
		attack:  rate.N(attack),
		release: rate.N(release),
	}
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	if e.pos >= e.total {
		return 0, false
	}
	if rem := e.total - e.pos; len(samples) > rem {
		samples = samples[:rem]
	}
	n, ok := e.s.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		if e.pos < e.attack {
			vol = float64(e.pos) / float64(e.attack)
		}
		if left := e.total - e.pos; left < e.release {
			vol = math.Min(vol, float64(left)/float64(e.release))
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.pos++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.s.Err() }

// Track renders one pass of the arpeggio into memory. The result can be
// seeked, so beep.Loop can repeat it forever.
func Track(rate beep.SampleRate) (beep.StreamSeeker, error) {
	notes := make([]beep.Streamer, 0, len(arpeggio))
	for _, hz := range arpeggio {
		tone, err := generators.SineTone(rate, hz)
		if err != nil {
			return nil, err
		}
		notes = append(notes, newEnvelope(tone, rate))
	}
	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Seq(notes...))
	return buf.Streamer(0, buf.Len()), nil
}

// loop wraps the track in an endless, quiet, pausable stream.
func loop(rate beep.SampleRate) (*beep.Ctrl, error) {
	track, err := Track(rate)
	if err != nil {
		return nil, err
	}
	quiet := &effects.Volume{Streamer: beep.Loop(-1, track), Base: 2, Volume: -3}
	return &beep.Ctrl{Streamer: quiet}, nil
}

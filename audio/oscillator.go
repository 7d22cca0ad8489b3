package audio

import (
	"math"

	"github.com/mrdg/chipvibe/song"
)

const (
	twoPi = 2 * math.Pi

	// noiseDivider is the clock divider applied to the noise frequency, emulating the
	// NES noise channel timer.
	noiseDivider = 16

	noiseLongTap  = 1
	noiseShortTap = 6
)

var defaultWavetable = song.DefaultWavetable()

// oscillator produces one band-limited waveform. Phase is normalized to [0, 1).
type oscillator struct {
	wave  song.Waveform
	phase float64
	delta float64
	duty  float64
	table []float64

	// triangle integrator
	tri     float64
	triLeak float64
	triNorm float64

	// noise
	lfsr        uint16
	tap         uint
	noisePeriod int
	noiseCount  int
}

// start prepares the oscillator for a new note at freq Hz.
func (o *oscillator) start(preset *song.Oscillator, freq, sampleRate float64) {
	o.wave = preset.Wave
	o.phase = preset.Phase
	if o.phase < 0 || o.phase >= 1 {
		o.phase = 0
	}
	o.delta = freq / sampleRate
	if o.delta > 0.5 {
		o.delta = 0.5
	}
	o.duty = clamp(preset.Duty, minDuty, maxDuty)
	o.startTriangle()
	o.table = preset.Wavetable
	if len(o.table) != song.WavetableSize {
		o.table = defaultWavetable
	}

	o.lfsr = preset.Seed & 0x7fff
	if o.lfsr == 0 {
		o.lfsr = 1
	}
	o.tap = noiseLongTap
	if preset.Noise == song.NoiseShort {
		o.tap = noiseShortTap
	}
	o.noisePeriod = int(sampleRate / (freq * noiseDivider))
	if o.noisePeriod < 1 {
		o.noisePeriod = 1
	}
	o.noiseCount = 0
}

func (o *oscillator) next() float64 {
	var out float64
	switch o.wave {
	case song.Sine:
		out = math.Sin(twoPi * o.phase)
	case song.Saw:
		out = saw(o.phase, o.delta)
	case song.Pulse:
		out = pulse(o.phase, o.delta, o.duty)
	case song.Triangle:
		o.tri = o.triLeak*o.tri + 4*o.delta*pulse(o.phase, o.delta, 0.5)
		out = clamp(o.tri*o.triNorm, -1, 1)
	case song.Noise:
		out = o.noise()
	case song.Custom:
		out = o.lookup()
	}
	o.phase += o.delta
	if o.phase >= 1 {
		o.phase -= 1
	}
	return out
}

// startTriangle sets up the leaky integrator. The integrator settles at a peak
// amplitude below one which depends on the frequency, so the output is normalized by
// it and the integrator starts at its trough.
func (o *oscillator) startTriangle() {
	o.triLeak = math.Max(0, 1-o.delta*math.Pi)
	r := math.Pow(o.triLeak, 0.5/o.delta) // decay over half a period
	peak := 4 * o.delta / (1 - o.triLeak) * (1 - r) / (1 + r)
	o.triNorm = 1 / peak
	o.tri = -peak
}

func (o *oscillator) noise() float64 {
	out := 1.0
	if o.lfsr&1 == 1 {
		out = -1
	}
	o.noiseCount++
	if o.noiseCount >= o.noisePeriod {
		o.noiseCount = 0
		o.lfsr = lfsrStep(o.lfsr, o.tap)
	}
	return out
}

func (o *oscillator) lookup() float64 {
	pos := o.phase * song.WavetableSize
	i := int(pos)
	frac := pos - float64(i)
	a := o.table[i&(song.WavetableSize-1)]
	b := o.table[(i+1)&(song.WavetableSize-1)]
	return a + (b-a)*frac
}

// lfsrStep advances a 15 bit NES noise register. The feedback bit is the xor of
// bit 0 and the tap bit, shifted in at bit 14.
func lfsrStep(r uint16, tap uint) uint16 {
	fb := (r ^ (r >> tap)) & 1
	return (r >> 1) | (fb << 14)
}

// polyBLEP returns the band-limited step residual for a discontinuity at phase 0.
func polyBLEP(phase, delta float64) float64 {
	switch {
	case phase < delta:
		t := phase / delta
		return 2*t - t*t - 1
	case phase > 1-delta:
		t := (phase - 1) / delta
		return t*t + 2*t + 1
	}
	return 0
}

func saw(phase, delta float64) float64 {
	return 2*phase - 1 - polyBLEP(phase, delta)
}

// pulse is the difference of two saws offset by the duty cycle. It is +1 for
// phase < duty and -1 after.
func pulse(phase, delta, duty float64) float64 {
	shifted := phase - duty
	if shifted < 0 {
		shifted += 1
	}
	return saw(shifted, delta) - saw(phase, delta) + 2*duty - 1
}

func midiToFreq(note int) float64 {
	return math.Pow(2, float64(note-69)/12.0) * 440
}

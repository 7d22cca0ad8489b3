package audio

import "github.com/mrdg/chipvibe/song"

type envelopeState int

const (
	envIdle envelopeState = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

func (s envelopeState) String() string {
	switch s {
	case envIdle:
		return "idle"
	case envAttack:
		return "attack"
	case envDecay:
		return "decay"
	case envSustain:
		return "sustain"
	case envRelease:
		return "release"
	}
	return "unknown"
}

// envelope is a linear ADSR. Stage times are in seconds.
type envelope struct {
	attack  float64
	decay   float64
	sustain float64
	release float64

	attackRate  float64
	decayRate   float64
	releaseRate float64

	level float64
	state envelopeState
}

func (e *envelope) set(p *song.Envelope) {
	e.attack = clamp(p.Attack, 0, maxEnvTime)
	e.decay = clamp(p.Decay, 0, maxEnvTime)
	e.sustain = clamp(p.Sustain, 0, 1)
	e.release = clamp(p.Release, 0, maxEnvTime)
}

func (e *envelope) value() float64 {
	switch e.state {
	case envAttack:
		e.level += e.attackRate
		if e.level >= 1 {
			e.level = 1
			e.state = envDecay
			if e.decay == 0 {
				e.level = e.sustain
				e.state = envSustain
			}
		}
	case envDecay:
		e.level -= e.decayRate
		if e.level <= e.sustain {
			e.level = e.sustain
			e.state = envSustain
		}
	case envSustain:
		e.level = e.sustain
	case envRelease:
		e.level -= e.releaseRate
		if e.level <= 0 {
			e.level = 0
			e.state = envIdle
		}
	}
	return e.level
}

// startAttack restarts the envelope from zero. Zero length stages are skipped so the
// first sample is already at the level of the first stage with a duration.
func (e *envelope) startAttack(sampleRate float64) {
	e.level = 0
	e.state = envAttack
	e.decayRate = 0
	if e.decay > 0 {
		e.decayRate = (1 - e.sustain) / (e.decay * sampleRate)
	}
	if e.attack > 0 {
		e.attackRate = 1.0 / (e.attack * sampleRate)
		return
	}
	e.level = 1
	e.state = envDecay
	if e.decay == 0 || e.sustain >= 1 {
		e.level = e.sustain
		e.state = envSustain
	}
}

func (e *envelope) startRelease(sampleRate float64) {
	if e.state == envIdle {
		return
	}
	if e.release == 0 || e.level <= 0 {
		e.level = 0
		e.state = envIdle
		return
	}
	e.state = envRelease
	e.releaseRate = e.level / (e.release * sampleRate)
}

// kill silences the envelope at once.
func (e *envelope) kill() {
	e.level = 0
	e.state = envIdle
}

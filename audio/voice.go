package audio

import "github.com/mrdg/chipvibe/song"

// voice plays a single note: one oscillator shaped by one envelope.
type voice struct {
	osc      oscillator
	env      envelope
	velocity float64
	pitch    int

	// id is the note id that started the voice. gate is cleared by note-off, so at most
	// one gated voice carries a given id.
	id   uint32
	gate bool

	// started is the render clock at note-on; voices with smaller values are older.
	started uint64
}

func (v *voice) active() bool { return v.env.state != envIdle }

func (v *voice) noteOn(preset *song.Channel, pitch int, velocity float64, id uint32, now uint64, sampleRate float64) {
	pitch = clampInt(pitch, 0, 127)
	v.pitch = pitch
	v.velocity = clamp(velocity, 0, 1)
	v.id = id
	v.gate = true
	v.started = now
	v.osc.start(&preset.Oscillator, midiToFreq(pitch), sampleRate)
	v.env.set(&preset.Envelope)
	v.env.startAttack(sampleRate)
}

func (v *voice) noteOff(sampleRate float64) {
	v.gate = false
	v.env.startRelease(sampleRate)
}

func (v *voice) kill() {
	v.gate = false
	v.env.kill()
}

// process adds the voice output to buf.
func (v *voice) process(buf []float64) {
	for n := range buf {
		if v.env.state == envIdle {
			v.gate = false
			return
		}
		buf[n] += v.osc.next() * v.env.value() * v.velocity
	}
}

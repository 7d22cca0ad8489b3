package audio

import (
	"math"

	"github.com/mrdg/chipvibe/song"
	"github.com/viterin/vek"
)

const (
	voicesPerChannel = 8
	numChannels      = song.NumChannels
	numVoices        = voicesPerChannel * numChannels
)

// channel is the audio thread's copy of one channel: preset, voice pool and effects.
type channel struct {
	preset song.Channel
	voices [voicesPerChannel]voice
	fx     *chain
	buf    []float64

	left, right float64
}

// mixer owns every voice and sums the channels into the stereo bus.
type mixer struct {
	sampleRate float64
	channels   [numChannels]channel

	master     song.Master
	masterL    *chain
	masterR    *chain
	masterGain float64
	busL, busR []float64
	tmp        []float64
}

func newMixer(sampleRate float64, blockSize int) *mixer {
	m := &mixer{
		sampleRate: sampleRate,
		masterL:    newChain(sampleRate),
		masterR:    newChain(sampleRate),
		busL:       make([]float64, blockSize),
		busR:       make([]float64, blockSize),
		tmp:        make([]float64, blockSize),
	}
	for i := range m.channels {
		c := &m.channels[i]
		c.fx = newChain(sampleRate)
		c.buf = make([]float64, blockSize)
		m.setPreset(i, song.DefaultChannel(i))
	}
	m.setMaster(song.Master{})
	return m
}

// setPreset replaces the channel preset. Sounding voices keep playing.
func (m *mixer) setPreset(i int, preset song.Channel) {
	c := &m.channels[i]
	c.preset = preset
	c.fx.configure(&c.preset.Effects)
	c.updateGain()
}

func (m *mixer) setMaster(master song.Master) {
	m.master = master
	m.masterL.configure(&m.master.Effects)
	m.masterR.configure(&m.master.Effects)
	m.updateMasterGain()
}

// Equal power panning puts a centred channel at -3dB; the master bus makes up for it.
const panCompensation = math.Sqrt2

func (m *mixer) updateMasterGain() {
	m.masterGain = dbToGain(clamp(m.master.Gain, minGain, maxGain)) * panCompensation
}

func (c *channel) updateGain() {
	gain := dbToGain(clamp(c.preset.Mixer.Gain, minGain, maxGain))
	angle := (clamp(c.preset.Mixer.Pan, -1, 1) + 1) * math.Pi / 4
	c.left = gain * math.Cos(angle)
	c.right = gain * math.Sin(angle)
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20.0)
}

func (m *mixer) setParam(ch int, p Param, v float64) {
	if ch == MasterChannel {
		applyEffectParam(&m.master.Effects, p, v)
		m.masterL.configure(&m.master.Effects)
		m.masterR.configure(&m.master.Effects)
		return
	}
	c := &m.channels[ch]
	applyParam(&c.preset, p, v)
	if p >= firstEffectParam {
		c.fx.configure(&c.preset.Effects)
	}
}

func (m *mixer) setMixer(ch int, f MixerField, v float64) {
	if ch == MasterChannel {
		m.master.Gain = clamp(v, minGain, maxGain)
		m.updateMasterGain()
		return
	}
	c := &m.channels[ch]
	applyMixer(&c.preset.Mixer, f, v)
	c.updateGain()
}

func (m *mixer) noteOn(ch, pitch int, velocity float64, id uint32, now uint64) {
	for i := range m.channels {
		if i == ch {
			continue
		}
		if v := m.channels[i].gated(id); v != nil {
			v.noteOff(m.sampleRate)
		}
	}
	c := &m.channels[ch]
	c.allocate(id).noteOn(&c.preset, pitch, velocity, id, now, m.sampleRate)
}

// noteOff releases the voice carrying id. Unknown ids are ignored.
func (m *mixer) noteOff(id uint32) {
	for i := range m.channels {
		if v := m.channels[i].gated(id); v != nil {
			v.noteOff(m.sampleRate)
			return
		}
	}
}

func (m *mixer) releaseAll() {
	for i := range m.channels {
		for j := range m.channels[i].voices {
			m.channels[i].voices[j].noteOff(m.sampleRate)
		}
	}
}

// killAll silences every voice and flushes effect tails.
func (m *mixer) killAll() {
	for i := range m.channels {
		for j := range m.channels[i].voices {
			m.channels[i].voices[j].kill()
		}
		m.channels[i].fx.reset()
	}
	m.masterL.reset()
	m.masterR.reset()
}

func (m *mixer) activeVoices() int {
	var n int
	for i := range m.channels {
		for j := range m.channels[i].voices {
			if m.channels[i].voices[j].active() {
				n++
			}
		}
	}
	return n
}

func (c *channel) gated(id uint32) *voice {
	for j := range c.voices {
		v := &c.voices[j]
		if v.gate && v.id == id && v.active() {
			return v
		}
	}
	return nil
}

// allocate picks the voice for a new note: the voice already playing id, voice 0 for
// mono channels, an idle voice, the oldest releasing voice, or else the oldest voice.
func (c *channel) allocate(id uint32) *voice {
	if v := c.gated(id); v != nil {
		return v
	}
	if c.preset.Mono {
		return &c.voices[0]
	}
	var released, oldest *voice
	for j := range c.voices {
		v := &c.voices[j]
		if !v.active() {
			return v
		}
		if v.env.state == envRelease && (released == nil || v.started < released.started) {
			released = v
		}
		if oldest == nil || v.started < oldest.started {
			oldest = v
		}
	}
	if released != nil {
		return released
	}
	return oldest
}

func (m *mixer) clearBus(n int) {
	clear(m.busL[:n])
	clear(m.busR[:n])
}

// process renders all channels for frames [from, to) of the current block and adds
// them to the bus. Muted channels are rendered but not heard; if any channel is
// soloed only soloed channels are heard.
func (m *mixer) process(from, to int) {
	if from >= to {
		return
	}
	n := to - from
	busL, busR := m.busL[from:to], m.busR[from:to]
	tmp := m.tmp[:n]

	solo := false
	for i := range m.channels {
		if m.channels[i].preset.Mixer.Solo {
			solo = true
			break
		}
	}
	for i := range m.channels {
		c := &m.channels[i]
		buf := c.buf[:n]
		clear(buf)
		for j := range c.voices {
			if c.voices[j].active() {
				c.voices[j].process(buf)
			}
		}
		c.fx.process(buf)
		if solo && !c.preset.Mixer.Solo || !solo && c.preset.Mixer.Mute {
			continue
		}
		vek.Add_Inplace(busL, vek.MulNumber_Into(tmp, buf, c.left))
		vek.Add_Inplace(busR, vek.MulNumber_Into(tmp, buf, c.right))
	}
}

// output runs the master chain over the first n bus frames and writes them
// interleaved to out.
func (m *mixer) output(out []float32, n int) {
	busL, busR := m.busL[:n], m.busR[:n]
	m.masterL.process(busL)
	m.masterR.process(busR)
	vek.MulNumber_Inplace(busL, m.masterGain)
	vek.MulNumber_Inplace(busR, m.masterGain)
	for i := 0; i < n; i++ {
		out[2*i] = float32(limit(busL[i]))
		out[2*i+1] = float32(limit(busR[i]))
	}
}

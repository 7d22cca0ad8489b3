package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mrdg/chipvibe/song"
)

// Tag identifies the kind of a Command.
type Tag uint8

const (
	TagTempo        Tag = 0x01
	TagChannelParam Tag = 0x02
	TagMixer        Tag = 0x03
	TagNoteOn       Tag = 0x10
	TagNoteOff      Tag = 0x11
	TagTransport    Tag = 0x20
	TagSeek         Tag = 0x21
)

// CommandSize is the size of an encoded command in bytes.
const CommandSize = 16

// MasterChannel addresses the master bus in channel-param and mixer commands.
const MasterChannel = 0xFF

// sequencerNoteID marks note ids generated by the sequencer.
const sequencerNoteID = 1 << 31

// Command is a fixed-size message from the editor to the audio thread: a tag byte
// followed by 15 bytes of little-endian payload.
type Command [CommandSize]byte

// Param identifies a channel parameter.
type Param uint8

const (
	ParamWave Param = iota
	ParamDuty
	ParamNoise
	ParamSeed
	ParamMono
	ParamPhase
	ParamAttack
	ParamDecay
	ParamSustain
	ParamRelease
	ParamFilterType
	ParamFilterCutoff
	ParamFilterQ
	ParamDrive
	ParamCrushBits
	ParamCrushRate
	ParamDelayTime
	ParamDelayFeedback
	ParamDelayMix
	ParamReverbMix
	ParamReverbDecay
	numParams
)

// firstEffectParam is the first param the master bus accepts.
const firstEffectParam = ParamFilterType

// MixerField identifies a mixer strip control.
type MixerField uint8

const (
	MixGain MixerField = iota
	MixPan
	MixMute
	MixSolo
	numMixerFields
)

// TransportOp is the operation of a transport command.
type TransportOp uint8

const (
	OpPlay TransportOp = iota + 1
	OpStop
	OpLoop
)

func (c Command) Tag() Tag { return Tag(c[0]) }

func (c Command) MarshalBinary() ([]byte, error) {
	return c[:], nil
}

func (c *Command) UnmarshalBinary(data []byte) error {
	if len(data) != CommandSize {
		return fmt.Errorf("command must be %d bytes, got %d", CommandSize, len(data))
	}
	copy(c[:], data)
	return nil
}

func (c Command) String() string {
	switch c.Tag() {
	case TagTempo:
		return fmt.Sprintf("tempo %v", c.f64(1))
	case TagChannelParam:
		return fmt.Sprintf("param ch=%d param=%d %v", c[1], c[2], c.f64(3))
	case TagMixer:
		return fmt.Sprintf("mixer ch=%d field=%d %v", c[1], c[2], c.f64(3))
	case TagNoteOn:
		return fmt.Sprintf("note-on ch=%d pitch=%d vel=%v id=%d", c[1], c[2], c.f32(3), c.u32(7))
	case TagNoteOff:
		return fmt.Sprintf("note-off id=%d", c.u32(1))
	case TagTransport:
		return fmt.Sprintf("transport op=%d", c[1])
	case TagSeek:
		return fmt.Sprintf("seek %v cut=%v", c.f64(1), c[9] != 0)
	}
	return fmt.Sprintf("invalid command %x", c[:])
}

func (c *Command) putF64(off int, v float64) {
	binary.LittleEndian.PutUint64(c[off:], math.Float64bits(v))
}

func (c *Command) putF32(off int, v float32) {
	binary.LittleEndian.PutUint32(c[off:], math.Float32bits(v))
}

func (c *Command) putU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(c[off:], v)
}

func (c Command) f64(off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(c[off:]))
}

func (c Command) f32(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(c[off:]))
}

func (c Command) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(c[off:])
}

func SetTempo(bpm float64) Command {
	c := Command{0: byte(TagTempo)}
	c.putF64(1, bpm)
	return c
}

func SetParam(channel int, p Param, v float64) Command {
	c := Command{0: byte(TagChannelParam), 1: byte(channel), 2: byte(p)}
	c.putF64(3, v)
	return c
}

func SetMixer(channel int, f MixerField, v float64) Command {
	c := Command{0: byte(TagMixer), 1: byte(channel), 2: byte(f)}
	c.putF64(3, v)
	return c
}

func NoteOn(channel, pitch int, velocity float32, id uint32) Command {
	c := Command{0: byte(TagNoteOn), 1: byte(channel), 2: byte(clampInt(pitch, 0, 127))}
	c.putF32(3, velocity)
	c.putU32(7, id)
	return c
}

func NoteOff(id uint32) Command {
	c := Command{0: byte(TagNoteOff)}
	c.putU32(1, id)
	return c
}

func Play() Command { return Command{0: byte(TagTransport), 1: byte(OpPlay)} }

func Stop() Command { return Command{0: byte(TagTransport), 1: byte(OpStop)} }

// SetLoop sets the loop region in beats. A region with end <= start disables looping.
func SetLoop(start, end float32) Command {
	c := Command{0: byte(TagTransport), 1: byte(OpLoop)}
	c.putF32(3, start)
	c.putF32(7, end)
	return c
}

// Seek moves the playhead to beat. With cut, sounding voices are silenced immediately.
func Seek(beat float64, cut bool) Command {
	c := Command{0: byte(TagSeek)}
	c.putF64(1, beat)
	if cut {
		c[9] = 1
	}
	return c
}

// Valid reports whether the audio thread would accept the command.
func (c Command) Valid() bool {
	switch c.Tag() {
	case TagTempo:
		bpm := c.f64(1)
		return finite(bpm) && bpm > 0 && bpm <= 999
	case TagChannelParam:
		p := Param(c[2])
		if p >= numParams || !finite(c.f64(3)) {
			return false
		}
		if c[1] == MasterChannel {
			return p >= firstEffectParam
		}
		return c[1] < song.NumChannels
	case TagMixer:
		if MixerField(c[2]) >= numMixerFields || !finite(c.f64(3)) {
			return false
		}
		if c[1] == MasterChannel {
			return MixerField(c[2]) == MixGain
		}
		return c[1] < song.NumChannels
	case TagNoteOn:
		v := c.f32(3)
		return c[1] < song.NumChannels && v == v && c.u32(7)&sequencerNoteID == 0
	case TagNoteOff:
		return c.u32(1)&sequencerNoteID == 0
	case TagTransport:
		switch TransportOp(c[1]) {
		case OpPlay, OpStop:
			return true
		case OpLoop:
			s, e := float64(c.f32(3)), float64(c.f32(7))
			return finite(s) && finite(e) && s >= 0
		}
	case TagSeek:
		b := c.f64(1)
		return finite(b) && b >= 0
	}
	return false
}

// ApplyTo applies a tempo, loop, channel-param or mixer command to the editor's project
// model. Other commands do not change the project.
func (c Command) ApplyTo(p *song.Project) {
	if !c.Valid() {
		return
	}
	switch c.Tag() {
	case TagTempo:
		p.Tempo = c.f64(1)
	case TagTransport:
		if TransportOp(c[1]) == OpLoop {
			p.Loop = song.Loop{Start: float64(c.f32(3)), End: float64(c.f32(7))}
		}
	case TagChannelParam:
		if c[1] == MasterChannel {
			applyEffectParam(&p.Master.Effects, Param(c[2]), c.f64(3))
			return
		}
		applyParam(&p.Channels[c[1]], Param(c[2]), c.f64(3))
	case TagMixer:
		if c[1] == MasterChannel {
			p.Master.Gain = clamp(c.f64(3), minGain, maxGain)
			return
		}
		applyMixer(&p.Channels[c[1]].Mixer, MixerField(c[2]), c.f64(3))
	}
}

// applyParam writes a parameter into a channel preset. It runs on the audio thread as
// well as the editor thread and must not allocate.
func applyParam(ch *song.Channel, p Param, v float64) {
	osc := &ch.Oscillator
	env := &ch.Envelope
	switch p {
	case ParamWave:
		osc.Wave = song.Waveform(clampInt(int(v), 0, int(song.Custom)))
	case ParamDuty:
		osc.Duty = clamp(v, minDuty, maxDuty)
	case ParamNoise:
		osc.Noise = song.NoiseMode(clampInt(int(v), 0, int(song.NoiseShort)))
	case ParamSeed:
		osc.Seed = uint16(clampInt(int(v), 0, math.MaxUint16))
	case ParamMono:
		ch.Mono = v != 0
	case ParamPhase:
		osc.Phase = clamp(v, 0, 1)
	case ParamAttack:
		env.Attack = clamp(v, 0, maxEnvTime)
	case ParamDecay:
		env.Decay = clamp(v, 0, maxEnvTime)
	case ParamSustain:
		env.Sustain = clamp(v, 0, 1)
	case ParamRelease:
		env.Release = clamp(v, 0, maxEnvTime)
	default:
		applyEffectParam(&ch.Effects, p, v)
	}
}

func applyEffectParam(fx *song.Effects, p Param, v float64) {
	switch p {
	case ParamFilterType:
		fx.Filter.Type = song.FilterType(clampInt(int(v), 0, int(song.BandPass)))
	case ParamFilterCutoff:
		fx.Filter.Cutoff = clamp(v, 0, maxCutoff)
	case ParamFilterQ:
		fx.Filter.Q = clamp(v, 0, maxQ)
	case ParamDrive:
		fx.Drive = clamp(v, 0, maxDrive)
	case ParamCrushBits:
		fx.Crush.Bits = clampInt(int(v), 0, maxCrushBits)
	case ParamCrushRate:
		fx.Crush.Rate = clampInt(int(v), 0, maxCrushRate)
	case ParamDelayTime:
		fx.Delay.Time = clamp(v, 0, maxDelaySeconds)
	case ParamDelayFeedback:
		fx.Delay.Feedback = clamp(v, 0, maxFeedback)
	case ParamDelayMix:
		fx.Delay.Mix = clamp(v, 0, 1)
	case ParamReverbMix:
		fx.Reverb.Mix = clamp(v, 0, 1)
	case ParamReverbDecay:
		fx.Reverb.Decay = clamp(v, 0, maxFeedback)
	}
}

func applyMixer(m *song.Mixer, f MixerField, v float64) {
	switch f {
	case MixGain:
		m.Gain = clamp(v, minGain, maxGain)
	case MixPan:
		m.Pan = clamp(v, -1, 1)
	case MixMute:
		m.Mute = v != 0
	case MixSolo:
		m.Solo = v != 0
	}
}

const (
	minDuty         = 0.05
	maxDuty         = 0.95
	maxEnvTime      = 30
	maxCutoff       = 20000
	maxQ            = 20
	maxDrive        = 50
	maxCrushBits    = 16
	maxCrushRate    = 64
	maxDelaySeconds = 2
	maxFeedback     = 0.98
	minGain         = -96
	maxGain         = 12
)

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

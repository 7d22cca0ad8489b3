package song

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

const (
	// NumChannels is the number of fixed instrument channels.
	NumChannels = 8
	// WavetableSize is the number of samples in a custom channel's wavetable.
	WavetableSize = 256
	// AllChannels is a placement mask that plays every channel of a pattern.
	AllChannels uint8 = 0xFF
)

// ErrMalformed is returned when a project fails validation.
var ErrMalformed = errors.New("malformed project")

// Note is a single scheduled event within a pattern. Start and Duration are in beats.
type Note struct {
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
	Pitch    int     `yaml:"pitch"`
	Velocity float64 `yaml:"velocity"`
	Channel  int     `yaml:"channel"`
}

// Pattern is an ordered sequence of notes with a length in beats.
type Pattern struct {
	ID     int     `yaml:"id"`
	Name   string  `yaml:"name,omitempty"`
	Length float64 `yaml:"length"`
	Notes  []Note  `yaml:"notes"`
}

// AddNote inserts n keeping notes ordered by start.
func (pat *Pattern) AddNote(n Note) {
	i := len(pat.Notes)
	for i > 0 && pat.Notes[i-1].Start > n.Start {
		i--
	}
	pat.Notes = slices.Insert(pat.Notes, i, n)
}

func sortNotes(notes []Note) []Note {
	slices.SortStableFunc(notes, func(a, b Note) int { return cmp.Compare(a.Start, b.Start) })
	return notes
}

// Placement puts a pattern on the timeline.
type Placement struct {
	Start    float64 `yaml:"start"`
	Pattern  int     `yaml:"pattern"`
	Channels uint8   `yaml:"channels"`
}

// Loop is a loop region in beats. The loop is disabled when End <= Start.
type Loop struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

func (l Loop) Enabled() bool { return l.End > l.Start }

type Envelope struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

type Oscillator struct {
	Wave      Waveform  `yaml:"wave"`
	Duty      float64   `yaml:"duty,omitempty"`
	Noise     NoiseMode `yaml:"noise,omitempty"`
	Seed      uint16    `yaml:"seed,omitempty"`
	Phase     float64   `yaml:"phase,omitempty"` // phase a voice restarts from on note-on
	Wavetable []float64 `yaml:"wavetable,omitempty,flow"`
}

type Filter struct {
	Type   FilterType `yaml:"type"`
	Cutoff float64    `yaml:"cutoff,omitempty"`
	Q      float64    `yaml:"q,omitempty"`
}

type Delay struct {
	Time     float64 `yaml:"time"`
	Feedback float64 `yaml:"feedback"`
	Mix      float64 `yaml:"mix"`
}

type Reverb struct {
	Mix   float64 `yaml:"mix"`
	Decay float64 `yaml:"decay"`
}

type Crush struct {
	Bits int `yaml:"bits"`
	Rate int `yaml:"rate"`
}

// Effects is a fixed-order effect chain: filter, drive, crush, delay, reverb.
// Each effect is bypassed at its zero value.
type Effects struct {
	Filter Filter  `yaml:"filter"`
	Drive  float64 `yaml:"drive"`
	Crush  Crush   `yaml:"crush"`
	Delay  Delay   `yaml:"delay"`
	Reverb Reverb  `yaml:"reverb"`
}

// Mixer is the mixer strip of a channel. Gain is in dB, Pan in [-1, +1].
type Mixer struct {
	Gain float64 `yaml:"gain"`
	Pan  float64 `yaml:"pan"`
	Mute bool    `yaml:"mute,omitempty"`
	Solo bool    `yaml:"solo,omitempty"`
}

// Channel is an instrument slot preset.
type Channel struct {
	Name       string     `yaml:"name"`
	Mono       bool       `yaml:"mono,omitempty"`
	Oscillator Oscillator `yaml:"oscillator"`
	Envelope   Envelope   `yaml:"envelope"`
	Effects    Effects    `yaml:"effects"`
	Mixer      Mixer      `yaml:"mixer"`
}

// Master holds the master bus settings.
type Master struct {
	Gain    float64 `yaml:"gain"`
	Effects Effects `yaml:"effects"`
}

// Project is the complete song document.
type Project struct {
	Tempo    float64              `yaml:"tempo"`
	Loop     Loop                 `yaml:"loop"`
	Master   Master               `yaml:"master"`
	Channels [NumChannels]Channel `yaml:"channels"`
	Patterns []Pattern            `yaml:"patterns"`
	Timeline []Placement          `yaml:"timeline"`
}

var channelNames = [NumChannels]string{"pulse1", "pulse2", "triangle", "saw", "sine", "noise", "pulse3", "custom"}
var channelWaves = [NumChannels]Waveform{Pulse, Pulse, Triangle, Saw, Sine, Noise, Pulse, Custom}

// ChannelName returns the conventional name of channel i.
func ChannelName(i int) string {
	if i < 0 || i >= NumChannels {
		return fmt.Sprintf("ch%d", i)
	}
	return channelNames[i]
}

// ChannelIndex looks up a channel by its conventional name.
func ChannelIndex(name string) (int, bool) {
	for i, n := range channelNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// DefaultChannel returns the default preset for channel i.
func DefaultChannel(i int) Channel {
	ch := Channel{
		Name: ChannelName(i),
		Oscillator: Oscillator{
			Wave: channelWaves[i%NumChannels],
			Duty: 0.5,
		},
		Envelope: Envelope{Sustain: 1, Release: 0.02},
	}
	switch ch.Oscillator.Wave {
	case Noise:
		ch.Oscillator.Seed = 1
	case Custom:
		ch.Oscillator.Wavetable = DefaultWavetable()
	}
	return ch
}

// New returns an empty project at 120 BPM with default channel presets.
func New() *Project {
	p := &Project{Tempo: 120}
	for i := range p.Channels {
		p.Channels[i] = DefaultChannel(i)
	}
	return p
}

// DefaultWavetable is a sine quantized to steps of 1/8.
func DefaultWavetable() []float64 {
	t := make([]float64, WavetableSize)
	for i := range t {
		v := math.Round(8*math.Sin(2*math.Pi*float64(i)/WavetableSize)) / 8
		if v == 0 {
			v = 0 // no negative zeros
		}
		t[i] = max(-1, min(1, v))
	}
	return t
}

// Pattern returns the pattern with the given id.
func (p *Project) Pattern(id int) (*Pattern, bool) {
	for i := range p.Patterns {
		if p.Patterns[i].ID == id {
			return &p.Patterns[i], true
		}
	}
	return nil, false
}

// NextPatternID returns an unused pattern id.
func (p *Project) NextPatternID() int {
	id := 1
	for _, pat := range p.Patterns {
		if pat.ID >= id {
			id = pat.ID + 1
		}
	}
	return id
}

// Clone returns a deep copy of the project. The editor mutates clones and publishes them.
func (p *Project) Clone() *Project {
	c := *p
	for i := range c.Channels {
		if wt := p.Channels[i].Oscillator.Wavetable; wt != nil {
			c.Channels[i].Oscillator.Wavetable = append([]float64(nil), wt...)
		}
	}
	c.Patterns = make([]Pattern, len(p.Patterns))
	for i, pat := range p.Patterns {
		pat.Notes = append([]Note(nil), pat.Notes...)
		c.Patterns[i] = pat
	}
	c.Timeline = append([]Placement(nil), p.Timeline...)
	return &c
}

// Validate reports whether the project can be published to the engine. Numeric fields that
// are merely out of range are clamped during playback; structural problems are errors.
func (p *Project) Validate() error {
	if !finite(p.Tempo) || p.Tempo <= 0 || p.Tempo > 999 {
		return fmt.Errorf("%w: tempo %v out of range", ErrMalformed, p.Tempo)
	}
	if !finite(p.Loop.Start) || !finite(p.Loop.End) {
		return fmt.Errorf("%w: loop region is not finite", ErrMalformed)
	}
	if p.Loop.Enabled() && p.Loop.Start < 0 {
		return fmt.Errorf("%w: loop starts before the song", ErrMalformed)
	}
	if err := validateEffects("master", p.Master.Effects); err != nil {
		return err
	}
	for i, ch := range p.Channels {
		if err := validateChannel(i, ch); err != nil {
			return err
		}
	}
	ids := make(map[int]bool, len(p.Patterns))
	for _, pat := range p.Patterns {
		if ids[pat.ID] {
			return fmt.Errorf("%w: duplicate pattern id %d", ErrMalformed, pat.ID)
		}
		ids[pat.ID] = true
		if !finite(pat.Length) || pat.Length <= 0 {
			return fmt.Errorf("%w: pattern %d has length %v", ErrMalformed, pat.ID, pat.Length)
		}
		for n, note := range pat.Notes {
			if !finite(note.Start) || !finite(note.Duration) || !finite(note.Velocity) {
				return fmt.Errorf("%w: pattern %d note %d is not finite", ErrMalformed, pat.ID, n)
			}
			if note.Start < 0 || note.Start >= pat.Length {
				return fmt.Errorf("%w: pattern %d note %d starts outside the pattern", ErrMalformed, pat.ID, n)
			}
			if note.Channel < 0 || note.Channel >= NumChannels {
				return fmt.Errorf("%w: pattern %d note %d has channel %d", ErrMalformed, pat.ID, n, note.Channel)
			}
		}
	}
	for i, pl := range p.Timeline {
		if !finite(pl.Start) || pl.Start < 0 {
			return fmt.Errorf("%w: timeline entry %d starts at %v", ErrMalformed, i, pl.Start)
		}
		if !ids[pl.Pattern] {
			return fmt.Errorf("%w: timeline entry %d references unknown pattern %d", ErrMalformed, i, pl.Pattern)
		}
	}
	return nil
}

func validateChannel(i int, ch Channel) error {
	osc := ch.Oscillator
	if !osc.Wave.Valid() {
		return fmt.Errorf("%w: channel %d has unknown waveform %d", ErrMalformed, i, osc.Wave)
	}
	if !osc.Noise.Valid() {
		return fmt.Errorf("%w: channel %d has unknown noise mode %d", ErrMalformed, i, osc.Noise)
	}
	if osc.Wavetable != nil && len(osc.Wavetable) != WavetableSize {
		return fmt.Errorf("%w: channel %d wavetable has %d samples, want %d",
			ErrMalformed, i, len(osc.Wavetable), WavetableSize)
	}
	for _, v := range append([]float64{osc.Duty, osc.Phase}, osc.Wavetable...) {
		if !finite(v) {
			return fmt.Errorf("%w: channel %d oscillator is not finite", ErrMalformed, i)
		}
	}
	env := ch.Envelope
	for _, v := range []float64{env.Attack, env.Decay, env.Sustain, env.Release} {
		if !finite(v) {
			return fmt.Errorf("%w: channel %d envelope is not finite", ErrMalformed, i)
		}
	}
	for _, v := range []float64{ch.Mixer.Gain, ch.Mixer.Pan} {
		if !finite(v) {
			return fmt.Errorf("%w: channel %d mixer is not finite", ErrMalformed, i)
		}
	}
	return validateEffects(ChannelName(i), ch.Effects)
}

func validateEffects(name string, fx Effects) error {
	if !fx.Filter.Type.Valid() {
		return fmt.Errorf("%w: %s has unknown filter type %d", ErrMalformed, name, fx.Filter.Type)
	}
	for _, v := range []float64{fx.Filter.Cutoff, fx.Filter.Q, fx.Drive, fx.Delay.Time,
		fx.Delay.Feedback, fx.Delay.Mix, fx.Reverb.Mix, fx.Reverb.Decay} {
		if !finite(v) {
			return fmt.Errorf("%w: %s effects are not finite", ErrMalformed, name)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

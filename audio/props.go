package audio

import (
	"fmt"
	"math"
	"slices"

	"github.com/mrdg/chipvibe/song"
)

// Props is the editor side view of a channel's (or the master bus') parameters. Set
// validates a value, encodes it as a command and hands it to send; the last value is
// kept so Get never has to ask the audio thread.
type Props struct {
	send       func(Command) error
	properties map[string]interface{}
	setters    map[string]setter
	commands   map[string]func(float64) Command
}

// setter validates a property value and returns the command payload and the value to
// remember.
type setter func(val interface{}) (float64, interface{}, error)

func newProps(send func(Command) error) *Props {
	return &Props{
		send:       send,
		properties: make(map[string]interface{}),
		setters:    make(map[string]setter),
		commands:   make(map[string]func(float64) Command),
	}
}

// NewChannelProps returns the properties of channel ch initialized from preset.
func NewChannelProps(ch int, preset song.Channel, send func(Command) error) *Props {
	p := newProps(send)
	param := func(prm Param) func(float64) Command {
		return func(v float64) Command { return SetParam(ch, prm, v) }
	}
	osc, env := preset.Oscillator, preset.Envelope
	p.MustRegister("wave", param(ParamWave), setWaveform, osc.Wave.String())
	p.MustRegister("duty", param(ParamDuty), setFloat64(minDuty, maxDuty), clamp(osc.Duty, minDuty, maxDuty))
	p.MustRegister("noise", param(ParamNoise), setNoiseMode, osc.Noise.String())
	p.MustRegister("seed", param(ParamSeed), setInt(0, 0x7fff), int(osc.Seed))
	p.MustRegister("mono", param(ParamMono), setBool, preset.Mono)
	p.MustRegister("phase", param(ParamPhase), setFloat64(0, 1), clamp(osc.Phase, 0, 1))
	p.MustRegister("env.attack", param(ParamAttack), setEnvParam, clamp(env.Attack, 0, maxEnvTime))
	p.MustRegister("env.decay", param(ParamDecay), setEnvParam, clamp(env.Decay, 0, maxEnvTime))
	p.MustRegister("env.sustain", param(ParamSustain), setFloat64(0, 1), clamp(env.Sustain, 0, 1))
	p.MustRegister("env.release", param(ParamRelease), setEnvParam, clamp(env.Release, 0, maxEnvTime))
	p.registerEffects(ch, preset.Effects)

	mixer := func(f MixerField) func(float64) Command {
		return func(v float64) Command { return SetMixer(ch, f, v) }
	}
	p.MustRegister("gain", mixer(MixGain), setLevel, clamp(preset.Mixer.Gain, minGain, maxGain))
	p.MustRegister("pan", mixer(MixPan), setFloat64(-1, 1), clamp(preset.Mixer.Pan, -1, 1))
	p.MustRegister("mute", mixer(MixMute), setBool, preset.Mixer.Mute)
	p.MustRegister("solo", mixer(MixSolo), setBool, preset.Mixer.Solo)
	return p
}

// NewMasterProps returns the properties of the master bus.
func NewMasterProps(master song.Master, send func(Command) error) *Props {
	p := newProps(send)
	p.registerEffects(MasterChannel, master.Effects)
	gain := func(v float64) Command { return SetMixer(MasterChannel, MixGain, v) }
	p.MustRegister("gain", gain, setLevel, clamp(master.Gain, minGain, maxGain))
	return p
}

func (p *Props) registerEffects(ch int, fx song.Effects) {
	param := func(prm Param) func(float64) Command {
		return func(v float64) Command { return SetParam(ch, prm, v) }
	}
	p.MustRegister("filter.type", param(ParamFilterType), setFilterType, fx.Filter.Type.String())
	p.MustRegister("filter.cutoff", param(ParamFilterCutoff), setFloat64(0, maxCutoff), clamp(fx.Filter.Cutoff, 0, maxCutoff))
	p.MustRegister("filter.q", param(ParamFilterQ), setFloat64(0, maxQ), clamp(fx.Filter.Q, 0, maxQ))
	p.MustRegister("drive", param(ParamDrive), setFloat64(0, maxDrive), clamp(fx.Drive, 0, maxDrive))
	p.MustRegister("crush.bits", param(ParamCrushBits), setInt(0, maxCrushBits), clampInt(fx.Crush.Bits, 0, maxCrushBits))
	p.MustRegister("crush.rate", param(ParamCrushRate), setInt(0, maxCrushRate), clampInt(fx.Crush.Rate, 0, maxCrushRate))
	p.MustRegister("delay.time", param(ParamDelayTime), setFloat64(0, maxDelaySeconds), clamp(fx.Delay.Time, 0, maxDelaySeconds))
	p.MustRegister("delay.feedback", param(ParamDelayFeedback), setFloat64(0, maxFeedback), clamp(fx.Delay.Feedback, 0, maxFeedback))
	p.MustRegister("delay.mix", param(ParamDelayMix), setFloat64(0, 1), clamp(fx.Delay.Mix, 0, 1))
	p.MustRegister("reverb.mix", param(ParamReverbMix), setFloat64(0, 1), clamp(fx.Reverb.Mix, 0, 1))
	p.MustRegister("reverb.decay", param(ParamReverbDecay), setFloat64(0, maxFeedback), clamp(fx.Reverb.Decay, 0, maxFeedback))
}

// Set updates the property with value. The key has to be registered first using Register.
func (p *Props) Set(key string, value interface{}) error {
	set, ok := p.setters[key]
	if !ok {
		return fmt.Errorf("unknown property %s", key)
	}
	v, stored, err := set(value)
	if err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	if err := p.send(p.commands[key](v)); err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	p.properties[key] = stored
	return nil
}

func (p *Props) Get(key string) (interface{}, error) {
	prop, ok := p.properties[key]
	if !ok {
		return nil, fmt.Errorf("unknown property %s", key)
	}
	return prop, nil
}

// Keys returns the registered property names in order.
func (p *Props) Keys() []string {
	keys := make([]string, 0, len(p.properties))
	for k := range p.properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Register adds a new property with an initial value. The initial value is not sent.
func (p *Props) Register(key string, cmd func(float64) Command, set setter, init interface{}) error {
	_, stored, err := set(init)
	if err != nil {
		return fmt.Errorf("register property %s: %w", key, err)
	}
	p.properties[key] = stored
	p.setters[key] = set
	p.commands[key] = cmd
	return nil
}

func (p *Props) MustRegister(key string, cmd func(float64) Command, set setter, init interface{}) {
	if err := p.Register(key, cmd, set, init); err != nil {
		panic(err)
	}
}

var (
	setEnvParam = setFloat64(0, maxEnvTime)
	setLevel    = setFloat64(minGain, maxGain)
)

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func setFloat64(min, max float64) setter {
	return func(v interface{}) (float64, interface{}, error) {
		f, ok := toFloat64(v)
		if !ok {
			return 0, nil, fmt.Errorf("value is not a float64: %v", v)
		}
		if math.IsNaN(f) || f < min || f > max {
			return 0, nil, fmt.Errorf("property value is not in valid range %v - %v: %v", min, max, f)
		}
		return f, f, nil
	}
}

func setInt(min, max int) setter {
	return func(v interface{}) (float64, interface{}, error) {
		f, ok := toFloat64(v)
		if !ok || f != math.Trunc(f) {
			return 0, nil, fmt.Errorf("value is not an int: %v", v)
		}
		n := int(f)
		if n < min || n > max {
			return 0, nil, fmt.Errorf("property value is not in valid range %v - %v: %v", min, max, n)
		}
		return f, n, nil
	}
}

func setBool(v interface{}) (float64, interface{}, error) {
	switch b := v.(type) {
	case bool:
		if b {
			return 1, true, nil
		}
		return 0, false, nil
	case string:
		switch b {
		case "on", "true":
			return 1, true, nil
		case "off", "false":
			return 0, false, nil
		}
	}
	if f, ok := toFloat64(v); ok && (f == 0 || f == 1) {
		return f, f == 1, nil
	}
	return 0, nil, fmt.Errorf("value is not a bool: %v", v)
}

func setWaveform(v interface{}) (float64, interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil, fmt.Errorf("value is not a string: %v", v)
	}
	w, err := song.ParseWaveform(s)
	if err != nil {
		return 0, nil, err
	}
	return float64(w), w.String(), nil
}

func setNoiseMode(v interface{}) (float64, interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil, fmt.Errorf("value is not a string: %v", v)
	}
	m, err := song.ParseNoiseMode(s)
	if err != nil {
		return 0, nil, err
	}
	return float64(m), m.String(), nil
}

func setFilterType(v interface{}) (float64, interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil, fmt.Errorf("value is not a string: %v", v)
	}
	f, err := song.ParseFilterType(s)
	if err != nil {
		return 0, nil, err
	}
	return float64(f), f.String(), nil
}

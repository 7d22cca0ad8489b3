package song

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Waveform is the oscillator kind of a channel.
type Waveform uint8

const (
	Pulse Waveform = iota
	Triangle
	Saw
	Sine
	Noise
	Custom
	numWaveforms
)

var waveformNames = [numWaveforms]string{"pulse", "triangle", "saw", "sine", "noise", "custom"}

func (w Waveform) Valid() bool { return w < numWaveforms }

func (w Waveform) String() string {
	if !w.Valid() {
		return fmt.Sprintf("waveform(%d)", uint8(w))
	}
	return waveformNames[w]
}

func ParseWaveform(s string) (Waveform, error) {
	for i, name := range waveformNames {
		if name == s {
			return Waveform(i), nil
		}
	}
	return 0, fmt.Errorf("not a valid waveform: %v", s)
}

func (w Waveform) MarshalYAML() (interface{}, error) { return w.String(), nil }

func (w *Waveform) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseWaveform(n.Value)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// NoiseMode selects the LFSR length of a noise channel.
type NoiseMode uint8

const (
	NoiseLong  NoiseMode = iota // 15-bit, taps 0 and 1
	NoiseShort                  // 7-bit period, taps 0 and 6
	numNoiseModes
)

func (m NoiseMode) Valid() bool { return m < numNoiseModes }

func (m NoiseMode) String() string {
	switch m {
	case NoiseLong:
		return "long"
	case NoiseShort:
		return "short"
	}
	return fmt.Sprintf("noise(%d)", uint8(m))
}

func ParseNoiseMode(s string) (NoiseMode, error) {
	switch s {
	case "long":
		return NoiseLong, nil
	case "short":
		return NoiseShort, nil
	}
	return 0, fmt.Errorf("not a valid noise mode: %v", s)
}

func (m NoiseMode) MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *NoiseMode) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseNoiseMode(n.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// FilterType selects the biquad response of a channel filter.
type FilterType uint8

const (
	FilterOff FilterType = iota
	LowPass
	HighPass
	BandPass
	numFilterTypes
)

var filterNames = [numFilterTypes]string{"off", "lowpass", "highpass", "bandpass"}

func (f FilterType) Valid() bool { return f < numFilterTypes }

func (f FilterType) String() string {
	if !f.Valid() {
		return fmt.Sprintf("filter(%d)", uint8(f))
	}
	return filterNames[f]
}

func ParseFilterType(s string) (FilterType, error) {
	for i, name := range filterNames {
		if name == s {
			return FilterType(i), nil
		}
	}
	return 0, fmt.Errorf("not a valid filter type: %v", s)
}

func (f FilterType) MarshalYAML() (interface{}, error) { return f.String(), nil }

func (f *FilterType) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseFilterType(n.Value)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

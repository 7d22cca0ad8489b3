package audio

import (
	"fmt"
	"slices"
)

type Device interface {
	Set(key string, val interface{}) error
	Get(key string) (interface{}, error)
}

type preset map[string]interface{}

var presets = map[string]preset{
	"lead": {
		"wave":        "pulse",
		"duty":        0.25,
		"env.attack":  0.005,
		"env.decay":   0.15,
		"env.sustain": 0.6,
		"env.release": 0.1,
	},
	"bass": {
		"wave":          "triangle",
		"env.attack":    0.,
		"env.decay":     0.,
		"env.sustain":   1.,
		"env.release":   0.03,
		"filter.type":   "lowpass",
		"filter.cutoff": 1200.,
	},
	"lame-bass": {
		"wave":          "saw",
		"gain":          3.,
		"env.decay":     0.1,
		"env.sustain":   0.,
		"filter.type":   "lowpass",
		"filter.cutoff": 900.0,
	},
	"hat": {
		"wave":        "noise",
		"noise":       "short",
		"env.attack":  0.,
		"env.decay":   0.05,
		"env.sustain": 0.,
		"env.release": 0.02,
	},
	"snare": {
		"wave":        "noise",
		"noise":       "long",
		"env.attack":  0.,
		"env.decay":   0.18,
		"env.sustain": 0.,
		"env.release": 0.05,
		"drive":       2.,
	},
	"arp": {
		"wave":        "pulse",
		"duty":        0.125,
		"mono":        true,
		"env.attack":  0.,
		"env.decay":   0.08,
		"env.sustain": 0.4,
		"env.release": 0.05,
		"delay.time":  0.375,
		"delay.mix":   0.3,
	},
	"crunch": {
		"crush.bits": 4,
		"crush.rate": 4,
		"drive":      3.,
	},
	"hall": {
		"reverb.mix":   0.3,
		"reverb.decay": 0.8,
	},
}

// Presets returns the preset names in order.
func Presets() []string {
	var names []string
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func LoadPreset(name string, d Device) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset: %v", name)
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := d.Set(k, p[k]); err != nil {
			return err
		}
	}
	return nil
}

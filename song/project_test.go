package song

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func testProject() *Project {
	p := New()
	p.Tempo = 132.5
	p.Loop = Loop{Start: 0, End: 8}
	p.Master.Gain = -3
	p.Master.Effects.Reverb = Reverb{Mix: 0.2, Decay: 0.7}
	p.Channels[0].Oscillator.Duty = 0.125
	p.Channels[0].Effects.Filter = Filter{Type: LowPass, Cutoff: 1800, Q: 0.9}
	p.Channels[3].Effects.Crush = Crush{Bits: 4, Rate: 3}
	p.Channels[5].Oscillator.Noise = NoiseShort
	p.Channels[5].Oscillator.Seed = 0x4abc
	p.Channels[2].Mixer = Mixer{Gain: -6.5, Pan: -0.25, Solo: true}
	p.Patterns = []Pattern{
		{ID: 1, Name: "lead", Length: 4, Notes: []Note{
			{Start: 0, Duration: 0.5, Pitch: 60, Velocity: 1, Channel: 0},
			{Start: 1.25, Duration: 0.1, Pitch: 67, Velocity: 0.3, Channel: 0},
		}},
		{ID: 7, Length: 2, Notes: []Note{
			{Start: 0.5, Duration: 1.0 / 3, Pitch: 36, Velocity: 0.8, Channel: 2},
		}},
	}
	p.Timeline = []Placement{
		{Start: 0, Pattern: 1, Channels: AllChannels},
		{Start: 4, Pattern: 7, Channels: 1 << 2},
	}
	return p
}

func TestRoundTrip(t *testing.T) {
	for _, p := range []*Project{New(), testProject()} {
		first, err := Marshal(p)
		if err != nil {
			t.Fatal(err)
		}
		loaded, err := Unmarshal(first)
		if err != nil {
			t.Fatalf("unmarshal: %v\n%s", err, first)
		}
		second, err := Marshal(loaded)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("round trip is not byte-identical:\nfirst:\n%s\nsecond:\n%s", first, second)
		}
		if want, got := p.Tempo, loaded.Tempo; want != got {
			t.Errorf("tempo: want %v, got %v", want, got)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.yaml")
	p := testProject()
	if err := Save(path, p); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Patterns, loaded.Patterns) {
		t.Errorf("patterns differ:\nwant: %+v\ngot:  %+v", p.Patterns, loaded.Patterns)
	}
	if !reflect.DeepEqual(p.Channels, loaded.Channels) {
		t.Errorf("channels differ")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Project)
	}{
		{"zero tempo", func(p *Project) { p.Tempo = 0 }},
		{"nan tempo", func(p *Project) { p.Tempo = math.NaN() }},
		{"duplicate pattern", func(p *Project) { p.Patterns = append(p.Patterns, Pattern{ID: 1, Length: 1}) }},
		{"empty pattern", func(p *Project) { p.Patterns[1].Length = 0 }},
		{"note outside pattern", func(p *Project) { p.Patterns[0].Notes[0].Start = 4 }},
		{"bad note channel", func(p *Project) { p.Patterns[0].Notes[1].Channel = 8 }},
		{"infinite duration", func(p *Project) { p.Patterns[0].Notes[0].Duration = math.Inf(1) }},
		{"unknown pattern", func(p *Project) { p.Timeline[1].Pattern = 99 }},
		{"negative placement", func(p *Project) { p.Timeline[0].Start = -1 }},
		{"short wavetable", func(p *Project) { p.Channels[7].Oscillator.Wavetable = []float64{0, 1} }},
		{"bad waveform", func(p *Project) { p.Channels[1].Oscillator.Wave = 42 }},
		{"bad filter", func(p *Project) { p.Master.Effects.Filter.Type = 9 }},
	}
	if err := testProject().Validate(); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}
	for _, test := range tests {
		p := testProject()
		test.modify(p)
		if err := p.Validate(); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: want ErrMalformed, got %v", test.name, err)
		}
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Unmarshal([]byte("tempo: 120\nswing: 0.5\n"))
	if err == nil {
		t.Error("expected an error for an unknown field")
	}
}

func TestClone(t *testing.T) {
	p := testProject()
	c := p.Clone()
	c.Patterns[0].Notes[0].Pitch = 10
	c.Timeline[0].Start = 3
	c.Channels[7].Oscillator.Wavetable[0] = 42
	if p.Patterns[0].Notes[0].Pitch != 60 || p.Timeline[0].Start != 0 || p.Channels[7].Oscillator.Wavetable[0] == 42 {
		t.Error("clone shares memory with the original")
	}
}

func TestAddNote(t *testing.T) {
	var pat Pattern
	for _, start := range []float64{2, 0, 1, 1, 3} {
		pat.AddNote(Note{Start: start})
	}
	var got []float64
	for _, n := range pat.Notes {
		got = append(got, n.Start)
	}
	if want := []float64{0, 1, 1, 2, 3}; !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestChannelNames(t *testing.T) {
	for i := 0; i < NumChannels; i++ {
		idx, ok := ChannelIndex(ChannelName(i))
		if !ok || idx != i {
			t.Errorf("channel %d: lookup returned %d, %v", i, idx, ok)
		}
	}
	if p := New(); p.Channels[5].Oscillator.Wave != Noise || len(p.Channels[7].Oscillator.Wavetable) != WavetableSize {
		t.Error("unexpected default presets")
	}
}

func TestRoundTripNegativeZero(t *testing.T) {
	negZero := math.Copysign(0, -1)
	p := New()
	p.Channels[1].Mixer.Pan = negZero
	p.Channels[7].Oscillator.Wavetable[3] = negZero
	p.Patterns = []Pattern{{ID: 1, Length: 4, Notes: []Note{
		{Start: negZero, Duration: 1, Pitch: 60, Velocity: 1},
	}}}
	first, err := Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(first, []byte("-0\n")) || bytes.Contains(first, []byte("-0,")) {
		t.Errorf("negative zero encoded:\n%s", first)
	}
	loaded, err := Unmarshal(first)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("round trip is not byte-identical:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	if !math.Signbit(p.Channels[1].Mixer.Pan) {
		t.Error("encoding modified the project")
	}
}

func TestDefaultWavetable(t *testing.T) {
	table := DefaultWavetable()
	if len(table) != WavetableSize {
		t.Fatalf("want %d samples, got %d", WavetableSize, len(table))
	}
	for i, v := range table {
		if v < -1 || v > 1 {
			t.Errorf("sample %d out of range: %v", i, v)
		}
		if v == 0 && math.Signbit(v) {
			t.Errorf("sample %d is negative zero", i)
		}
	}
	if got := table[WavetableSize/4]; got != 1 {
		t.Errorf("want peak 1, got %v", got)
	}
}

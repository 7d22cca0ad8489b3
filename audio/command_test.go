package audio

import (
	"math"
	"reflect"
	"testing"

	"github.com/mrdg/chipvibe/song"
)

func TestCommandLayout(t *testing.T) {
	type test struct {
		cmd  Command
		want []byte
	}
	tests := []test{
		{SetTempo(120), []byte{0x01, 0, 0, 0, 0, 0, 0, 0x5e, 0x40, 0, 0, 0, 0, 0, 0, 0}},
		{NoteOff(0x01020304), []byte{0x11, 4, 3, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{Play(), []byte{0x20, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{Stop(), []byte{0x20, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{NoteOn(4, 69, 1, 7), []byte{0x10, 4, 69, 0, 0, 0x80, 0x3f, 7, 0, 0, 0, 0, 0, 0, 0, 0}},
		{Seek(0, true), []byte{0x21, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0}},
	}
	for _, test := range tests {
		got, err := test.cmd.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(test.want, got) {
			t.Errorf("%v:\nwant: %x\ngot:  %x", test.cmd, test.want, got)
		}
		var back Command
		if err := back.UnmarshalBinary(got); err != nil {
			t.Fatal(err)
		}
		if back != test.cmd {
			t.Errorf("unmarshal: want %v, got %v", test.cmd, back)
		}
	}

	var c Command
	if err := c.UnmarshalBinary(make([]byte, 15)); err == nil {
		t.Error("expected error for short command")
	}
}

func TestCommandFields(t *testing.T) {
	c := NoteOn(3, 200, 0.5, 42)
	if want, got := byte(127), c[2]; want != got {
		t.Errorf("pitch should be clamped: want %v, got %v", want, got)
	}
	if want, got := float32(0.5), c.f32(3); want != got {
		t.Errorf("velocity: want %v, got %v", want, got)
	}
	if want, got := uint32(42), c.u32(7); want != got {
		t.Errorf("id: want %v, got %v", want, got)
	}

	c = SetLoop(1.5, 4)
	if c.f32(3) != 1.5 || c.f32(7) != 4 {
		t.Errorf("wrong loop payload: %v %v", c.f32(3), c.f32(7))
	}
	c = SetParam(2, ParamDuty, 0.25)
	if want, got := 0.25, c.f64(3); want != got {
		t.Errorf("param value: want %v, got %v", want, got)
	}
}

func TestCommandValid(t *testing.T) {
	type test struct {
		cmd  Command
		want bool
	}
	tests := []test{
		{SetTempo(120), true},
		{SetTempo(0), false},
		{SetTempo(math.NaN()), false},
		{SetTempo(1000), false},
		{SetParam(0, ParamDuty, 0.3), true},
		{SetParam(8, ParamDuty, 0.3), false},
		{SetParam(0, numParams, 1), false},
		{SetParam(0, ParamAttack, math.Inf(1)), false},
		{SetParam(MasterChannel, ParamReverbMix, 0.3), true},
		{SetParam(MasterChannel, ParamDuty, 0.3), false},
		{SetMixer(7, MixSolo, 1), true},
		{SetMixer(MasterChannel, MixGain, -6), true},
		{SetMixer(MasterChannel, MixPan, 0), false},
		{SetMixer(0, numMixerFields, 0), false},
		{NoteOn(0, 60, 1, 1), true},
		{NoteOn(8, 60, 1, 1), false},
		{NoteOn(0, 60, float32(math.NaN()), 1), false},
		{NoteOn(0, 60, 1, sequencerNoteID|1), false},
		{NoteOff(1), true},
		{NoteOff(sequencerNoteID), false},
		{Play(), true},
		{Stop(), true},
		{SetLoop(0, 4), true},
		{SetLoop(-1, 4), false},
		{Command{0: byte(TagTransport), 1: 9}, false},
		{Seek(4, false), true},
		{Seek(-1, false), false},
		{Command{}, false},
		{Command{0: 0x7f}, false},
	}
	for _, test := range tests {
		if got := test.cmd.Valid(); got != test.want {
			t.Errorf("%v: want valid=%v, got %v", test.cmd, test.want, got)
		}
	}
}

func TestCommandApplyTo(t *testing.T) {
	p := song.New()
	for _, c := range []Command{
		SetTempo(140),
		SetLoop(0, 8),
		SetParam(0, ParamWave, float64(song.Saw)),
		SetParam(0, ParamDuty, 2), // clamped
		SetParam(1, ParamAttack, 0.25),
		SetParam(5, ParamNoise, float64(song.NoiseShort)),
		SetParam(2, ParamFilterType, float64(song.LowPass)),
		SetParam(2, ParamFilterCutoff, 800),
		SetParam(MasterChannel, ParamReverbMix, 0.5),
		SetMixer(3, MixPan, -0.5),
		SetMixer(3, MixMute, 1),
		SetMixer(MasterChannel, MixGain, 100), // clamped
		SetTempo(-1),                         // invalid, ignored
		NoteOn(0, 60, 1, 1),                  // not a project change
	} {
		c.ApplyTo(p)
	}

	want := song.New()
	want.Tempo = 140
	want.Loop = song.Loop{Start: 0, End: 8}
	want.Channels[0].Oscillator.Wave = song.Saw
	want.Channels[0].Oscillator.Duty = maxDuty
	want.Channels[1].Envelope.Attack = 0.25
	want.Channels[5].Oscillator.Noise = song.NoiseShort
	want.Channels[2].Effects.Filter = song.Filter{Type: song.LowPass, Cutoff: 800}
	want.Master.Effects.Reverb.Mix = 0.5
	want.Channels[3].Mixer.Pan = -0.5
	want.Channels[3].Mixer.Mute = true
	want.Master.Gain = maxGain
	if !reflect.DeepEqual(want, p) {
		t.Errorf("wrong project:\nwant: %+v\ngot:  %+v", want, p)
	}
}

package audio

import (
	"math"
	"testing"

	"github.com/mrdg/chipvibe/song"
)

func sine(freq, sampleRate float64, n int) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return buf
}

func peak(buf []float64) float64 {
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func TestBiquad(t *testing.T) {
	const sampleRate = 48000
	type test struct {
		typ        song.FilterType
		freq       float64
		minP, maxP float64
	}
	tests := []test{
		{song.LowPass, 100, 0.95, 1.05},
		{song.LowPass, 10000, 0, 0.05},
		{song.HighPass, 100, 0, 0.05},
		{song.HighPass, 10000, 0.95, 1.05},
		{song.BandPass, 1000, 0.95, 1.05},
		{song.BandPass, 10000, 0, 0.2},
	}
	for _, test := range tests {
		f := biquad{sampleRate: sampleRate}
		f.configure(song.Filter{Type: test.typ, Cutoff: 1000})
		buf := sine(test.freq, sampleRate, 9600)
		f.process(buf)
		if p := peak(buf[4800:]); p < test.minP || p > test.maxP {
			t.Errorf("%v at %v Hz: peak %v not in [%v, %v]", test.typ, test.freq, p, test.minP, test.maxP)
		}
	}
}

func TestBiquadCoefficientsCached(t *testing.T) {
	f := biquad{sampleRate: 48000}
	f.configure(song.Filter{Type: song.LowPass, Cutoff: 1000})
	f.b0 = 42 // only recomputed when parameters change
	f.configure(song.Filter{Type: song.LowPass, Cutoff: 1000})
	if f.b0 != 42 {
		t.Error("coefficients were recomputed for unchanged parameters")
	}
	f.configure(song.Filter{Type: song.LowPass, Cutoff: 1000, Q: 2})
	if f.b0 == 42 {
		t.Error("coefficients were not recomputed")
	}
}

func TestBypass(t *testing.T) {
	c := newChain(48000)
	c.configure(&song.Effects{})
	in := sine(440, 48000, 512)
	buf := append([]float64(nil), in...)
	c.process(buf)
	for i := range in {
		if in[i] != buf[i] {
			t.Fatalf("zero valued chain changed sample %d: %v != %v", i, in[i], buf[i])
		}
	}
}

func TestDelay(t *testing.T) {
	d := newDelay(1000)
	d.configure(song.Delay{Time: 0.01, Feedback: 0.5, Mix: 0.5})
	buf := make([]float64, 40)
	buf[0] = 1
	d.process(buf)
	want := map[int]float64{0: 0.5, 10: 0.5, 20: 0.25, 30: 0.125}
	for i, got := range buf {
		if w := want[i]; math.Abs(w-got) > 1e-12 {
			t.Errorf("sample %d: want %v, got %v", i, w, got)
		}
	}
}

func TestDrive(t *testing.T) {
	d := drive{gain: 4}
	buf := []float64{-2, -1, 0, 0.1, 1, 2}
	d.process(buf)
	if math.Abs(buf[1]+1) > 1e-12 || math.Abs(buf[4]-1) > 1e-12 {
		t.Errorf("drive should map full scale to full scale, got %v", buf)
	}
	if buf[0] < -1 || buf[5] > 1 {
		t.Errorf("drive output out of range: %v", buf)
	}
	if buf[3] <= 0.1 {
		t.Errorf("drive should boost small signals, got %v", buf[3])
	}
}

func TestCrusher(t *testing.T) {
	var c crusher
	c.configure(song.Crush{Bits: 2, Rate: 2})
	buf := []float64{0.3, 0.9, -0.6, 0.1, 0.7, 0.7}
	c.process(buf)
	want := []float64{0.5, 0.5, -0.5, -0.5, 0.5, 0.5}
	for i := range want {
		if want[i] != buf[i] {
			t.Errorf("sample %d: want %v, got %v", i, want[i], buf[i])
		}
	}
}

func TestReverb(t *testing.T) {
	r := newReverb(96000)
	if want, got := 2*combLengths[0], len(r.combs[0].buf); want != got {
		t.Errorf("comb length should scale with the sample rate: want %v, got %v", want, got)
	}
	r = newReverb(48000)
	r.configure(song.Reverb{Mix: 1, Decay: 0.8})
	buf := make([]float64, 48000)
	buf[0] = 1
	r.process(buf)
	if p := peak(buf[:combLengths[1]-allpassLengths[1]]); p != 0 {
		t.Errorf("reverb output before the shortest delay: %v", p)
	}
	if p := peak(buf[24000:]); p == 0 || p > 0.5 {
		t.Errorf("reverb tail peak %v", p)
	}
}

func TestLimit(t *testing.T) {
	for _, x := range []float64{0, 0.5, -0.9, limitThreshold} {
		if got := limit(x); got != x {
			t.Errorf("limit(%v) = %v, want unchanged", x, got)
		}
	}
	prev := limitThreshold
	for _, x := range []float64{0.99, 1, 1.5, 3, 100, math.Inf(1)} {
		got := limit(x)
		if got > 1 || got < prev {
			t.Errorf("limit(%v) = %v", x, got)
		}
		if neg := limit(-x); neg != -got {
			t.Errorf("limit(%v) = %v, want %v", -x, neg, -got)
		}
		prev = got
	}
	if got := limit(math.NaN()); got != 0 {
		t.Errorf("limit(NaN) = %v", got)
	}
}

func TestChainAllocs(t *testing.T) {
	c := newChain(48000)
	c.configure(&song.Effects{
		Filter: song.Filter{Type: song.LowPass, Cutoff: 2000, Q: 1},
		Drive:  2,
		Crush:  song.Crush{Bits: 8, Rate: 2},
		Delay:  song.Delay{Time: 0.25, Feedback: 0.4, Mix: 0.3},
		Reverb: song.Reverb{Mix: 0.2, Decay: 0.7},
	})
	buf := sine(440, 48000, 256)
	if n := testing.AllocsPerRun(100, func() { c.process(buf) }); n != 0 {
		t.Errorf("want 0 allocations, got %v", n)
	}
}

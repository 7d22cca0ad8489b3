package audio

import (
	"math"

	"github.com/mrdg/chipvibe/song"
)

// chain is the fixed effect order of a channel or one side of the master bus. Every
// effect is bypassed at its zero value. All state is allocated in newChain.
type chain struct {
	filter biquad
	drive  drive
	crush  crusher
	delay  delay
	reverb reverb
}

func newChain(sampleRate float64) *chain {
	return &chain{
		filter: biquad{sampleRate: sampleRate},
		delay:  newDelay(sampleRate),
		reverb: newReverb(sampleRate),
	}
}

// configure copies effect parameters. Filter coefficients are only recomputed when
// the filter settings change.
func (c *chain) configure(fx *song.Effects) {
	c.filter.configure(fx.Filter)
	c.drive.gain = clamp(fx.Drive, 0, maxDrive)
	c.crush.configure(fx.Crush)
	c.delay.configure(fx.Delay)
	c.reverb.configure(fx.Reverb)
}

func (c *chain) process(buf []float64) {
	c.filter.process(buf)
	c.drive.process(buf)
	c.crush.process(buf)
	c.delay.process(buf)
	c.reverb.process(buf)
}

func (c *chain) reset() {
	c.filter.x1, c.filter.x2, c.filter.y1, c.filter.y2 = 0, 0, 0, 0
	c.crush.held, c.crush.count = 0, 0
	clear(c.delay.buf)
	for i := range c.reverb.combs {
		clear(c.reverb.combs[i].buf)
	}
	for i := range c.reverb.allpasses {
		clear(c.reverb.allpasses[i].buf)
	}
}

// biquad filter in direct form I, coefficients from
// https://www.w3.org/2011/audio/audio-eq-cookbook.html
type biquad struct {
	sampleRate float64
	params     song.Filter

	b0, b1, b2, a1, a2 float64

	// state
	x1, x2 float64 // x[n-1] x[n-2]
	y1, y2 float64 // y[n-1] y[n-2]
}

func (f *biquad) bypassed() bool {
	return f.params.Type == song.FilterOff || f.params.Cutoff <= 0
}

func (f *biquad) configure(p song.Filter) {
	p.Cutoff = clamp(p.Cutoff, 0, math.Min(maxCutoff, 0.49*f.sampleRate))
	p.Q = clamp(p.Q, 0, maxQ)
	if p == f.params {
		return
	}
	f.params = p
	if !f.bypassed() {
		f.calculateCoefficients()
	}
}

func (f *biquad) calculateCoefficients() {
	omega := 2 * math.Pi * f.params.Cutoff / f.sampleRate
	cos := math.Cos(omega)
	sin := math.Sin(omega)

	q := f.params.Q
	if q <= 0 {
		q = math.Sqrt2 / 2
	}
	alpha := sin / (2. * q)

	var b0, b1, b2, a0, a1, a2 float64

	switch f.params.Type {
	case song.LowPass:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = b0
	case song.HighPass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = b0
	case song.BandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	}
	a0 = 1 + alpha
	a1 = -2 * cos
	a2 = 1 - alpha

	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = a1 / a0
	f.a2 = a2 / a0
}

func (f *biquad) process(buf []float64) {
	if f.bypassed() {
		return
	}
	for n, x := range buf {
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		buf[n] = y
	}
}

// drive is a normalized tanh waveshaper.
type drive struct {
	gain float64
}

func (d *drive) process(buf []float64) {
	if d.gain <= 0 {
		return
	}
	norm := 1 / math.Tanh(d.gain)
	for n, x := range buf {
		buf[n] = clamp(math.Tanh(d.gain*x)*norm, -1, 1)
	}
}

// crusher holds every rate-th sample and quantizes it to 2^bits levels.
type crusher struct {
	bits  int
	rate  int
	half  float64
	held  float64
	count int
}

func (c *crusher) configure(p song.Crush) {
	c.bits = clampInt(p.Bits, 0, maxCrushBits)
	c.rate = clampInt(p.Rate, 0, maxCrushRate)
	if c.bits > 0 {
		c.half = math.Ldexp(1, c.bits-1)
	}
}

func (c *crusher) process(buf []float64) {
	if c.bits == 0 && c.rate <= 1 {
		return
	}
	for n, x := range buf {
		if c.count == 0 {
			if c.bits > 0 {
				x = clamp(math.Round(x*c.half)/c.half, -1, 1)
			}
			c.held = x
		}
		c.count++
		if c.count >= c.rate {
			c.count = 0
		}
		buf[n] = c.held
	}
}

type delay struct {
	buf      []float64
	head     int
	samples  int
	feedback float64
	mix      float64
	rate     float64
}

func newDelay(sampleRate float64) delay {
	return delay{
		buf:  make([]float64, int(maxDelaySeconds*sampleRate)),
		rate: sampleRate,
	}
}

func (d *delay) configure(p song.Delay) {
	d.samples = clampInt(int(clamp(p.Time, 0, maxDelaySeconds)*d.rate), 0, len(d.buf)-1)
	d.feedback = clamp(p.Feedback, 0, maxFeedback)
	d.mix = clamp(p.Mix, 0, 1)
}

func (d *delay) process(buf []float64) {
	if d.samples == 0 || d.mix == 0 {
		return
	}
	size := len(d.buf)
	for n, x := range buf {
		read := d.buf[(d.head-d.samples+size)%size]
		d.buf[d.head] = x + d.feedback*read
		d.head++
		if d.head == size {
			d.head = 0
		}
		buf[n] = (1-d.mix)*x + d.mix*read
	}
}

// Delay line lengths of the reverb at 48kHz.
var (
	combLengths    = [...]int{1687, 1601, 2053, 2251}
	allpassLengths = [...]int{389, 307}
)

const allpassGain = 0.5

// reverb is a Schroeder reverberator: parallel combs into series allpasses.
type reverb struct {
	combs     [len(combLengths)]delayLine
	allpasses [len(allpassLengths)]delayLine
	decay     float64
	mix       float64
}

type delayLine struct {
	buf []float64
	pos int
}

func newReverb(sampleRate float64) reverb {
	var r reverb
	scale := sampleRate / 48000
	for i, n := range combLengths {
		r.combs[i].buf = make([]float64, max(1, int(float64(n)*scale)))
	}
	for i, n := range allpassLengths {
		r.allpasses[i].buf = make([]float64, max(1, int(float64(n)*scale)))
	}
	return r
}

func (r *reverb) configure(p song.Reverb) {
	r.mix = clamp(p.Mix, 0, 1)
	r.decay = clamp(p.Decay, 0, maxFeedback)
}

func (r *reverb) process(buf []float64) {
	if r.mix == 0 {
		return
	}
	for n, x := range buf {
		var wet float64
		for i := range r.combs {
			c := &r.combs[i]
			y := c.buf[c.pos]
			c.buf[c.pos] = x + r.decay*y
			c.pos++
			if c.pos == len(c.buf) {
				c.pos = 0
			}
			wet += y
		}
		wet /= float64(len(r.combs))
		for i := range r.allpasses {
			a := &r.allpasses[i]
			delayed := a.buf[a.pos]
			a.buf[a.pos] = wet + allpassGain*delayed
			wet = delayed - allpassGain*wet
			a.pos++
			if a.pos == len(a.buf) {
				a.pos = 0
			}
		}
		buf[n] = (1-r.mix)*x + r.mix*wet
	}
}

// Soft limiter threshold. Samples below it pass unchanged.
const limitThreshold = 0.98

func limit(x float64) float64 {
	if x != x {
		return 0
	}
	a := math.Abs(x)
	if a <= limitThreshold {
		return x
	}
	y := limitThreshold + (1-limitThreshold)*math.Tanh((a-limitThreshold)/(1-limitThreshold))
	return math.Copysign(math.Min(y, 1), x)
}

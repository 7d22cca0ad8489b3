package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrdg/chipvibe/song"
)

var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrOverloaded        = errors.New("engine overloaded")
	ErrNotRunning        = errors.New("engine not running")
	ErrAlreadyRunning    = errors.New("engine already running")
)

const (
	DefaultQueueSize     = 1024
	DefaultDrainPerBlock = 256

	minSampleRate = 8000
	maxSampleRate = 192000
	maxBlockSize  = 8192

	sendRetries = 8
	sendBackoff = 250 * time.Microsecond
)

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	QueueSize     int
	DrainPerBlock int
}

// Metrics is a snapshot of the engine counters.
type Metrics struct {
	Load            float64 // percentage of the block duration spent rendering
	DroppedCommands uint64
	InvalidCommands uint64
	SkippedEvents   uint64
	ActiveVoices    int
	Playhead        float64 // beats
	Playing         bool
}

// Engine renders the project and the command stream into interleaved stereo float32
// samples. Start, Stop, LoadProject and the submit functions are called from the editor;
// Render is called from the audio device callback.
type Engine struct {
	backend Backend
	queue   *commandQueue
	drain   int

	mu      sync.Mutex // editor side lifecycle
	running bool

	renderer   atomic.Pointer[renderer]
	project    atomic.Pointer[schedule]
	generation atomic.Uint64

	invalid      atomic.Uint64
	skipped      atomic.Uint64
	activeVoices atomic.Int64
	playing      atomic.Bool
	playhead     atomic.Uint64 // float64 bits
	load         atomic.Uint64 // float64 bits
}

func NewEngine(backend Backend, opts Options) *Engine {
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DrainPerBlock <= 0 {
		opts.DrainPerBlock = DefaultDrainPerBlock
	}
	return &Engine{
		backend: backend,
		queue:   newCommandQueue(opts.QueueSize),
		drain:   opts.DrainPerBlock,
	}
}

// Start allocates all render state and starts the device.
func (e *Engine) Start(sampleRate, blockSize, channels int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	if channels != 2 {
		return fmt.Errorf("%w: %d output channels", ErrUnsupportedFormat, channels)
	}
	if sampleRate < minSampleRate || sampleRate > maxSampleRate {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, sampleRate)
	}
	if blockSize < 1 || blockSize > maxBlockSize {
		return fmt.Errorf("%w: block size %d", ErrUnsupportedFormat, blockSize)
	}

	e.renderer.Store(newRenderer(e, float64(sampleRate), blockSize))
	if err := e.backend.Open(sampleRate, blockSize, e.Render); err != nil {
		e.renderer.Store(nil)
		return deviceError(err)
	}
	if err := e.backend.Start(); err != nil {
		e.backend.Close()
		e.renderer.Store(nil)
		return deviceError(err)
	}
	e.running = true
	return nil
}

func deviceError(err error) error {
	if errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrUnsupportedFormat) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// Stop closes the device and releases the render state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	e.running = false
	err := e.backend.Close()
	e.renderer.Store(nil)
	e.playing.Store(false)
	e.activeVoices.Store(0)
	return err
}

// Submit enqueues cmd without blocking. It returns false when the queue is full; the
// command is then counted as dropped.
func (e *Engine) Submit(cmd Command) bool {
	return e.queue.push(cmd)
}

// Send enqueues cmd, retrying with exponential backoff while the queue is full. It
// returns ErrOverloaded when the audio thread does not catch up.
func (e *Engine) Send(cmd Command) error {
	backoff := sendBackoff
	for i := 0; i < sendRetries; i++ {
		if e.queue.tryPush(cmd) {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	if e.queue.push(cmd) {
		return nil
	}
	return ErrOverloaded
}

// LoadProject validates p and publishes it to the audio thread. A malformed project is
// rejected and the current one keeps playing. The engine keeps no reference to p.
func (e *Engine) LoadProject(p *song.Project) error {
	sched, err := compile(p)
	if err != nil {
		return err
	}
	sched.generation = e.generation.Add(1)
	e.project.Store(sched)
	return nil
}

func (e *Engine) Metrics() Metrics {
	return Metrics{
		Load:            math.Float64frombits(e.load.Load()),
		DroppedCommands: e.queue.dropped.Load(),
		InvalidCommands: e.invalid.Load(),
		SkippedEvents:   e.skipped.Load(),
		ActiveVoices:    int(e.activeVoices.Load()),
		Playhead:        math.Float64frombits(e.playhead.Load()),
		Playing:         e.playing.Load(),
	}
}

// Render fills out with interleaved stereo frames. It never blocks or allocates.
// Before Start and after Stop it renders silence.
func (e *Engine) Render(out []float32) {
	r := e.renderer.Load()
	if r == nil {
		clear(out)
		return
	}
	start := time.Now()
	frames := len(out) / 2
	for pos := 0; pos < frames; pos += r.blockSize {
		n := min(r.blockSize, frames-pos)
		r.render(out[2*pos:2*(pos+n)], n)
	}
	clear(out[2*frames:])

	if frames > 0 {
		elapsed := time.Since(start).Seconds()
		budget := float64(frames) / r.sampleRate
		e.load.Store(math.Float64bits(100 * elapsed / budget))
	}
	e.activeVoices.Store(int64(r.mixer.activeVoices()))
	e.playing.Store(r.seq.playing)
	e.playhead.Store(math.Float64bits(r.seq.beatAt(r.seq.playhead)))
	e.skipped.Store(r.seq.skipped)
}

// renderer is the state owned by the audio thread.
type renderer struct {
	engine     *Engine
	sampleRate float64
	blockSize  int
	mixer      *mixer
	seq        *sequencer
	sched      *schedule
	commands   []Command
}

func newRenderer(e *Engine, sampleRate float64, blockSize int) *renderer {
	return &renderer{
		engine:     e,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		mixer:      newMixer(sampleRate, blockSize),
		seq:        newSequencer(sampleRate),
		commands:   make([]Command, e.drain),
	}
}

func (r *renderer) render(out []float32, n int) {
	if sched := r.engine.project.Load(); sched != r.sched {
		r.adopt(sched)
	}
	cmds := r.commands[:r.engine.queue.pop(r.commands)]
	for i := range cmds {
		r.apply(&cmds[i])
	}

	r.mixer.clearBus(n)
	pos := 0
	for _, ev := range r.seq.advance(r.sched, n) {
		if ev.offset > pos {
			r.mixer.process(pos, ev.offset)
			pos = ev.offset
		}
		switch ev.kind {
		case eventNoteOn:
			r.mixer.noteOn(ev.channel, ev.pitch, ev.velocity, ev.id, r.seq.clock-uint64(n)+uint64(ev.offset))
		case eventNoteOff:
			r.mixer.noteOff(ev.id)
		}
	}
	r.mixer.process(pos, n)
	r.mixer.output(out, n)
}

// adopt switches to a newly published schedule. Channel presets, master settings,
// tempo and loop come from the project; the playhead is kept.
func (r *renderer) adopt(sched *schedule) {
	r.sched = sched
	if sched == nil {
		return
	}
	for i := range sched.channels {
		r.mixer.setPreset(i, sched.channels[i])
	}
	r.mixer.setMaster(sched.master)
	r.seq.setTempo(sched.tempo)
	r.seq.loop = sched.loop
}

func (r *renderer) apply(cmd *Command) {
	if !cmd.Valid() {
		r.engine.invalid.Add(1)
		return
	}
	switch cmd.Tag() {
	case TagTempo:
		r.seq.setTempo(cmd.f64(1))
	case TagChannelParam:
		r.mixer.setParam(int(cmd[1]), Param(cmd[2]), cmd.f64(3))
	case TagMixer:
		r.mixer.setMixer(int(cmd[1]), MixerField(cmd[2]), cmd.f64(3))
	case TagNoteOn:
		r.mixer.noteOn(int(cmd[1]), int(cmd[2]), float64(cmd.f32(3)), cmd.u32(7), r.seq.clock)
	case TagNoteOff:
		r.mixer.noteOff(cmd.u32(1))
	case TagTransport:
		switch TransportOp(cmd[1]) {
		case OpPlay:
			r.seq.play()
		case OpStop:
			r.seq.stop()
			r.mixer.releaseAll()
		case OpLoop:
			r.seq.loop = song.Loop{Start: float64(cmd.f32(3)), End: float64(cmd.f32(7))}
		}
	case TagSeek:
		r.seq.seek(cmd.f64(1))
		if cmd[9] != 0 {
			r.mixer.killAll()
		}
	}
}

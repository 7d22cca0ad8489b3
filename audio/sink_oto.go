package audio

import (
	"fmt"
	"log"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so it outlives Oto backends.
var otoContext struct {
	sync.Mutex
	ctx        *oto.Context
	sampleRate int
}

// Oto plays through ebitengine/oto. The player pulls bytes through Read, which renders
// one block at a time into a preallocated buffer.
type Oto struct {
	player  *oto.Player
	process func(out []float32)
	frames  []float32
	pending []byte
}

func (o *Oto) Open(sampleRate, framesPerBuffer int, process func(out []float32)) error {
	otoContext.Lock()
	defer otoContext.Unlock()
	if otoContext.ctx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(4*framesPerBuffer) * time.Second / time.Duration(sampleRate),
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		<-ready
		otoContext.ctx = ctx
		otoContext.sampleRate = sampleRate
		log.Printf("oto: opened output at %d Hz", sampleRate)
	} else if otoContext.sampleRate != sampleRate {
		return fmt.Errorf("%w: oto is running at %d Hz", ErrUnsupportedFormat, otoContext.sampleRate)
	}
	o.process = process
	o.frames = make([]float32, 2*framesPerBuffer)
	o.pending = nil
	o.player = otoContext.ctx.NewPlayer(o)
	return nil
}

func (o *Oto) Start() error {
	o.player.Play()
	return nil
}

func (o *Oto) Close() error {
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}

func (o *Oto) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(o.pending) == 0 {
			o.process(o.frames)
			o.pending = unsafe.Slice((*byte)(unsafe.Pointer(&o.frames[0])), 4*len(o.frames))
		}
		c := copy(p[n:], o.pending)
		o.pending = o.pending[c:]
		n += c
	}
	return n, nil
}

package audio

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Backend is an audio output device. Open prepares a stereo float32 stream that calls
// process with interleaved frames from the device thread once started.
type Backend interface {
	Open(sampleRate, framesPerBuffer int, process func(out []float32)) error
	Start() error
	Close() error
}

// NewBackend returns the backend with the given name: portaudio, oto or none.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "portaudio", "":
		return &PortAudio{}, nil
	case "oto":
		return &Oto{}, nil
	case "none":
		return &Headless{}, nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", name)
}

// PortAudio plays through the default PortAudio output device.
type PortAudio struct {
	stream *portaudio.Stream
}

func (s *PortAudio) Open(sampleRate, framesPerBuffer int, process func(out []float32)) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, process)
	if err != nil {
		portaudio.Terminate()
		if err == portaudio.InvalidSampleRate || err == portaudio.SampleFormatNotSupported {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.stream = stream
	log.Printf("portaudio: opened default output at %d Hz, %d frames", sampleRate, framesPerBuffer)
	return nil
}

func (s *PortAudio) Start() error {
	return s.stream.Start()
}

func (s *PortAudio) Close() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	portaudio.Terminate()
	return err
}

// Headless has no device. The owner drives rendering by calling Engine.Render, which is
// how tests and offline renders run.
type Headless struct {
	mu      sync.Mutex
	process func(out []float32)
}

func (h *Headless) Open(sampleRate, framesPerBuffer int, process func(out []float32)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.process = process
	return nil
}

func (h *Headless) Start() error { return nil }

func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.process = nil
	return nil
}

// Pull renders len(out)/2 frames through the opened process function.
func (h *Headless) Pull(out []float32) {
	h.mu.Lock()
	process := h.process
	h.mu.Unlock()
	if process == nil {
		clear(out)
		return
	}
	process(out)
}

package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mrdg/chipvibe/audio"
	"github.com/mrdg/chipvibe/song"
	wav "github.com/youpy/go-wav"
)

const maxRenderBeats = 4096

// renderFile renders beats of the project from beat 0 into a 16 bit stereo WAV file,
// using a headless engine so the live one keeps playing.
func renderFile(path string, p *song.Project, beats float64, sampleRate, blockSize int) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	frames, err := render(f, p, beats, sampleRate, blockSize)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return frames, err
}

func render(w io.Writer, p *song.Project, beats float64, sampleRate, blockSize int) (int, error) {
	if beats <= 0 || beats > maxRenderBeats {
		return 0, fmt.Errorf("beats out of range 0-%d: %v", maxRenderBeats, beats)
	}
	sink := &audio.Headless{}
	engine := audio.NewEngine(sink, audio.Options{})
	if err := engine.Start(sampleRate, blockSize, 2); err != nil {
		return 0, err
	}
	defer engine.Stop()

	if err := engine.LoadProject(p.Clone()); err != nil {
		return 0, err
	}
	engine.Submit(audio.Play())

	frames := int(math.Ceil(beats * 60 * float64(sampleRate) / p.Tempo))
	writer := wav.NewWriter(w, uint32(frames), 2, uint32(sampleRate), 16)

	buf := make([]float32, 2*blockSize)
	samples := make([]wav.Sample, blockSize)
	for pos := 0; pos < frames; pos += blockSize {
		n := min(blockSize, frames-pos)
		sink.Pull(buf[:2*n])
		for i := 0; i < n; i++ {
			samples[i].Values[0] = pcm16(buf[2*i])
			samples[i].Values[1] = pcm16(buf[2*i+1])
		}
		if err := writer.WriteSamples(samples[:n]); err != nil {
			return pos, err
		}
	}
	return frames, nil
}

func pcm16(v float32) int {
	const scale = 1<<15 - 1
	return int(math.Round(float64(max(-1, min(1, v))) * scale))
}

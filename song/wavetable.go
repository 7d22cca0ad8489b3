package song

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/youpy/go-wav"
)

// LoadWavetable reads the first channel of a WAV file and resamples it to WavetableSize
// samples with linear interpolation, normalized to a peak of 1.
func LoadWavetable(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf []float64
	r := wav.NewReader(f)
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, sample := range samples {
			buf = append(buf, r.FloatValue(sample, 0))
		}
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("read %s: no samples", path)
	}
	return Resample(buf), nil
}

// Resample stretches src to a wavetable of WavetableSize samples.
func Resample(src []float64) []float64 {
	table := make([]float64, WavetableSize)
	var peak float64
	for i := range table {
		pos := float64(i) * float64(len(src)) / WavetableSize
		n := int(pos)
		frac := pos - float64(n)
		a := src[n]
		b := src[(n+1)%len(src)]
		table[i] = a + (b-a)*frac
		peak = math.Max(peak, math.Abs(table[i]))
	}
	if peak > 0 {
		for i := range table {
			table[i] /= peak
		}
	}
	return table
}

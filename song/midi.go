package song

import (
	"fmt"
	"io"
	"math"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ImportMIDIFile reads a Standard MIDI File from disk. See ImportMIDI.
func ImportMIDIFile(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := ImportMIDI(f)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return p, nil
}

// ImportMIDI converts a Standard MIDI File into a project. Every track holding notes
// becomes one pattern placed at beat 0; MIDI channels map onto the chip channels modulo
// NumChannels. The first tempo event sets the project tempo.
func ImportMIDI(r io.Reader) (*Project, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, fmt.Errorf("unsupported time format %v", file.TimeFormat)
	}
	perBeat := float64(ticks)

	p := New()
	tempoSet := false
	for _, track := range file.Tracks {
		type key struct{ ch, pitch uint8 }
		open := make(map[key][]Note)
		var notes []Note
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			beat := float64(abs) / perBeat

			var bpm float64
			if !tempoSet && ev.Message.GetMetaTempo(&bpm) {
				p.Tempo = bpm
				tempoSet = true
				continue
			}
			var ch, pitch, vel uint8
			msg := midi.Message(ev.Message)
			switch {
			case msg.GetNoteStart(&ch, &pitch, &vel):
				k := key{ch, pitch}
				open[k] = append(open[k], Note{
					Start:    beat,
					Pitch:    int(pitch),
					Velocity: float64(vel) / 127,
					Channel:  int(ch) % NumChannels,
				})
			case msg.GetNoteEnd(&ch, &pitch):
				k := key{ch, pitch}
				if len(open[k]) == 0 {
					continue
				}
				n := open[k][0]
				open[k] = open[k][1:]
				n.Duration = beat - n.Start
				notes = append(notes, n)
			}
		}
		if len(notes) == 0 {
			continue
		}
		var end float64
		for _, n := range notes {
			end = math.Max(end, n.Start+n.Duration)
		}
		pat := Pattern{
			ID:     p.NextPatternID(),
			Length: math.Max(4, math.Ceil(end/4)*4),
			Notes:  sortNotes(notes),
		}
		p.Patterns = append(p.Patterns, pat)
		p.Timeline = append(p.Timeline, Placement{Pattern: pat.ID, Channels: AllChannels})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

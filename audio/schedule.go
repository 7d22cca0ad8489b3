package audio

import (
	"cmp"
	"slices"

	"github.com/mrdg/chipvibe/song"
)

// schedule is an immutable, playback ready view of a project. The editor compiles one
// per LoadProject and publishes it to the audio thread.
type schedule struct {
	generation uint64
	tempo      float64
	loop       song.Loop
	master     song.Master
	channels   [numChannels]song.Channel
	placements []placement
}

// placement is a pattern positioned on the timeline with its notes filtered by the
// channel mask. Notes are sorted by start.
type placement struct {
	start  float64
	length float64
	notes  []song.Note
}

// compile validates p and builds a schedule that shares no memory with it.
func compile(p *song.Project) (*schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.Clone()
	s := &schedule{
		tempo:    p.Tempo,
		loop:     p.Loop,
		master:   p.Master,
		channels: p.Channels,
	}
	for _, entry := range p.Timeline {
		pat, _ := p.Pattern(entry.Pattern)
		pl := placement{start: entry.Start, length: pat.Length}
		for _, n := range pat.Notes {
			if entry.Channels&(1<<uint(n.Channel)) == 0 {
				continue
			}
			if n.Duration < 0 {
				n.Duration = 0
			}
			pl.notes = append(pl.notes, n)
		}
		if len(pl.notes) == 0 {
			continue
		}
		slices.SortStableFunc(pl.notes, func(a, b song.Note) int {
			return cmp.Compare(a.Start, b.Start)
		})
		s.placements = append(s.placements, pl)
	}
	slices.SortStableFunc(s.placements, func(a, b placement) int {
		return cmp.Compare(a.start, b.start)
	})
	return s, nil
}

package audio

import (
	"cmp"
	"math"
	"slices"

	"github.com/mrdg/chipvibe/song"
)

const (
	maxEvents    = 256 // note events per block
	maxPending   = 512 // scheduled note-offs
	maxLoopWraps = 64  // loop wraps per block
)

type eventKind uint8

// Note-offs sort before note-ons at the same sample.
const (
	eventNoteOff eventKind = iota
	eventNoteOn
)

type event struct {
	offset   int // frame within the block
	kind     eventKind
	channel  int
	pitch    int
	velocity float64
	id       uint32
}

type pendingOff struct {
	at uint64
	id uint32
}

// sequencer turns the schedule into sample accurate note events. Beats map to samples
// linearly from an anchor point, which moves to the playhead on every tempo change and
// back to the song start on every seek and loop wrap.
type sequencer struct {
	sampleRate float64
	tempo      float64
	loop       song.Loop
	playing    bool

	anchorSample int64
	anchorBeat   float64
	playhead     int64

	// clock counts frames rendered since start and never jumps. Note-offs are scheduled
	// against it so they fire across loop wraps and seeks.
	clock   uint64
	pending []pendingOff
	events  []event
	nextID  uint32
	skipped uint64
}

func newSequencer(sampleRate float64) *sequencer {
	return &sequencer{
		sampleRate: sampleRate,
		tempo:      120,
		pending:    make([]pendingOff, 0, maxPending),
		events:     make([]event, 0, maxEvents),
	}
}

// sampleAt returns the first sample at or after beat.
func (s *sequencer) sampleAt(beat float64) int64 {
	return s.anchorSample + int64(math.Floor((beat-s.anchorBeat)*60*s.sampleRate/s.tempo))
}

func (s *sequencer) beatAt(sample int64) float64 {
	return s.anchorBeat + float64(sample-s.anchorSample)*s.tempo/(60*s.sampleRate)
}

func (s *sequencer) setTempo(bpm float64) {
	if bpm == s.tempo {
		return
	}
	s.anchorBeat = s.beatAt(s.playhead)
	s.anchorSample = s.playhead
	s.tempo = bpm
}

// seek moves the playhead to beat, counted in samples from the song start at the
// current tempo.
func (s *sequencer) seek(beat float64) {
	s.anchorSample, s.anchorBeat = 0, 0
	s.playhead = s.sampleAt(beat)
}

func (s *sequencer) play() { s.playing = true }

// stop halts playback and forgets scheduled note-offs. The caller releases the voices.
func (s *sequencer) stop() {
	s.playing = false
	s.pending = s.pending[:0]
}

// advance returns the note events of the next n frames in render order and moves the
// playhead. The returned slice is reused by the next call.
func (s *sequencer) advance(sched *schedule, n int) []event {
	s.events = s.events[:0]
	if s.playing && sched != nil {
		off := 0
		for wraps := 0; off < n; wraps++ {
			end := s.playhead + int64(n-off)
			loopStart, loopEnd := s.sampleAt(s.loop.Start), s.sampleAt(s.loop.End)
			wrap := s.loop.Enabled() && loopEnd > loopStart && s.playhead < loopEnd && end >= loopEnd
			if wrap {
				if wraps == maxLoopWraps {
					break
				}
				end = loopEnd
			}
			s.collect(sched, s.playhead, end, off)
			off += int(end - s.playhead)
			s.playhead = end
			if wrap {
				s.seek(s.loop.Start)
			}
		}
	}
	s.dueOffs(n)
	s.clock += uint64(n)

	slices.SortStableFunc(s.events, func(a, b event) int {
		if c := cmp.Compare(a.offset, b.offset); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})
	return s.events
}

// dueOffs moves note-offs that fall within the next n frames into the event list.
func (s *sequencer) dueOffs(n int) {
	end := s.clock + uint64(n)
	for i := 0; i < len(s.pending); {
		p := s.pending[i]
		if p.at >= end {
			i++
			continue
		}
		if len(s.events) == cap(s.events) {
			// try again next block
			i++
			continue
		}
		at := 0
		if p.at > s.clock {
			at = int(p.at - s.clock)
		}
		s.events = append(s.events, event{offset: at, kind: eventNoteOff, id: p.id})
		last := len(s.pending) - 1
		s.pending[i] = s.pending[last]
		s.pending = s.pending[:last]
	}
}

// collect emits note-ons of song samples [from, to), which start at frame off of
// the block.
func (s *sequencer) collect(sched *schedule, from, to int64, off int) {
	for i := range sched.placements {
		pl := &sched.placements[i]
		start := s.sampleAt(pl.start)
		if start >= to {
			break
		}
		if s.sampleAt(pl.start+pl.length) <= from {
			continue
		}
		notes := pl.notes
		for n := s.firstNote(pl, from); n < len(notes); n++ {
			note := &notes[n]
			beat := pl.start + note.Start
			at := s.sampleAt(beat)
			if at >= to {
				break
			}
			s.noteOn(note, at, s.sampleAt(beat+note.Duration)-at, off+int(at-from))
		}
	}
}

// firstNote returns the index of the first note of pl that starts at or after sample.
func (s *sequencer) firstNote(pl *placement, sample int64) int {
	lo, hi := 0, len(pl.notes)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s.sampleAt(pl.start+pl.notes[mid].Start) < sample {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (s *sequencer) noteOn(note *song.Note, at, length int64, offset int) {
	if len(s.events) == cap(s.events) || len(s.pending) == cap(s.pending) {
		s.skipped++
		return
	}
	if length < 1 {
		length = 1
	}
	s.nextID++
	id := s.nextID&^sequencerNoteID | sequencerNoteID
	s.events = append(s.events, event{
		offset:   offset,
		kind:     eventNoteOn,
		channel:  note.Channel,
		pitch:    note.Pitch,
		velocity: note.Velocity,
		id:       id,
	})
	offAt := s.clock + uint64(offset) + uint64(length)
	if offAt < s.clock+uint64(offset) {
		offAt = math.MaxUint64
	}
	s.pending = append(s.pending, pendingOff{at: offAt, id: id})
}

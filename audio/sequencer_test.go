package audio

import (
	"math"
	"reflect"
	"testing"

	"github.com/mrdg/chipvibe/song"
)

type seqEvent struct {
	at    uint64 // render clock
	kind  eventKind
	pitch int
}

// run advances the sequencer over frames in blocks of blockSize and returns the
// events against the render clock.
func run(seq *sequencer, sched *schedule, frames, blockSize int) []seqEvent {
	var events []seqEvent
	for pos := 0; pos < frames; pos += blockSize {
		start := seq.clock
		for _, ev := range seq.advance(sched, blockSize) {
			events = append(events, seqEvent{at: start + uint64(ev.offset), kind: ev.kind, pitch: ev.pitch})
		}
	}
	return events
}

func onsets(events []seqEvent) []uint64 {
	var at []uint64
	for _, ev := range events {
		if ev.kind == eventNoteOn {
			at = append(at, ev.at)
		}
	}
	return at
}

func project(tempo float64, length float64, notes ...song.Note) *song.Project {
	p := song.New()
	p.Tempo = tempo
	p.Patterns = []song.Pattern{{ID: 1, Length: length, Notes: notes}}
	p.Timeline = []song.Placement{{Start: 0, Pattern: 1, Channels: song.AllChannels}}
	return p
}

func mustCompile(t *testing.T, p *song.Project) *schedule {
	t.Helper()
	s, err := compile(p)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestSequencer(sampleRate float64, sched *schedule) *sequencer {
	seq := newSequencer(sampleRate)
	seq.setTempo(sched.tempo)
	seq.loop = sched.loop
	seq.play()
	return seq
}

func TestSequencer(t *testing.T) {
	const sampleRate = 48000
	sched := mustCompile(t, project(120, 4, song.Note{Start: 1, Duration: 0.5, Pitch: 60, Velocity: 1}))
	seq := newTestSequencer(sampleRate, sched)

	want := []seqEvent{
		{at: 24000, kind: eventNoteOn, pitch: 60},
		{at: 36000, kind: eventNoteOff},
	}
	if got := run(seq, sched, 48000, 256); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong events:\nwant: %+v\ngot:  %+v", want, got)
	}
}

func TestSequencerSampleAccuracy(t *testing.T) {
	const sampleRate = 48000
	for _, tempo := range []float64{60, 90, 120, 133.3, 140, 174, 999} {
		for _, beat := range []float64{0, 0.1, 0.25, 1, 1.3333, 2.999, 3.5} {
			sched := mustCompile(t, project(tempo, 4, song.Note{Start: beat, Duration: 0.1, Pitch: 60, Velocity: 1}))
			seq := newTestSequencer(sampleRate, sched)
			got := onsets(run(seq, sched, int(4*60*sampleRate/tempo)+512, 512))
			want := uint64(math.Floor(beat * 60 * sampleRate / tempo))
			if len(got) != 1 || got[0] != want {
				t.Errorf("tempo %v beat %v: want note-on at %v, got %v", tempo, beat, want, got)
			}
		}
	}
}

// Block size never changes where events land.
func TestSequencerBlockSize(t *testing.T) {
	sched := mustCompile(t, project(137, 4,
		song.Note{Start: 0, Duration: 0.25, Pitch: 60, Velocity: 1},
		song.Note{Start: 0.75, Duration: 1, Pitch: 62, Velocity: 1},
		song.Note{Start: 2.1, Duration: 0.01, Pitch: 64, Velocity: 1},
		song.Note{Start: 3.99, Duration: 0.5, Pitch: 65, Velocity: 1},
	))
	want := run(newTestSequencer(44100, sched), sched, 4*44100, 4*44100)
	for _, blockSize := range []int{1, 7, 64, 256, 1000} {
		got := run(newTestSequencer(44100, sched), sched, 4*44100, blockSize)
		if !reflect.DeepEqual(want, got) {
			t.Errorf("block size %d:\nwant: %+v\ngot:  %+v", blockSize, want, got)
		}
	}
}

func TestSequencerLoop(t *testing.T) {
	const sampleRate = 48000
	p := project(120, 4, song.Note{Start: 3.9, Duration: 0.2, Pitch: 60, Velocity: 1})
	p.Loop = song.Loop{Start: 0, End: 4}
	sched := mustCompile(t, p)
	seq := newTestSequencer(sampleRate, sched)

	beat := 3.9
	on := uint64(math.Floor(beat * 60 * sampleRate / 120))
	loopLen := uint64(4 * 60 * sampleRate / 120)
	length := uint64(seq.sampleAt(beat+0.2) - seq.sampleAt(beat))

	want := []seqEvent{
		{at: on, kind: eventNoteOn, pitch: 60},
		{at: on + length, kind: eventNoteOff},
		{at: loopLen + on, kind: eventNoteOn, pitch: 60},
		{at: loopLen + on + length, kind: eventNoteOff},
	}
	got := run(seq, sched, int(2*loopLen+length+512), 512)
	if !reflect.DeepEqual(want, got) {
		t.Errorf("wrong events:\nwant: %+v\ngot:  %+v", want, got)
	}
	if seq.playhead >= int64(loopLen) {
		t.Errorf("playhead %d should stay inside the loop", seq.playhead)
	}
}

func TestSequencerLoopDisabled(t *testing.T) {
	p := project(120, 4, song.Note{Start: 0, Duration: 0.5, Pitch: 60, Velocity: 1})
	p.Loop = song.Loop{Start: 2, End: 2}
	sched := mustCompile(t, p)
	seq := newTestSequencer(1000, sched)
	if got := onsets(run(seq, sched, 8000, 100)); len(got) != 1 {
		t.Errorf("want a single note-on without a loop, got %v", got)
	}
}

func TestSequencerOrdering(t *testing.T) {
	// the first note ends exactly where the second starts
	sched := mustCompile(t, project(60, 4,
		song.Note{Start: 0, Duration: 1, Pitch: 60, Velocity: 1},
		song.Note{Start: 1, Duration: 1, Pitch: 62, Velocity: 1},
	))
	seq := newTestSequencer(100, sched)
	want := []seqEvent{
		{at: 0, kind: eventNoteOn, pitch: 60},
		{at: 100, kind: eventNoteOff},
		{at: 100, kind: eventNoteOn, pitch: 62},
		{at: 200, kind: eventNoteOff},
	}
	if got := run(seq, sched, 400, 400); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong events:\nwant: %+v\ngot:  %+v", want, got)
	}
}

func TestSequencerChannelMask(t *testing.T) {
	p := project(120, 4,
		song.Note{Start: 0, Duration: 1, Pitch: 60, Velocity: 1, Channel: 0},
		song.Note{Start: 1, Duration: 1, Pitch: 36, Velocity: 1, Channel: 2},
	)
	p.Timeline = []song.Placement{
		{Start: 0, Pattern: 1, Channels: 1 << 2},
		{Start: 4, Pattern: 1, Channels: 1},
		{Start: 8, Pattern: 1, Channels: 0},
	}
	sched := mustCompile(t, p)
	if want, got := 2, len(sched.placements); want != got {
		t.Fatalf("empty placements should be dropped: want %d, got %d", want, got)
	}
	seq := newTestSequencer(1000, sched)
	var pitches []int
	for _, ev := range run(seq, sched, 6000, 100) {
		if ev.kind == eventNoteOn {
			pitches = append(pitches, ev.pitch)
		}
	}
	if want := []int{36, 60}; !reflect.DeepEqual(want, pitches) {
		t.Errorf("want pitches %v, got %v", want, pitches)
	}
}

func TestSequencerTempoChange(t *testing.T) {
	sched := mustCompile(t, project(60, 8, song.Note{Start: 4, Duration: 0.5, Pitch: 60, Velocity: 1}))
	seq := newTestSequencer(1000, sched)
	run(seq, sched, 2000, 100) // two beats at 60 BPM
	seq.setTempo(120)
	if want, got := 2.0, seq.beatAt(seq.playhead); want != got {
		t.Fatalf("tempo change moved the playhead: want beat %v, got %v", want, got)
	}
	// the remaining two beats take one second at 120 BPM
	if want, got := []uint64{3000}, onsets(run(seq, sched, 2000, 100)); !reflect.DeepEqual(want, got) {
		t.Errorf("want note-on at %v, got %v", want, got)
	}
}

func TestSequencerSeekAfterTempoChange(t *testing.T) {
	const sampleRate = 48000
	beats := []float64{1, 1.3333, 2.999}
	var notes []song.Note
	for _, b := range beats {
		notes = append(notes, song.Note{Start: b, Duration: 0.01, Pitch: 60, Velocity: 1})
	}
	sched := mustCompile(t, project(120, 4, notes...))
	for _, tempo := range []float64{97, 133, 137, 174} {
		seq := newTestSequencer(sampleRate, sched)
		run(seq, sched, 785, 785)
		seq.setTempo(tempo)
		seq.seek(0)
		if seq.playhead != 0 {
			t.Errorf("tempo %v: want playhead 0 after seek, got %d", tempo, seq.playhead)
		}
		start := seq.clock
		var got []uint64
		for _, at := range onsets(run(seq, sched, int(4*60*sampleRate/tempo), 256)) {
			got = append(got, at-start)
		}
		var want []uint64
		for _, b := range beats {
			want = append(want, uint64(math.Floor(b*60*sampleRate/tempo)))
		}
		if !reflect.DeepEqual(want, got) {
			t.Errorf("tempo %v: want note-ons at %v, got %v", tempo, want, got)
		}
	}
}

func TestSequencerSeekAndStop(t *testing.T) {
	sched := mustCompile(t, project(60, 4,
		song.Note{Start: 0, Duration: 4, Pitch: 60, Velocity: 1},
		song.Note{Start: 3, Duration: 1, Pitch: 62, Velocity: 1},
	))
	seq := newTestSequencer(100, sched)
	run(seq, sched, 50, 50)
	seq.seek(3)
	events := run(seq, sched, 200, 50)
	want := []seqEvent{
		{at: 50, kind: eventNoteOn, pitch: 62},
		{at: 150, kind: eventNoteOff},
	}
	if !reflect.DeepEqual(want, events) {
		t.Errorf("wrong events after seek:\nwant: %+v\ngot:  %+v", want, events)
	}
	// the first note is still waiting for its note-off
	if want, got := 1, len(seq.pending); want != got {
		t.Fatalf("want %d pending note-off, got %d", want, got)
	}

	seq.stop()
	if len(seq.pending) != 0 || seq.playing {
		t.Error("stop should clear pending note-offs")
	}
	if got := run(seq, sched, 1000, 50); len(got) != 0 {
		t.Errorf("stopped sequencer emitted %v", got)
	}
}

func TestSequencerSkippedEvents(t *testing.T) {
	var notes []song.Note
	for i := 0; i < maxEvents+10; i++ {
		notes = append(notes, song.Note{Start: 0, Duration: 1, Pitch: 60, Velocity: 1})
	}
	sched := mustCompile(t, project(120, 4, notes...))
	seq := newTestSequencer(48000, sched)
	seq.advance(sched, 256)
	if want, got := uint64(10), seq.skipped; want != got {
		t.Errorf("want %d skipped events, got %d", want, got)
	}
	if n := testing.AllocsPerRun(100, func() { seq.advance(sched, 256) }); n != 0 {
		t.Errorf("want 0 allocations, got %v", n)
	}
}

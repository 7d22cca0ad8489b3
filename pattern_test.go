package main

import (
	"reflect"
	"testing"

	"github.com/mrdg/chipvibe/dub"
	"github.com/mrdg/chipvibe/song"
)

func TestGrid(t *testing.T) {
	tests := []struct {
		sig      string
		stepSize int
		triplets bool
		length   int
		beats    float64
		str      string
	}{
		{"4/4", 16, false, 16, 4, "4/4 16"},
		{"3/4", 8, false, 6, 3, "3/4 8"},
		{"7/8", 16, false, 14, 3.5, "7/8 16"},
		{"4/4", 16, true, 24, 4, "4/4 16 triplets"},
		{"5/4", 32, false, 40, 5, "5/4 32"},
	}
	for _, test := range tests {
		g, err := newGrid(test.sig, test.stepSize, test.triplets)
		if err != nil {
			t.Errorf("%s %d: %v", test.sig, test.stepSize, err)
			continue
		}
		if got := g.length(); got != test.length {
			t.Errorf("%v: want length %v, got %v", g, test.length, got)
		}
		if got := g.beats(); got != test.beats {
			t.Errorf("%v: want %v beats, got %v", g, test.beats, got)
		}
		if got := g.String(); got != test.str {
			t.Errorf("want %q, got %q", test.str, got)
		}
	}
}

func TestNewGridErrors(t *testing.T) {
	tests := []struct {
		sig      string
		stepSize int
	}{
		{"4/3", 16},
		{"4", 16},
		{"a/4", 16},
		{"4/b", 16},
		{"0/4", 16},
		{"4/4", 2},
		{"4/8", 4},
	}
	for _, test := range tests {
		if _, err := newGrid(test.sig, test.stepSize, false); err == nil {
			t.Errorf("%s %d: expected error", test.sig, test.stepSize)
		}
	}
}

func matchExpr(t *testing.T, expr string) dub.MatchExpr {
	t.Helper()
	cmd, err := dub.Parse("p '" + expr)
	if err != nil {
		t.Fatal(err)
	}
	return cmd.Args[0].(dub.MatchExpr)
}

func TestGridNotes(t *testing.T) {
	seq, err := defaultGrid.sequence(matchExpr(t, "2,4/*"))
	if err != nil {
		t.Fatal(err)
	}
	got := defaultGrid.notes(seq, 5, 42, 0.8)
	var want []song.Note
	for _, start := range []float64{1, 1.5, 3, 3.5} {
		want = append(want, song.Note{Start: start, Duration: 0.25, Pitch: 42, Velocity: 0.8, Channel: 5})
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestGridTriplets(t *testing.T) {
	g, err := newGrid("4/4", 16, true)
	if err != nil {
		t.Fatal(err)
	}
	seq, err := g.sequence(matchExpr(t, "1/*"))
	if err != nil {
		t.Fatal(err)
	}
	notes := g.notes(seq, 0, 60, 1)
	if len(notes) != 3 {
		t.Fatalf("want 3 notes, got %v", notes)
	}
	for i, n := range notes {
		want := float64(i) / 3
		if d := n.Start - want; d > 1e-9 || d < -1e-9 {
			t.Errorf("note %d: want start %v, got %v", i, want, n.Start)
		}
	}
}

func TestSetNotes(t *testing.T) {
	pat := &song.Pattern{ID: 1, Length: 4}
	pat.AddNote(song.Note{Start: 0, Duration: 1, Pitch: 60, Velocity: 1, Channel: 0})
	pat.AddNote(song.Note{Start: 2, Duration: 1, Pitch: 60, Velocity: 1, Channel: 0})
	pat.AddNote(song.Note{Start: 1, Duration: 1, Pitch: 36, Velocity: 1, Channel: 2})
	pat.AddNote(song.Note{Start: 3, Duration: 1, Pitch: 60, Velocity: 1, Channel: 1})

	setNotes(pat, 0, 60, []song.Note{
		{Start: 0.5, Duration: 0.25, Pitch: 60, Velocity: 1, Channel: 0},
		{Start: 2.5, Duration: 0.25, Pitch: 60, Velocity: 1, Channel: 0},
	})

	want := []song.Note{
		{Start: 0.5, Duration: 0.25, Pitch: 60, Velocity: 1, Channel: 0},
		{Start: 1, Duration: 1, Pitch: 36, Velocity: 1, Channel: 2},
		{Start: 2.5, Duration: 0.25, Pitch: 60, Velocity: 1, Channel: 0},
		{Start: 3, Duration: 1, Pitch: 60, Velocity: 1, Channel: 1},
	}
	if !reflect.DeepEqual(want, pat.Notes) {
		t.Errorf("want %v, got %v", want, pat.Notes)
	}

	setNotes(pat, 2, 36, nil)
	if len(pat.Notes) != 3 {
		t.Errorf("want 3 notes after clearing a row, got %v", pat.Notes)
	}
}

func TestStepsOf(t *testing.T) {
	seq, err := defaultGrid.sequence(matchExpr(t, "*//3,4"))
	if err != nil {
		t.Fatal(err)
	}
	pat := &song.Pattern{ID: 1, Length: defaultGrid.beats()}
	setNotes(pat, 1, 64, defaultGrid.notes(seq, 1, 64, 1))
	pat.AddNote(song.Note{Start: 0, Duration: 1, Pitch: 65, Velocity: 1, Channel: 1})

	if got := defaultGrid.stepsOf(pat, 1, 64); !reflect.DeepEqual(seq, got) {
		t.Errorf("want %v, got %v", seq, got)
	}
	want := make([]int, 16)
	want[0] = 1
	if got := defaultGrid.stepsOf(pat, 1, 65); !reflect.DeepEqual(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestParseTimeSignature(t *testing.T) {
	sig, err := parseTimeSignature("6/8")
	if err != nil {
		t.Fatal(err)
	}
	if want := (timeSig{num: 6, denom: 8}); sig != want {
		t.Errorf("want %v, got %v", want, sig)
	}
	for _, s := range []string{"", "6", "6/8/2", "6/6", "-1/4", "x/4"} {
		if _, err := parseTimeSignature(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrdg/chipvibe/dub"
	"github.com/mrdg/chipvibe/song"
)

type timeSig struct {
	num   int
	denom int
}

func (t timeSig) String() string { return fmt.Sprintf("%d/%d", t.num, t.denom) }

// grid is the step grid used to turn match expressions into notes. Tempo is always
// specified as a quarter note value, i.e. ♩ = 120, regardless of the time signature.
type grid struct {
	timeSig  timeSig
	stepSize int // steps per whole note
	triplets bool
}

var defaultGrid = grid{timeSig: timeSig{num: 4, denom: 4}, stepSize: 16}

func newGrid(sig string, stepSize int, triplets bool) (grid, error) {
	t, err := parseTimeSignature(sig)
	if err != nil {
		return grid{}, err
	}
	g := grid{timeSig: t, stepSize: stepSize, triplets: triplets}
	if stepSize < 4 || stepSize%t.denom != 0 || g.steps()%t.denom != 0 {
		return grid{}, fmt.Errorf("%d steps don't divide into %v", stepSize, t)
	}
	return g, nil
}

// steps returns the number of grid steps in a whole note.
func (g grid) steps() int {
	if g.triplets {
		return g.stepSize * 3 / 2
	}
	return g.stepSize
}

// length returns the number of steps in a bar.
func (g grid) length() int {
	return g.steps() / g.timeSig.denom * g.timeSig.num
}

// stepBeats returns the duration of a step in beats.
func (g grid) stepBeats() float64 {
	return 4 / float64(g.steps())
}

// beats returns the length of a bar in beats.
func (g grid) beats() float64 {
	return float64(g.length()) * g.stepBeats()
}

func (g grid) String() string {
	s := fmt.Sprintf("%v %d", g.timeSig, g.stepSize)
	if g.triplets {
		s += " triplets"
	}
	return s
}

// sequence evaluates expr into a step sequence of one bar.
func (g grid) sequence(expr dub.MatchExpr) ([]int, error) {
	return dub.EvalMatchExpr(expr, g.timeSig.denom, g.length(), g.stepSize, g.triplets)
}

// notes returns a note on every step of seq that is set. Notes last one step.
func (g grid) notes(seq []int, channel, pitch int, velocity float64) []song.Note {
	var notes []song.Note
	step := g.stepBeats()
	for i, v := range seq {
		if v == 0 {
			continue
		}
		notes = append(notes, song.Note{
			Start:    float64(i) * step,
			Duration: step,
			Pitch:    pitch,
			Velocity: velocity,
			Channel:  channel,
		})
	}
	return notes
}

// stepsOf returns the grid steps of the pattern notes with the given channel and pitch.
func (g grid) stepsOf(pat *song.Pattern, channel, pitch int) []int {
	seq := make([]int, int(pat.Length/g.stepBeats()+0.5))
	for _, n := range pat.Notes {
		if n.Channel != channel || n.Pitch != pitch {
			continue
		}
		if i := int(n.Start/g.stepBeats() + 0.5); i < len(seq) {
			seq[i] = 1
		}
	}
	return seq
}

// setNotes replaces the notes of pat that play pitch on channel.
func setNotes(pat *song.Pattern, channel, pitch int, notes []song.Note) {
	kept := pat.Notes[:0]
	for _, n := range pat.Notes {
		if n.Channel != channel || n.Pitch != pitch {
			kept = append(kept, n)
		}
	}
	pat.Notes = kept
	for _, n := range notes {
		pat.AddNote(n)
	}
}

func parseTimeSignature(s string) (timeSig, error) {
	var t timeSig
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return t, fmt.Errorf("not a valid time signature: %s", s)
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return t, fmt.Errorf("bad numerator %s: %s", parts[0], err)
	}
	denom, err := strconv.Atoi(parts[1])
	if err != nil {
		return t, fmt.Errorf("bad denominator %s: %s", parts[1], err)
	}
	if num < 1 || denom < 1 || denom&(denom-1) != 0 {
		return t, fmt.Errorf("not a valid time signature: %s", s)
	}
	return timeSig{num: num, denom: denom}, nil
}

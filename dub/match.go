package dub

import (
	"fmt"
	"math"
)

type matchItem struct {
	level   int
	matcher matcher
}

type matcher interface {
	match(i int) bool
}

type rangeMatch struct {
	start, end int
}

func (r rangeMatch) match(i int) bool {
	return (i >= r.start || r.start == -1) && (i <= r.end || r.end == -1)
}

var matchAll = rangeMatch{-1, -1}

type listMatch []int

func (l listMatch) match(i int) bool {
	for _, k := range l {
		if k == i {
			return true
		}
	}
	return false
}

// EvalMatchExpr returns a step sequence of the given length for expr. Match levels are
// relative to the quarter note: level 0 matches quarters, level 1 eighths and so on. The
// grid has stepSize steps per whole note; with triplets every level below the quarter
// is divided in three instead of two.
func EvalMatchExpr(expr MatchExpr, denominator, length, stepSize int, triplets bool) ([]int, error) {
	if denominator <= 0 || stepSize%denominator != 0 {
		return nil, fmt.Errorf("can't divide %d steps into beats of 1/%d", stepSize, denominator)
	}
	steps := stepSize
	if triplets {
		steps = stepSize * 3 / 2
	}
	seq := make([]int, length)

	for i := len(expr.matchers) - 1; i >= 0; i-- {
		item := expr.matchers[i]
		level := int(4 * math.Pow(2.0, float64(item.level)))
		notesPerBeat := level / 4
		if triplets && item.level > 0 {
			level = level * 3 / 2
			notesPerBeat = level / 4
		}
		if level > steps || steps%level != 0 {
			return nil, fmt.Errorf("can't match on %d notes with step size %d", level, stepSize)
		}
		skip := steps / level

		for note, count := 0, 0; note < len(seq); note += skip {
			// calculate a note number relative to other notes on the same division, e.g.
			// the 16th notes within a beat are numbered 0 to 3
			noteNum := count % notesPerBeat
			if notesPerBeat == 1 {
				noteNum = count
			}
			count++

			// add 1 because match expects note numbers to start at 1
			if item.matcher.match(noteNum + 1) {
				if i == len(expr.matchers)-1 {
					seq[note] = 1
				}
			} else {
				// zero steps that are unmatched by the current level
				for i := note; i < min(note+skip, len(seq)); i++ {
					seq[i] = 0
				}
			}
		}
	}
	return seq, nil
}

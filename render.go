package main

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mrdg/chipvibe/audio"
	"github.com/mrdg/chipvibe/song"
)

var (
	channelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pitchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	numberStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type row struct {
	channel int
	pitch   int
}

// patternRows returns the (channel, pitch) pairs used in pat, in channel order.
func patternRows(pat *song.Pattern) []row {
	var rows []row
	for _, n := range pat.Notes {
		r := row{channel: n.Channel, pitch: n.Pitch}
		if !slices.Contains(rows, r) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b row) int {
		if a.channel != b.channel {
			return a.channel - b.channel
		}
		return b.pitch - a.pitch
	})
	return rows
}

func renderPattern(w io.Writer, pat *song.Pattern, g grid) {
	const nameLen = 13
	const spacePerStep = 4

	length := int(pat.Length/g.stepBeats() + 0.5)
	stepsPerBeat := max(1, g.steps()/g.timeSig.denom)

	var icons []string
	for i := 1; i <= (length+stepsPerBeat-1)/stepsPerBeat; i++ {
		icons = append(icons, numIcon(i))
	}
	spacing := stepsPerBeat*spacePerStep - 1
	beats := strings.Join(icons, strings.Repeat(" ", spacing))
	fmt.Fprintf(w, "%s %s  %s\n", headerStyle.Render(fmt.Sprintf("%-*s", nameLen, fmt.Sprintf("pattern %d", pat.ID))), "♩", beats)

	rows := patternRows(pat)
	if len(rows) == 0 {
		fmt.Fprintln(w, dimStyle.Render("(empty)"))
	}
	for _, r := range rows {
		var steps strings.Builder
		for _, v := range g.stepsOf(pat, r.channel, r.pitch) {
			step := "⬜️"
			if v > 0 {
				step = "⬛️"
			}
			steps.WriteString(step + "  ")
		}
		name := channelStyle.Render(fmt.Sprintf("%-9s", song.ChannelName(r.channel)))
		pitch := pitchStyle.Render(fmt.Sprintf("%-4s", noteName(r.pitch)))
		fmt.Fprintf(w, "%s%s %s\n", name, pitch, steps.String())
	}

	var numbers strings.Builder
	for step := 1; step <= length; step++ {
		space := spacePerStep - 2
		if step < 9 {
			space++
		}
		numbers.WriteString(strconv.Itoa(step) + strings.Repeat(" ", space))
	}
	fmt.Fprint(w, strings.Repeat(" ", nameLen+4)+numberStyle.Render(numbers.String()))
}

func renderStatus(w io.Writer, p *song.Project, m audio.Metrics) {
	transport := "stopped"
	if m.Playing {
		transport = "playing"
	}
	loop := "off"
	if p.Loop.Enabled() {
		loop = fmt.Sprintf("%v-%v", p.Loop.Start, p.Loop.End)
	}
	fmt.Fprintf(w, "%s  ♩ = %v  beat %.2f  loop %s\n",
		headerStyle.Render(transport), p.Tempo, m.Playhead, loop)
	fmt.Fprintf(w, "voices %d  load %.1f%%  master %+.1f dB\n", m.ActiveVoices, m.Load, p.Master.Gain)
	if n := m.DroppedCommands + m.InvalidCommands + m.SkippedEvents; n > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("dropped %d  invalid %d  skipped %d",
			m.DroppedCommands, m.InvalidCommands, m.SkippedEvents)))
	}

	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%-9s %-8s %7s %6s", "channel", "wave", "gain", "pan")))
	for i, ch := range p.Channels {
		speaker := "🔈"
		switch {
		case ch.Mixer.Mute:
			speaker = "🔇"
		case ch.Mixer.Solo:
			speaker = "🎧"
		}
		fmt.Fprintf(w, "%s %-8s %+7.1f %+6.2f %s",
			channelStyle.Render(fmt.Sprintf("%-9s", song.ChannelName(i))),
			ch.Oscillator.Wave, ch.Mixer.Gain, ch.Mixer.Pan, speaker)
		if i < len(p.Channels)-1 {
			fmt.Fprintln(w)
		}
	}
}

func renderProps(w io.Writer, p *audio.Props) {
	keys := p.Keys()
	for i, k := range keys {
		v, _ := p.Get(k)
		fmt.Fprintf(w, "%-16s %v", k, v)
		if i < len(keys)-1 {
			fmt.Fprintln(w)
		}
	}
}

func displayName(filename string) string {
	if filename == "" {
		return "untitled"
	}
	filename = filepath.Base(filename)
	return filename[:len(filename)-len(filepath.Ext(filename))]
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noteName converts a MIDI note to a readable name, e.g. 60 is C4.
func noteName(pitch int) string {
	return noteNames[pitch%12] + strconv.Itoa(pitch/12-1)
}

func numIcon(n int) string {
	// https://www.unicode.org/emoji/charts/full-emoji-list.html#0030_fe0f_20e3
	return string([]byte{48 + byte(n%10), 239, 184, 143, 226, 131, 163})
}

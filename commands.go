package main

import (
	"fmt"
	"strings"

	"github.com/mrdg/chipvibe/audio"
	"github.com/mrdg/chipvibe/dub"
	"github.com/mrdg/chipvibe/song"
)

func playCommand(env *env, args []dub.Node) (dub.Node, error) {
	return nil, env.engine.Send(audio.Play())
}

func stopCommand(env *env, args []dub.Node) (dub.Node, error) {
	return nil, env.engine.Send(audio.Stop())
}

func seekCommand(env *env, args []dub.Node) (dub.Node, error) {
	var beat float64
	if err := readArgs(args[:1], &beat); err != nil {
		return nil, err
	}
	if beat < 0 {
		return nil, fmt.Errorf("beat must not be negative: %v", beat)
	}
	cut := false
	if len(args) > 1 {
		var flag string
		if err := readArgs(args[1:], &flag); err != nil {
			return nil, err
		}
		if flag != "cut" {
			return nil, fmt.Errorf("unknown seek option: %s", flag)
		}
		cut = true
	}
	return nil, env.engine.Send(audio.Seek(beat, cut))
}

func tempoCommand(env *env, args []dub.Node) (dub.Node, error) {
	var bpm float64
	if err := readArgs(args, &bpm); err != nil {
		return nil, err
	}
	if bpm <= 0 || bpm > 999 {
		return nil, fmt.Errorf("tempo out of range 1-999: %v", bpm)
	}
	return nil, env.send(audio.SetTempo(bpm))
}

func loopCommand(env *env, args []dub.Node) (dub.Node, error) {
	if len(args) == 1 {
		var off string
		if err := readArgs(args, &off); err != nil || off != "off" {
			return nil, fmt.Errorf("expected loop <start> <end> or loop off")
		}
		return nil, env.send(audio.SetLoop(0, 0))
	}
	var start, end float64
	if err := readArgs(args, &start, &end); err != nil {
		return nil, err
	}
	if start < 0 || end <= start {
		return nil, fmt.Errorf("invalid loop region %v - %v", start, end)
	}
	return nil, env.send(audio.SetLoop(float32(start), float32(end)))
}

func noteCommand(env *env, args []dub.Node) (dub.Node, error) {
	var name string
	var pitch int
	velocity := 1.0
	if len(args) > 2 {
		if err := readArgs(args, &name, &pitch, &velocity); err != nil {
			return nil, err
		}
	} else if err := readArgs(args, &name, &pitch); err != nil {
		return nil, err
	}
	ch, err := env.channel(name)
	if err != nil {
		return nil, err
	}
	if pitch < 0 || pitch > 127 {
		return nil, fmt.Errorf("pitch out of range 0-127: %v", pitch)
	}
	if velocity < 0 || velocity > 1 {
		return nil, fmt.Errorf("velocity out of range 0-1: %v", velocity)
	}
	// sequencer notes use the top bit
	env.nextNoteID = (env.nextNoteID + 1) &^ (1 << 31)
	id := env.nextNoteID
	if err := env.engine.Send(audio.NoteOn(ch, pitch, float32(velocity), id)); err != nil {
		return nil, err
	}
	return dub.Int(id), nil
}

func offCommand(env *env, args []dub.Node) (dub.Node, error) {
	var id int
	if err := readArgs(args, &id); err != nil {
		return nil, err
	}
	return nil, env.engine.Send(audio.NoteOff(uint32(id)))
}

func setCommand(env *env, args []dub.Node) (dub.Node, error) {
	var device, prop string
	if err := readArgs(args[:2], &device, &prop); err != nil {
		return nil, err
	}
	v, err := value(args[2])
	if err != nil {
		return nil, err
	}
	return nil, env.setProp(device, prop, v)
}

func getCommand(env *env, args []dub.Node) (dub.Node, error) {
	var device, prop string
	if err := readArgs(args, &device, &prop); err != nil {
		return nil, err
	}
	v, err := env.getProp(device, prop)
	if err != nil {
		return nil, err
	}
	return dub.String(fmt.Sprint(v)), nil
}

func propsCommand(env *env, args []dub.Node) (dub.Node, error) {
	var device string
	if err := readArgs(args, &device); err != nil {
		return nil, err
	}
	dev, ok := env.devices[device].(*audio.Props)
	if !ok {
		return nil, fmt.Errorf("unknown device: %s", device)
	}
	var b strings.Builder
	renderProps(&b, dev)
	return dub.String(b.String()), nil
}

func presetCommand(env *env, args []dub.Node) (dub.Node, error) {
	if len(args) == 1 {
		var list string
		if err := readArgs(args, &list); err != nil || list != "list" {
			return nil, fmt.Errorf("expected preset <device> <name> or preset list")
		}
		return dub.String(strings.Join(audio.Presets(), " ")), nil
	}
	var device, name string
	if err := readArgs(args, &device, &name); err != nil {
		return nil, err
	}
	dev, ok := env.devices[device]
	if !ok {
		return nil, fmt.Errorf("unknown device: %s", device)
	}
	return nil, audio.LoadPreset(name, dev)
}

func gridCommand(env *env, args []dub.Node) (dub.Node, error) {
	var sig string
	var steps int
	if err := readArgs(args[:2], &sig, &steps); err != nil {
		return nil, err
	}
	triplets := false
	if len(args) > 2 {
		var opt string
		if err := readArgs(args[2:], &opt); err != nil || opt != "triplets" {
			return nil, fmt.Errorf("expected grid <beats>/<note value> <steps> [triplets]")
		}
		triplets = true
	}
	g, err := newGrid(sig, steps, triplets)
	if err != nil {
		return nil, err
	}
	env.grid = g
	return dub.String(g.String()), nil
}

func patternCommand(env *env, args []dub.Node) (dub.Node, error) {
	var id, pitch int
	var name string
	var expr dub.MatchExpr
	if err := readArgs(args, &id, &name, &pitch, &expr); err != nil {
		return nil, err
	}
	ch, err := env.channel(name)
	if err != nil {
		return nil, err
	}
	seq, err := env.grid.sequence(expr)
	if err != nil {
		return nil, err
	}
	err = env.update(func(p *song.Project) error {
		pat, ok := p.Pattern(id)
		if !ok {
			p.Patterns = append(p.Patterns, song.Pattern{ID: id, Length: env.grid.beats()})
			pat = &p.Patterns[len(p.Patterns)-1]
		}
		if pat.Length != env.grid.beats() {
			return fmt.Errorf("pattern %d is %v beats long, the grid bar is %v", id, pat.Length, env.grid.beats())
		}
		setNotes(pat, ch, pitch, env.grid.notes(seq, ch, pitch, 1))
		return nil
	})
	if err != nil {
		return nil, err
	}
	pat, _ := env.project.Pattern(id)
	var b strings.Builder
	renderPattern(&b, pat, env.grid)
	return dub.String(b.String()), nil
}

func clearCommand(env *env, args []dub.Node) (dub.Node, error) {
	var id int
	if err := readArgs(args, &id); err != nil {
		return nil, err
	}
	return nil, env.update(func(p *song.Project) error {
		pat, ok := p.Pattern(id)
		if !ok {
			return fmt.Errorf("unknown pattern: %d", id)
		}
		pat.Notes = nil
		return nil
	})
}

func showCommand(env *env, args []dub.Node) (dub.Node, error) {
	var id int
	if err := readArgs(args, &id); err != nil {
		return nil, err
	}
	pat, ok := env.project.Pattern(id)
	if !ok {
		return nil, fmt.Errorf("unknown pattern: %d", id)
	}
	var b strings.Builder
	renderPattern(&b, pat, env.grid)
	return dub.String(b.String()), nil
}

func placeCommand(env *env, args []dub.Node) (dub.Node, error) {
	var id int
	var beat float64
	if err := readArgs(args[:2], &id, &beat); err != nil {
		return nil, err
	}
	mask := song.AllChannels
	if len(args) > 2 {
		mask = 0
		for _, arg := range args[2:] {
			var name string
			if err := readArgs([]dub.Node{arg}, &name); err != nil {
				return nil, err
			}
			ch, err := env.channel(name)
			if err != nil {
				return nil, err
			}
			mask |= 1 << uint(ch)
		}
	}
	return nil, env.update(func(p *song.Project) error {
		p.Timeline = append(p.Timeline, song.Placement{Start: beat, Pattern: id, Channels: mask})
		return nil
	})
}

func unplaceCommand(env *env, args []dub.Node) (dub.Node, error) {
	var id int
	var beat float64
	if err := readArgs(args, &id, &beat); err != nil {
		return nil, err
	}
	return nil, env.update(func(p *song.Project) error {
		for i, pl := range p.Timeline {
			if pl.Pattern == id && pl.Start == beat {
				p.Timeline = append(p.Timeline[:i], p.Timeline[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("pattern %d is not placed at beat %v", id, beat)
	})
}

func saveCommand(env *env, args []dub.Node) (dub.Node, error) {
	if env.path == "" {
		return nil, fmt.Errorf("project has no file yet, use saveas")
	}
	return nil, song.Save(env.path, env.project)
}

func saveAsCommand(env *env, args []dub.Node) (dub.Node, error) {
	var path string
	if err := readArgs(args, &path); err != nil {
		return nil, err
	}
	if err := song.Save(path, env.project); err != nil {
		return nil, err
	}
	env.path = path
	return nil, nil
}

func loadCommand(env *env, args []dub.Node) (dub.Node, error) {
	var path string
	if err := readArgs(args, &path); err != nil {
		return nil, err
	}
	p, err := song.Load(path)
	if err != nil {
		return nil, err
	}
	if err := env.setProject(p); err != nil {
		return nil, err
	}
	env.path = path
	return nil, nil
}

func importCommand(env *env, args []dub.Node) (dub.Node, error) {
	var path string
	if err := readArgs(args, &path); err != nil {
		return nil, err
	}
	p, err := song.ImportMIDIFile(path)
	if err != nil {
		return nil, err
	}
	if err := env.setProject(p); err != nil {
		return nil, err
	}
	env.path = ""
	return dub.String(fmt.Sprintf("imported %d patterns at %v BPM", len(p.Patterns), p.Tempo)), nil
}

func wavetableCommand(env *env, args []dub.Node) (dub.Node, error) {
	var name, path string
	if err := readArgs(args, &name, &path); err != nil {
		return nil, err
	}
	ch, err := env.channel(name)
	if err != nil {
		return nil, err
	}
	table, err := song.LoadWavetable(path)
	if err != nil {
		return nil, err
	}
	return nil, env.update(func(p *song.Project) error {
		p.Channels[ch].Oscillator.Wavetable = table
		return nil
	})
}

func renderCommand(env *env, args []dub.Node) (dub.Node, error) {
	var path string
	var beats float64
	if err := readArgs(args, &path, &beats); err != nil {
		return nil, err
	}
	frames, err := renderFile(path, env.project, beats, env.sampleRate, env.blockSize)
	if err != nil {
		return nil, err
	}
	return dub.String(fmt.Sprintf("wrote %d frames to %s", frames, path)), nil
}

func statusCommand(env *env, args []dub.Node) (dub.Node, error) {
	var b strings.Builder
	renderStatus(&b, env.project, env.engine.Metrics())
	return dub.String(b.String()), nil
}

func helpCommand(env *env, args []dub.Node) (dub.Node, error) {
	var b strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&b, "%-10s %s\n", cmd.name, cmd.help)
	}
	return dub.String(strings.TrimSuffix(b.String(), "\n")), nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mrdg/chipvibe/audio"
	"github.com/mrdg/chipvibe/config"
	"github.com/mrdg/chipvibe/dub"
	"github.com/mrdg/chipvibe/song"
)

const masterDevice = "master"

// env is the editor state. It owns the project model; the engine only ever sees
// validated copies of it.
type env struct {
	engine     *audio.Engine
	project    *song.Project
	path       string
	devices    map[string]audio.Device
	grid       grid
	nextNoteID uint32
	sampleRate int
	blockSize  int
}

func newEnv(engine *audio.Engine, cfg *config.Config) *env {
	return &env{
		engine:     engine,
		grid:       defaultGrid,
		sampleRate: cfg.SampleRate,
		blockSize:  cfg.BlockSize,
	}
}

// send hands cmd to the audio thread and mirrors it into the project so a saved project
// sounds like what is playing.
func (e *env) send(cmd audio.Command) error {
	if err := e.engine.Send(cmd); err != nil {
		return err
	}
	cmd.ApplyTo(e.project)
	return nil
}

// setProject publishes p and rebuilds the parameter registries from it.
func (e *env) setProject(p *song.Project) error {
	if err := e.engine.LoadProject(p); err != nil {
		return err
	}
	e.project = p
	e.devices = make(map[string]audio.Device, song.NumChannels+1)
	for i, ch := range p.Channels {
		e.devices[song.ChannelName(i)] = audio.NewChannelProps(i, ch, e.send)
	}
	e.devices[masterDevice] = audio.NewMasterProps(p.Master, e.send)
	return nil
}

// update applies f to a copy of the project and publishes the copy. When f or
// validation fails the current project stays in place.
func (e *env) update(f func(p *song.Project) error) error {
	p := e.project.Clone()
	if err := f(p); err != nil {
		return err
	}
	if err := e.engine.LoadProject(p); err != nil {
		return err
	}
	e.project = p
	return nil
}

func (e *env) channel(name string) (int, error) {
	ch, ok := song.ChannelIndex(name)
	if !ok {
		return 0, fmt.Errorf("unknown channel: %s", name)
	}
	return ch, nil
}

func (e *env) setProp(device, prop string, v interface{}) error {
	dev, ok := e.devices[device]
	if !ok {
		return fmt.Errorf("unknown device: %s", device)
	}
	return dev.Set(prop, v)
}

func (e *env) getProp(device, prop string) (interface{}, error) {
	dev, ok := e.devices[device]
	if !ok {
		return nil, fmt.Errorf("unknown device: %s", device)
	}
	return dev.Get(prop)
}

// eval runs the commands on a line and returns the result of the last one. It stops at
// the first error.
func (e *env) eval(input string) (dub.Node, error) {
	cmds, err := dub.ParseLine(input)
	if err != nil {
		return nil, err
	}
	var result dub.Node
	for _, cmd := range cmds {
		if result, err = e.run(cmd); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (e *env) run(command dub.Command) (dub.Node, error) {
	name := string(command.Name)
	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}
		if cmd.arity < 0 {
			arity := -cmd.arity
			if len(command.Args) < arity {
				return nil, fmt.Errorf("%s: wrong number of arguments: need at least %v, got %v",
					cmd.name, arity, len(command.Args))
			}
		} else if len(command.Args) != cmd.arity {
			return nil, fmt.Errorf("%s: wrong number of arguments: want %v, got %v",
				cmd.name, cmd.arity, len(command.Args))
		}
		result, err := cmd.run(e, command.Args)
		if err != nil {
			return result, fmt.Errorf("%s error: %w", cmd.name, err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("unknown command: %s", name)
}

func repl(env *env, history string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "> ",
		HistoryFile:  history,
		AutoComplete: completer(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF {
			return err
		}
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if result, err := env.eval(line); err != nil {
			fmt.Println(err)
		} else if result != nil {
			fmt.Println(result)
		}
	}
}

func completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands {
		items = append(items, readline.PcItem(cmd.name))
	}
	return readline.NewPrefixCompleter(items...)
}

type command struct {
	name  string
	run   func(*env, []dub.Node) (dub.Node, error)
	arity int // -n means len(args) must be >= n
	help  string
}

var commands []command

func init() {
	commands = []command{
		{"play", playCommand, 0, "start the sequencer"},
		{"stop", stopCommand, 0, "stop the sequencer and release all notes"},
		{"seek", seekCommand, -1, "seek <beat> [cut]"},
		{"tempo", tempoCommand, 1, "tempo <bpm>"},
		{"loop", loopCommand, -1, "loop <start> <end> | loop off"},
		{"note", noteCommand, -2, "note <channel> <pitch> [velocity]"},
		{"off", offCommand, 1, "off <note id>"},
		{"set", setCommand, 3, "set <device> <property> <value>"},
		{"get", getCommand, 2, "get <device> <property>"},
		{"props", propsCommand, 1, "props <device>"},
		{"preset", presetCommand, -1, "preset <device> <name> | preset list"},
		{"grid", gridCommand, -2, "grid <beats>/<note value> <steps> [triplets]"},
		{"pattern", patternCommand, 4, "pattern <id> <channel> <pitch> '<match expression>"},
		{"clear", clearCommand, 1, "clear <pattern id>"},
		{"show", showCommand, 1, "show <pattern id>"},
		{"place", placeCommand, -2, "place <pattern id> <beat> [channel...]"},
		{"unplace", unplaceCommand, 2, "unplace <pattern id> <beat>"},
		{"save", saveCommand, 0, "save the project to its file"},
		{"saveas", saveAsCommand, 1, "saveas <file>"},
		{"load", loadCommand, 1, "load <file>"},
		{"import", importCommand, 1, "import <midi file>"},
		{"wavetable", wavetableCommand, 2, "wavetable <channel> <wav file>"},
		{"render", renderCommand, 2, "render <wav file> <beats>"},
		{"status", statusCommand, 0, "show transport and mixer state"},
		{"help", helpCommand, 0, "list commands"},
	}
}

func readArgs(args []dub.Node, slots ...interface{}) error {
	if len(args) != len(slots) {
		return errors.New("not enough arguments")
	}
	for n, arg := range args {
		dest := slots[n]
		switch p := dest.(type) {
		case *string:
			switch s := arg.(type) {
			case dub.String:
				*p = string(s)
			case dub.Identifier:
				*p = string(s)
			case dub.Fraction:
				*p = s.String()
			default:
				return fmt.Errorf("argument error: expected a string or identifier")
			}
		case *float64:
			switch n := arg.(type) {
			case dub.Int:
				*p = float64(n)
			case dub.Float:
				*p = float64(n)
			default:
				return fmt.Errorf("argument error: expected a number")
			}
		case *int:
			n, ok := arg.(dub.Int)
			if !ok {
				return fmt.Errorf("argument error: expected an integer")
			}
			*p = int(n)
		case *dub.MatchExpr:
			expr, ok := arg.(dub.MatchExpr)
			if !ok {
				return fmt.Errorf("argument error: expected a match expression")
			}
			*p = expr
		default:
			panic("readArgs: unhandled destination type: " + fmt.Sprint(p))
		}
	}
	return nil
}

// value converts a literal argument to a property value.
func value(arg dub.Node) (interface{}, error) {
	switch v := arg.(type) {
	case dub.Int:
		return int(v), nil
	case dub.Float:
		return float64(v), nil
	case dub.String:
		return string(v), nil
	case dub.Identifier:
		return string(v), nil
	}
	return nil, fmt.Errorf("unsupported property value: %v", arg)
}

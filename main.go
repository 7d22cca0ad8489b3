package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mrdg/chipvibe/audio"
	"github.com/mrdg/chipvibe/config"
	"github.com/mrdg/chipvibe/song"
)

func main() {
	var (
		configFile = flag.String("config", "", "settings file (default ~/.config/chipvibe/config.yaml)")
		sampleRate = flag.Int("rate", 0, "sample rate")
		blockSize  = flag.Int("block", 0, "frames per audio callback")
		backend    = flag.String("backend", "", "audio backend: portaudio, oto or none")
		drain      = flag.Int("drain", 0, "commands applied per audio block")
		run        = flag.String("run", "", "file with commands to run at startup")
		monitor    = flag.Bool("monitor", false, "show the live monitor instead of the prompt")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rate":
			cfg.SampleRate = *sampleRate
		case "block":
			cfg.BlockSize = *blockSize
		case "backend":
			cfg.Backend = *backend
		case "drain":
			cfg.DrainPerBlock = *drain
		}
	})
	if flag.NArg() > 0 {
		cfg.Project = flag.Arg(0)
	}

	sink, err := audio.NewBackend(cfg.Backend)
	if err != nil {
		log.Fatal(err)
	}
	engine := audio.NewEngine(sink, audio.Options{DrainPerBlock: cfg.DrainPerBlock})
	if err := engine.Start(cfg.SampleRate, cfg.BlockSize, 2); err != nil {
		log.Fatal(err)
	}
	defer engine.Stop()

	project := song.New()
	if cfg.Project != "" {
		p, err := song.Load(cfg.Project)
		switch {
		case err == nil:
			project = p
		case errors.Is(err, os.ErrNotExist):
			log.Printf("%s does not exist yet, starting an empty project", cfg.Project)
		default:
			log.Fatal(err)
		}
	}

	env := newEnv(engine, cfg)
	env.path = cfg.Project
	if err := env.setProject(project); err != nil {
		log.Fatal(err)
	}

	if *run != "" {
		if err := runScript(env, *run); err != nil {
			log.Fatal(err)
		}
	}

	if *monitor {
		err = runMonitor(env)
	} else {
		err = repl(env, cfg.HistoryPath())
	}
	if err != nil && err != io.EOF {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func runScript(env *env, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if _, err := env.eval(scanner.Text()); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
	}
	return scanner.Err()
}

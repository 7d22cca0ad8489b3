package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mrdg/chipvibe/audio"
)

const refreshInterval = 50 * time.Millisecond

type monitor struct {
	env      *env
	err      error
	quitting bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m monitor) Init() tea.Cmd {
	return tick()
}

func (m monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case " ", "p":
			if m.env.engine.Metrics().Playing {
				m.err = m.env.engine.Send(audio.Stop())
			} else {
				m.err = m.env.engine.Send(audio.Play())
			}
		case "0", "home":
			m.err = m.env.engine.Send(audio.Seek(0, false))
		case "+", "=":
			m.err = m.env.send(audio.SetTempo(min(999, m.env.project.Tempo+5)))
		case "-", "_":
			m.err = m.env.send(audio.SetTempo(max(1, m.env.project.Tempo-5)))
		}
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m monitor) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", headerStyle.Render(displayName(m.env.path)))
	renderStatus(&b, m.env.project, m.env.engine.Metrics())
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(warnStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render("space:play/stop  0:rewind  +/-:tempo  q:quit") + "\n")
	return b.String()
}

func runMonitor(env *env) error {
	_, err := tea.NewProgram(monitor{env: env}, tea.WithAltScreen()).Run()
	return err
}

package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// model is the bubbletea Elm-architecture dashboard, the same
// Init/Update/View shape executor/main.go's model uses for its
// Battlesnake self-play run, repointed at Go self-play counters.
type model struct {
	stats     *runStats
	startedAt time.Time
	done      bool
}

type tickMsg struct{}
type doneMsg struct{}
type clockMsg time.Time

func newModel(stats *runStats) model {
	return model{stats: stats, startedAt: time.Now()}
}

func (m model) Init() tea.Cmd {
	return tickClock()
}

func tickClock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		return m, tea.Quit
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case clockMsg:
		return m, tickClock()
	case tickMsg:
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	elapsed := time.Since(m.startedAt).Round(time.Second)
	games := m.stats.gamesFinished.Load()
	moves := m.stats.movesPlayed.Load()
	sims := m.stats.simsRun.Load()

	gamesPerSec := float64(games) / elapsed.Seconds()
	simsPerSec := float64(sims) / elapsed.Seconds()

	status := "running"
	if m.done {
		status = "done"
	}

	return fmt.Sprintf(
		"deepgo self-play  [%s]\nelapsed: %s\ngames:   %d (%.2f/s)\nmoves:   %d\nsims:    %d (%.0f/s)\n\npress any key to quit\n",
		status, elapsed, games, gamesPerSec, moves, sims, simsPerSec,
	)
}

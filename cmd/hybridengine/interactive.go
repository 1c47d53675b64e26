package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/2Jaeheon/cascading-hybrid-search-engine"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run a REPL that searches the index for each query you enter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := retrieval.New(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()
		if _, err := engine.Load(); err != nil {
			return err
		}

		if !isatty.IsTerminal(os.Stdout.Fd()) {
			return plainREPL(engine)
		}

		program := tea.NewProgram(newReplModel(engine))
		_, err = program.Run()
		return err
	},
}

// plainREPL is the non-TTY fallback: a query per line of stdin, results
// printed as plain text. Used when stdout isn't a terminal (piped output,
// CI logs) where a full-screen bubbletea program wouldn't render sensibly.
func plainREPL(engine *retrieval.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		query := scanner.Text()
		if query == "" {
			continue
		}
		results, err := engine.Search(context.Background(), query)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		printResults(results)
	}
	return scanner.Err()
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
)

type replModel struct {
	engine  *retrieval.Engine
	input   string
	results []retrieval.Result
	err     error
}

func newReplModel(engine *retrieval.Engine) replModel {
	return replModel{engine: engine}
}

func (m replModel) Init() tea.Cmd {
	return nil
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		if m.input == "" {
			return m, nil
		}
		results, err := m.engine.Search(context.Background(), m.input)
		m.results = results
		m.err = err
		return m, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeyRunes:
		m.input += string(keyMsg.Runes)
		return m, nil
	}
	return m, nil
}

func (m replModel) View() string {
	view := promptStyle.Render("search> ") + m.input + "\n\n"
	if m.err != nil {
		view += resultStyle.Render(m.err.Error()) + "\n"
		return view
	}
	for i, r := range m.results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		view += fmt.Sprintf("%s %s — %s\n",
			scoreStyle.Render(fmt.Sprintf("%2d. [%.4f]", i+1, r.Score)),
			r.DocID, resultStyle.Render(title))
	}
	view += "\n(esc to quit)"
	return view
}

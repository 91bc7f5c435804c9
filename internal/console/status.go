package console

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"devctl/internal/color"
	"devctl/pkg/logging"
)

type doneMsg struct{}

type statusModel struct {
	spinner spinner.Model
	message string
	done    bool
}

func newStatusModel(message string) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = color.InfoStyle
	return statusModel{spinner: s, message: message}
}

func (m statusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Interrupts are swallowed: subprocesses already dispatched run to completion.
		if msg.Type == tea.KeyCtrlC {
			return m, nil
		}
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m statusModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.message
}

// Status runs fn while showing message with a working indicator, and returns
// fn's error. Lines printed through the Console meanwhile appear above the
// indicator. On a non-terminal the message is printed once instead.
func (c *Console) Status(message string, fn func() error) error {
	if !c.interactive {
		c.Info(message)
		return fn()
	}

	opts := append([]tea.ProgramOption{
		tea.WithOutput(c.out),
		tea.WithoutSignalHandler(),
	}, c.options...)
	p := tea.NewProgram(newStatusModel(message), opts...)

	finished := make(chan struct{})
	c.mu.Lock()
	c.program, c.finished = p, finished
	c.mu.Unlock()

	go func() {
		defer close(finished)
		if _, err := p.Run(); err != nil {
			logging.Debug("Console", "working indicator stopped: %v", err)
		}
	}()

	err := fn()

	// Detach before quitting so later lines are written directly.
	c.mu.Lock()
	c.program, c.finished = nil, nil
	c.mu.Unlock()
	p.Send(doneMsg{})
	<-finished
	return err
}

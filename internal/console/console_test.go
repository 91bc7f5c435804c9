package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_Lines(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Success("ok")
	c.Warning("careful")
	c.Failure("broken")
	c.Printf("%s=%d", "n", 3)

	out := buf.String()
	for _, want := range []string{"ok", "careful", "broken", "n=3"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestConsole_StatusNonInteractive(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	called := false
	err := c.Status("Starting example-service", func() error {
		called = true
		c.Info("inner line")
		return errors.New("failed")
	})
	assert.EqualError(t, err, "failed")
	assert.True(t, called)
	assert.Equal(t, "Starting example-service\ninner line\n", buf.String())
}

func TestConsole_Table(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Table([]string{"NAME", "MODE", "RUNTIME"}, [][]string{
		{"sentry", "default", "containerized"},
		{"snuba-long-name", "full", "local"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "sentry           default  containerized", lines[1])
	assert.Equal(t, "snuba-long-name  full     local", lines[2])
}

func TestStatusModel_SwallowsInterrupt(t *testing.T) {
	m := newStatusModel("working")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	assert.False(t, next.(statusModel).done)

	next, cmd = next.Update(doneMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, next.(statusModel).done)
	assert.Empty(t, next.View())
}

// syncBuffer is a bytes.Buffer safe for the indicator goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func interactiveConsole(out io.Writer) *Console {
	return &Console{out: out, interactive: true, options: []tea.ProgramOption{tea.WithInput(nil)}}
}

func TestConsole_StatusInteractiveKeepsLines(t *testing.T) {
	out := &syncBuffer{}
	c := interactiveConsole(out)

	err := c.Status("Starting sentry", func() error {
		c.Info("inner line")
		return nil
	})
	require.NoError(t, err)
	c.Info("after line")

	assert.Contains(t, out.String(), "inner line")
	assert.Contains(t, out.String(), "after line")
}

func TestConsole_LineAfterIndicatorStopped(t *testing.T) {
	out := &syncBuffer{}
	c := interactiveConsole(out)

	p := tea.NewProgram(newStatusModel("working"), tea.WithOutput(io.Discard), tea.WithInput(nil), tea.WithoutSignalHandler())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = p.Run()
	}()
	p.Send(doneMsg{})
	<-finished

	// The program has stopped but is still attached.
	c.mu.Lock()
	c.program, c.finished = p, finished
	c.mu.Unlock()

	c.Warning("late line")
	assert.Contains(t, out.String(), "late line")
}

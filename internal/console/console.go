// Package console writes operator-facing output: colored status lines, a
// working indicator for long operations, and aligned tables.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"devctl/internal/color"
)

// Console is safe for concurrent use; lines written while a Status indicator
// is active are printed above it.
type Console struct {
	out         io.Writer
	interactive bool

	mu      sync.Mutex
	program *tea.Program
	// finished is closed once program has stopped running.
	finished chan struct{}
	// options are extra program options for the working indicator.
	options []tea.ProgramOption
}

// New returns a Console writing to out. The working indicator is only
// animated when out is a terminal.
func New(out io.Writer) *Console {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{out: out, interactive: interactive}
}

// Stdout returns a Console on os.Stdout.
func Stdout() *Console {
	return New(os.Stdout)
}

func (c *Console) Success(msg string) { c.println(color.SuccessStyle.Render(msg)) }
func (c *Console) Warning(msg string) { c.println(color.WarningStyle.Render(msg)) }
func (c *Console) Failure(msg string) { c.println(color.FailureStyle.Render(msg)) }
func (c *Console) Info(msg string)    { c.println(msg) }

// Printf writes an unstyled formatted line.
func (c *Console) Printf(format string, args ...interface{}) {
	c.println(fmt.Sprintf(format, args...))
}

func (c *Console) println(line string) {
	c.mu.Lock()
	p, finished := c.program, c.finished
	c.mu.Unlock()
	if p != nil {
		select {
		case <-finished:
			// A stopped program drops messages; write directly instead.
		default:
			p.Println(line)
			return
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// Table writes rows under headers with columns aligned by display width.
func (c *Console) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	stateColumns := make(map[int]bool)
	for i, h := range headers {
		switch h {
		case "STATE", "STATUS", "HEALTH":
			stateColumns[i] = true
		}
	}

	format := func(cells []string, colored bool) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i < len(widths)-1 {
				cell = runewidth.FillRight(cell, widths[i])
			}
			// Styling is applied after padding so escape codes do not skew widths.
			if colored && stateColumns[i] {
				cell = color.StateStyle(strings.TrimSpace(cell)).Render(cell)
			}
			parts[i] = cell
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	c.println(color.HeaderStyle.Render(format(headers, false)))
	for _, row := range rows {
		c.println(format(row, c.interactive))
	}
}

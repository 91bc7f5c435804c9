package testutil

import (
	"context"
	"strings"
	"sync"

	"devctl/internal/utils"
)

// Handler answers a command issued to a FakeRunner.
type Handler func(cmd utils.Command) (utils.Result, error)

// FakeRunner is a CommandRunner that records every command and answers
// through Handler. A nil Handler succeeds with empty output.
type FakeRunner struct {
	mu       sync.Mutex
	commands []utils.Command
	Handler  Handler
}

func (f *FakeRunner) Run(_ context.Context, cmd utils.Command) (utils.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	h := f.Handler
	f.mu.Unlock()

	if h == nil {
		return utils.Result{}, nil
	}
	return h(cmd)
}

// Commands returns a copy of everything run so far.
func (f *FakeRunner) Commands() []utils.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]utils.Command(nil), f.commands...)
}

// Lines returns the recorded commands rendered as strings.
func (f *FakeRunner) Lines() []string {
	var out []string
	for _, c := range f.Commands() {
		out = append(out, c.String())
	}
	return out
}

// Matching returns recorded command lines containing every fragment.
func (f *FakeRunner) Matching(fragments ...string) []string {
	var out []string
	for _, line := range f.Lines() {
		ok := true
		for _, frag := range fragments {
			if !strings.Contains(line, frag) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, line)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	f.commands = nil
	f.mu.Unlock()
}

// HasArgs reports whether cmd's argv contains args as a contiguous run.
func HasArgs(cmd utils.Command, args ...string) bool {
	argv := cmd.Argv()
	for i := 0; i+len(args) <= len(argv); i++ {
		match := true
		for j, a := range args {
			if argv[i+j] != a {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

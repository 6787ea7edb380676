package sandbox

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

var consoleLevels = []string{"log", "info", "warn", "error", "debug"}

// maxConsoleEntries bounds what one evaluation may log. Later entries are
// counted and reported in a single trailing entry.
const maxConsoleEntries = 1000

// console collects output of the host-side console injected into a Context.
type console struct {
	mu      sync.Mutex
	entries []LogEntry
	dropped int
}

func (c *console) object(vm *goja.Runtime) (*goja.Object, error) {
	obj := vm.NewObject()
	for _, level := range consoleLevels {
		if err := obj.Set(level, c.makeFunc(level)); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// makeFunc creates a console function
func (c *console) makeFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		c.mu.Lock()
		if len(c.entries) < maxConsoleEntries {
			c.entries = append(c.entries, LogEntry{
				Level:   level,
				Message: strings.Join(parts, " "),
				Time:    time.Now(),
			})
		} else {
			c.dropped++
		}
		c.mu.Unlock()

		return goja.Undefined()
	}
}

// drain returns and clears the collected entries.
func (c *console) drain() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.entries
	if c.dropped > 0 {
		out = append(out, LogEntry{
			Level:   "warn",
			Message: fmt.Sprintf("%d console entries dropped", c.dropped),
			Time:    time.Now(),
		})
	}
	c.entries = nil
	c.dropped = 0
	if out == nil {
		out = []LogEntry{}
	}
	return out
}

// reset discards anything logged since the last drain.
func (c *console) reset() {
	c.mu.Lock()
	c.entries = nil
	c.dropped = 0
	c.mu.Unlock()
}

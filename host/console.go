package host

import (
	"io"
	"strings"
	"sync"
)

const DefaultConsoleLines = 64

// Console collects the labels written during one GUI pass. Lines beyond the
// limit are dropped.
type Console struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func NewConsole(max int) *Console {
	if max <= 0 {
		max = DefaultConsoleLines
	}
	return &Console{max: max}
}

func (c *Console) Label(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) >= c.max {
		return
	}
	c.lines = append(c.lines, text)
}

func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Console) Reset() {
	c.mu.Lock()
	c.lines = c.lines[:0]
	c.mu.Unlock()
}

// WriteTo writes each line followed by a newline.
func (c *Console) WriteTo(w io.Writer) (int64, error) {
	lines := c.Lines()
	if len(lines) == 0 {
		return 0, nil
	}
	n, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return int64(n), err
}

package flags

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// MetricsProvider reports the current host viewport. Providers for hosts
// without a visual surface return ErrNoViewport.
type MetricsProvider interface {
	Viewport() (Viewport, error)
}

// StaticMetrics reports a fixed viewport.
type StaticMetrics Viewport

// Viewport implements MetricsProvider.
func (s StaticMetrics) Viewport() (Viewport, error) {
	return Viewport(s), nil
}

// TerminalMetrics reports the size of the terminal attached to Fd.
type TerminalMetrics struct {
	Fd int
}

// StdoutTerminal returns a provider bound to standard output.
func StdoutTerminal() TerminalMetrics {
	return TerminalMetrics{Fd: int(os.Stdout.Fd())}
}

// Viewport implements MetricsProvider.
func (t TerminalMetrics) Viewport() (Viewport, error) {
	if !term.IsTerminal(t.Fd) {
		return Viewport{}, ErrNoViewport
	}
	width, height, err := term.GetSize(t.Fd)
	if err != nil {
		return Viewport{}, fmt.Errorf("read terminal size: %w", err)
	}
	return Viewport{Width: width, Height: height}, nil
}

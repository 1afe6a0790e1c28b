package shell

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/meals-shell/internal/flags"
)

// ErrAlreadyLaunched is returned by every Launch call after the first.
var ErrAlreadyLaunched = errors.New("application already launched")

// MountPoint references the DOM element the application renders into. It is
// forwarded as given; the shell never creates or checks the element.
type MountPoint struct {
	ElementID string
}

// EntryPoint is the downstream application's initialization call.
type EntryPoint interface {
	Init(mount MountPoint, f flags.Flags)
}

// EntryFunc adapts a function to EntryPoint.
type EntryFunc func(mount MountPoint, f flags.Flags)

// Init implements EntryPoint.
func (fn EntryFunc) Init(mount MountPoint, f flags.Flags) {
	fn(mount, f)
}

// Launcher performs the one-way handoff from flag resolution to the application.
type Launcher struct {
	resolver *flags.Resolver
	entry    EntryPoint
	logger   *zap.Logger

	mu       sync.Mutex
	launched bool
}

// NewLauncher binds a resolver to the entry point it will hand off to.
func NewLauncher(resolver *flags.Resolver, entry EntryPoint, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		resolver: resolver,
		entry:    entry,
		logger:   logger,
	}
}

// Launch resolves the flags and passes them to the entry point. It runs at most
// once per Launcher: later calls return ErrAlreadyLaunched, including after a
// failed first attempt. On resolution failure the entry point is not called.
func (l *Launcher) Launch(source flags.Source, metrics flags.MetricsProvider, mount MountPoint) (flags.Flags, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.launched {
		return flags.Flags{}, ErrAlreadyLaunched
	}
	l.launched = true

	resolved, err := l.resolver.Resolve(source, metrics)
	if err != nil {
		return flags.Flags{}, fmt.Errorf("resolve flags: %w", err)
	}

	l.logger.Info("launching application",
		zap.String("environment", resolved.Environment()),
		zap.String("mount", mount.ElementID),
	)
	l.entry.Init(mount, resolved)
	return resolved, nil
}

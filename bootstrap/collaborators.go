package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/criyle/go-sel/pkg/cgroup"
	"github.com/criyle/go-sel/shim"
	"github.com/criyle/go-sel/validator"
)

// Validator inspects the payload by path
type Validator interface {
	Validate(ctx context.Context, path string) (validator.Result, error)
}

// Qualifier runs the platform self-tests
type Qualifier interface {
	Run(ctx context.Context) error
}

// Domain is a created isolation domain
type Domain interface {
	Path() string
	Usage() (cgroup.Usage, error)
}

// Isolator creates the isolation domain. It returns a nil Domain and no
// error when isolation is unavailable.
type Isolator interface {
	Create(pid int) (Domain, error)
}

// Launcher transfers control to the loaded image
type Launcher interface {
	Start(ctx context.Context, image *os.File, c shim.Config, stdio shim.Stdio) (Process, error)
}

// Process is the running payload
type Process interface {
	Pid() int
	Wait() (shim.Exit, error)
	Kill() error
}

// ShimLauncher adapts the shim launcher
type ShimLauncher struct {
	*shim.Launcher
}

// Start starts the payload through the shim
func (l ShimLauncher) Start(ctx context.Context, image *os.File, c shim.Config, stdio shim.Stdio) (Process, error) {
	p, err := l.Launcher.Start(ctx, image, c, stdio)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CgroupIsolator creates cgroup accounting domains
type CgroupIsolator struct {
	Root     string
	Disabled bool
	Logger   *slog.Logger
}

// Create creates the domain for pid
func (i *CgroupIsolator) Create(pid int) (Domain, error) {
	if i.Disabled {
		return nil, nil
	}
	g, err := cgroup.Create(cgroup.Options{Root: i.Root, PID: pid, Logger: i.Logger})
	if err != nil || g == nil {
		return nil, err
	}
	return g, nil
}

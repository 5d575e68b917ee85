package qualify

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/criyle/go-sel/loader"
	"github.com/criyle/go-sel/pkg/fault"
	"github.com/criyle/go-sel/pkg/memfd"
	"github.com/criyle/go-sel/pkg/pipe"
	"github.com/criyle/go-sel/pkg/seccomp"
	"github.com/criyle/go-sel/shim"
)

const (
	checkTimeout    = 5 * time.Second
	maxCanaryStderr = 4 << 10
)

// Default returns the standard battery. The fault handlers must be installed
// before it runs.
func Default(faults *fault.Manager, l *shim.Launcher) []Check {
	return []Check{
		{Name: "platform", Run: checkPlatform},
		{Name: "seccomp", Run: checkSeccomp},
		{Name: "memfd", Run: checkMemfd},
		{Name: "fault-handlers", Run: func(ctx context.Context) error {
			return checkFaultHandlers(ctx, faults)
		}},
		{Name: "confinement", Run: func(ctx context.Context) error {
			return checkConfinement(ctx, l)
		}},
	}
}

func checkPlatform(context.Context) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("unsupported os %s", runtime.GOOS)
	}
	if _, ok := loader.HostMachine(); !ok {
		return fmt.Errorf("unsupported architecture %s", runtime.GOARCH)
	}
	// the shim is started through /proc/self/exe and execs /proc/self/fd/N
	if err := unix.Access("/proc/self/exe", unix.X_OK); err != nil {
		return fmt.Errorf("procfs: %w", err)
	}
	return nil
}

func checkSeccomp(context.Context) error {
	if !seccomp.Supported() {
		return errors.New("seccomp filter mode not supported by the kernel")
	}
	return nil
}

// checkMemfd verifies a sealed image cannot be written any more
func checkMemfd(context.Context) error {
	f, err := memfd.Seal("qualify", strings.NewReader("qualify"))
	if err != nil {
		return err
	}
	defer f.Close()

	sealed, err := memfd.IsSealed(f)
	if err != nil {
		return err
	}
	if !sealed {
		return errors.New("seals not applied")
	}
	if _, err := f.WriteAt([]byte("x"), 0); err == nil {
		return errors.New("write to sealed memfd succeeded")
	}
	return nil
}

// checkFaultHandlers raises every fault kind and waits for the installed
// handlers to observe it
func checkFaultHandlers(ctx context.Context, faults *fault.Manager) error {
	if err := faults.AssertInstalled(); err != nil {
		return err
	}
	for _, k := range fault.Kinds() {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := faults.Trigger(pctx, k)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// checkConfinement starts the shim in canary mode, the filter must kill it
// with a disallowed syscall fault
func checkConfinement(ctx context.Context, l *shim.Launcher) error {
	b := seccomp.Builder{Deny: []string{"getppid"}, Action: seccomp.ActionKill}
	filter, err := b.Build()
	if err != nil {
		return err
	}
	image, err := memfd.Seal("qualify-canary", strings.NewReader(""))
	if err != nil {
		return err
	}
	defer image.Close()

	stderr, err := pipe.NewBuffer(maxCanaryStderr)
	if err != nil {
		return err
	}
	p, err := l.Start(ctx, image, shim.Config{Filter: filter, Canary: true}, shim.Stdio{Stderr: stderr.W})
	stderr.W.Close()
	if err != nil {
		return err
	}
	exit, err := p.Wait()
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	stderr.Wait(wctx)

	f, ok := fault.Classify(p.Pid(), unix.WaitStatus(exit.Status))
	if !ok || f.Kind != fault.KindDisallowedSyscall {
		return fmt.Errorf("canary not confined: %v, stderr: %q", exit.Result(), stderr.Text())
	}
	return nil
}

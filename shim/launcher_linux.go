package shim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sys/unix"

	"github.com/criyle/go-sel/types"
)

// max size of the encoded ChildError read back from the shim
const maxErrorSize = 4 << 10

// Stdio holds the files the payload inherits as fd 0, 1 and 2, nil for the
// null device
type Stdio struct {
	Stdin, Stdout, Stderr *os.File
}

// Launcher starts the shim
type Launcher struct {
	// Path to the binary calling Init, /proc/self/exe if empty
	Path   string
	Logger *slog.Logger
}

// Process is a started payload
type Process struct {
	cmd   *exec.Cmd
	start time.Time

	once sync.Once
	exit Exit
	err  error
}

// Exit is the outcome of a payload process
type Exit struct {
	Status syscall.WaitStatus
	// Time is user + system cpu time
	Time time.Duration
	// Memory is the peak resident set size
	Memory types.Size
	Wall   time.Duration
}

// Start launches the shim over image and waits until it either execs the
// payload, fails before exec, or dies (the canary mode is expected to die).
// The returned Process must be waited.
func (l *Launcher) Start(ctx context.Context, image *os.File, c Config, stdio Stdio) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path := l.Path
	if path == "" {
		path = "/proc/self/exe"
	}

	cfgR, cfgW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("shim: config pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		cfgR.Close()
		cfgW.Close()
		return nil, fmt.Errorf("shim: error pipe: %w", err)
	}

	cmd := exec.Command(path, Arg)
	cmd.Env = []string{}
	cmd.ExtraFiles = []*os.File{image, cfgR, errW}
	if stdio.Stdin != nil {
		cmd.Stdin = stdio.Stdin
	}
	if stdio.Stdout != nil {
		cmd.Stdout = stdio.Stdout
	}
	if stdio.Stderr != nil {
		cmd.Stderr = stdio.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	err = cmd.Start()
	cfgR.Close()
	errW.Close()
	if err != nil {
		cfgW.Close()
		errR.Close()
		return nil, fmt.Errorf("shim: start: %w", err)
	}
	p := &Process{cmd: cmd, start: time.Now()}
	logger.Debug("shim started", "pid", cmd.Process.Pid)

	// the shim may die before reading, the error pipe tells why
	encErr := cbor.NewEncoder(cfgW).Encode(c)
	cfgW.Close()

	var buf bytes.Buffer
	_, rerr := io.Copy(&buf, io.LimitReader(errR, maxErrorSize))
	errR.Close()

	if buf.Len() > 0 {
		cerr := decodeChildError(buf.Bytes())
		p.Kill()
		p.Wait()
		return nil, fmt.Errorf("shim: %w", cerr)
	}
	if rerr != nil {
		p.Kill()
		p.Wait()
		return nil, fmt.Errorf("shim: read error pipe: %w", rerr)
	}
	if encErr != nil && !errors.Is(encErr, syscall.EPIPE) {
		p.Kill()
		p.Wait()
		return nil, fmt.Errorf("shim: write config: %w", encErr)
	}
	return p, nil
}

// Pid returns the pid of the payload
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait waits for the payload to exit, it is safe to call more than once
func (p *Process) Wait() (Exit, error) {
	p.once.Do(func() {
		err := p.cmd.Wait()
		// collect anything left in the process group
		unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)

		st := p.cmd.ProcessState
		if st == nil {
			p.err = fmt.Errorf("shim: wait: %w", err)
			return
		}
		p.exit.Wall = time.Since(p.start)
		p.exit.Status, _ = st.Sys().(syscall.WaitStatus)
		if ru, ok := st.SysUsage().(*syscall.Rusage); ok {
			p.exit.Time = time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
			p.exit.Memory = types.Size(ru.Maxrss << 10) // KiB
		}
	})
	return p.exit, p.err
}

// Kill kills the whole process group of the payload
func (p *Process) Kill() error {
	err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// Result maps the exit onto a payload outcome. Fault signals map to
// StatusSignalled, the caller upgrades them once the fault was intercepted.
func (e Exit) Result() types.Result {
	r := types.Result{
		Time:        e.Time,
		Memory:      e.Memory,
		RunningTime: e.Wall,
	}
	ws := e.Status
	switch {
	case ws.Exited():
		r.ExitStatus = ws.ExitStatus()
		if r.ExitStatus == 0 {
			r.Status = types.StatusNormal
		} else {
			r.Status = types.StatusNonzeroExitStatus
		}

	case ws.Signaled():
		sig := ws.Signal()
		r.ExitStatus = int(sig)
		switch sig {
		case unix.SIGXCPU, unix.SIGKILL:
			r.Status = types.StatusTimeLimitExceeded
		case unix.SIGXFSZ:
			r.Status = types.StatusOutputLimitExceeded
		case unix.SIGSYS:
			r.Status = types.StatusDisallowedSyscall
		default:
			r.Status = types.StatusSignalled
		}
		r.Error = unix.SignalName(sig)

	default:
		r.Status = types.StatusRunnerError
		r.Error = fmt.Sprintf("unexpected wait status %#x", uint32(ws))
	}
	return r
}

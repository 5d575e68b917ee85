package shim

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sys/unix"

	"github.com/criyle/go-sel/pkg/seccomp"
)

// imagePath execs the image through the inherited fd
var imagePath = fmt.Sprintf("/proc/self/fd/%d", ImageFD)

// Init runs the shim and never returns when the binary was started as the
// shim, otherwise it is noop
func Init() {
	if len(os.Args) != 2 || os.Args[1] != Arg {
		return
	}
	// keep the filter installation and exec on one thread
	runtime.LockOSThread()

	errPipe := os.NewFile(ErrorFD, "error")
	unix.CloseOnExec(ErrorFD)

	cerr := run()
	errPipe.Write(cerr.encode())
	fmt.Fprintf(os.Stderr, "shim: %v\n", cerr)
	os.Exit(1)
}

func run() ChildError {
	f := os.NewFile(ConfigFD, "config")
	var c Config
	err := cbor.NewDecoder(f).Decode(&c)
	f.Close()
	if err != nil {
		return ChildError{Location: LocConfig, Message: err.Error()}
	}
	if !c.Canary && len(c.Args) == 0 {
		return ChildError{Location: LocConfig, Message: "empty args"}
	}

	if err := c.RLimits.Apply(); err != nil {
		return childError(LocSetRlimit, err)
	}
	if c.WorkDir != "" {
		if err := unix.Chdir(c.WorkDir); err != nil {
			return childError(LocChdir, err)
		}
	}
	if len(c.Filter) > 0 {
		if err := seccomp.Install(c.Filter); err != nil {
			return childError(LocSeccomp, err)
		}
	}
	if c.Canary {
		// expected to be killed here
		unix.Getppid()
		return ChildError{Location: LocCanary, Message: "getppid survived the filter"}
	}

	unix.CloseOnExec(ImageFD)
	err = unix.Exec(imagePath, c.Args, c.Env)
	return childError(LocExecve, err)
}

func childError(loc ErrorLocation, err error) ChildError {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return ChildError{Location: loc, Err: errno, Message: err.Error()}
	}
	return ChildError{Location: loc, Message: err.Error()}
}

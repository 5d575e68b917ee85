package seccomp

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Install loads the filter into the calling process. Every thread of the
// process is synchronized onto it, so it must run after the runtime has
// settled and right before exec.
func Install(f Filter) error {
	if len(f) == 0 {
		return errors.New("seccomp: empty filter")
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: no_new_privs: %w", err)
	}
	prog := f.SockFprog()
	r1, _, errno := unix.Syscall(unix.SYS_SECCOMP, unix.SECCOMP_SET_MODE_FILTER,
		unix.SECCOMP_FILTER_FLAG_TSYNC, uintptr(unsafe.Pointer(prog)))
	if errno != 0 {
		return fmt.Errorf("seccomp: set_mode_filter: %w", errno)
	}
	// with TSYNC a positive return is the id of the thread that failed to sync
	if r1 != 0 {
		return fmt.Errorf("seccomp: thread %d failed to synchronize", r1)
	}
	return nil
}

package shim

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/fxamacker/cbor/v2"
)

// ErrorLocation defines the location where the shim failed to exec
type ErrorLocation int

// ChildError defines the specific error and location where it failed
type ChildError struct {
	Location ErrorLocation
	Err      syscall.Errno
	Message  string
}

// childErrorWire is the encoding of ChildError on the error pipe, cbor
// refuses uintptr kinds such as syscall.Errno
type childErrorWire struct {
	Location ErrorLocation `cbor:"1,keyasint"`
	Errno    uint32        `cbor:"2,keyasint,omitempty"`
	Message  string        `cbor:"3,keyasint,omitempty"`
}

// Location constants
const (
	LocConfig ErrorLocation = iota + 1
	LocSetRlimit
	LocChdir
	LocSeccomp
	LocCanary
	LocExecve
)

var locToString = []string{
	"unknown",
	"config",
	"setrlimit",
	"chdir",
	"seccomp",
	"canary",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocConfig && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Location.String(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}

func (e ChildError) Unwrap() error {
	if e.Err == 0 {
		return nil
	}
	return e.Err
}

// encode returns the bytes written to the error pipe. It falls back to the
// plain error text so that a failure is never written as nothing.
func (e ChildError) encode() []byte {
	b, err := cbor.Marshal(childErrorWire{Location: e.Location, Errno: uint32(e.Err), Message: e.Message})
	if err != nil || len(b) == 0 {
		return []byte(e.Error())
	}
	return b
}

// decodeChildError reads what the shim wrote to the error pipe, text that is
// not cbor becomes the message
func decodeChildError(b []byte) ChildError {
	var w childErrorWire
	if err := cbor.Unmarshal(b, &w); err != nil {
		return ChildError{Message: strings.TrimSpace(string(b))}
	}
	return ChildError{Location: w.Location, Err: syscall.Errno(w.Errno), Message: w.Message}
}

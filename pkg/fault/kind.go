package fault

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Kind is the kind of an intercepted fault
type Kind int

// Fault kinds, each bound to the signal that reports it
const (
	KindNone Kind = iota
	KindIllegalInstruction
	KindSegmentation
	KindBus
	KindArithmetic
	KindDisallowedSyscall
	KindTrap
	KindAbort
)

var kindTable = []struct {
	kind   Kind
	signal unix.Signal
	name   string
}{
	{KindIllegalInstruction, unix.SIGILL, "IllegalInstruction"},
	{KindSegmentation, unix.SIGSEGV, "SegmentationViolation"},
	{KindBus, unix.SIGBUS, "BusError"},
	{KindArithmetic, unix.SIGFPE, "ArithmeticError"},
	{KindDisallowedSyscall, unix.SIGSYS, "DisallowedSyscall"},
	{KindTrap, unix.SIGTRAP, "Trap"},
	{KindAbort, unix.SIGABRT, "Abort"},
}

// Kinds lists every interceptable fault kind
func Kinds() []Kind {
	ret := make([]Kind, 0, len(kindTable))
	for _, k := range kindTable {
		ret = append(ret, k.kind)
	}
	return ret
}

// Signals lists the signals that report faults
func Signals() []os.Signal {
	ret := make([]os.Signal, 0, len(kindTable))
	for _, k := range kindTable {
		ret = append(ret, k.signal)
	}
	return ret
}

// KindOf maps a signal to its fault kind, KindNone if it is not a fault
func KindOf(sig os.Signal) Kind {
	s, ok := sig.(unix.Signal)
	if !ok {
		return KindNone
	}
	for _, k := range kindTable {
		if k.signal == s {
			return k.kind
		}
	}
	return KindNone
}

// Signal returns the signal reporting the kind
func (k Kind) Signal() unix.Signal {
	for _, e := range kindTable {
		if e.kind == k {
			return e.signal
		}
	}
	return 0
}

func (k Kind) String() string {
	for _, e := range kindTable {
		if e.kind == k {
			return e.name
		}
	}
	return "None"
}

// Origin tells where a fault was observed
type Origin int

// Fault origins
const (
	OriginPayload Origin = iota + 1
	OriginTrusted
)

func (o Origin) String() string {
	switch o {
	case OriginPayload:
		return "payload"
	case OriginTrusted:
		return "trusted"
	default:
		return "unknown"
	}
}

// Fault describes one intercepted fault
type Fault struct {
	Kind   Kind
	Signal unix.Signal
	Origin Origin
	Pid    int
}

func (f Fault) String() string {
	return fmt.Sprintf("Fault[%v %v pid=%d %v]", f.Kind, unix.SignalName(f.Signal), f.Pid, f.Origin)
}

// Classify inspects the wait status of a dead payload and reports the
// fault that killed it, if any
func Classify(pid int, ws unix.WaitStatus) (Fault, bool) {
	if !ws.Signaled() {
		return Fault{}, false
	}
	k := KindOf(ws.Signal())
	if k == KindNone {
		return Fault{}, false
	}
	return Fault{Kind: k, Signal: ws.Signal(), Origin: OriginPayload, Pid: pid}, true
}

package seccomp

import (
	"errors"
	"fmt"
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/net/bpf"
)

// Builder is used to build the filter. Every syscall not listed in Deny is
// allowed.
type Builder struct {
	Deny   []string
	Action Action
}

var info, errInfo = arch.GetInfo("")

// Supported reports whether the running kernel supports seccomp filters
func Supported() bool {
	return libseccomp.Supported()
}

// Build builds the filter
func (b *Builder) Build() (Filter, error) {
	if errInfo != nil {
		return nil, errInfo
	}
	if len(b.Deny) == 0 {
		return nil, errors.New("seccomp: empty deny list")
	}
	for _, n := range b.Deny {
		if _, ok := info.SyscallNames[n]; !ok {
			return nil, fmt.Errorf("seccomp: unknown syscall %q on %s", n, info.Name)
		}
	}
	action := b.Action
	if action == 0 {
		action = ActionErrno.WithReturnCode(int16(syscall.EPERM))
	}

	policy := libseccomp.Policy{
		DefaultAction: libseccomp.ActionAllow,
		Syscalls: []libseccomp.SyscallGroup{
			{
				Names:  b.Deny,
				Action: ToSeccompAction(action),
			},
		},
	}
	insts, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble: %w", err)
	}
	return ExportBPF(insts)
}

// ExportBPF convert assembled instructions to kernel readable BPF content
func ExportBPF(insts []bpf.Instruction) (Filter, error) {
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: export: %w", err)
	}
	f := make(Filter, 0, len(raw))
	for _, r := range raw {
		f = append(f, syscall.SockFilter{Code: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K})
	}
	return f, nil
}

// ToSeccompAction convert action to libseccomp compatible action
func ToSeccompAction(a Action) libseccomp.Action {
	var action libseccomp.Action
	switch a.Action() {
	case ActionAllow:
		action = libseccomp.ActionAllow
	case ActionErrno:
		action = libseccomp.ActionErrno
	default:
		action = libseccomp.ActionKillProcess
	}
	// the least 16 bit of ret value is SECCOMP_RET_DATA
	return action | libseccomp.Action(uint16(a.ReturnCode()))
}

// ToSyscallName convert syscallno to syscall name
func ToSyscallName(sysno uint) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	n, ok := info.SyscallNumbers[int(sysno)]
	if !ok {
		return "", fmt.Errorf("syscall no %d does not exits", sysno)
	}
	return n, nil
}

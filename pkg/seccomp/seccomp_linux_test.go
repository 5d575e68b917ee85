package seccomp

import (
	"syscall"
	"testing"

	libseccomp "github.com/elastic/go-seccomp-bpf"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		expect  Action
		wantErr bool
	}{
		{"", ActionErrno, false},
		{"errno", ActionErrno, false},
		{"kill", ActionKill, false},
		{"allow", ActionAllow, false},
		{"trace", 0, true},
	}
	for _, tc := range tests {
		a, err := ParseAction(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseAction(%q) error = %v", tc.in, err)
			continue
		}
		if a != tc.expect {
			t.Errorf("ParseAction(%q) = %v, expected %v", tc.in, a, tc.expect)
		}
	}
}

func TestActionReturnCode(t *testing.T) {
	a := ActionErrno.WithReturnCode(int16(syscall.EPERM))
	if a.Action() != ActionErrno {
		t.Errorf("action = %v", a.Action())
	}
	if a.ReturnCode() != int16(syscall.EPERM) {
		t.Errorf("return code = %d", a.ReturnCode())
	}
	if a.String() != "errno" {
		t.Errorf("string = %q", a.String())
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		b       Builder
		wantErr bool
	}{
		{"errno", Builder{Deny: []string{"ptrace", "mount"}}, false},
		{"kill", Builder{Deny: []string{"ptrace"}, Action: ActionKill}, false},
		{"empty", Builder{}, true},
		{"unknown", Builder{Deny: []string{"not_a_syscall"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := tc.b.Build()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if len(f) == 0 {
				t.Fatal("empty filter")
			}
			prog := f.SockFprog()
			if int(prog.Len) != len(f) || prog.Filter != &f[0] {
				t.Fatal("sock fprog does not point to the filter")
			}
		})
	}
}

func TestToSyscallName(t *testing.T) {
	n, err := ToSyscallName(uint(syscall.SYS_GETPID))
	if err != nil {
		t.Fatal(err)
	}
	if n != "getpid" {
		t.Fatalf("expected getpid, got %q", n)
	}
	if _, err := ToSyscallName(1 << 20); err == nil {
		t.Fatal("expected error for out of range syscall")
	}
}

func TestToSeccompAction(t *testing.T) {
	tests := []struct {
		a    Action
		want libseccomp.Action
	}{
		{ActionAllow, libseccomp.ActionAllow},
		{ActionErrno.WithReturnCode(int16(syscall.EPERM)), libseccomp.ActionErrno | libseccomp.Action(syscall.EPERM)},
		{ActionErrno.WithReturnCode(int16(syscall.ENOSYS)), libseccomp.ActionErrno | libseccomp.Action(syscall.ENOSYS)},
		{ActionKill, libseccomp.ActionKillProcess},
	}
	for _, tc := range tests {
		if got := ToSeccompAction(tc.a); got != tc.want {
			t.Errorf("ToSeccompAction(%v) = %#x, want %#x", tc.a, uint32(got), uint32(tc.want))
		}
	}
}

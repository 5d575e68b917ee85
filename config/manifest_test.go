package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"testing"

	"github.com/criyle/go-sel/pkg/cgroup"
	"github.com/criyle/go-sel/pkg/seccomp"
)

const fullManifest = `
payload: /opt/payload/hello
args: [--name, world]
env: [LANG=C]
workdir: /tmp
stdin: in.txt
stdout: out.txt
validator: [ncval, --strict]
limits:
  cpu: 2
  memory: 256M
  stack: 8MiB
  file_size: 1K
  open_files: 64
isolation:
  root: /sys/fs/cgroup/test
seccomp:
  action: kill
  deny: [socket]
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	if err != nil {
		t.Fatal(err)
	}
	if m.Payload != "/opt/payload/hello" || m.WorkDir != "/tmp" || m.Stdin != "in.txt" {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if got := m.Argv(); !slices.Equal(got, []string{"hello", "--name", "world"}) {
		t.Errorf("argv = %v", got)
	}
	if m.Limits.Memory != 256<<20 || m.Limits.Stack != 8<<20 || m.Limits.FileSize != 1<<10 {
		t.Errorf("limits = %+v", m.Limits)
	}
	if m.Isolation.Root != "/sys/fs/cgroup/test" {
		t.Errorf("isolation root = %q", m.Isolation.Root)
	}

	rl := m.RLimits()
	if rl.CPU != 2 || rl.CPUHard != 3 || rl.AddressSpace != 256<<20 || rl.OpenFile != 64 || !rl.DisableCore {
		t.Errorf("rlimits = %v", rl)
	}

	b, err := m.SeccompBuilder()
	if err != nil {
		t.Fatal(err)
	}
	if b.Action != seccomp.ActionKill {
		t.Errorf("action = %v", b.Action)
	}
	if !slices.Contains(b.Deny, "socket") || !slices.Contains(b.Deny, "ptrace") {
		t.Errorf("deny = %v", b.Deny)
	}
}

func TestParse_Defaults(t *testing.T) {
	m, err := Parse([]byte("payload: ./a.out\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(m.Validator, []string{"ncval"}) {
		t.Errorf("validator = %v", m.Validator)
	}
	if m.Isolation.Root != cgroup.DefaultRoot {
		t.Errorf("isolation root = %q", m.Isolation.Root)
	}
	rl := m.RLimits()
	if rl.CPU != 0 || rl.AddressSpace != 0 {
		t.Errorf("unexpected limits %v", rl)
	}
	b, err := m.SeccompBuilder()
	if err != nil {
		t.Fatal(err)
	}
	if b.Action.Action() != seccomp.ActionErrno || b.Action.ReturnCode() != int16(syscall.EPERM) {
		t.Errorf("action = %v", b.Action)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no payload", "args: [a]\n"},
		{"unknown field", "payload: a\nnexe: b\n"},
		{"bad size", "payload: a\nlimits:\n  memory: lots\n"},
		{"bad action", "payload: a\nseccomp:\n  action: trace\n"},
		{"allow action", "payload: a\nseccomp:\n  action: allow\n"},
		{"reserved deny", "payload: a\nseccomp:\n  deny: [execve]\n"},
		{"empty validator", "payload: a\nvalidator: ['']\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(p, []byte(fullManifest), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err != nil {
		t.Fatal(err)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var merr *Error
	if !errors.As(err, &merr) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

func TestDenyList(t *testing.T) {
	l := DenyList([]string{"ptrace", "socket"})
	if !slices.IsSorted(l) {
		t.Error("deny list is not sorted")
	}
	if len(slices.Compact(slices.Clone(l))) != len(l) {
		t.Error("deny list has duplicates")
	}
	for s := range reservedSyscalls {
		if slices.Contains(l, s) {
			t.Errorf("reserved syscall %s denied by default", s)
		}
	}
}

// Package config loads the run manifest: the payload to run, its arguments,
// its limits and its confinement.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/criyle/go-sel/pkg/cgroup"
	"github.com/criyle/go-sel/pkg/rlimit"
	"github.com/criyle/go-sel/pkg/seccomp"
	"github.com/criyle/go-sel/types"
)

// Manifest describes one run
type Manifest struct {
	Payload string   `yaml:"payload"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	WorkDir string   `yaml:"workdir"`

	Stdin  string `yaml:"stdin"`
	Stdout string `yaml:"stdout"`
	Stderr string `yaml:"stderr"`

	// Validator is the argv prefix of the static validator
	Validator []string `yaml:"validator"`

	Limits    Limits    `yaml:"limits"`
	Isolation Isolation `yaml:"isolation"`
	Seccomp   Seccomp   `yaml:"seccomp"`
}

// Limits are the resource limits of the payload, zero means unlimited
type Limits struct {
	CPU       uint64     `yaml:"cpu"` // in s
	Memory    types.Size `yaml:"memory"`
	Stack     types.Size `yaml:"stack"`
	FileSize  types.Size `yaml:"file_size"`
	OpenFiles uint64     `yaml:"open_files"`
}

// Isolation configures the accounting domain
type Isolation struct {
	Root     string `yaml:"root"`
	Disabled bool   `yaml:"disabled"`
}

// Seccomp configures the syscall filter
type Seccomp struct {
	// Action is errno (default) or kill
	Action string   `yaml:"action"`
	Deny   []string `yaml:"deny"`
}

// Error is a manifest that cannot be used
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads and validates the manifest at path
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	m, err := Parse(b)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return m, nil
}

// Parse decodes and validates manifest content, unknown fields are rejected
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	m.setDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) setDefaults() {
	if len(m.Validator) == 0 {
		m.Validator = []string{"ncval"}
	}
	if m.Isolation.Root == "" {
		m.Isolation.Root = cgroup.DefaultRoot
	}
	if m.Seccomp.Action == "" {
		m.Seccomp.Action = "errno"
	}
}

// Validate checks the manifest is usable
func (m *Manifest) Validate() error {
	if m.Payload == "" {
		return errors.New("payload: required")
	}
	if len(m.Validator) == 0 || m.Validator[0] == "" {
		return errors.New("validator: empty command")
	}
	if _, err := m.action(); err != nil {
		return err
	}
	for _, s := range m.Seccomp.Deny {
		if reservedSyscalls[s] {
			return fmt.Errorf("seccomp.deny: %s is required to start the payload", s)
		}
	}
	return nil
}

func (m *Manifest) action() (seccomp.Action, error) {
	a, err := seccomp.ParseAction(m.Seccomp.Action)
	if err != nil {
		return 0, fmt.Errorf("seccomp.action: %w", err)
	}
	switch a {
	case seccomp.ActionErrno:
		return a.WithReturnCode(int16(syscall.EPERM)), nil
	case seccomp.ActionKill:
		return a, nil
	default:
		return 0, fmt.Errorf("seccomp.action: %v is not a deny action", a)
	}
}

// Argv returns the argv of the payload, argv[0] is its base name
func (m *Manifest) Argv() []string {
	return append([]string{filepath.Base(m.Payload)}, m.Args...)
}

// RLimits maps the limits onto the rlimits applied by the shim
func (m *Manifest) RLimits() rlimit.RLimits {
	l := m.Limits
	rl := rlimit.RLimits{
		AddressSpace: uint64(l.Memory),
		Stack:        uint64(l.Stack),
		FileSize:     uint64(l.FileSize),
		OpenFile:     l.OpenFiles,
		DisableCore:  true,
	}
	if l.CPU > 0 {
		// SIGXCPU at the soft limit, SIGKILL one second later
		rl.CPU = l.CPU
		rl.CPUHard = l.CPU + 1
	}
	return rl
}

// SeccompBuilder returns the builder of the payload filter
func (m *Manifest) SeccompBuilder() (*seccomp.Builder, error) {
	a, err := m.action()
	if err != nil {
		return nil, err
	}
	return &seccomp.Builder{
		Deny:   DenyList(m.Seccomp.Deny),
		Action: a,
	}, nil
}

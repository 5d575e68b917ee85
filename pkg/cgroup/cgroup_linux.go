package cgroup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/criyle/go-sel/types"
)

// Options configures Create
type Options struct {
	// Root is the cgroup root, DefaultRoot if empty
	Root string
	// PID names the domain and is registered into it
	PID int
	// Type overrides hierarchy detection when set
	Type Type

	Logger *slog.Logger
}

// Group is a created accounting domain
type Group struct {
	path   string
	typ    Type
	logger *slog.Logger
}

// Usage is the accounting readout of a domain
type Usage struct {
	CPU        time.Duration
	MemoryPeak types.Size
	SwapPeak   types.Size
}

func (u Usage) String() string {
	return fmt.Sprintf("Usage[cpu=%v memory=%v swap=%v]", u.CPU, u.MemoryPeak, u.SwapPeak)
}

type sentinel struct {
	name  string
	value string
}

var (
	v1Sentinels = []sentinel{
		{"cpuacct.usage", "0"},
		{"memory.max_usage_in_bytes", "0"},
		{"memory.memsw.max_usage_in_bytes", "0"},
	}
	v2Sentinels = []sentinel{
		{"memory.oom.group", "1"},
		{"memory.swap.max", "max"},
	}
)

// Create creates a fresh domain named after the pid and registers the pid
// into it. It returns nil, nil when the root does not exist. Every failure
// after the root was found is returned as an error.
func Create(opt Options) (*Group, error) {
	root := opt.Root
	if root == "" {
		root = DefaultRoot
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fi, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("isolation backend absent", "root", root)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cgroup: stat root %s: %w", root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("cgroup: root %s is not a directory", root)
	}

	t := opt.Type
	if t == 0 {
		t = DetectType(root)
	}
	p := filepath.Join(root, strconv.Itoa(opt.PID))

	if err := removeStale(p); err != nil {
		return nil, fmt.Errorf("cgroup: remove stale domain %s: %w", p, err)
	}
	if t == TypeV2 {
		if err := enableControllers(root); err != nil {
			return nil, err
		}
	}
	if err := os.Mkdir(p, dirPerm); err != nil {
		return nil, fmt.Errorf("cgroup: create domain %s: %w", p, err)
	}

	g := &Group{path: p, typ: t, logger: logger}
	// remove the created domain on failure so that it is not left half set
	defer func() {
		if err != nil {
			os.Remove(p)
		}
	}()

	procs := cgroupProcs
	sentinels := v2Sentinels
	if t == TypeV1 {
		procs = cgroupTasks
		sentinels = v1Sentinels
	}
	if err = g.writeFile(procs, strconv.Itoa(opt.PID)); err != nil {
		return nil, err
	}
	for _, s := range sentinels {
		if err = g.writeFile(s.name, s.value); err != nil {
			return nil, err
		}
	}
	logger.Debug("isolation domain created", "domain", p, "type", t.String())
	return g, nil
}

// enableControllers enables the accounting controllers available in the root
// for its children
func enableControllers(root string) error {
	b, err := readFile(filepath.Join(root, cgroupControllers))
	if err != nil {
		return fmt.Errorf("cgroup: read controllers: %w", err)
	}
	avail := make(map[string]bool)
	for _, c := range strings.Fields(string(b)) {
		avail[c] = true
	}
	var enable []string
	for _, c := range accountingControllers {
		if !avail[c] {
			return fmt.Errorf("cgroup: controller %q not available in %s", c, root)
		}
		enable = append(enable, "+"+c)
	}
	p := filepath.Join(root, cgroupSubtreeControl)
	if err := writeFile(p, []byte(strings.Join(enable, " "))); err != nil {
		return fmt.Errorf("cgroup: enable controllers: %w", err)
	}
	return nil
}

// Path returns the domain directory
func (g *Group) Path() string {
	return g.path
}

// Type returns the hierarchy type of the domain
func (g *Group) Type() Type {
	return g.typ
}

// Usage reads back the accounting counters. Counters that cannot be read are
// left zero and reported in the joined error.
func (g *Group) Usage() (Usage, error) {
	var (
		u    Usage
		errs []error
	)
	if g.typ == TypeV1 {
		if v, err := readUint(filepath.Join(g.path, "cpuacct.usage")); err != nil {
			errs = append(errs, err)
		} else {
			u.CPU = time.Duration(v)
		}
		if v, err := readUint(filepath.Join(g.path, "memory.max_usage_in_bytes")); err != nil {
			errs = append(errs, err)
		} else {
			u.MemoryPeak = types.Size(v)
		}
		if v, err := readUint(filepath.Join(g.path, "memory.memsw.max_usage_in_bytes")); err != nil {
			errs = append(errs, err)
		} else if v > uint64(u.MemoryPeak) {
			u.SwapPeak = types.Size(v) - u.MemoryPeak
		}
		return u, errors.Join(errs...)
	}

	if b, err := readFile(filepath.Join(g.path, "cpu.stat")); err != nil {
		errs = append(errs, err)
	} else if v, err := parseCPUStat(b); err != nil {
		errs = append(errs, err)
	} else {
		u.CPU = time.Duration(v)
	}
	if v, err := readUint(filepath.Join(g.path, "memory.peak")); err != nil {
		errs = append(errs, err)
	} else {
		u.MemoryPeak = types.Size(v)
	}
	if v, err := readUint(filepath.Join(g.path, "memory.swap.peak")); err != nil {
		errs = append(errs, err)
	} else {
		u.SwapPeak = types.Size(v)
	}
	return u, errors.Join(errs...)
}

func (g *Group) writeFile(name, content string) error {
	if err := writeFile(filepath.Join(g.path, name), []byte(content)); err != nil {
		return fmt.Errorf("cgroup: write %s: %w", name, err)
	}
	return nil
}

func (g *Group) String() string {
	return fmt.Sprintf("Group[%s %v]", g.path, g.typ)
}

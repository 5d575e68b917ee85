package cgroup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readString(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}

func TestCreate_Absent(t *testing.T) {
	g, err := Create(Options{Root: filepath.Join(t.TempDir(), "missing"), PID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if g != nil {
		t.Fatalf("expected no group, got %v", g)
	}
}

func TestCreate_RootNotDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(root, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(Options{Root: root, PID: 1}); err == nil {
		t.Fatal("expected error for non-directory root")
	}
}

func TestCreate_V1(t *testing.T) {
	root := t.TempDir()
	g, err := Create(Options{Root: root, PID: 4242, Type: TypeV1})
	if err != nil {
		t.Fatal(err)
	}
	if g.Path() != filepath.Join(root, "4242") || g.Type() != TypeV1 {
		t.Fatalf("unexpected group %v", g)
	}
	if got := readString(t, filepath.Join(g.Path(), "tasks")); got != "4242" {
		t.Errorf("tasks = %q", got)
	}
	for _, s := range v1Sentinels {
		if got := readString(t, filepath.Join(g.Path(), s.name)); got != s.value {
			t.Errorf("%s = %q, expected %q", s.name, got, s.value)
		}
	}
}

func TestCreate_RemovesStale(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "7")
	if err := os.MkdirAll(filepath.Join(stale, "child"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stale, "marker"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	g, err := Create(Options{Root: root, PID: 7, Type: TypeV1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(g.Path(), "marker")); !os.IsNotExist(err) {
		t.Fatalf("stale domain content survived: %v", err)
	}
}

func TestCreate_V2(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, cgroupControllers), []byte("cpuset cpu io memory pids\n"), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := Create(Options{Root: root, PID: 99, Type: TypeV2})
	if err != nil {
		t.Fatal(err)
	}
	if got := readString(t, filepath.Join(root, cgroupSubtreeControl)); got != "+cpu +memory" {
		t.Errorf("subtree_control = %q", got)
	}
	if got := readString(t, filepath.Join(g.Path(), cgroupProcs)); got != "99" {
		t.Errorf("cgroup.procs = %q", got)
	}
	for _, s := range v2Sentinels {
		if got := readString(t, filepath.Join(g.Path(), s.name)); got != s.value {
			t.Errorf("%s = %q, expected %q", s.name, got, s.value)
		}
	}
}

func TestCreate_V2MissingController(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, cgroupControllers), []byte("cpu pids"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(Options{Root: root, PID: 99, Type: TypeV2}); err == nil {
		t.Fatal("expected error for missing memory controller")
	}
	if _, err := os.Stat(filepath.Join(root, "99")); !os.IsNotExist(err) {
		t.Fatal("domain created despite failure")
	}
}

func TestUsage(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, cgroupControllers), []byte("cpu memory"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("v1", func(t *testing.T) {
		g, err := Create(Options{Root: root, PID: 1, Type: TypeV1})
		if err != nil {
			t.Fatal(err)
		}
		for name, v := range map[string]string{
			"cpuacct.usage":                   "1500000",
			"memory.max_usage_in_bytes":       "4096",
			"memory.memsw.max_usage_in_bytes": "6144",
		} {
			if err := os.WriteFile(filepath.Join(g.Path(), name), []byte(v), 0644); err != nil {
				t.Fatal(err)
			}
		}
		u, err := g.Usage()
		if err != nil {
			t.Fatal(err)
		}
		if u.CPU != 1500*time.Microsecond || u.MemoryPeak != 4096 || u.SwapPeak != 2048 {
			t.Fatalf("unexpected usage %v", u)
		}
	})

	t.Run("v2", func(t *testing.T) {
		g, err := Create(Options{Root: root, PID: 2, Type: TypeV2})
		if err != nil {
			t.Fatal(err)
		}
		files := map[string]string{
			"cpu.stat":         "usage_usec 2500\nuser_usec 2000\nsystem_usec 500\n",
			"memory.peak":      "8192\n",
			"memory.swap.peak": "0\n",
		}
		for name, v := range files {
			if err := os.WriteFile(filepath.Join(g.Path(), name), []byte(v), 0644); err != nil {
				t.Fatal(err)
			}
		}
		u, err := g.Usage()
		if err != nil {
			t.Fatal(err)
		}
		if u.CPU != 2500*time.Microsecond || u.MemoryPeak != 8192 || u.SwapPeak != 0 {
			t.Fatalf("unexpected usage %v", u)
		}
	})

	t.Run("partial", func(t *testing.T) {
		g, err := Create(Options{Root: root, PID: 3, Type: TypeV2})
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(g.Path(), "memory.peak"), []byte("10"), 0644); err != nil {
			t.Fatal(err)
		}
		u, err := g.Usage()
		if err == nil {
			t.Fatal("expected error for missing counters")
		}
		if u.MemoryPeak != 10 {
			t.Fatalf("readable counter lost: %v", u)
		}
	})
}

func TestParseCPUStat(t *testing.T) {
	if _, err := parseCPUStat([]byte("user_usec 1\n")); err == nil {
		t.Fatal("expected error without usage_usec")
	}
	v, err := parseCPUStat([]byte("usage_usec 3\n"))
	if err != nil || v != 3000 {
		t.Fatalf("got %d, %v", v, err)
	}
}

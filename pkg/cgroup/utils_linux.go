package cgroup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// DetectType detects the hierarchy type the root is mounted with
func DetectType(root string) Type {
	// if root is on CGROUPV2 or TMPFS / CGROUP (V1)
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		// ignore errors, defalting to CgroupV1
		return TypeV1
	}
	if st.Type == unix.CGROUP2_SUPER_MAGIC {
		return TypeV2
	}
	return TypeV1
}

// removeStale removes an existing domain directory. On cgroupfs rmdir
// succeeds on a directory that still lists its control files.
func removeStale(p string) error {
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Remove(p); err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.RemoveAll(p)
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	for err != nil && errors.Is(err, syscall.EINTR) {
		data, err = os.ReadFile(p)
	}
	return data, err
}

func writeFile(p string, content []byte) error {
	err := os.WriteFile(p, content, filePerm)
	for err != nil && errors.Is(err, syscall.EINTR) {
		err = os.WriteFile(p, content, filePerm)
	}
	return err
}

func readUint(p string) (uint64, error) {
	b, err := readFile(p)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}

// parseCPUStat reads usage_usec from cpu.stat content, in ns
func parseCPUStat(b []byte) (uint64, error) {
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) == 2 && parts[0] == "usage_usec" {
			v, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return 0, err
			}
			return v * 1000, nil // to ns
		}
	}
	return 0, fmt.Errorf("cpu.stat: usage_usec: %w", os.ErrNotExist)
}

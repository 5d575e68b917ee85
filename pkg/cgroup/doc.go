// Package cgroup creates the per-run resource accounting domain of the
// payload under a cgroup root (default /sys/fs/cgroup/sel), including v1
// (co-mounted cpuacct,memory hierarchy) and v2 implementation.
//
// Accounted resources:
//
//	cpu     cpuacct.usage (v1), cpu.stat usage_usec (v2)
//	memory  memory.max_usage_in_bytes (v1), memory.peak (v2)
//	swap    memory.memsw.max_usage_in_bytes (v1), memory.swap.peak (v2)
//
// The domain is named after the pid of the trusted process. A missing root
// means isolation is unavailable, which is not an error.
package cgroup

package config

import "sort"

// defaultSyscallDenies are denied for every payload. Syscalls needed to
// transfer control (execve) are never denied.
var defaultSyscallDenies = []string{
	"ptrace", "process_vm_readv", "process_vm_writev",
	"mount", "umount2", "pivot_root", "chroot", "setns", "unshare",
	"reboot", "kexec_load", "init_module", "finit_module", "delete_module",
	"swapon", "swapoff", "acct", "settimeofday", "clock_settime",
	"bpf", "perf_event_open", "userfaultfd",
	"keyctl", "add_key", "request_key",
}

// reservedSyscalls cannot be denied, the shim needs them after the filter
// is installed
var reservedSyscalls = map[string]bool{
	"execve":     true,
	"execveat":   true,
	"exit":       true,
	"exit_group": true,
}

// DenyList returns the default denies plus extra, without duplicates
func DenyList(extra []string) []string {
	set := make(map[string]bool)
	for _, l := range [][]string{defaultSyscallDenies, archSyscallDenies, extra} {
		for _, s := range l {
			set[s] = true
		}
	}
	return keySetToSlice(set)
}

func keySetToSlice(m map[string]bool) []string {
	rt := make([]string, 0, len(m))
	for k := range m {
		rt = append(rt, k)
	}
	sort.Strings(rt)
	return rt
}

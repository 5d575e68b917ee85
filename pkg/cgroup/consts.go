package cgroup

const (
	// DefaultRoot is the cgroup root the domains are created under
	DefaultRoot = "/sys/fs/cgroup/sel"

	cgroupProcs          = "cgroup.procs"
	cgroupTasks          = "tasks"
	cgroupSubtreeControl = "cgroup.subtree_control"
	cgroupControllers    = "cgroup.controllers"

	filePerm = 0644
	dirPerm  = 0755
)

// controllers enabled for the domain on v2
var accountingControllers = []string{"cpu", "memory"}

// Type is the cgroup hierarchy version
type Type int

// Cgroup types
const (
	TypeV1 Type = iota + 1
	TypeV2
)

func (t Type) String() string {
	switch t {
	case TypeV1:
		return "v1"
	case TypeV2:
		return "v2"
	default:
		return "invalid"
	}
}

package types

// Status is the outcome status of the payload once control was transferred
type Status int

// Result Status for the payload
const (
	StatusInvalid Status = iota // 0 not initialized
	// Normal
	StatusNormal // 1 normal

	// Resource Limit Exceeded
	StatusTimeLimitExceeded   // 2 cpu rlimit or killed
	StatusOutputLimitExceeded // 3 file size rlimit

	// Intercepted fault
	StatusFault // 4 fault intercepted and unwound

	// Unauthorized Access
	StatusDisallowedSyscall // 5 killed by the seccomp filter

	// Runtime Error
	StatusSignalled         // 6 signalled, not intercepted
	StatusNonzeroExitStatus // 7 nonzero exit status

	// Launcher Error
	StatusRunnerError // 8 control transfer failed
)

var (
	statusString = []string{
		"Invalid",
		"Normal",
		"Time Limit Exceeded",
		"Output Limit Exceeded",
		"Fault",
		"Disallowed Syscall",
		"Signalled",
		"Nonzero Exit Status",
		"Runner Error",
	}
)

func (t Status) String() string {
	i := int(t)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

func (t Status) Error() string {
	return t.String()
}

package types

import (
	"fmt"
	"time"
)

// Result is the outcome of the payload after control came back
type Result struct {
	Status            // the final status for the payload
	ExitStatus int    // exit status (signal number if signalled)
	Fault      string // intercepted fault kind, if any
	Error      string // potential detailed error message

	Time   time.Duration // used user CPU time
	Memory Size          // max resident set size

	// metrics for the control transfer
	SetUpTime   time.Duration
	RunningTime time.Duration
}

func (r Result) String() string {
	switch r.Status {
	case StatusNormal:
		return fmt.Sprintf("Result[%v %v][%v %v]", r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	case StatusFault:
		return fmt.Sprintf("Result[Fault(%s %d)][%v %v][%v %v]", r.Fault, r.ExitStatus, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	case StatusRunnerError:
		return fmt.Sprintf("Result[RunnerFailed(%s)][%v %v][%v %v]", r.Error, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	default:
		return fmt.Sprintf("Result[%v(%s %d)][%v %v][%v %v]", r.Status, r.Error, r.ExitStatus, r.Time, r.Memory, r.SetUpTime, r.RunningTime)
	}
}

// ExitCode converts the result into a process exit code: the payload's own
// exit status, or 128 plus the signal number when it died by a signal
func (r Result) ExitCode() int {
	switch r.Status {
	case StatusNormal, StatusNonzeroExitStatus:
		return r.ExitStatus
	case StatusInvalid, StatusRunnerError:
		return 1
	default:
		return 128 + r.ExitStatus
	}
}

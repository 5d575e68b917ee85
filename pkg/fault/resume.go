package fault

import (
	"context"
	"errors"
	"sync"

	"github.com/criyle/go-sel/types"
)

// Errors reported by the ResumptionPoint
var (
	ErrReentrantUnwind = errors.New("fault: fault raised while already unwinding")
	ErrAlreadyResumed  = errors.New("fault: resumption point already resumed")
)

// Resumption is the value control resumes with
type Resumption struct {
	// Result is set when the payload exited on its own
	Result types.Result

	// Fault is set when a handler unwound control
	Fault   Fault
	Unwound bool
}

// ResumptionPoint is the saved point where control comes back once the
// payload exits or a handled fault unwinds. It fires exactly once.
type ResumptionPoint struct {
	mu      sync.Mutex
	fired   bool
	unwound bool
	tripped bool
	ch      chan Resumption
}

// Arm creates the resumption point, it must exist before control transfer
func Arm() *ResumptionPoint {
	return &ResumptionPoint{ch: make(chan Resumption, 1)}
}

// Resume returns control after a normal payload exit
func (r *ResumptionPoint) Resume(res types.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fired {
		return ErrAlreadyResumed
	}
	r.fired = true
	r.ch <- Resumption{Result: res}
	return nil
}

// Unwind returns control because of f. A second fault after an unwind
// trips the point.
func (r *ResumptionPoint) Unwind(f Fault) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fired {
		if r.unwound {
			r.tripped = true
			return ErrReentrantUnwind
		}
		return ErrAlreadyResumed
	}
	r.fired = true
	r.unwound = true
	r.ch <- Resumption{Fault: f, Unwound: true}
	return nil
}

// Wait blocks until the point fires or ctx is done
func (r *ResumptionPoint) Wait(ctx context.Context) (Resumption, error) {
	select {
	case res := <-r.ch:
		return res, nil
	case <-ctx.Done():
		return Resumption{}, ctx.Err()
	}
}

// Tripped reports whether a fault arrived while already unwinding
func (r *ResumptionPoint) Tripped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tripped
}

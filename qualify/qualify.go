// Package qualify runs the platform self-tests that must pass before any
// untrusted code is allowed to run.
package qualify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Check is one self-test
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Qualifier runs a battery of checks
type Qualifier struct {
	Checks []Check
	Logger *slog.Logger
}

// CheckError is the failure of one check
type CheckError struct {
	Name string
	Err  error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("qualify: %s: %v", e.Name, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// Run runs every check in order, also after a failure so that the operator
// sees the full picture. It returns the joined failures.
func (q *Qualifier) Run(ctx context.Context) error {
	logger := q.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(q.Checks) == 0 {
		return errors.New("qualify: no check configured")
	}

	var errs []error
	for _, c := range q.Checks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &CheckError{Name: c.Name, Err: err})
			continue
		}
		start := time.Now()
		err := c.Run(ctx)
		d := time.Since(start)
		if err != nil {
			logger.Error("qualification check failed", "check", c.Name, "duration", d, "error", err)
			errs = append(errs, &CheckError{Name: c.Name, Err: err})
			continue
		}
		logger.Debug("qualification check passed", "check", c.Name, "duration", d)
	}
	return errors.Join(errs...)
}

// Package validator runs the external static validator against the payload
// and reduces its outcome to a verdict.
//
// The validator reads the payload by path. The digest of the file is pinned
// before and after the run: a payload that changed while being validated
// fails, and the pinned digest is later compared with the snapshot.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/criyle/go-sel/pkg/etag"
	"github.com/criyle/go-sel/types"
)

// DefaultCommand is the validator used when none is configured
var DefaultCommand = []string{"ncval"}

// ErrChanged is returned when the payload changed while it was validated
var ErrChanged = errors.New("validator: payload changed during validation")

// Gateway invokes the validator
type Gateway struct {
	// Command is the argv prefix, the payload path is appended
	Command []string
	// Bypass skips validation, the verdict is NotAttempted
	Bypass bool
	Logger *slog.Logger
}

// Result is the outcome of one validation
type Result struct {
	Verdict types.Verdict
	// Pinned is the digest of the validated bytes, zero unless Passed
	Pinned     etag.Tag
	ExitStatus int
	Duration   time.Duration
}

// Validate runs the validator against path and waits for it. Every error
// comes with VerdictFailed.
func (g *Gateway) Validate(ctx context.Context, path string) (Result, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if g.Bypass {
		logger.Warn("payload validation bypassed", "path", path)
		return Result{Verdict: types.VerdictNotAttempted}, nil
	}

	failed := Result{Verdict: types.VerdictFailed, ExitStatus: -1}
	command := g.Command
	if len(command) == 0 {
		command = DefaultCommand
	}

	before, err := etag.File(path)
	if err != nil {
		return failed, err
	}

	args := append(append([]string(nil), command[1:]...), path)
	cmd := exec.CommandContext(ctx, command[0], args...)
	// diagnostics are the validator's own business
	cmd.Stdout = nil
	cmd.Stderr = nil

	start := time.Now()
	err = cmd.Run()
	failed.Duration = time.Since(start)
	logger.Debug("validator finished", "command", command, "path", path, "duration", failed.Duration, "error", err)

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		failed.ExitStatus = exitErr.ExitCode()
		return failed, fmt.Errorf("validator: %s rejected %s: %w", command[0], path, err)
	case err != nil:
		return failed, fmt.Errorf("validator: launch %s: %w", command[0], err)
	}

	after, err := etag.File(path)
	if err != nil {
		return failed, err
	}
	if after != before {
		return failed, fmt.Errorf("%w: %s", ErrChanged, path)
	}
	return Result{
		Verdict:  types.VerdictPassed,
		Pinned:   before,
		Duration: failed.Duration,
	}, nil
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/criyle/go-sel/config"
	"github.com/criyle/go-sel/loader"
	"github.com/criyle/go-sel/pkg/cgroup"
	"github.com/criyle/go-sel/pkg/etag"
	"github.com/criyle/go-sel/pkg/fault"
	"github.com/criyle/go-sel/pkg/gio"
	"github.com/criyle/go-sel/pkg/watch"
	"github.com/criyle/go-sel/shim"
	"github.com/criyle/go-sel/types"
	"github.com/criyle/go-sel/validator"
)

// Orchestrator runs the pipeline once
type Orchestrator struct {
	Context *Context
	Logger  *slog.Logger
	RunID   string

	// Manifest loads the manifest once the fault handlers are installed
	Manifest  func() (*config.Manifest, error)
	Faults    *fault.Manager
	Validator Validator
	Qualifier Qualifier
	Loader    *loader.Loader
	// Isolator may be nil, isolation is then unavailable
	Isolator Isolator
	Launcher Launcher

	// Stdio is inherited by the payload for streams the manifest leaves empty
	Stdio shim.Stdio
	// Report receives the final report, nil to skip it
	Report gio.Channel
	// LogCloser is closed at the very end of teardown
	LogCloser io.Closer

	state   State
	reached State
	history []Transition
	last    time.Time

	manifest *config.Manifest
	pinned   validator.Result
	watcher  *watch.Watcher
	shimCfg  shim.Config
	domain   Domain
	files    []*os.File
	result   *types.Result
	failure  *Failure
}

// Run runs the pipeline and its teardown, it returns the process exit code
func (o *Orchestrator) Run(ctx context.Context) (code int) {
	o.init()
	defer func() {
		code = o.teardown(recover())
	}()

	if f := o.pipeline(ctx); f != nil {
		o.abort(f)
	}
	return
}

func (o *Orchestrator) init() {
	if o.Context == nil {
		o.Context = NewContext()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Faults == nil {
		o.Faults = fault.NewManager(o.Logger)
	}
	if o.Loader == nil {
		o.Loader = &loader.Loader{Logger: o.Logger}
	}
	o.state = StateStart
	o.last = time.Now()
	o.history = []Transition{{State: StateStart, At: o.last}}
	o.Context.SetState(StateStart.String())
}

// State returns the current state
func (o *Orchestrator) State() State {
	return o.state
}

// History returns the timing marks of every transition
func (o *Orchestrator) History() []Transition {
	return append([]Transition(nil), o.history...)
}

// Failure returns the failure that aborted the run, if any
func (o *Orchestrator) Failure() *Failure {
	return o.failure
}

// Result returns the payload outcome, nil if it never ran
func (o *Orchestrator) Result() *types.Result {
	return o.result
}

// advance moves forward to s, moving backward is a bug
func (o *Orchestrator) advance(s State, detail string) {
	if s <= o.state || s >= StateExited {
		panic(fmt.Sprintf("bootstrap: illegal transition %v -> %v", o.state, s))
	}
	o.mark(s)
	o.reached = s
	text := s.String()
	if detail != "" {
		text += ": " + detail
	}
	o.Context.SetState(text)
}

func (o *Orchestrator) mark(s State) {
	now := time.Now()
	elapsed := now.Sub(o.last)
	o.last = now
	o.state = s
	o.history = append(o.history, Transition{State: s, Elapsed: elapsed, At: now})
	o.Logger.Debug("state", "state", s.String(), "elapsed", elapsed)
}

func (o *Orchestrator) abort(f *Failure) {
	o.failure = f
	attrs := []any{"kind", f.Kind.String(), "component", f.Component, "state", o.state.String()}
	if f.Resource != "" {
		attrs = append(attrs, "resource", f.Resource)
	}
	if f.Err != nil {
		attrs = append(attrs, "error", f.Err.Error())
	}
	o.Logger.Error("pipeline aborted", attrs...)
	o.mark(StateAborted)
	o.Context.SetState(fmt.Sprintf("%v: %v", StateAborted, f.Kind))
}

func (o *Orchestrator) pipeline(ctx context.Context) *Failure {
	c := o.Context
	o.advance(StateLogReady, "")
	if c.Verbosity > 0 {
		o.Logger.Debug("command line", "args", os.Args)
	}

	// handlers come first, qualification relies on them
	if err := o.Faults.Install(); err != nil {
		return fail(KindFaultHandlerIntegrity, "fault", "", err)
	}
	if err := o.Faults.AssertInstalled(); err != nil {
		return fail(KindFaultHandlerIntegrity, "fault", "", err)
	}
	o.advance(StateFaultHandlersInstalled, "")

	if o.Manifest == nil {
		return fail(KindConfiguration, "manifest", "", errors.New("no manifest"))
	}
	m, err := o.Manifest()
	if err != nil {
		return fail(KindConfiguration, "manifest", "", err)
	}
	if m.Payload == "" {
		return fail(KindConfiguration, "manifest", "", errors.New("empty payload path"))
	}
	o.manifest = m
	c.Payload = &Payload{Path: m.Payload}
	o.advance(StateCommandAndManifestParsed, m.Payload)

	if f := o.validate(ctx); f != nil {
		return f
	}
	o.advance(StateValidated, c.Verdict.String())

	if f := o.constructAppState(); f != nil {
		return f
	}
	o.advance(StateAppStateConstructed, "")

	if f := o.qualify(ctx); f != nil {
		return f
	}
	o.advance(StateQualified, "")

	if f := o.finalizeFaultHandlers(); f != nil {
		return f
	}
	o.advance(StateFaultHandlersFinalized, "")

	if f := o.snapshot(); f != nil {
		return f
	}
	o.advance(StateSnapshotTaken, c.Payload.Etag.String())

	if f := o.load(); f != nil {
		return f
	}
	o.advance(StateLoaded, "")
	if c.QuitAfterLoad {
		o.Logger.Info("quit after load", "path", c.Payload.Path)
		return nil
	}

	if f := o.isolate(); f != nil {
		return f
	}
	o.advance(StateIsolationReady, c.Payload.Domain)

	return o.run(ctx)
}

func (o *Orchestrator) validate(ctx context.Context) *Failure {
	c := o.Context
	path := c.Payload.Path
	if o.Validator == nil {
		c.Verdict = types.VerdictFailed
		return fail(KindValidation, "validator", path, errors.New("no validator"))
	}

	res, err := o.Validator.Validate(ctx, path)
	c.Verdict = res.Verdict
	switch res.Verdict {
	case types.VerdictPassed:
		o.Logger.Debug("payload validated", "path", path, "digest", res.Pinned.String(), "duration", res.Duration)

	case types.VerdictNotAttempted:
		if !c.SkipValidation {
			c.Verdict = types.VerdictFailed
			return fail(KindValidation, "validator", path, errors.New("validation not attempted without bypass"))
		}

	default:
		c.Verdict = types.VerdictFailed
		if err == nil {
			err = errors.New("payload rejected")
		}
		return fail(KindValidation, "validator", path, err)
	}
	o.pinned = res

	if res.Verdict == types.VerdictPassed {
		w, err := watch.New(path, o.Logger)
		if err != nil {
			o.Logger.Warn("payload watch unavailable", "path", path, "error", err)
		} else {
			o.watcher = w
		}
	}
	return nil
}

func (o *Orchestrator) constructAppState() *Failure {
	m := o.manifest
	b, err := m.SeccompBuilder()
	if err != nil {
		return fail(KindConfiguration, "seccomp", "", err)
	}
	filter, err := b.Build()
	if err != nil {
		return fail(KindConfiguration, "seccomp", "", err)
	}
	rl := m.RLimits()
	o.shimCfg = shim.Config{
		Args:    m.Argv(),
		Env:     m.Env,
		WorkDir: m.WorkDir,
		RLimits: rl,
		Filter:  filter,
	}
	o.Logger.Debug("app state constructed", "args", o.shimCfg.Args, "rlimits", rl.String(), "deny", len(b.Deny), "action", b.Action.String())
	return nil
}

func (o *Orchestrator) qualify(ctx context.Context) *Failure {
	if o.Context.SkipQualification {
		o.Logger.Warn("platform qualification skipped, confinement is not verified")
		return nil
	}
	if o.Qualifier == nil {
		return fail(KindQualification, "qualify", "", errors.New("no qualifier"))
	}
	if err := o.Qualifier.Run(ctx); err != nil {
		return fail(KindQualification, "qualify", "", err)
	}
	return nil
}

func (o *Orchestrator) finalizeFaultHandlers() *Failure {
	if o.Context.HandleFaults {
		if err := o.Faults.AssertInstalled(); err != nil {
			return fail(KindFaultHandlerIntegrity, "fault", "", err)
		}
		return nil
	}
	o.Logger.Warn("fault handling disabled, payload faults are not intercepted")
	o.Faults.Remove()
	if err := o.Faults.AssertNoHandlers(); err != nil {
		return fail(KindFaultHandlerIntegrity, "fault", "", err)
	}
	return nil
}

func (o *Orchestrator) snapshot() *Failure {
	c := o.Context
	path := c.Payload.Path

	snap, err := gio.NewSnapshot(path, o.Logger)
	if o.watcher != nil {
		werr := o.watcher.Stop()
		o.watcher = nil
		if errors.Is(werr, watch.ErrTampered) {
			if snap != nil {
				snap.Destroy()
			}
			return fail(KindSnapshot, "watch", path, werr)
		}
		if werr != nil {
			o.Logger.Debug("payload watch", "path", path, "error", werr)
		}
	}
	if err != nil {
		return fail(KindSnapshot, "snapshot", path, err)
	}
	c.Payload.Snapshot = snap
	c.Payload.Etag = etag.Sum(snap.Bytes())

	if c.Verdict == types.VerdictPassed && c.Payload.Etag != o.pinned.Pinned {
		return fail(KindSnapshot, "snapshot", path,
			fmt.Errorf("captured digest %v differs from validated digest %v", c.Payload.Etag, o.pinned.Pinned))
	}
	if c.Etag {
		o.Logger.Info("payload etag", "path", path, "etag", c.Payload.Etag.String())
	}
	return nil
}

func (o *Orchestrator) load() *Failure {
	c := o.Context
	path := c.Payload.Path
	snap := c.Payload.Snapshot

	img, st, err := o.Loader.Load(snap, filepath.Base(path))
	c.LoadStatus = st
	if st != types.LoadOK {
		if err == nil {
			err = st
		}
		if st.Format() && st != types.LoadBadMachine {
			err = fmt.Errorf("%w (the sandbox runs %s/%s payloads only)", err, runtime.GOOS, runtime.GOARCH)
		}
		return fail(KindLoad, "loader", path, err)
	}
	c.Payload.Image = img
	if err := snap.Close(); err != nil {
		o.Logger.Debug("snapshot close", "path", path, "error", err)
	}
	return nil
}

func (o *Orchestrator) isolate() *Failure {
	if o.Isolator == nil {
		o.Logger.Info("resource isolation unavailable")
		return nil
	}
	d, err := o.Isolator.Create(os.Getpid())
	if err != nil {
		return fail(KindIsolation, "cgroup", "", err)
	}
	if d == nil {
		o.Logger.Info("resource isolation unavailable")
		return nil
	}
	o.domain = d
	o.Context.Payload.Domain = d.Path()
	return nil
}

func (o *Orchestrator) exitCode() int {
	switch {
	case o.failure != nil:
		return o.failure.Kind.ExitCode()
	case o.result != nil:
		return o.result.ExitCode()
	case o.Context.QuitAfterLoad && o.Context.LoadStatus == types.LoadOK:
		return 0
	default:
		return KindInternal.ExitCode()
	}
}

// teardown is the Exited state, it runs whatever happened before
func (o *Orchestrator) teardown(p any) int {
	c := o.Context
	if p != nil {
		o.Logger.Error("panic in pipeline", "panic", fmt.Sprint(p), "state", c.State(), "stack", string(debug.Stack()))
		if o.failure == nil {
			o.abort(fail(KindInternal, "bootstrap", "", fmt.Errorf("panic: %v", p)))
		}
	}

	if o.watcher != nil {
		o.watcher.Stop()
		o.watcher = nil
	}
	o.closeStdio()
	if pl := c.Payload; pl != nil {
		if pl.Image != nil {
			pl.Image.Close()
		}
		if pl.Snapshot != nil {
			pl.Snapshot.Destroy()
		}
	}
	o.Faults.Remove()

	var usage *cgroup.Usage
	if o.domain != nil {
		u, err := o.domain.Usage()
		if err != nil {
			o.Logger.Warn("accounting readout incomplete", "domain", o.domain.Path(), "error", err)
		}
		o.Logger.Info("accounting", "domain", o.domain.Path(), "cpu", u.CPU, "memory", u.MemoryPeak.String(), "swap", u.SwapPeak.String())
		usage = &u
	}

	code := o.exitCode()
	o.mark(StateExited)
	if o.Report != nil {
		if err := o.writeReport(code, usage); err != nil {
			o.Logger.Error("report", "error", err)
		}
	}
	o.Logger.Info("exited", "reached", o.reached.String(), "state", c.State(), "code", code)
	c.SetState(fmt.Sprintf("%v: %d", StateExited, code))

	if o.LogCloser != nil {
		o.LogCloser.Close()
	}
	return code
}

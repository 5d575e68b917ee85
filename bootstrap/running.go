package bootstrap

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/criyle/go-sel/pkg/fault"
	"github.com/criyle/go-sel/shim"
	"github.com/criyle/go-sel/types"
)

// waited is what the wait goroutine hands back
type waited struct {
	result types.Result
	err    error
}

// run arms the resumption point and transfers control to the payload
func (o *Orchestrator) run(ctx context.Context) *Failure {
	c := o.Context
	path := c.Payload.Path

	stdio, err := o.openStdio()
	if err != nil {
		return fail(KindConfiguration, "stdio", "", err)
	}

	rp := fault.Arm()
	if c.HandleFaults {
		err := o.Faults.HandleAll(func(f fault.Fault) {
			switch err := rp.Unwind(f); {
			case errors.Is(err, fault.ErrReentrantUnwind):
				o.Logger.Error("fault while unwinding", "fault", f.String())
			case err != nil:
				o.Logger.Warn("fault after control returned", "fault", f.String())
			}
		})
		if err != nil {
			return fail(KindFaultHandlerIntegrity, "fault", "", err)
		}
	}
	o.advance(StateArmed, "")

	if o.Launcher == nil {
		return fail(KindInternal, "shim", path, errors.New("no launcher"))
	}
	start := time.Now()
	p, err := o.Launcher.Start(ctx, c.Payload.Image.File, o.shimCfg, stdio)
	// the payload holds its own copies
	o.closeStdio()
	if err != nil {
		return fail(KindInternal, "shim", path, err)
	}
	setUp := time.Since(start)
	o.advance(StateRunning, strconv.Itoa(p.Pid()))

	results := make(chan waited, 1)
	go func() {
		exit, err := p.Wait()
		if err != nil {
			rp.Resume(types.Result{Status: types.StatusRunnerError, Error: err.Error()})
			results <- waited{err: err}
			return
		}
		r := exit.Result()
		if f, ok := fault.Classify(p.Pid(), unix.WaitStatus(exit.Status)); ok && o.Faults.Intercept(f) {
			results <- waited{result: r}
			return
		}
		rp.Resume(r)
		results <- waited{result: r}
	}()

	res, err := rp.Wait(ctx)
	if err != nil {
		p.Kill()
		<-results
		return fail(KindInternal, "running", path, err)
	}
	if res.Unwound && res.Fault.Origin != fault.OriginPayload {
		// control left the trusted side, the payload must not outlive it
		p.Kill()
	}
	w := <-results
	if w.err != nil {
		return fail(KindInternal, "running", path, w.err)
	}
	r := w.result
	if res.Unwound {
		r.Status = types.StatusFault
		r.Fault = res.Fault.Kind.String()
		r.ExitStatus = int(res.Fault.Signal)
		r.Error = res.Fault.String()
	}
	r.SetUpTime = setUp
	o.result = &r

	if rp.Tripped() {
		return fail(KindFaultHandlerIntegrity, "fault", "", fault.ErrReentrantUnwind)
	}
	o.Logger.Info("payload returned", "pid", p.Pid(), "result", r.String())
	return nil
}

// openStdio opens the payload streams named by the manifest
func (o *Orchestrator) openStdio() (shim.Stdio, error) {
	m := o.manifest
	s := o.Stdio

	open := func(name string, flag int) (*os.File, error) {
		f, err := os.OpenFile(name, flag, 0644)
		if err != nil {
			return nil, err
		}
		o.files = append(o.files, f)
		return f, nil
	}

	var err error
	if m.Stdin != "" {
		if s.Stdin, err = open(m.Stdin, os.O_RDONLY); err != nil {
			return s, err
		}
	}
	if m.Stdout != "" {
		if s.Stdout, err = open(m.Stdout, os.O_WRONLY|os.O_CREATE|os.O_TRUNC); err != nil {
			return s, err
		}
	}
	if m.Stderr != "" {
		if s.Stderr, err = open(m.Stderr, os.O_WRONLY|os.O_CREATE|os.O_TRUNC); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (o *Orchestrator) closeStdio() {
	for _, f := range o.files {
		f.Close()
	}
	o.files = nil
}

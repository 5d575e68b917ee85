package bootstrap

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/criyle/go-sel/pkg/cgroup"
	"github.com/criyle/go-sel/types"
)

// Report is the post-mortem record written at exit
type Report struct {
	RunID      string            `yaml:"run_id,omitempty"`
	Payload    string            `yaml:"payload,omitempty"`
	Reached    State             `yaml:"reached"`
	State      string            `yaml:"state"`
	Failure    *FailureReport    `yaml:"failure,omitempty"`
	Validation types.Verdict     `yaml:"validation"`
	LoadStatus string            `yaml:"load_status"`
	ExitCode   int               `yaml:"exit_code"`
	Result     *ResultReport     `yaml:"result,omitempty"`
	Etag       string            `yaml:"etag,omitempty"`
	Accounting *AccountingReport `yaml:"accounting,omitempty"`
	Timings    []Transition      `yaml:"timings"`
}

// FailureReport describes the failure that aborted the run
type FailureReport struct {
	Kind      string `yaml:"kind"`
	Component string `yaml:"component,omitempty"`
	Resource  string `yaml:"resource,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

// ResultReport describes the payload outcome
type ResultReport struct {
	Status     string        `yaml:"status"`
	ExitStatus int           `yaml:"exit_status"`
	Fault      string        `yaml:"fault,omitempty"`
	Error      string        `yaml:"error,omitempty"`
	Time       time.Duration `yaml:"time"`
	Memory     types.Size    `yaml:"memory"`
	SetUpTime  time.Duration `yaml:"setup_time"`
	Wall       time.Duration `yaml:"wall_time"`
}

// AccountingReport is the isolation domain readout
type AccountingReport struct {
	Domain     string        `yaml:"domain"`
	CPU        time.Duration `yaml:"cpu"`
	MemoryPeak types.Size    `yaml:"memory_peak"`
	SwapPeak   types.Size    `yaml:"swap_peak"`
}

func (o *Orchestrator) report(code int, usage *cgroup.Usage) Report {
	c := o.Context
	r := Report{
		RunID:      o.RunID,
		Reached:    o.reached,
		State:      c.State(),
		Validation: c.Verdict,
		LoadStatus: c.LoadStatus.String(),
		ExitCode:   code,
		Timings:    o.History(),
	}
	if c.Payload != nil {
		r.Payload = c.Payload.Path
		if c.Etag && !c.Payload.Etag.IsZero() {
			r.Etag = c.Payload.Etag.String()
		}
	}
	if f := o.failure; f != nil {
		r.Failure = &FailureReport{
			Kind:      f.Kind.String(),
			Component: f.Component,
			Resource:  f.Resource,
		}
		if f.Err != nil {
			r.Failure.Error = f.Err.Error()
		}
	}
	if res := o.result; res != nil {
		r.Result = &ResultReport{
			Status:     res.Status.String(),
			ExitStatus: res.ExitStatus,
			Fault:      res.Fault,
			Error:      res.Error,
			Time:       res.Time,
			Memory:     res.Memory,
			SetUpTime:  res.SetUpTime,
			Wall:       res.RunningTime,
		}
	}
	if usage != nil && o.domain != nil {
		r.Accounting = &AccountingReport{
			Domain:     o.domain.Path(),
			CPU:        usage.CPU,
			MemoryPeak: usage.MemoryPeak,
			SwapPeak:   usage.SwapPeak,
		}
	}
	return r
}

// writeReport encodes the report onto the report channel and destroys it
func (o *Orchestrator) writeReport(code int, usage *cgroup.Usage) error {
	ch := o.Report
	defer ch.Destroy()

	enc := yaml.NewEncoder(ch)
	enc.SetIndent(2)
	if err := enc.Encode(o.report(code, usage)); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := ch.Flush(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	if err := ch.Close(); err != nil {
		return fmt.Errorf("report: close: %w", err)
	}
	return nil
}

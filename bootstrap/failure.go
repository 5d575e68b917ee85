package bootstrap

import (
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure
type Kind int

// Failure kinds, every one is fatal
const (
	KindConfiguration Kind = iota + 1
	KindQualification
	KindValidation
	KindSnapshot
	KindLoad
	KindIsolation
	KindFaultHandlerIntegrity
	KindInternal
)

// exit codes of aborted runs are exitCodeBase + kind
const exitCodeBase = 100

var kindString = []string{
	"",
	"ConfigurationError",
	"QualificationFailure",
	"ValidationFailure",
	"SnapshotFailure",
	"LoadFailure",
	"IsolationFailure",
	"FaultHandlerIntegrityFailure",
	"InternalError",
}

func (k Kind) String() string {
	if k >= KindConfiguration && k <= KindInternal {
		return kindString[k]
	}
	return "UnknownFailure"
}

// ExitCode returns the process exit code of a run aborted by k
func (k Kind) ExitCode() int {
	if k >= KindConfiguration && k <= KindInternal {
		return exitCodeBase + int(k)
	}
	return exitCodeBase + int(KindInternal)
}

// Failure is a fatal pipeline error
type Failure struct {
	Kind      Kind
	Component string
	// Resource identifies the failing resource (path, domain), if any
	Resource string
	Err      error
}

func (f *Failure) Error() string {
	var sb strings.Builder
	sb.WriteString(f.Kind.String())
	if f.Component != "" {
		fmt.Fprintf(&sb, ": %s", f.Component)
	}
	if f.Resource != "" {
		fmt.Fprintf(&sb, ": %s", f.Resource)
	}
	if f.Err != nil {
		fmt.Fprintf(&sb, ": %v", f.Err)
	}
	return sb.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(k Kind, component, resource string, err error) *Failure {
	return &Failure{Kind: k, Component: component, Resource: resource, Err: err}
}

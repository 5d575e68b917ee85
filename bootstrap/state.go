package bootstrap

import "time"

// State is a step of the pipeline
type State int

// States in their only legal order, Aborted may follow any of them
const (
	StateStart State = iota
	StateLogReady
	StateFaultHandlersInstalled
	StateCommandAndManifestParsed
	StateValidated
	StateAppStateConstructed
	StateQualified
	StateFaultHandlersFinalized
	StateSnapshotTaken
	StateLoaded
	StateIsolationReady
	StateArmed
	StateRunning
	StateExited
	StateAborted
)

var stateString = []string{
	"Start",
	"LogReady",
	"FaultHandlersInstalled",
	"CommandAndManifestParsed",
	"Validated",
	"AppStateConstructed",
	"Qualified",
	"FaultHandlersFinalized",
	"SnapshotTaken",
	"Loaded",
	"IsolationReady",
	"Armed",
	"Running",
	"Exited",
	"Aborted",
}

func (s State) String() string {
	i := int(s)
	if i >= 0 && i < len(stateString) {
		return stateString[i]
	}
	return "Invalid"
}

// MarshalText lets the state appear by name in reports
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is one timing mark
type Transition struct {
	State State `yaml:"state"`
	// Elapsed since the previous mark
	Elapsed time.Duration `yaml:"elapsed"`
	At      time.Time     `yaml:"-"`
}

package shim

import (
	"github.com/criyle/go-sel/pkg/rlimit"
	"github.com/criyle/go-sel/pkg/seccomp"
)

// Arg is the argument turning the binary into the shim
const Arg = "__sel_shim__"

// fds shared with the shim
const (
	ImageFD  = 3
	ConfigFD = 4
	ErrorFD  = 5
)

// Config is passed from the trusted process to the shim
type Config struct {
	// Args is the argv of the payload, Args[0] included
	Args    []string `cbor:"1,keyasint"`
	Env     []string `cbor:"2,keyasint,omitempty"`
	WorkDir string   `cbor:"3,keyasint,omitempty"`

	RLimits rlimit.RLimits `cbor:"4,keyasint"`
	Filter  seccomp.Filter `cbor:"5,keyasint,omitempty"`

	// Canary installs Filter and calls getppid instead of exec, expecting
	// the filter to kill the shim
	Canary bool `cbor:"6,keyasint,omitempty"`
}

package bootstrap

import (
	"unicode/utf8"

	"github.com/criyle/go-sel/loader"
	"github.com/criyle/go-sel/pkg/etag"
	"github.com/criyle/go-sel/pkg/gio"
	"github.com/criyle/go-sel/types"
)

// MaxStateLength bounds the post-mortem state text
const MaxStateLength = 64

// Context is the execution context of one run. Only the Orchestrator
// mutates it.
type Context struct {
	// Trusted is always true for the process running the pipeline
	Trusted   bool
	Verbosity int

	SkipQualification bool
	SkipValidation    bool
	HandleFaults      bool
	QuitAfterLoad     bool
	// Etag reports the digest of the captured payload
	Etag bool

	Verdict    types.Verdict
	LoadStatus types.LoadStatus
	Payload    *Payload

	state string
}

// Payload describes the untrusted program
type Payload struct {
	Path string
	// Snapshot is the captured image, nil until SnapshotTaken
	Snapshot *gio.Snapshot
	Etag     etag.Tag
	Image    *loader.Image
	// Domain is the isolation group path, empty without isolation
	Domain string
}

// NewContext returns the context with the default policy
func NewContext() *Context {
	return &Context{
		Trusted:      true,
		HandleFaults: true,
		LoadStatus:   types.LoadInternal,
	}
}

// SetState records what the pipeline is doing, truncated to MaxStateLength
// bytes on a rune boundary
func (c *Context) SetState(s string) {
	if len(s) > MaxStateLength {
		s = s[:MaxStateLength]
		for len(s) > 0 && !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	c.state = s
}

// State returns the last state text
func (c *Context) State() string {
	return c.state
}

// Package bootstrap sequences the trusted pipeline that decides whether and
// when the payload runs.
//
// The Orchestrator walks the states in strict forward order:
//
//	Start -> LogReady -> FaultHandlersInstalled -> CommandAndManifestParsed
//	-> Validated -> AppStateConstructed -> Qualified -> FaultHandlersFinalized
//	-> SnapshotTaken -> Loaded -> IsolationReady -> Armed -> Running -> Exited
//
// Any failure jumps to Aborted. Teardown (Exited) runs whatever happened
// before: it writes the report, releases the payload resources, closes the
// log and computes the exit code.
package bootstrap

// Package fault intercepts faults raised by the payload and unwinds control
// back to the bootstrap pipeline.
//
// A fault reaches the Manager from one of two origins:
//
//	payload  the payload process died by a fault signal (see Classify)
//	trusted  a fault signal was delivered to the trusted process itself
//
// Both are dispatched through the same handler table keyed by Kind. The
// handler installed by the orchestrator unwinds a ResumptionPoint that was
// armed before control was transferred. Unwinding is one-shot: a second
// fault while unwinding trips the point and is fatal.
package fault

// Package enrich runs the rate-governed, checkpointed enrichment pipeline.
package enrich

import (
	"context"
	"sync/atomic"
)

// State is the cooperative shutdown state machine:
// Running -> StopRequested -> Stopped.
type State int32

const (
	Running State = iota
	StopRequested
	Stopped
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopController converts an external interrupt into a cooperative stop
// signal. Workers poll ShouldStop between items, never mid-item, so no
// record is ever lost or half-written; shutdown latency is bounded by one
// item's processing time per worker.
//
// The controller is deliberately decoupled from OS signals: tests drive it
// with RequestStop directly, and main wires it to a signal context via Watch.
type StopController struct {
	state atomic.Int32
}

// NewStopController creates a controller in the Running state.
func NewStopController() *StopController {
	return &StopController{}
}

// RequestStop moves Running -> StopRequested. Requests after the first are
// no-ops.
func (c *StopController) RequestStop() {
	c.state.CompareAndSwap(int32(Running), int32(StopRequested))
}

// ShouldStop reports whether workers should finish their current item and
// exit.
func (c *StopController) ShouldStop() bool {
	return State(c.state.Load()) != Running
}

// MarkStopped records that all workers have exited.
func (c *StopController) MarkStopped() {
	c.state.Store(int32(Stopped))
}

// State returns the current state.
func (c *StopController) State() State {
	return State(c.state.Load())
}

// Watch requests a stop when ctx is canceled (e.g. by signal.NotifyContext).
// It returns immediately; the watch runs until ctx is done.
func (c *StopController) Watch(ctx context.Context) {
	go func() {
		<-ctx.Done()
		c.RequestStop()
	}()
}

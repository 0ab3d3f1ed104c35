// Package orchestrator implements plan execution, checkpointing, and
// resumption, per spec §4.7: an RTFS plan is run against a CCOS host inside
// a runtime context, with governance preflight, causal-chain recording, and
// intent status transitions all performed around the evaluator call.
package orchestrator

import (
	"github.com/mandubian/ccos-sub020/internal/types"
)

// Status is a plan's lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusPaused    Status = "Paused"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Plan is a content-addressed, executable RTFS program tied to one or more
// intents, per spec §3.
type Plan struct {
	ID       string
	Body     string // RTFS source
	Language string // e.g. "rtfs20"

	IntentIDs            []string
	CapabilitiesRequired []string // populated by preflight if empty

	Status Status
	Policy map[string]any
}

// AllocateID assigns p.ID a content hash of its body if absent, matching
// the "plan id is a content hash of body" rule (spec §3): identical plan
// bodies always resolve to the same id.
func (p *Plan) AllocateID() {
	if p.ID == "" {
		p.ID = types.ContentHashString(p.Body)
	}
}

// ExecutionResult is what execute_plan returns: the plan's final value (if
// any), its terminal status, and the error that caused failure, if any.
type ExecutionResult struct {
	PlanID string
	Value  any
	Status Status
	Err    error
}

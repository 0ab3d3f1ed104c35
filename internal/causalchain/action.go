// Package causalchain implements the append-only, cryptographically-signed
// action ledger described in spec §3/§4.1: every orchestrator and governance
// decision is recorded here, in program order, and never mutated once
// appended.
package causalchain

import "time"

// ActionType enumerates the kinds of actions recorded on the chain.
type ActionType string

const (
	ActionPlanStarted        ActionType = "PlanStarted"
	ActionPlanStepStarted    ActionType = "PlanStepStarted"
	ActionCapabilityCall     ActionType = "CapabilityCall"
	ActionPlanStepCompleted  ActionType = "PlanStepCompleted"
	ActionPlanStepFailed     ActionType = "PlanStepFailed"
	ActionPlanPaused         ActionType = "PlanPaused"
	ActionPlanCompleted      ActionType = "PlanCompleted"
	ActionPlanFailed         ActionType = "PlanFailed"
	ActionIntentStatusChanged ActionType = "IntentStatusChanged"
	ActionCheckpointTaken    ActionType = "CheckpointTaken"
)

// Action is a single immutable entry on the causal chain. Fields mirror
// spec §3 exactly; Signature and Timestamp are assigned by the chain at
// append time and must never be set by callers ahead of time.
type Action struct {
	ActionID       string
	ParentActionID string
	PlanID         string
	IntentID       string
	ActionType     ActionType

	FunctionName string
	Arguments    map[string]any
	Result       any
	Cost         float64
	DurationMS   int64

	Timestamp int64 // unix nanos; always assigned by Chain.Append
	Signature string
	Metadata  map[string]any
}

// WithTime returns a shallow copy of a, with Timestamp set to t. Chain.Append
// overwrites Timestamp, so the value set here does not survive an append;
// use WithClock on the chain for deterministic timestamps.
func (a Action) WithTime(t time.Time) Action {
	a.Timestamp = t.UnixNano()
	return a
}

// canonicalBody is the subset of fields the signature is computed over. It
// excludes Signature itself (obviously) and Timestamp is included by the
// caller separately, matching the original implementation's
// hash(signing_key || action_id || timestamp || body) scheme.
type canonicalBody struct {
	ParentActionID string         `json:"parent_action_id"`
	PlanID         string         `json:"plan_id"`
	IntentID       string         `json:"intent_id"`
	ActionType     ActionType     `json:"action_type"`
	FunctionName   string         `json:"function_name,omitempty"`
	Arguments      map[string]any `json:"arguments,omitempty"`
	Result         any            `json:"result,omitempty"`
	Cost           float64        `json:"cost,omitempty"`
	DurationMS     int64          `json:"duration_ms,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (a Action) canonical() canonicalBody {
	return canonicalBody{
		ParentActionID: a.ParentActionID,
		PlanID:         a.PlanID,
		IntentID:       a.IntentID,
		ActionType:     a.ActionType,
		FunctionName:   a.FunctionName,
		Arguments:      a.Arguments,
		Result:         a.Result,
		Cost:           a.Cost,
		DurationMS:     a.DurationMS,
		Metadata:       a.Metadata,
	}
}

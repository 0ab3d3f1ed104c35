// Package governance implements the Governance Kernel of spec §4.8: a
// rule-based Constitution plus an optional Semantic Judge consulted before
// any plan is allowed to execute.
package governance

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// Action is a Constitution rule's verdict for a matching capability id.
type Action int

const (
	ActionAllow Action = iota
	ActionDeny
	ActionRequireApproval
)

// Rule is one insertion-ordered constitution entry. Pattern is a
// doublestar glob matched against capability ids (e.g. "ccos.io.*").
type Rule struct {
	ID      string
	Pattern string
	Action  Action
	Reason  string // populated for ActionDeny
}

// Constitution is an insertion-ordered list of rules. Matching is
// first-match-wins over the capability ids appearing in a plan; a Deny
// verdict is terminal and short-circuits the remaining rules.
type Constitution struct {
	rules []Rule
}

// NewConstitution constructs a Constitution over rules, preserving their
// given order as match priority.
func NewConstitution(rules ...Rule) *Constitution {
	return &Constitution{rules: append([]Rule{}, rules...)}
}

// Rules returns the constitution's rule list in match order.
func (c *Constitution) Rules() []Rule {
	return append([]Rule{}, c.rules...)
}

// Verdict is one rule's match result for a capability id.
type Verdict struct {
	CapabilityID string
	Matched      bool
	RuleID       string
	Action       Action
	Reason       string
}

// Evaluate returns the first matching rule's verdict for capabilityID. No
// match defaults to ActionAllow (an unlisted capability is permitted,
// matching the additive default of an open constitution); operators who
// want closed-by-default behavior append a trailing "*" Deny rule.
func (c *Constitution) Evaluate(capabilityID string) Verdict {
	for _, rule := range c.rules {
		matched, err := doublestar.Match(rule.Pattern, capabilityID)
		if err != nil || !matched {
			continue
		}
		return Verdict{CapabilityID: capabilityID, Matched: true, RuleID: rule.ID, Action: rule.Action, Reason: rule.Reason}
	}
	return Verdict{CapabilityID: capabilityID, Matched: false, Action: ActionAllow}
}

// EvaluatePlan evaluates every id in capabilityIDs and returns the first
// Deny verdict encountered, terminal over any later RequireApproval or
// Allow verdicts for other ids. If no Deny is found, the combined verdicts
// for ids requiring approval are returned.
func (c *Constitution) EvaluatePlan(capabilityIDs []string) (denied *Verdict, requiresApproval []Verdict) {
	for _, id := range capabilityIDs {
		v := c.Evaluate(id)
		switch v.Action {
		case ActionDeny:
			vv := v
			return &vv, nil
		case ActionRequireApproval:
			requiresApproval = append(requiresApproval, v)
		}
	}
	return nil, requiresApproval
}

// ErrFromDenial renders a Deny verdict as the structured governance
// rejection error of record (spec §7).
func ErrFromDenial(v Verdict) error {
	reason := v.Reason
	if reason == "" {
		reason = "denied by constitution rule " + v.RuleID
	}
	return ccoserr.Newf(ccoserr.KindGovernance, "capability %q denied: %s", v.CapabilityID, reason).
		WithFields(map[string]any{"operation": "constitution_deny", "capability": v.CapabilityID, "rule": v.RuleID})
}

// Package security defines the Runtime Context: the per-execution security
// envelope that bounds which capabilities and effects a plan may invoke,
// per spec §3.
package security

// Level is the security posture of a runtime context.
type Level string

const (
	// LevelPure forbids every capability call.
	LevelPure Level = "Pure"
	// LevelControlled allows exactly the ids in AllowedCapabilities.
	LevelControlled Level = "Controlled"
	// LevelFull allows any capability, subject only to effect policy.
	LevelFull Level = "Full"
)

// Context is the Runtime Context of record (spec §3). Deny lists always win
// over allow lists for effects; Pure forbids every capability regardless of
// AllowedCapabilities; Controlled allows exactly the listed ids.
type Context struct {
	SecurityLevel       Level
	AllowedCapabilities map[string]bool
	// AllowedEffects is closed by default: an empty set under Controlled means
	// no effect is allowed unless explicitly listed.
	AllowedEffects map[string]bool
	DeniedEffects  map[string]bool
	CrossPlanParams map[string]any
}

// NewPure constructs a Context that forbids every capability call.
func NewPure() Context {
	return Context{SecurityLevel: LevelPure}
}

// NewControlled constructs a Context that allows exactly the given
// capability ids and effects.
func NewControlled(capabilities, effects []string) Context {
	c := Context{
		SecurityLevel:       LevelControlled,
		AllowedCapabilities: toSet(capabilities),
		AllowedEffects:      toSet(effects),
	}
	return c
}

// NewFull constructs a Context with no capability restriction.
func NewFull() Context {
	return Context{SecurityLevel: LevelFull, AllowedEffects: map[string]bool{}}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

// AllowsCapability reports whether capabilityID may be invoked under this
// context, independent of effect policy.
func (c Context) AllowsCapability(capabilityID string) bool {
	switch c.SecurityLevel {
	case LevelPure:
		return false
	case LevelControlled:
		return c.AllowedCapabilities[capabilityID]
	case LevelFull:
		return true
	default:
		return false
	}
}

// EnsureEffectsAllowed checks declaredEffects against the allow/deny lists.
// A deny always wins over an allow for the same tag; under Controlled, an
// effect absent from AllowedEffects is denied (closed by default).
func (c Context) EnsureEffectsAllowed(declaredEffects []string) (ok bool, deniedEffect string) {
	for _, effect := range declaredEffects {
		if c.DeniedEffects[effect] {
			return false, effect
		}
	}
	if c.SecurityLevel == LevelFull {
		return true, ""
	}
	for _, effect := range declaredEffects {
		if !c.AllowedEffects[effect] {
			return false, effect
		}
	}
	return true, ""
}

// WithCrossPlanParam returns a copy of c with key bound to value in
// CrossPlanParams. Cross-plan state is never mutated on failure paths by
// callers (spec §7); the copy-on-write here keeps that invariant cheap to
// enforce.
func (c Context) WithCrossPlanParam(key string, value any) Context {
	out := c
	out.CrossPlanParams = make(map[string]any, len(c.CrossPlanParams)+1)
	for k, v := range c.CrossPlanParams {
		out.CrossPlanParams[k] = v
	}
	out.CrossPlanParams[key] = value
	return out
}

package rtfs

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// evalStep implements (step "name" :expose-context? bool? :params map? body…).
// It notifies the host of step start/completion/failure and binds %params
// in the body's scope. When context exposure is enabled for this step (by
// the :expose-context? option; a host's SetStepExposureOverride does not
// reach the evaluator), it also writes the step's params to the host's
// execution context under "step:"+name via SetExecutionContext before
// running body.
func (ev *Evaluator) evalStep(ctx context.Context, args []Value, env *Env, depth int) (Value, error) {
	if len(args) < 1 || args[0].Kind != KindString {
		return Nil, ccoserr.New(ccoserr.KindParse, "step requires (step \"name\" body…)")
	}
	name := args[0].Str
	rest := args[1:]

	expose := ev.stepExposure[name]
	var params Value = Map()
	body := rest

optionLoop:
	for len(body) >= 2 && body[0].Kind == KindKeyword {
		switch body[0].Str {
		case "expose-context?":
			v, err := ev.eval(ctx, body[1], env, depth+1)
			if err != nil {
				return Nil, err
			}
			expose = v.Truthy()
			body = body[2:]
		case "params":
			v, err := ev.eval(ctx, body[1], env, depth+1)
			if err != nil {
				return Nil, err
			}
			params = v
			body = body[2:]
		default:
			break optionLoop
		}
	}

	stepEnv := env.Child()
	stepEnv.Define("%params", params)

	ev.Host.NotifyStepStarted(ctx, name, params)
	if expose {
		ev.Host.SetExecutionContext(ctx, "step:"+name, params)
	}

	result, err := ev.evalDo(ctx, body, stepEnv, depth+1)
	if err != nil {
		ev.Host.NotifyStepFailed(ctx, name, err)
		return Nil, err
	}
	ev.Host.NotifyStepCompleted(ctx, name, result)
	return result, nil
}

// evalCall implements (call :capability arg…). Arguments are evaluated and
// passed to the host as a vector; a single argument of any kind is passed
// unwrapped so a capability declaring a keyed-map schema still receives a
// map when the caller wrote (call :cap {:k v}), and no argument passes Nil.
func (ev *Evaluator) evalCall(ctx context.Context, args []Value, env *Env, depth int) (Value, error) {
	if len(args) < 1 || args[0].Kind != KindKeyword {
		return Nil, ccoserr.New(ccoserr.KindParse, "call requires (call :capability args…)")
	}
	capabilityID := args[0].Str
	values := make([]Value, len(args)-1)
	for i, a := range args[1:] {
		v, err := ev.eval(ctx, a, env, depth+1)
		if err != nil {
			return Nil, err
		}
		values[i] = v
	}
	var callArgs Value
	switch len(values) {
	case 0:
		callArgs = Nil
	case 1:
		callArgs = values[0]
	default:
		callArgs = Vector(values...)
	}
	return ev.Host.ExecuteCapability(ctx, capabilityID, callArgs)
}

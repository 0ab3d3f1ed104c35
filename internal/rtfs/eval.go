package rtfs

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// DefaultMaxDepth bounds call-stack recursion when a Evaluator is
// constructed without an explicit override.
const DefaultMaxDepth = 512

// Evaluator interprets RTFS forms against a HostInterface. It holds no
// mutable evaluation state of its own beyond step-exposure overrides;
// lexical state lives entirely in the Env chain passed through Eval, so a
// single Evaluator can safely run concurrent top-level forms over distinct
// Env roots.
type Evaluator struct {
	Host     HostInterface
	MaxDepth int

	stepExposure map[string]bool
}

// NewEvaluator constructs an Evaluator over host with DefaultMaxDepth.
func NewEvaluator(host HostInterface) *Evaluator {
	return &Evaluator{Host: host, MaxDepth: DefaultMaxDepth, stepExposure: map[string]bool{}}
}

// Eval evaluates a single form against env, starting at call-stack depth 0.
func (ev *Evaluator) Eval(ctx context.Context, form Value, env *Env) (Value, error) {
	return ev.eval(ctx, form, env, 0)
}

// EvalAll evaluates forms in sequence, returning the last result (the
// semantics of an implicit top-level do).
func (ev *Evaluator) EvalAll(ctx context.Context, forms []Value, env *Env) (Value, error) {
	result := Nil
	for _, form := range forms {
		var err error
		result, err = ev.Eval(ctx, form, env)
		if err != nil {
			return Nil, err
		}
	}
	return result, nil
}

func (ev *Evaluator) eval(ctx context.Context, form Value, env *Env, depth int) (Value, error) {
	if depth > ev.MaxDepth {
		return Nil, ccoserr.New(ccoserr.KindResource, "rtfs stack depth limit exceeded").
			WithFields(map[string]any{"operation": "stack_depth"})
	}
	switch form.Kind {
	case KindSymbol:
		if v, ok := env.Get(form.Str); ok {
			return v, nil
		}
		return Nil, ccoserr.Newf(ccoserr.KindParse, "unbound symbol %q", form.Str)
	case KindList:
		return ev.evalList(ctx, form, env, depth)
	case KindVector:
		items := make([]Value, len(form.Items))
		for i, it := range form.Items {
			v, err := ev.eval(ctx, it, env, depth+1)
			if err != nil {
				return Nil, err
			}
			items[i] = v
		}
		return Vector(items...), nil
	case KindMap:
		pairs := make([]MapPair, len(form.Pairs))
		for i, p := range form.Pairs {
			k, err := ev.eval(ctx, p.Key, env, depth+1)
			if err != nil {
				return Nil, err
			}
			v, err := ev.eval(ctx, p.Value, env, depth+1)
			if err != nil {
				return Nil, err
			}
			pairs[i] = MapPair{Key: k, Value: v}
		}
		return Map(pairs...), nil
	default:
		// Nil, Bool, Number, String, Keyword, Function are self-evaluating.
		return form, nil
	}
}

func (ev *Evaluator) evalList(ctx context.Context, form Value, env *Env, depth int) (Value, error) {
	if len(form.Items) == 0 {
		return form, nil
	}
	head := form.Items[0]
	if head.Kind == KindSymbol {
		switch head.Str {
		case "do":
			return ev.evalDo(ctx, form.Items[1:], env, depth)
		case "let":
			return ev.evalLet(ctx, form.Items[1:], env, depth)
		case "if":
			return ev.evalIf(ctx, form.Items[1:], env, depth)
		case "fn":
			return ev.evalFn(form.Items[1:], env, "")
		case "defn":
			return ev.evalDefn(form.Items[1:], env)
		case "step":
			return ev.evalStep(ctx, form.Items[1:], env, depth)
		case "call":
			return ev.evalCall(ctx, form.Items[1:], env, depth)
		case "set!":
			return ev.evalSetBang(ctx, form.Items[1:], env, depth)
		case "get":
			return ev.evalGet(ctx, form.Items[1:], env, depth)
		}
	}
	fn, err := ev.eval(ctx, head, env, depth+1)
	if err != nil {
		return Nil, err
	}
	args := make([]Value, len(form.Items)-1)
	for i, a := range form.Items[1:] {
		v, err := ev.eval(ctx, a, env, depth+1)
		if err != nil {
			return Nil, err
		}
		args[i] = v
	}
	return ev.apply(ctx, fn, args, depth)
}

func (ev *Evaluator) evalDo(ctx context.Context, body []Value, env *Env, depth int) (Value, error) {
	result := Nil
	for _, form := range body {
		var err error
		result, err = ev.eval(ctx, form, env, depth+1)
		if err != nil {
			return Nil, err
		}
	}
	return result, nil
}

// evalLet binds sequentially, so each binding's init form can reference
// earlier bindings and itself (letrec-style recursive fn bindings, per
// spec §4.6) because the symbol is defined before its init form's closure
// is captured.
func (ev *Evaluator) evalLet(ctx context.Context, args []Value, env *Env, depth int) (Value, error) {
	if len(args) < 1 || args[0].Kind != KindVector {
		return Nil, ccoserr.New(ccoserr.KindParse, "let requires a binding vector")
	}
	bindings := args[0].Items
	if len(bindings)%2 != 0 {
		return Nil, ccoserr.New(ccoserr.KindParse, "let binding vector has an odd number of forms")
	}
	letEnv := env.Child()
	for i := 0; i+1 < len(bindings); i += 2 {
		target := bindings[i]
		if target.Kind == KindSymbol {
			letEnv.Define(target.Str, Nil) // pre-declare for letrec-style self/mutual recursion
		}
		init, err := ev.eval(ctx, bindings[i+1], letEnv, depth+1)
		if err != nil {
			return Nil, err
		}
		if err := bindPattern(letEnv, target, init); err != nil {
			return Nil, err
		}
	}
	return ev.evalDo(ctx, args[1:], letEnv, depth+1)
}

func (ev *Evaluator) evalIf(ctx context.Context, args []Value, env *Env, depth int) (Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return Nil, ccoserr.New(ccoserr.KindParse, "if requires (if cond then else?)")
	}
	cond, err := ev.eval(ctx, args[0], env, depth+1)
	if err != nil {
		return Nil, err
	}
	if cond.Truthy() {
		return ev.eval(ctx, args[1], env, depth+1)
	}
	if len(args) == 3 {
		return ev.eval(ctx, args[2], env, depth+1)
	}
	return Nil, nil
}

func (ev *Evaluator) evalFn(args []Value, env *Env, name string) (Value, error) {
	if len(args) < 1 || args[0].Kind != KindVector {
		return Nil, ccoserr.New(ccoserr.KindParse, "fn requires a parameter vector")
	}
	params, rest, err := parseParams(args[0].Items)
	if err != nil {
		return Nil, err
	}
	return Value{Kind: KindFunction, Fn: &Function{
		Name:    name,
		Params:  params,
		Rest:    rest,
		Body:    args[1:],
		Closure: env,
	}}, nil
}

func (ev *Evaluator) evalDefn(args []Value, env *Env) (Value, error) {
	if len(args) < 2 || args[0].Kind != KindSymbol {
		return Nil, ccoserr.New(ccoserr.KindParse, "defn requires (defn name [params] body…)")
	}
	name := args[0].Str
	fnVal, err := ev.evalFn(args[1:], env, name)
	if err != nil {
		return Nil, err
	}
	env.Define(name, fnVal) // defined before closure use enables self-recursive defn
	return fnVal, nil
}

func parseParams(forms []Value) ([]Param, string, error) {
	var params []Param
	rest := ""
	for i := 0; i < len(forms); i++ {
		f := forms[i]
		if f.Kind == KindSymbol && f.Str == "&" {
			if i+1 >= len(forms) || forms[i+1].Kind != KindSymbol {
				return nil, "", ccoserr.New(ccoserr.KindParse, "rest parameter must be a symbol after &")
			}
			rest = forms[i+1].Str
			break
		}
		p, err := parseParam(f)
		if err != nil {
			return nil, "", err
		}
		params = append(params, p)
	}
	return params, rest, nil
}

func parseParam(f Value) (Param, error) {
	switch f.Kind {
	case KindSymbol:
		return Param{Symbol: f.Str}, nil
	case KindVector:
		elements, vrest, err := parseParams(f.Items)
		if err != nil {
			return Param{}, err
		}
		return Param{Pattern: &Pattern{Kind: PatternVector, Elements: elements, Rest: vrest}}, nil
	case KindMap:
		pattern, err := parseMapPattern(f)
		if err != nil {
			return Param{}, err
		}
		return Param{Pattern: pattern}, nil
	default:
		return Param{}, ccoserr.New(ccoserr.KindParse, "invalid parameter form")
	}
}

func parseMapPattern(f Value) (*Pattern, error) {
	keysVal, ok := f.MapGet(Keyword("keys"))
	if !ok || keysVal.Kind != KindVector {
		return nil, ccoserr.New(ccoserr.KindParse, "map destructuring requires {:keys [...]}")
	}
	pattern := &Pattern{Kind: PatternMap}
	for _, k := range keysVal.Items {
		if k.Kind != KindSymbol {
			return nil, ccoserr.New(ccoserr.KindParse, ":keys entries must be symbols")
		}
		pattern.Keys = append(pattern.Keys, k.Str)
		pattern.Binds = append(pattern.Binds, k.Str)
	}
	return pattern, nil
}

// bindPattern destructures value into env according to target, which is
// either a plain symbol or a nested vector/map pattern form.
func bindPattern(env *Env, target Value, value Value) error {
	switch target.Kind {
	case KindSymbol:
		env.Define(target.Str, value)
		return nil
	case KindVector:
		params, rest, err := parseParams(target.Items)
		if err != nil {
			return err
		}
		return bindParams(env, params, rest, value.Items)
	case KindMap:
		pattern, err := parseMapPattern(target)
		if err != nil {
			return err
		}
		for i, key := range pattern.Keys {
			v, _ := value.MapGet(Keyword(key))
			env.Define(pattern.Binds[i], v)
		}
		return nil
	default:
		return ccoserr.New(ccoserr.KindParse, "invalid destructuring target")
	}
}

func bindParams(env *Env, params []Param, rest string, args []Value) error {
	for i, p := range params {
		var v Value
		if i < len(args) {
			v = args[i]
		} else {
			v = Nil
		}
		if err := bindParam(env, p, v); err != nil {
			return err
		}
	}
	if rest != "" {
		var tail []Value
		if len(args) > len(params) {
			tail = args[len(params):]
		}
		env.Define(rest, Vector(tail...))
	}
	return nil
}

func bindParam(env *Env, p Param, v Value) error {
	if p.Pattern == nil {
		env.Define(p.Symbol, v)
		return nil
	}
	switch p.Pattern.Kind {
	case PatternVector:
		return bindParams(env, p.Pattern.Elements, p.Pattern.Rest, v.Items)
	case PatternMap:
		for i, key := range p.Pattern.Keys {
			bound, _ := v.MapGet(Keyword(key))
			env.Define(p.Pattern.Binds[i], bound)
		}
		return nil
	default:
		return ccoserr.New(ccoserr.KindParse, "unsupported nested destructuring pattern")
	}
}

// apply invokes fn (a closure or native builtin) with args.
func (ev *Evaluator) apply(ctx context.Context, fn Value, args []Value, depth int) (Value, error) {
	if fn.Kind != KindFunction || fn.Fn == nil {
		return Nil, ccoserr.Newf(ccoserr.KindParse, "value is not callable: %s", fn.String())
	}
	if fn.Fn.Native != nil {
		return fn.Fn.Native(ctx, args)
	}
	callEnv := fn.Fn.Closure.Child()
	if err := bindParams(callEnv, fn.Fn.Params, fn.Fn.Rest, args); err != nil {
		return Nil, err
	}
	return ev.evalDo(ctx, fn.Fn.Body, callEnv, depth+1)
}

func (ev *Evaluator) evalSetBang(ctx context.Context, args []Value, env *Env, depth int) (Value, error) {
	if len(args) != 2 || args[0].Kind != KindKeyword {
		return Nil, ccoserr.New(ccoserr.KindParse, "set! requires (set! :key value)")
	}
	v, err := ev.eval(ctx, args[1], env, depth+1)
	if err != nil {
		return Nil, err
	}
	ev.Host.SetExecutionContext(ctx, args[0].Str, v)
	return v, nil
}

func (ev *Evaluator) evalGet(ctx context.Context, args []Value, env *Env, depth int) (Value, error) {
	switch len(args) {
	case 1:
		if args[0].Kind != KindKeyword {
			return Nil, ccoserr.New(ccoserr.KindParse, "(get :key) requires a keyword")
		}
		if v, ok := ev.Host.GetContextValue(ctx, args[0].Str); ok {
			return v, nil
		}
		return Nil, nil
	case 2:
		m, err := ev.eval(ctx, args[0], env, depth+1)
		if err != nil {
			return Nil, err
		}
		key, err := ev.eval(ctx, args[1], env, depth+1)
		if err != nil {
			return Nil, err
		}
		if v, ok := m.MapGet(key); ok {
			return v, nil
		}
		return Nil, nil
	default:
		return Nil, ccoserr.New(ccoserr.KindParse, "get requires (get :key) or (get map key)")
	}
}

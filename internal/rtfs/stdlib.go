package rtfs

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// InstallStdlib defines the secure standard library of arithmetic and
// collection operations into root. None of these functions can perform a
// side effect; the only side-effecting form is (call …), handled directly
// by the evaluator rather than as a stdlib entry.
func InstallStdlib(root *Env) {
	define := func(name string, fn func(ctx context.Context, args []Value) (Value, error)) {
		root.Define(name, Value{Kind: KindFunction, Fn: &Function{Name: name, Native: fn}})
	}

	define("+", numFold(0, func(a, b float64) float64 { return a + b }))
	define("-", numFoldSub)
	define("*", numFold(1, func(a, b float64) float64 { return a * b }))
	define("/", numFoldDiv)

	define("=", func(_ context.Context, args []Value) (Value, error) {
		return Bool(allEqual(args)), nil
	})
	define("<", numCompare(func(a, b float64) bool { return a < b }))
	define(">", numCompare(func(a, b float64) bool { return a > b }))
	define("<=", numCompare(func(a, b float64) bool { return a <= b }))
	define(">=", numCompare(func(a, b float64) bool { return a >= b }))

	define("not", func(_ context.Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Nil, ccoserr.New(ccoserr.KindParse, "not takes exactly one argument")
		}
		return Bool(!args[0].Truthy()), nil
	})

	define("count", func(_ context.Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Nil, ccoserr.New(ccoserr.KindParse, "count takes exactly one argument")
		}
		switch args[0].Kind {
		case KindList, KindVector:
			return Number(float64(len(args[0].Items))), nil
		case KindMap:
			return Number(float64(len(args[0].Pairs))), nil
		case KindNil:
			return Number(0), nil
		default:
			return Nil, ccoserr.New(ccoserr.KindParse, "count requires a collection")
		}
	})

	define("conj", func(_ context.Context, args []Value) (Value, error) {
		if len(args) < 1 {
			return Nil, ccoserr.New(ccoserr.KindParse, "conj requires a collection")
		}
		items := append(append([]Value{}, args[0].Items...), args[1:]...)
		return Value{Kind: args[0].Kind, Items: items}, nil
	})

	define("first", func(_ context.Context, args []Value) (Value, error) {
		if len(args) != 1 || len(args[0].Items) == 0 {
			return Nil, nil
		}
		return args[0].Items[0], nil
	})

	define("rest", func(_ context.Context, args []Value) (Value, error) {
		if len(args) != 1 || len(args[0].Items) <= 1 {
			return Vector(), nil
		}
		return Value{Kind: KindVector, Items: append([]Value{}, args[0].Items[1:]...)}, nil
	})

	define("str", func(_ context.Context, args []Value) (Value, error) {
		out := ""
		for _, a := range args {
			if a.Kind == KindString {
				out += a.Str
			} else {
				out += a.String()
			}
		}
		return String(out), nil
	})

	define("vector", func(_ context.Context, args []Value) (Value, error) {
		return Vector(args...), nil
	})

	define("list", func(_ context.Context, args []Value) (Value, error) {
		return List(args...), nil
	})
}

func numFold(identity float64, op func(a, b float64) float64) func(context.Context, []Value) (Value, error) {
	return func(_ context.Context, args []Value) (Value, error) {
		acc := identity
		for _, a := range args {
			if a.Kind != KindNumber {
				return Nil, ccoserr.New(ccoserr.KindParse, "arithmetic operator requires numeric arguments")
			}
			acc = op(acc, a.Number)
		}
		return Number(acc), nil
	}
}

func numFoldSub(_ context.Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return Nil, ccoserr.New(ccoserr.KindParse, "- requires at least one argument")
	}
	if err := requireNumbers(args); err != nil {
		return Nil, err
	}
	if len(args) == 1 {
		return Number(-args[0].Number), nil
	}
	acc := args[0].Number
	for _, a := range args[1:] {
		acc -= a.Number
	}
	return Number(acc), nil
}

func numFoldDiv(_ context.Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return Nil, ccoserr.New(ccoserr.KindParse, "/ requires at least one argument")
	}
	if err := requireNumbers(args); err != nil {
		return Nil, err
	}
	if len(args) == 1 {
		if args[0].Number == 0 {
			return Nil, ccoserr.New(ccoserr.KindParse, "division by zero")
		}
		return Number(1 / args[0].Number), nil
	}
	acc := args[0].Number
	for _, a := range args[1:] {
		if a.Number == 0 {
			return Nil, ccoserr.New(ccoserr.KindParse, "division by zero")
		}
		acc /= a.Number
	}
	return Number(acc), nil
}

func requireNumbers(args []Value) error {
	for _, a := range args {
		if a.Kind != KindNumber {
			return ccoserr.New(ccoserr.KindParse, "arithmetic operator requires numeric arguments")
		}
	}
	return nil
}

func numCompare(cmp func(a, b float64) bool) func(context.Context, []Value) (Value, error) {
	return func(_ context.Context, args []Value) (Value, error) {
		if err := requireNumbers(args); err != nil {
			return Nil, err
		}
		for i := 0; i+1 < len(args); i++ {
			if !cmp(args[i].Number, args[i+1].Number) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	}
}

func allEqual(args []Value) bool {
	for i := 1; i < len(args); i++ {
		if !Equal(args[0], args[i]) {
			return false
		}
	}
	return true
}

package rtfs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEvaluator(host HostInterface) (*Evaluator, *Env) {
	if host == nil {
		host = NewPureHost()
	}
	ev := NewEvaluator(host)
	root := NewEnv()
	InstallStdlib(root)
	return ev, root
}

func evalSource(t *testing.T, source string, host HostInterface) Value {
	t.Helper()
	forms, err := ReadAll(source)
	require.NoError(t, err)
	ev, root := newTestEvaluator(host)
	result, err := ev.EvalAll(context.Background(), forms, root)
	require.NoError(t, err)
	return result
}

func TestArithmeticAndComparison(t *testing.T) {
	require.Equal(t, Number(6), evalSource(t, `(+ 1 2 3)`, nil))
	require.Equal(t, Number(-4), evalSource(t, `(- 1 2 3)`, nil))
	require.Equal(t, Bool(true), evalSource(t, `(< 1 2 3)`, nil))
	require.Equal(t, Bool(false), evalSource(t, `(< 1 3 2)`, nil))
}

func TestIfTruthiness(t *testing.T) {
	require.Equal(t, Number(1), evalSource(t, `(if true 1 2)`, nil))
	require.Equal(t, Number(2), evalSource(t, `(if false 1 2)`, nil))
	require.Equal(t, Number(1), evalSource(t, `(if nil 2 1)`, nil))
}

func TestLetSequentialBinding(t *testing.T) {
	require.Equal(t, Number(3), evalSource(t, `(let [a 1 b (+ a 1)] (+ a b))`, nil))
}

func TestFnAndDefnRecursion(t *testing.T) {
	require.Equal(t, Number(120), evalSource(t, `
		(defn fact [n] (if (<= n 1) 1 (* n (fact (- n 1)))))
		(fact 5)
	`, nil))
}

func TestLetRecSelfReferentialFn(t *testing.T) {
	require.Equal(t, Number(55), evalSource(t, `
		(let [fib (fn [n] (if (< n 2) n (+ (fib (- n 1)) (fib (- n 2)))))]
			(fib 10))
	`, nil))
}

func TestVectorDestructuringWithRest(t *testing.T) {
	require.Equal(t, Number(1), evalSource(t, `(let [[a & rest] [1 2 3]] a)`, nil))
	require.Equal(t, Number(2), evalSource(t, `(let [[a & rest] [1 2 3]] (count rest))`, nil))
}

func TestMapKeysDestructuring(t *testing.T) {
	require.Equal(t, Number(7), evalSource(t, `(let [{:keys [x y]} {:x 3 :y 4}] (+ x y))`, nil))
}

func TestGetSpecialFormOnMapAndContext(t *testing.T) {
	require.Equal(t, Number(5), evalSource(t, `(get {:a 5} :a)`, nil))
}

func TestQuotedCapabilityLikeStringIsNotACall(t *testing.T) {
	result := evalSource(t, `"ccos.should-not-be-a-call"`, nil)
	require.Equal(t, KindString, result.Kind)
	forms, err := ReadAll(`(do "ccos.should-not-be-a-call")`)
	require.NoError(t, err)
	require.Empty(t, PreflightCapabilities(forms))
}

func TestPreflightCountsOnlyActualCallForms(t *testing.T) {
	forms, err := ReadAll(`(do (call :ccos.echo "hi") (call :ccos.math.add 1 2))`)
	require.NoError(t, err)
	ids := PreflightCapabilities(forms)
	require.ElementsMatch(t, []string{"ccos.echo", "ccos.math.add"}, ids)
}

func TestPureHostRejectsCapabilityCall(t *testing.T) {
	forms, err := ReadAll(`(call :ccos.echo "hi")`)
	require.NoError(t, err)
	ev, root := newTestEvaluator(NewPureHost())
	_, err = ev.EvalAll(context.Background(), forms, root)
	require.Error(t, err)
}

type recordingHost struct {
	started, completed []string
	failed             []string
	context            map[string]Value
	exec               func(ctx context.Context, capabilityID string, args Value) (Value, error)
}

func newRecordingHost() *recordingHost {
	return &recordingHost{context: map[string]Value{}}
}

func (h *recordingHost) ExecuteCapability(ctx context.Context, capabilityID string, args Value) (Value, error) {
	if h.exec != nil {
		return h.exec(ctx, capabilityID, args)
	}
	return args, nil
}
func (h *recordingHost) NotifyStepStarted(_ context.Context, name string, _ Value)   { h.started = append(h.started, name) }
func (h *recordingHost) NotifyStepCompleted(_ context.Context, name string, _ Value) { h.completed = append(h.completed, name) }
func (h *recordingHost) NotifyStepFailed(_ context.Context, name string, _ error)     { h.failed = append(h.failed, name) }
func (h *recordingHost) SetExecutionContext(_ context.Context, key string, v Value)   { h.context[key] = v }
func (h *recordingHost) GetContextValue(_ context.Context, key string) (Value, bool) {
	v, ok := h.context[key]
	return v, ok
}
func (h *recordingHost) SetStepExposureOverride(_ context.Context, _ string, _ bool) {}

func TestCallRoutesThroughHost(t *testing.T) {
	host := newRecordingHost()
	result := evalSource(t, `(call :ccos.echo "hi")`, host)
	require.Equal(t, String("hi"), result)
}

func TestStepEmitsStartedAndCompleted(t *testing.T) {
	host := newRecordingHost()
	evalSource(t, `(step "greet" (call :ccos.echo "hi"))`, host)
	require.Equal(t, []string{"greet"}, host.started)
	require.Equal(t, []string{"greet"}, host.completed)
	require.Empty(t, host.failed)
}

func TestStepEmitsFailedOnError(t *testing.T) {
	host := newRecordingHost()
	host.exec = func(ctx context.Context, id string, args Value) (Value, error) {
		return Nil, errors.New("capability unavailable")
	}
	forms, err := ReadAll(`(step "greet" (call :ccos.echo "hi"))`)
	require.NoError(t, err)
	ev, root := newTestEvaluator(host)
	_, evalErr := ev.EvalAll(context.Background(), forms, root)
	require.Error(t, evalErr)
	require.Equal(t, []string{"greet"}, host.started)
	require.Equal(t, []string{"greet"}, host.failed)
}

func TestSetBangAndGetRoundTripThroughHostContext(t *testing.T) {
	host := newRecordingHost()
	ev, root := newTestEvaluator(host)
	forms, err := ReadAll(`(do (set! :mood "curious") (get :mood))`)
	require.NoError(t, err)
	result, err := ev.EvalAll(context.Background(), forms, root)
	require.NoError(t, err)
	require.Equal(t, String("curious"), result)
}

func TestStackDepthLimitIsEnforced(t *testing.T) {
	forms, err := ReadAll(`(defn loopy [n] (+ 1 (loopy n))) (loopy 0)`)
	require.NoError(t, err)
	ev, root := newTestEvaluator(nil)
	ev.MaxDepth = 50
	_, err = ev.EvalAll(context.Background(), forms, root)
	require.Error(t, err)
}

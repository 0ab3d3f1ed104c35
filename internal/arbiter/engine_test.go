package arbiter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("provider unavailable")

func TestTemplateEngineIntentFromRequestSummarizesGoal(t *testing.T) {
	e := TemplateEngine{}
	i, err := e.IntentFromRequest(context.Background(), "please check the weather forecast for tomorrow in Paris")
	require.NoError(t, err)
	require.Equal(t, "please check the weather forecast", i.Name)
	require.Equal(t, "please check the weather forecast for tomorrow in Paris", i.Goal)
}

func TestTemplateEnginePlanFromIntentPicksBestMatch(t *testing.T) {
	e := TemplateEngine{}
	body, err := e.PlanFromIntent(context.Background(), "check the weather forecast", []string{"ccos.echo", "ccos.weather.forecast", "ccos.math.add"})
	require.NoError(t, err)
	require.Contains(t, body, "ccos.weather.forecast")
}

func TestTemplateEnginePlanFromIntentFallsBackToNoop(t *testing.T) {
	e := TemplateEngine{}
	body, err := e.PlanFromIntent(context.Background(), "do something unrelated", []string{"ccos.echo"})
	require.NoError(t, err)
	require.Equal(t, "(do nil)", body)
}

func TestDummyEngineIsDeterministic(t *testing.T) {
	e := DummyEngine{}
	i, err := e.IntentFromRequest(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, "dummy-intent", i.Name)
	body, err := e.PlanFromIntent(context.Background(), "goal", nil)
	require.NoError(t, err)
	require.Equal(t, "(do nil)", body)
}

func TestFullLLMEngineReturnsProviderError(t *testing.T) {
	e := FullLLMEngine{Provider: &stubProvider{err: errBoom}}
	_, err := e.IntentFromRequest(context.Background(), "hi")
	require.Error(t, err)
}

func TestHybridEngineFallsBackToTemplateOnProviderError(t *testing.T) {
	e := NewHybridEngine(&stubProvider{err: errBoom})
	body, err := e.PlanFromIntent(context.Background(), "check the weather forecast", []string{"ccos.weather.forecast"})
	require.NoError(t, err)
	require.Contains(t, body, "ccos.weather.forecast")
}

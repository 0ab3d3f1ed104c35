package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNoopReturnsUsableImplementations(t *testing.T) {
	logger, metrics, tracer := NewNoop()
	ctx := context.Background()

	logger.Info(ctx, "hello", "k", "v")
	metrics.IncCounter("c", 1, "tag", "v")
	_, span := tracer.Start(ctx, "span")
	span.End()
}

func TestSlogLoggerDoesNotPanicWithOddKeyvals(t *testing.T) {
	logger := NewSlogLogger(nil)
	ctx := context.Background()
	require.NotPanics(t, func() {
		logger.Warn(ctx, "odd keyvals", "only-key")
	})
}

func TestTagsToAttrsPairsEvenAndPadsOdd(t *testing.T) {
	attrs := tagsToAttrs([]string{"a", "1", "b"})
	require.Len(t, attrs, 2)
	require.Equal(t, "a", string(attrs[0].Key))
	require.Equal(t, "b", string(attrs[1].Key))
}

package host

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
)

// ChainStatusSink adapts *causalchain.Chain to intent.EventSink so Graph can
// notify the chain of status changes without importing causalchain itself
// (spec Design Notes: event sinks are weak back-references — Graph holds
// only the narrow interface, never the concrete chain).
type ChainStatusSink struct {
	Chain *causalchain.Chain
}

// AppendStatusChange satisfies intent.EventSink by discarding the chain's
// returned Action; Graph only needs to know whether the append failed.
func (s ChainStatusSink) AppendStatusChange(ctx context.Context, intentID, oldStatus, newStatus, reason, planID string) error {
	_, err := s.Chain.AppendStatusChange(ctx, intentID, oldStatus, newStatus, reason, planID)
	return err
}

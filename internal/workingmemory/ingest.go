package workingmemory

import (
	"context"
	"time"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
)

// derivableActions lists the causal-chain action types worth recalling
// (successful capability calls and terminal plan outcomes); intermediate
// lifecycle noise (PlanStepStarted, CheckpointTaken) is not retained.
var derivableActions = map[causalchain.ActionType]bool{
	causalchain.ActionCapabilityCall: true,
	causalchain.ActionPlanCompleted:  true,
	causalchain.ActionPlanFailed:     true,
}

// IngestFromChain derives working-memory entries from chain actions
// matching filter. Ingestion is idempotent: an action already ingested
// (tracked via store.Seen(actionID)) is skipped, so calling IngestFromChain
// repeatedly over an overlapping range never duplicates entries.
func IngestFromChain(ctx context.Context, store Store, chain *causalchain.Chain, filter causalchain.Filter) (int, error) {
	actions, err := chain.Iter(ctx, filter)
	if err != nil {
		return 0, err
	}
	ingested := 0
	for _, a := range actions {
		if !derivableActions[a.ActionType] {
			continue
		}
		already, err := store.Seen(ctx, a.ActionID)
		if err != nil {
			return ingested, err
		}
		if already {
			continue
		}
		entry := Entry{
			Value:          derivedValue(a),
			Tags:           derivedTags(a),
			SourceActionID: a.ActionID,
			CreatedAt:      time.Unix(0, a.Timestamp),
		}
		if a.FunctionName != "" {
			entry.Key = a.FunctionName
		}
		if err := store.Append(ctx, entry); err != nil {
			return ingested, err
		}
		ingested++
	}
	return ingested, nil
}

func derivedValue(a causalchain.Action) any {
	if a.Result != nil {
		return a.Result
	}
	if a.Metadata != nil {
		return a.Metadata
	}
	return nil
}

func derivedTags(a causalchain.Action) []string {
	tags := []string{string(a.ActionType)}
	if a.PlanID != "" {
		tags = append(tags, "plan:"+a.PlanID)
	}
	if a.IntentID != "" {
		tags = append(tags, "intent:"+a.IntentID)
	}
	return tags
}

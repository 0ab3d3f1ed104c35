// Package workingmemory implements the recall layer over the causal chain
// described in spec §4.10: a derived, queryable store of plan/capability
// outcomes, distinct from the chain itself (the chain is the source of
// truth; working memory is a cache optimized for recall, not audit).
package workingmemory

import "time"

// Entry is one stored recollection: a key/value pair plus free-form tags
// for recall, and (when derived from the causal chain) the source action
// id that produced it, used to make ingestion idempotent.
type Entry struct {
	Key            string
	Value          any
	Tags           []string
	SourceActionID string
	CreatedAt      time.Time
}

// QueryParams narrows Query. A zero QueryParams matches every entry, most
// recent first, with no limit.
type QueryParams struct {
	Tags  []string
	Limit int
}

func hasAllTags(entry Entry, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	have := make(map[string]bool, len(entry.Tags))
	for _, t := range entry.Tags {
		have[t] = true
	}
	for _, want := range tags {
		if !have[want] {
			return false
		}
	}
	return true
}

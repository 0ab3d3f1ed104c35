package intent

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/types"
)

// EventSink receives status-change notifications. The causal chain
// implements this via a thin adapter (see internal/host); Graph holds only
// this narrow interface, never the chain itself, so the two components do
// not own each other (Design Notes: "Event sinks are weak back-references").
type EventSink interface {
	AppendStatusChange(ctx context.Context, intentID, oldStatus, newStatus, reason, planID string) error
}

// noopSink discards status-change notifications. Used when Graph is
// constructed without WithEventSink.
type noopSink struct{}

func (noopSink) AppendStatusChange(context.Context, string, string, string, string, string) error {
	return nil
}

// Filter narrows ListIntents. A zero Filter matches every intent.
type Filter struct {
	Status Status
}

// Graph is a typed directed graph of intents. Nodes and edges are stored in
// arenas (slices) addressed by id rather than as a pointer graph, per Design
// Notes; cycle checks run on insert for the acyclic edge kinds. All
// mutations are serialized by a single mutex; readers take a snapshot under
// the same lock.
type Graph struct {
	mu    sync.Mutex
	sink  EventSink
	nodes map[string]*Intent
	// order preserves insertion order for deterministic ListIntents/backup.
	order []string
	edges []Edge
	// adjacency[kind][from] = set of to, used for cycle detection.
	adjacency map[EdgeKind]map[string]map[string]bool
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithEventSink wires a sink that receives IntentStatusChanged notifications.
func WithEventSink(sink EventSink) Option {
	return func(g *Graph) { g.sink = sink }
}

// New constructs an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		sink:      noopSink{},
		nodes:     map[string]*Intent{},
		adjacency: map[EdgeKind]map[string]map[string]bool{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// StoreIntent inserts or replaces an intent. A zero ID is assigned a fresh
// one. A zero Status defaults to Draft and CreatedAt defaults to now via the
// caller (Graph does not impose a clock to keep mutation pure).
func (g *Graph) StoreIntent(i Intent) (Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i.ID == "" {
		i.ID = types.NewID()
	}
	if i.Status == "" {
		i.Status = StatusDraft
	}
	if _, exists := g.nodes[i.ID]; !exists {
		g.order = append(g.order, i.ID)
	}
	copyOf := i
	g.nodes[i.ID] = &copyOf
	return copyOf, nil
}

// GetIntent returns the intent with the given id.
func (g *Graph) GetIntent(id string) (Intent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return Intent{}, false
	}
	return *n, true
}

// ListIntents returns intents matching filter, in insertion order.
func (g *Graph) ListIntents(filter Filter) []Intent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Intent, 0, len(g.order))
	for _, id := range g.order {
		n := g.nodes[id]
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// StoreEdge inserts a directed typed edge, rejecting it if it would
// introduce a cycle in an acyclic edge kind or if either endpoint does not
// reference an existing intent.
func (g *Graph) StoreEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[e.From]; !ok {
		return ccoserr.Newf(ccoserr.KindParse, "intent graph: edge references unknown intent %q", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ccoserr.Newf(ccoserr.KindParse, "intent graph: edge references unknown intent %q", e.To)
	}

	if acyclicKinds[e.Kind] && g.wouldCreateCycle(e.Kind, e.From, e.To) {
		return ccoserr.Newf(ccoserr.KindParse, "intent graph: edge %s %s->%s would create a cycle", e.Kind, e.From, e.To)
	}

	if g.adjacency[e.Kind] == nil {
		g.adjacency[e.Kind] = map[string]map[string]bool{}
	}
	if g.adjacency[e.Kind][e.From] == nil {
		g.adjacency[e.Kind][e.From] = map[string]bool{}
	}
	g.adjacency[e.Kind][e.From][e.To] = true
	g.edges = append(g.edges, e)
	return nil
}

// wouldCreateCycle reports whether adding from->to of kind would close a
// cycle, via DFS over the existing adjacency for that kind starting at to.
func (g *Graph) wouldCreateCycle(kind EdgeKind, from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{}
	var dfs func(node string) bool
	dfs = func(node string) bool {
		if node == from {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for next := range g.adjacency[kind][node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

// ListEdges returns every edge in insertion order.
func (g *Graph) ListEdges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// SetStatus validates the requested transition against the lattice, applies
// it, and emits an IntentStatusChanged notification to the event sink. An
// Archived intent is immutable: any further SetStatus call fails.
func (g *Graph) SetStatus(ctx context.Context, id string, newStatus Status, reason, planID string) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return ccoserr.Newf(ccoserr.KindParse, "intent graph: unknown intent %q", id)
	}
	old := n.Status
	if old == StatusArchived {
		g.mu.Unlock()
		return ccoserr.Newf(ccoserr.KindParse, "intent graph: intent %q is archived and immutable", id)
	}
	if !CanTransition(old, newStatus) {
		g.mu.Unlock()
		return ccoserr.Newf(ccoserr.KindParse, "intent graph: illegal transition %s -> %s for intent %q", old, newStatus, id)
	}
	n.Status = newStatus
	sink := g.sink
	g.mu.Unlock()

	return sink.AppendStatusChange(ctx, id, string(old), string(newStatus), reason, planID)
}

// snapshot is the JSON-serializable backup format: intents and edges in
// insertion order, preserving the round-trip property restore(backup(g)) == g.
type snapshot struct {
	Order []string `json:"order"`
	Nodes map[string]*Intent `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Backup writes a JSON snapshot of every intent and edge to w.
func (g *Graph) Backup(w io.Writer) error {
	g.mu.Lock()
	snap := snapshot{
		Order: append([]string(nil), g.order...),
		Nodes: make(map[string]*Intent, len(g.nodes)),
		Edges: append([]Edge(nil), g.edges...),
	}
	for id, n := range g.nodes {
		cp := *n
		snap.Nodes[id] = &cp
	}
	g.mu.Unlock()

	enc := json.NewEncoder(w)
	if err := enc.Encode(snap); err != nil {
		return ccoserr.NewWithCause(ccoserr.KindInternal, "intent graph backup failed", err)
	}
	return nil
}

// Restore replaces the graph's contents with a snapshot written by Backup.
func (g *Graph) Restore(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return ccoserr.NewWithCause(ccoserr.KindInternal, "intent graph restore failed", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]*Intent, len(snap.Nodes))
	for id, n := range snap.Nodes {
		cp := *n
		g.nodes[id] = &cp
	}
	g.order = append([]string(nil), snap.Order...)
	g.edges = append([]Edge(nil), snap.Edges...)
	g.adjacency = map[EdgeKind]map[string]map[string]bool{}
	for _, e := range g.edges {
		if g.adjacency[e.Kind] == nil {
			g.adjacency[e.Kind] = map[string]map[string]bool{}
		}
		if g.adjacency[e.Kind][e.From] == nil {
			g.adjacency[e.Kind][e.From] = map[string]bool{}
		}
		g.adjacency[e.Kind][e.From][e.To] = true
	}
	return nil
}

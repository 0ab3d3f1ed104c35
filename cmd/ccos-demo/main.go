// Command ccos-demo wires every CCOS component into one running instance
// and drives a single request through the full pipeline: natural language
// -> intent -> plan -> governed execution -> working-memory ingestion.
// It exists to exercise the wiring, the way the teacher's cmd/demo does for
// its own runtime (goa.design/goa-ai).
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mandubian/ccos-sub020/internal/approval"
	"github.com/mandubian/ccos-sub020/internal/arbiter"
	"github.com/mandubian/ccos-sub020/internal/capability"
	"github.com/mandubian/ccos-sub020/internal/causalchain"
	"github.com/mandubian/ccos-sub020/internal/governance"
	"github.com/mandubian/ccos-sub020/internal/host"
	"github.com/mandubian/ccos-sub020/internal/intent"
	"github.com/mandubian/ccos-sub020/internal/marketplace"
	"github.com/mandubian/ccos-sub020/internal/orchestrator"
	"github.com/mandubian/ccos-sub020/internal/security"
	"github.com/mandubian/ccos-sub020/internal/workingmemory"
)

func main() {
	ctx := context.Background()

	// 1) Causal chain and intent graph, wired together via the host's
	// ChainStatusSink adapter so every intent status transition lands on
	// the chain.
	chain := causalchain.New()
	intents := intent.New(intent.WithEventSink(host.ChainStatusSink{Chain: chain}))

	// 2) Working memory and approval queue, the two stores the built-in
	// capability set depends on.
	memory := workingmemory.NewMemoryStore()
	approvals := approval.New()

	// 3) Capability registry with the built-in set, behind a marketplace.
	registry := capability.New()
	if err := capability.RegisterBuiltins(registry, memory, approvals, http.DefaultClient); err != nil {
		panic(err)
	}
	mp := marketplace.New(registry)
	for _, id := range []string{"ccos.echo", "ccos.math.add"} {
		if err := mp.RegisterCapabilityManifest(capability.Manifest{ID: id}); err != nil {
			panic(err)
		}
	}
	if err := mp.RefreshCatalogIndex(ctx); err != nil {
		panic(err)
	}

	// 4) Governance kernel: an open constitution (no explicit denies) and
	// capability-existence preflight wired to the registry.
	constitution := governance.NewConstitution()
	kernel := governance.NewKernel(constitution, governance.WithCapabilityExistence(registry))

	// 5) Orchestrator ties marketplace, chain, intents, and the kernel
	// together behind execute_plan.
	orch := orchestrator.New(mp, chain, intents, orchestrator.WithGovernanceKernel(kernel))

	// 6) Arbiter drives the pipeline with the template engine (no LLM
	// provider configured for this demo).
	arb := arbiter.New(intents, mp, orch, chain, arbiter.DefaultConfig(), nil)

	i, err := arb.NaturalLanguageToIntent(ctx, "add two numbers together")
	if err != nil {
		panic(err)
	}
	plan, err := arb.IntentToPlan(ctx, i)
	if err != nil {
		panic(err)
	}

	rtCtx := security.NewFull()
	result := arb.ExecutePlan(ctx, plan, &rtCtx)
	fmt.Printf("plan %s finished with status %s (value=%v, err=%v)\n", result.PlanID, result.Status, result.Value, result.Err)

	if _, err := workingmemory.IngestFromChain(ctx, memory, chain, causalchain.Filter{PlanID: plan.ID}); err != nil {
		panic(err)
	}
	if _, err := arb.LearnFromExecution(ctx, plan.ID); err != nil {
		panic(err)
	}
}

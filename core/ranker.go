package core

import (
	"context"
	"log"
	"sort"
	"strings"
)

// Ranker picks the agent for a quest phase, preferring connected agents
// whose address matches a high-reputation external candidate but never
// blocking on the reputation system: connectivity is the hard requirement,
// reputation only a preference.
type Ranker struct {
	registry *AgentRegistry
	source   ReputationSource
}

// NewRanker creates a ranker over the given registry and candidate source.
func NewRanker(registry *AgentRegistry, source ReputationSource) *Ranker {
	return &Ranker{registry: registry, source: source}
}

// SelectAgent fetches candidates and selects in one call. Callers that must
// not block on the lookup (the coordinator loop) run the two halves
// separately, with FetchCandidates off their goroutine.
func (r *Ranker) SelectAgent(ctx context.Context, role AgentRole, minScore int) *AgentEntry {
	if len(r.registry.ListByRole(role)) == 0 {
		return nil
	}
	return r.SelectFrom(r.FetchCandidates(ctx, role, minScore), role)
}

// FetchCandidates queries the external reputation registry for candidates of
// the role. This is the blocking half of selection: it performs network I/O.
// A failing lookup and a nil source both degrade to an empty list and are
// never propagated.
func (r *Ranker) FetchCandidates(ctx context.Context, role AgentRole, minScore int) []Candidate {
	if r.source == nil {
		return nil
	}
	candidates, err := r.source.GetCandidates(ctx, role, minScore)
	if err != nil {
		log.Printf("[Ranker] Candidate lookup for role %s failed, using connected agents only: %v", role, err)
		return nil
	}
	return candidates
}

// SelectFrom joins an already fetched candidate list against the connected
// agents and returns the best match, or nil when no agent of that role is
// connected. It only touches in-memory registry state and never blocks.
func (r *Ranker) SelectFrom(candidates []Candidate, role AgentRole) *AgentEntry {
	connected := r.registry.ListByRole(role)
	if len(connected) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ReputationScore > candidates[j].ReputationScore
	})

	// Index connected agents by normalized address, then probe by rank.
	byAddress := make(map[string]*AgentEntry, len(connected))
	for _, e := range connected {
		if e.Address == "" {
			continue
		}
		key := strings.ToLower(e.Address)
		if _, ok := byAddress[key]; !ok {
			byAddress[key] = e
		}
	}
	for i := range candidates {
		if entry, ok := byAddress[strings.ToLower(candidates[i].Address)]; ok {
			discovery := candidates[i]
			r.registry.SetDiscovery(entry.ID, &discovery)
			log.Printf("[Ranker] Selected %s agent %s via candidate %s (score %d)",
				role, entry.ID, discovery.Address, discovery.ReputationScore)
			return entry
		}
	}

	// No ranked candidate is connected; any live agent of the role will do.
	return connected[0]
}

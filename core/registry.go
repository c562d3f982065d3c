package core

import (
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// AgentConn is the live transport handle owned by a registry entry.
// Closing it is what ultimately removes the entry, via the gateway's
// read loop observing the disconnect.
type AgentConn interface {
	SendJSON(v interface{}) error
	Close() error
}

// AgentEntry describes one connected agent. Role and address are fixed at
// registration; Discovery is attached when the agent is selected against a
// matching external candidate and is not kept live-updated.
type AgentEntry struct {
	ID           string
	Role         AgentRole
	Address      string
	Capabilities []string
	Discovery    *Candidate
	ConnectedAt  time.Time
	Conn         AgentConn
}

// AgentRegistry tracks currently-connected agents keyed by connection id.
// It holds no persistent state; agents are expected to reconnect and
// re-declare after a coordinator restart.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*AgentEntry
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]*AgentEntry)}
}

// Register inserts or overwrites the entry for entry.ID. The declared role
// is trusted as-is; there is no authentication of the registering party.
func (r *AgentRegistry) Register(entry *AgentEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ConnectedAt.IsZero() {
		entry.ConnectedAt = time.Now()
	}
	r.agents[entry.ID] = entry
	log.Printf("[Registry] Agent %s registered as %s (address=%s)", entry.ID, entry.Role, entry.Address)
}

// Unregister removes the entry for id. No-op if the id is unknown.
func (r *AgentRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return
	}
	delete(r.agents, id)
	log.Printf("[Registry] Agent %s unregistered", id)
}

// Get returns the entry for id, if connected.
func (r *AgentRegistry) Get(id string) (*AgentEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.agents[id]
	return e, ok
}

// ListByRole returns a snapshot of the connected agents with the given
// role, ordered by registration time (ties broken by id) so that repeated
// calls with unchanged membership see the same order.
func (r *AgentRegistry) ListByRole(role AgentRole) []*AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []*AgentEntry
	for _, e := range r.agents {
		if e.Role == role {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ConnectedAt.Equal(entries[j].ConnectedAt) {
			return entries[i].ConnectedAt.Before(entries[j].ConnectedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// GetByAddress returns the connected agent of the given role whose wallet
// address matches, comparing case-insensitively.
func (r *AgentRegistry) GetByAddress(role AgentRole, address string) (*AgentEntry, bool) {
	want := strings.ToLower(address)
	for _, e := range r.ListByRole(role) {
		if strings.ToLower(e.Address) == want {
			return e, true
		}
	}
	return nil, false
}

// SetDiscovery attaches the external candidate metadata that matched an
// agent at selection time.
func (r *AgentRegistry) SetDiscovery(id string, c *Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.agents[id]; ok {
		e.Discovery = c
	}
}

// Count returns the number of connected agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// CountsByRole returns connected-agent counts keyed by role name.
func (r *AgentRegistry) CountsByRole() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range r.agents {
		counts[string(e.Role)]++
	}
	return counts
}

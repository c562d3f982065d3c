package core

import (
	"testing"
	"time"
)

type nopConn struct{}

func (nopConn) SendJSON(v interface{}) error { return nil }
func (nopConn) Close() error                 { return nil }

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(&AgentEntry{ID: "s1", Role: RoleScout, Conn: nopConn{}})
	r.Register(&AgentEntry{ID: "v1", Role: RoleVerifier, Conn: nopConn{}})

	scouts := r.ListByRole(RoleScout)
	if len(scouts) != 1 || scouts[0].ID != "s1" {
		t.Fatalf("expected single scout s1, got %v", scouts)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 agents, got %d", r.Count())
	}
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(&AgentEntry{ID: "s1", Role: RoleScout, Address: "0xAAA", Conn: nopConn{}})
	r.Register(&AgentEntry{ID: "s1", Role: RoleScout, Address: "0xBBB", Conn: nopConn{}})

	e, ok := r.Get("s1")
	if !ok {
		t.Fatal("expected s1 to be registered")
	}
	if e.Address != "0xBBB" {
		t.Fatalf("expected overwritten address 0xBBB, got %s", e.Address)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 agent after overwrite, got %d", r.Count())
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(&AgentEntry{ID: "s1", Role: RoleScout, Conn: nopConn{}})

	r.Unregister("s1")
	r.Unregister("s1")
	r.Unregister("never-existed")

	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestRegistry_ListByRoleOrderStable(t *testing.T) {
	r := NewAgentRegistry()
	base := time.Now()
	r.Register(&AgentEntry{ID: "s2", Role: RoleScout, ConnectedAt: base.Add(time.Second), Conn: nopConn{}})
	r.Register(&AgentEntry{ID: "s1", Role: RoleScout, ConnectedAt: base, Conn: nopConn{}})
	r.Register(&AgentEntry{ID: "s3", Role: RoleScout, ConnectedAt: base.Add(2 * time.Second), Conn: nopConn{}})

	for i := 0; i < 5; i++ {
		got := r.ListByRole(RoleScout)
		if len(got) != 3 || got[0].ID != "s1" || got[1].ID != "s2" || got[2].ID != "s3" {
			t.Fatalf("expected registration order s1,s2,s3, got %v", got)
		}
	}
}

func TestRegistry_GetByAddressCaseInsensitive(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(&AgentEntry{ID: "v1", Role: RoleVerifier, Address: "0xAbCdEf", Conn: nopConn{}})

	e, ok := r.GetByAddress(RoleVerifier, "0xABCDEF")
	if !ok || e.ID != "v1" {
		t.Fatalf("expected case-insensitive match for v1, got %v ok=%v", e, ok)
	}
	if _, ok := r.GetByAddress(RoleScout, "0xAbCdEf"); ok {
		t.Fatal("expected no match for wrong role")
	}
}

func TestRegistry_CountsByRole(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(&AgentEntry{ID: "s1", Role: RoleScout, Conn: nopConn{}})
	r.Register(&AgentEntry{ID: "s2", Role: RoleScout, Conn: nopConn{}})
	r.Register(&AgentEntry{ID: "y1", Role: RoleSynthesizer, Conn: nopConn{}})

	counts := r.CountsByRole()
	if counts["scout"] != 2 || counts["synthesizer"] != 1 || counts["verifier"] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

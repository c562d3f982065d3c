package core

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T) (*APIServer, *harness) {
	t.Helper()
	registry := NewAgentRegistry()
	intake := NewIntakeQueue(10)
	sink := newRecordingSink()
	ranker := NewRanker(registry, &fakeSource{})
	coordinator := NewCoordinator(DefaultConfig(), ranker, sink, intake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coordinator.Run(ctx)

	gateway := NewGateway(registry, coordinator, nil)
	api := NewAPIServer(intake, coordinator, registry, gateway, NewMetrics())
	return api, &harness{coordinator: coordinator, registry: registry, intake: intake, sink: sink}
}

func TestAPI_SubmitQuest(t *testing.T) {
	api, h := newTestAPI(t)
	conn := newFakeConn()
	h.registry.Register(&AgentEntry{ID: "w1", Role: RoleScout, Conn: conn})

	body, _ := json.Marshal(QuestSubmission{
		Objectives: []string{"research topic X"},
		Budget:     1_000_000,
		Sources:    []string{"https://api.example.com/data"},
	})
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/quests", bytes.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["questId"] == "" || resp["status"] != "queued" {
		t.Fatalf("unexpected response: %v", resp)
	}

	// The coordinator drains the queue and dispatches the scout task.
	recvMessage(t, conn)
	status, found := h.coordinator.QuestStatus(resp["questId"])
	if !found || status != StatusScouting {
		t.Fatalf("expected quest scouting, got %v found=%v", status, found)
	}
}

func TestAPI_SubmitQuestValidation(t *testing.T) {
	api, _ := newTestAPI(t)

	cases := []struct {
		name string
		body string
	}{
		{"no objectives", `{"budget":1000}`},
		{"zero budget", `{"objectives":["x"],"budget":0}`},
		{"negative budget", `{"objectives":["x"],"budget":-5}`},
		{"unknown field", `{"objectives":["x"],"budget":1000,"priority":9}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/quests", bytes.NewBufferString(tc.body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestAPI_GetUnknownQuest(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/quests/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAPI_Stats(t *testing.T) {
	api, h := newTestAPI(t)
	h.registry.Register(&AgentEntry{ID: "s1", Role: RoleScout, Conn: nopConn{}})
	h.registry.Register(&AgentEntry{ID: "v1", Role: RoleVerifier, Conn: nopConn{}})

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad stats body: %v", err)
	}
	if snap.ConnectedAgents != 2 || snap.ActiveQuests != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.CountsByRole["scout"] != 1 || snap.CountsByRole["verifier"] != 1 {
		t.Fatalf("unexpected role counts: %v", snap.CountsByRole)
	}
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

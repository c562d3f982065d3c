package core

import (
	"encoding/json"
	"time"
)

// AgentRole identifies which phase of a quest an agent can execute.
type AgentRole string

const (
	RoleScout       AgentRole = "scout"
	RoleVerifier    AgentRole = "verifier"
	RoleSynthesizer AgentRole = "synthesizer"
)

// ValidRole reports whether role is one of the three known agent roles.
func ValidRole(role AgentRole) bool {
	switch role {
	case RoleScout, RoleVerifier, RoleSynthesizer:
		return true
	}
	return false
}

// QuestStatus is the current phase of a quest. Transitions are monotonic:
// scouting -> verifying -> synthesizing -> complete, with failed reachable
// from any non-terminal state.
type QuestStatus string

const (
	StatusScouting     QuestStatus = "scouting"
	StatusVerifying    QuestStatus = "verifying"
	StatusSynthesizing QuestStatus = "synthesizing"
	StatusComplete     QuestStatus = "complete"
	StatusFailed       QuestStatus = "failed"
)

// Task result statuses reported by agents.
const (
	ResultComplete = "complete"
	ResultVerified = "verified"
	ResultPartial  = "partial"
	ResultError    = "error"
)

// QuestSubmission is one intake job: the immutable specification of a quest.
type QuestSubmission struct {
	QuestID       string   `json:"questId"`
	Objectives    []string `json:"objectives"`
	Budget        int64    `json:"budget"`
	Constraints   []string `json:"constraints,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	WalletAddress string   `json:"walletAddress,omitempty"`
}

// BudgetSplit is the per-phase allocation of a quest's total budget,
// computed once at quest creation by integer floor division.
type BudgetSplit struct {
	Scout       int64 `json:"scout"`
	Verifier    int64 `json:"verifier"`
	Synthesizer int64 `json:"synthesizer"`
}

// SplitBudget divides total across the three phases using the configured
// percentage shares. Floor division may leave a remainder unallocated; the
// sum of the allocations never exceeds total.
func SplitBudget(total int64, cfg Config) BudgetSplit {
	return BudgetSplit{
		Scout:       phaseShare(total, cfg.ScoutShare),
		Verifier:    phaseShare(total, cfg.VerifyShare),
		Synthesizer: phaseShare(total, cfg.SynthShare),
	}
}

// phaseShare computes floor(total*pct/100) without the intermediate product,
// which would overflow int64 for budgets near the type's limit.
func phaseShare(total int64, pct int) int64 {
	return total/100*int64(pct) + total%100*int64(pct)/100
}

// Quest is one active unit of multi-phase work, owned exclusively by the
// coordinator loop while active. It is removed from the active set the
// moment it reaches a terminal state.
type Quest struct {
	ID             string
	Status         QuestStatus
	Payload        QuestSubmission
	Budget         BudgetSplit
	ScoutResult    []ResultChunk
	ExpectedHashes []string
	Attestation    json.RawMessage
	Artifact       json.RawMessage
	AssignedAgents map[QuestStatus]string
	StartTime      time.Time

	// timer is the single outstanding phase timeout. Each firing carries
	// the phase that armed it, so a late firing is recognized as stale.
	timer *time.Timer
}

// ResultChunk is one fetched data item in a scout result, passed through
// verification and synthesis unmodified.
type ResultChunk struct {
	Source    string          `json:"source,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Hash      string          `json:"hash,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// envelope carries only the type tag; the full message is re-decoded into
// the matching typed struct once the tag is known.
type envelope struct {
	Type string `json:"type"`
}

// RegisterMessage is the inbound declaration of a connecting agent.
type RegisterMessage struct {
	Type         string    `json:"type"`
	Role         AgentRole `json:"role"`
	AgentID      string    `json:"agentId,omitempty"`
	Address      string    `json:"address,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// TaskResultMessage is an inbound phase result, demultiplexed by quest id.
type TaskResultMessage struct {
	Type        string          `json:"type"`
	QuestID     string          `json:"questId"`
	AgentID     string          `json:"agentId,omitempty"`
	Status      string          `json:"status"`
	Results     []ResultChunk   `json:"results,omitempty"`
	DataHashes  []string        `json:"dataHashes,omitempty"`
	Attestation json.RawMessage `json:"attestation,omitempty"`
	Artifact    json.RawMessage `json:"artifact,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Outbound task dispatch messages, one per phase.

type QueryQuestTask struct {
	Type      string   `json:"type"`
	QuestID   string   `json:"questId"`
	Objective string   `json:"objective"`
	Sources   []string `json:"sources"`
	Budget    int64    `json:"budget"`
}

type VerifyTask struct {
	Type           string        `json:"type"`
	QuestID        string        `json:"questId"`
	Data           []ResultChunk `json:"data"`
	ExpectedHashes []string      `json:"expectedHashes"`
	Budget         int64         `json:"budget"`
}

type SynthesizeTask struct {
	Type         string          `json:"type"`
	QuestID      string          `json:"questId"`
	VerifiedData []ResultChunk   `json:"verifiedData"`
	Attestation  json.RawMessage `json:"attestation"`
	Objective    string          `json:"objective"`
	Budget       int64           `json:"budget"`
}

// CompletionEvent is published exactly once per successful quest.
type CompletionEvent struct {
	QuestID      string          `json:"questId"`
	Artifact     json.RawMessage `json:"artifact"`
	Attestation  json.RawMessage `json:"attestation"`
	Contributors []string        `json:"contributors"`
}

// FailureEvent is published when a quest terminates without a result.
type FailureEvent struct {
	QuestID string `json:"questId"`
	Reason  string `json:"reason"`
}

// Snapshot is the read-only diagnostics view of the coordinator.
type Snapshot struct {
	ConnectedAgents int            `json:"connectedWorkerCount"`
	ActiveQuests    int            `json:"activeQuestCount"`
	CountsByRole    map[string]int `json:"countsByRole"`
	UptimeSeconds   int64          `json:"uptimeSeconds"`
}
